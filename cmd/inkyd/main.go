// Package main is the entry point for inkyd, the display-orchestration
// daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/orrery-labs/inkframe/internal/app"
	"github.com/orrery-labs/inkframe/internal/buildinfo"
	"github.com/orrery-labs/inkframe/internal/clock"
	"github.com/orrery-labs/inkframe/internal/config"
	"github.com/orrery-labs/inkframe/internal/datasource"
	"github.com/orrery-labs/inkframe/internal/datasource/githubsource"
	"github.com/orrery-labs/inkframe/internal/datasource/mqttsource"
	"github.com/orrery-labs/inkframe/internal/datasource/websource"
	"github.com/orrery-labs/inkframe/internal/httpapi"

	_ "github.com/orrery-labs/inkframe/internal/plugin/clock"
	_ "github.com/orrery-labs/inkframe/internal/plugin/githubactivity"
	_ "github.com/orrery-labs/inkframe/internal/plugin/markdown"
	_ "github.com/orrery-labs/inkframe/internal/plugin/qrcode"
)

// newLogger picks a text handler for interactive terminals and a JSON
// handler otherwise (container log collectors, redirected files), the
// same isatty.IsTerminal check container-deployed Go daemons commonly
// use to avoid emitting ANSI-oriented text formatting into a log
// aggregator.
func newLogger(level slog.Leveler, replaceAttr func([]string, slog.Attr) slog.Attr) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := newLogger(slog.LevelInfo, nil)

	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "serve":
			runServe(logger, *configPath)
		case "version":
			fmt.Println(buildinfo.String())
			for k, v := range buildinfo.BuildInfo() {
				fmt.Printf("  %-12s %s\n", k+":", v)
			}
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
			os.Exit(1)
		}
		return
	}

	fmt.Println("inkyd - display orchestration daemon")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve    Start the display and API server")
	fmt.Println("  version  Show version")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

func runServe(logger *slog.Logger, configPath string) {
	logger.Info("starting inkyd", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "branch", buildinfo.GitBranch, "built", buildinfo.BuildTime)

	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			logger.Error("invalid log_level in config", "error", err)
			os.Exit(1)
		}
		logger = newLogger(level, config.ReplaceLogLevelNames)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"storage_path", cfg.StoragePath,
		"listen_port", cfg.Listen.Port,
		"display_backend", cfg.Display.Backend,
	)

	sup, err := app.New(cfg, clock.Real{}, logger)
	if err != nil {
		logger.Error("failed to build supervisor", "error", err)
		os.Exit(1)
	}

	registerDataSources(sup.DataSources, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sup.Start(ctx); err != nil {
		logger.Error("failed to start supervisor", "error", err)
		os.Exit(1)
	}

	server := httpapi.NewServer(cfg.Listen.Address, cfg.Listen.Port, sup, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutdown signal received")

		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)

		sup.Stop(10 * time.Second)
		sup.DataSources.Shutdown()
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("inkyd stopped")
}

// registerDataSources constructs and registers the sample data sources
// whose credentials are present in cfg, each logging its own
// enablement the way the teacher's runServe does for every optional
// service (Home Assistant, embeddings, shell exec, ...).
func registerDataSources(mgr *datasource.Manager, cfg *config.Config, logger *slog.Logger) {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	if cfg.DataSources.GitHubToken != "" && cfg.DataSources.GitHubRepo != "" {
		src, err := githubsource.New("github", cfg.DataSources.GitHubRepo, cfg.DataSources.GitHubToken, httpClient, logger)
		if err != nil {
			logger.Error("failed to construct github data source", "error", err)
		} else if err := mgr.Register(src); err != nil {
			logger.Error("failed to register github data source", "error", err)
		} else {
			logger.Info("github data source enabled", "repo", cfg.DataSources.GitHubRepo)
		}
	} else {
		logger.Info("github data source disabled (no token/repo configured)")
	}

	if cfg.DataSources.MQTTBroker != "" {
		mqttCfg := mqttsource.Config{
			Broker:   cfg.DataSources.MQTTBroker,
			ClientID: "inkyd",
		}
		src, err := mqttsource.New(context.Background(), "mqtt", mqttCfg, logger)
		if err != nil {
			logger.Error("failed to construct mqtt data source", "error", err)
		} else if err := mgr.Register(src); err != nil {
			logger.Error("failed to register mqtt data source", "error", err)
		} else {
			logger.Info("mqtt data source enabled", "broker", cfg.DataSources.MQTTBroker)
		}
	} else {
		logger.Info("mqtt data source disabled (no broker configured)")
	}

	if cfg.DataSources.WebURL != "" {
		src, err := websource.New("web", cfg.DataSources.WebURL, httpClient)
		if err != nil {
			logger.Error("failed to construct web data source", "error", err)
		} else if err := mgr.Register(src); err != nil {
			logger.Error("failed to register web data source", "error", err)
		} else {
			logger.Info("web data source enabled", "url", cfg.DataSources.WebURL)
		}
	} else {
		logger.Info("web data source disabled (no url configured)")
	}
}
