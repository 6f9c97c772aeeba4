// Package mqttsource is a sample data source backed by an MQTT
// subscription. It is grounded on the teacher's internal/mqtt
// publisher/subscriber: the same github.com/eclipse/paho.golang
// autopaho connection manager, trimmed from a discovery-publishing
// sensor bridge down to a subscribe-only reader that keeps the latest
// decoded payload per topic behind a lock-free pointer.
package mqttsource

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/orrery-labs/inkframe/internal/coreerr"
	"github.com/orrery-labs/inkframe/internal/datasource"
	"github.com/orrery-labs/inkframe/internal/exec"
)

// Config configures the MQTT connection for one data source instance.
type Config struct {
	Broker   string
	Username string
	Password string
	ClientID string
	Topics   []string
}

// Reading is the most recently seen payload for one subscribed topic.
// An Opener call resolves to a map from topic to its Reading.
type Reading struct {
	Topic     string
	Payload   map[string]any
	Raw       []byte
	Timestamp time.Time
}

// Source subscribes to cfg.Topics and exposes the newest reading per
// topic as the data source's opened state.
type Source struct {
	cfg    Config
	logger *slog.Logger

	latest atomic.Pointer[map[string]Reading]
}

// New connects to the MQTT broker in the background (mirroring the
// teacher's Publisher.Start, which does not block the caller on the
// initial handshake) and returns a datasource.Source wired to read the
// latest reading on Open.
func New(ctx context.Context, id string, cfg Config, logger *slog.Logger) (*datasource.Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Source{cfg: cfg, logger: logger}
	empty := map[string]Reading{}
	s.latest.Store(&empty)

	brokerURL, err := url.Parse(cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("%w: parse mqtt broker URL: %v", coreerr.InvalidInput, err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: cfg.Username,
		ConnectPassword: []byte(cfg.Password),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			s.logger.Info("mqttsource connected", "source", id, "broker", cfg.Broker)
			s.subscribe(ctx, cm)
		},
		OnConnectError: func(err error) {
			s.logger.Warn("mqttsource connection error", "source", id, "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: cfg.ClientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return nil, fmt.Errorf("mqttsource: connect: %w", err)
	}
	cm.AddOnPublishReceived(func(pr autopaho.PublishReceived) (bool, error) {
		s.record(pr.Packet.Topic, pr.Packet.Payload)
		return true, nil
	})

	return &datasource.Source{ID: id, Opener: s.open}, nil
}

func (s *Source) subscribe(ctx context.Context, cm *autopaho.ConnectionManager) {
	if len(s.cfg.Topics) == 0 {
		return
	}
	opts := make([]paho.SubscribeOptions, 0, len(s.cfg.Topics))
	for _, topic := range s.cfg.Topics {
		opts = append(opts, paho.SubscribeOptions{Topic: topic, QoS: 0})
	}
	subCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := cm.Subscribe(subCtx, &paho.Subscribe{Subscriptions: opts}); err != nil {
		s.logger.Error("mqttsource subscribe failed", "topics", s.cfg.Topics, "error", err)
	}
}

func (s *Source) record(topic string, payload []byte) {
	reading := Reading{Topic: topic, Raw: payload, Timestamp: time.Now()}
	_ = json.Unmarshal(payload, &reading.Payload) // non-JSON payloads keep Raw only

	for {
		old := s.latest.Load()
		updated := make(map[string]Reading, len(*old)+1)
		for k, v := range *old {
			updated[k] = v
		}
		updated[topic] = reading
		if s.latest.CompareAndSwap(old, &updated) {
			return
		}
	}
}

// open returns a snapshot of every topic's latest reading as the
// opened state (spec.md §4.6 "open(ctx, params) -> future<state>").
func (s *Source) open(ctx *exec.Context, params map[string]any) (any, error) {
	snapshot := *s.latest.Load()
	return snapshot, nil
}
