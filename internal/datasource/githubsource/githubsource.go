// Package githubsource is a sample data source exposing recent
// repository activity. It is grounded on the teacher's
// internal/forge/github.go: the same github.com/google/go-github/v69
// client construction and rate-limit-warning-on-response pattern,
// trimmed to a single read-only Opener since a display data source
// only ever needs to produce state to show, never mutate GitHub.
package githubsource

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-github/v69/github"

	"github.com/orrery-labs/inkframe/internal/coreerr"
	"github.com/orrery-labs/inkframe/internal/datasource"
	"github.com/orrery-labs/inkframe/internal/exec"
)

// rateLimitWarningThreshold mirrors the teacher's forge.GitHub
// constant: log when the remaining quota drops below this value.
const rateLimitWarningThreshold = 100

// Commit is one entry in the activity feed an Opener call resolves
// to.
type Commit struct {
	SHA     string
	Message string
	Author  string
}

// Activity is the opened state: the most recent commits on a repo's
// default branch.
type Activity struct {
	Repo    string
	Commits []Commit
}

type source struct {
	client *github.Client
	logger *slog.Logger
	repo   string
	limit  int
}

// New builds a githubsource Source reading recent commit activity
// from repo ("owner/name"). httpClient may be nil to use
// http.DefaultClient.
func New(id, repo, token string, httpClient *http.Client, logger *slog.Logger) (*datasource.Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if _, _, err := splitRepo(repo); err != nil {
		return nil, err
	}

	client := github.NewClient(httpClient).WithAuthToken(token)
	s := &source{client: client, logger: logger, repo: repo, limit: 10}

	return &datasource.Source{ID: id, Opener: s.open}, nil
}

func splitRepo(repo string) (owner, name string, err error) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: invalid repo %q, expected owner/repo", coreerr.InvalidInput, repo)
	}
	return parts[0], parts[1], nil
}

func (s *source) checkRate(resp *github.Response) {
	if resp == nil {
		return
	}
	remaining := resp.Rate.Remaining
	if remaining > 0 && remaining < rateLimitWarningThreshold {
		s.logger.Warn("githubsource rate limit low", "remaining", remaining, "limit", resp.Rate.Limit)
	}
}

// open fetches the most recent commits as the opened state (spec.md
// §4.6 "open(ctx, params) -> future<state>").
func (s *source) open(ctx *exec.Context, params map[string]any) (any, error) {
	owner, name, err := splitRepo(s.repo)
	if err != nil {
		return nil, err
	}

	ghCommits, resp, err := s.client.Repositories.ListCommits(context.Background(), owner, name, &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: s.limit},
	})
	if err != nil {
		return nil, fmt.Errorf("githubsource: list commits for %s: %w", s.repo, err)
	}
	s.checkRate(resp)

	return Activity{Repo: s.repo, Commits: mapCommits(ghCommits)}, nil
}

// mapCommits converts go-github's RepositoryCommit shape into the
// Opener's plain Commit values.
func mapCommits(ghCommits []*github.RepositoryCommit) []Commit {
	commits := make([]Commit, 0, len(ghCommits))
	for _, c := range ghCommits {
		commit := Commit{SHA: c.GetSHA()}
		if gc := c.GetCommit(); gc != nil {
			commit.Message = gc.GetMessage()
			if author := gc.GetAuthor(); author != nil {
				commit.Author = author.GetName()
			}
		}
		commits = append(commits, commit)
	}
	return commits
}
