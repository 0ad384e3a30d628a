// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	custom_errors "stargazer-ledger/internal/errors"
	"stargazer-ledger/internal/ledger"
	"stargazer-ledger/internal/model"
)

// RepoIdentifier holds the owner and name of a repository.
type RepoIdentifier struct {
	Owner string
	Name  string
}

// Ledger is the part of ledger.Service the syncer drives.
type Ledger interface {
	Register(ctx context.Context, owner, name string) (model.Repository, error)
	Reconcile(ctx context.Context, owner, name string) (ledger.Result, error)
	Repositories(ctx context.Context) ([]model.Repository, error)
}

// Syncer triggers a reconciliation cycle for every tracked repository on a fixed interval.
type Syncer struct {
	ledger       Ledger
	logger       *slog.Logger
	seedRepos    []RepoIdentifier
	syncInterval time.Duration
	concurrency  int
}

// NewSyncer creates a new Syncer instance. seed lists owner/name repositories to register on
// start if they are not tracked yet.
func NewSyncer(l Ledger, logger *slog.Logger, seed []string, interval time.Duration, concurrency int) (*Syncer, error) {
	parsedRepos, err := parseRepoIdentifiers(seed)
	if err != nil {
		return nil, err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	return &Syncer{
		ledger:       l,
		logger:       logger,
		seedRepos:    parsedRepos,
		syncInterval: interval,
		concurrency:  concurrency,
	}, nil
}

// Start begins the continuous synchronization process.
func (s *Syncer) Start(ctx context.Context) {
	s.logger.Info("Starting syncer", "interval", s.syncInterval.String(), "concurrency", s.concurrency)
	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	s.seed(ctx)
	s.RunSyncCycle(ctx) // Initial sync

	for {
		select {
		case <-ticker.C:
			s.RunSyncCycle(ctx)
		case <-ctx.Done():
			s.logger.Info("Syncer shutting down", "reason", ctx.Err())
			return
		}
	}
}

// seed registers the configured repositories that are not tracked yet.
func (s *Syncer) seed(ctx context.Context) {
	for _, id := range s.seedRepos {
		if ctx.Err() != nil {
			return
		}
		_, err := s.ledger.Register(ctx, id.Owner, id.Name)
		switch {
		case err == nil:
		case errors.Is(err, custom_errors.ErrAlreadyExists):
			s.logger.Debug("Seed repository already tracked", "owner", id.Owner, "repo", id.Name)
		case errors.Is(err, custom_errors.ErrCycleInProgress):
			s.logger.Info("Seed repository is being registered elsewhere", "owner", id.Owner, "repo", id.Name)
		default:
			s.logger.Error("Failed to register seed repository", "owner", id.Owner, "repo", id.Name, "error", err)
		}
	}
}

// RunSyncCycle reconciles all tracked repositories concurrently. Per-repository failures are
// logged and do not stop the others.
func (s *Syncer) RunSyncCycle(ctx context.Context) {
	s.logger.Info("Starting new sync cycle")
	repos, err := s.ledger.Repositories(ctx)
	if err != nil {
		s.logger.Error("Failed to list tracked repositories", "error", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, repo := range repos {
		repo := repo
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			s.syncRepo(gctx, repo)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("Sync cycle finished with an error", "error", err)
	} else {
		s.logger.Info("Sync cycle finished", "repositories", len(repos))
	}
}

func (s *Syncer) syncRepo(ctx context.Context, repo model.Repository) {
	logger := s.logger.With("owner", repo.Owner, "repo", repo.Name, "repo_id", repo.ID)

	res, err := s.ledger.Reconcile(ctx, repo.Owner, repo.Name)
	switch {
	case err == nil && res.Gone:
		logger.Warn("Tracked repository is gone upstream; keeping its history")
	case err == nil:
	case errors.Is(err, context.Canceled):
	case errors.Is(err, custom_errors.ErrCycleInProgress):
		logger.Info("Repository is busy elsewhere, skipping")
	default:
		logger.Error("Failed to sync repository", "error", err)
	}
}

func parseRepoIdentifiers(repos []string) ([]RepoIdentifier, error) {
	var identifiers []RepoIdentifier
	for _, r := range repos {
		parts := strings.Split(strings.TrimSpace(r), "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, &custom_errors.ErrInvalidRepoFormat{Repo: r}
		}
		identifiers = append(identifiers, RepoIdentifier{Owner: parts[0], Name: parts[1]})
	}
	return identifiers, nil
}
