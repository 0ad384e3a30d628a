// Package ledger records, per tracked repository, which stargazers were first seen on which
// UTC date. Registration writes the baseline bucket, each reconciliation appends only the
// stargazers past the last recorded count to the dated bucket of the day, and range queries
// union the buckets that intersect a window.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	custom_errors "stargazer-ledger/internal/errors"
	"stargazer-ledger/internal/metrics"
	"stargazer-ledger/internal/model"
)

// Service implements registration, reconciliation and range queries over a Store.
type Service struct {
	store   Store
	lister  Lister
	locker  Locker
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	flights singleflight.Group

	cycleTimeout time.Duration

	heldMu sync.Mutex
	held   map[string]struct{}
}

// DefaultCycleTimeout bounds one reconciliation cycle.
const DefaultCycleTimeout = 30 * time.Minute

// Option configures a Service.
type Option func(*Service)

// WithLocker makes reconciliation take a cross-replica lease per repository.
func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithCycleTimeout bounds a reconciliation cycle. A cycle runs on its own deadline rather than
// the caller's, since callers that join it share its result.
func WithCycleTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cycleTimeout = d
		}
	}
}

// WithClock overrides time.Now, which decides the registration date and today's bucket.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store Store, lister Lister, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		lister: lister,
		logger: logger,
		now:    time.Now,

		cycleTimeout: DefaultCycleTimeout,
		held:         make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init creates the baseline bucket if it does not exist yet.
func (s *Service) Init(ctx context.Context) error {
	if err := s.store.EnsureBucket(ctx, model.BaselineBucket); err != nil {
		return storeErr("ensure baseline bucket", err)
	}
	return nil
}

// Repositories lists every tracked repository.
func (s *Service) Repositories(ctx context.Context) ([]model.Repository, error) {
	repos, err := s.store.ListRepositories(ctx)
	if err != nil {
		return nil, storeErr("list repositories", err)
	}
	return repos, nil
}

// Repository loads one tracked repository, or ErrNotTracked.
func (s *Service) Repository(ctx context.Context, owner, name string) (model.Repository, error) {
	repo, err := s.store.GetRepository(ctx, owner, name)
	if err != nil {
		return model.Repository{}, storeErr("get repository", err)
	}
	return repo, nil
}

// hold reserves owner/name for one registration or reconciliation at a time, in this process
// and, with a Locker, across replicas. A reservation held elsewhere yields ErrCycleInProgress.
func (s *Service) hold(ctx context.Context, key string) (release func(), err error) {
	s.heldMu.Lock()
	if _, busy := s.held[key]; busy {
		s.heldMu.Unlock()
		return nil, custom_errors.ErrCycleInProgress
	}
	s.held[key] = struct{}{}
	s.heldMu.Unlock()

	unhold := func() {
		s.heldMu.Lock()
		delete(s.held, key)
		s.heldMu.Unlock()
	}
	if s.locker == nil {
		return unhold, nil
	}

	releaseLease, err := s.locker.Acquire(ctx, key)
	if err != nil {
		unhold()
		return nil, err
	}
	return func() {
		if err := releaseLease(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release repository lease", "key", key, "error", err)
		}
		unhold()
	}, nil
}

func repoKey(owner, name string) string {
	return owner + "/" + name
}

func (s *Service) today() time.Time {
	return model.DateOf(s.now())
}

// storeErr tags err as a StoreFailure unless it already carries a taxonomy error.
func storeErr(op string, err error) error {
	if errors.Is(err, custom_errors.ErrAlreadyExists) || errors.Is(err, custom_errors.ErrNotTracked) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, custom_errors.ErrStoreFailure, err)
}
