package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	custom_errors "stargazer-ledger/internal/errors"
	"stargazer-ledger/internal/model"
)

// Result describes one reconciliation cycle.
type Result struct {
	OldCount int
	NewTotal int
	Inserted int
	// Bucket is the dated bucket written to, empty when nothing was inserted.
	Bucket string
	// Gone is set when the repository no longer exists upstream. No state was changed.
	Gone bool
}

// Reconcile appends the stargazers that appeared since the last cycle to today's bucket and
// advances the recorded count. Concurrent calls for the same repository share one execution,
// which keeps running if a caller gives up. While the repository is being registered it
// returns ErrCycleInProgress.
//
// New stargazers are identified by position only: everything past the recorded count is new.
// That holds while the upstream order is stable and append-only. If stargazers are removed
// between cycles, or the listing shifts, entries may be skipped or recorded twice.
func (s *Service) Reconcile(ctx context.Context, owner, name string) (Result, error) {
	key := repoKey(owner, name)
	ch := s.flights.DoChan(key, func() (interface{}, error) {
		cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cycleTimeout)
		defer cancel()
		return s.reconcileHeld(cycleCtx, key, owner, name)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		return r.Val.(Result), nil
	}
}

func (s *Service) reconcileHeld(ctx context.Context, key, owner, name string) (res Result, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveCycle(cycleOutcome(res, err), time.Since(start))
	}()

	release, err := s.hold(ctx, key)
	if err != nil {
		return Result{}, err
	}
	defer release()
	return s.reconcile(ctx, owner, name)
}

func (s *Service) reconcile(ctx context.Context, owner, name string) (Result, error) {
	logger := s.logger.With("owner", owner, "repo", name)

	newTotal, err := s.lister.StargazerCount(ctx, owner, name)
	if errors.Is(err, custom_errors.ErrRepoNotFound) {
		logger.Warn("Repository no longer exists upstream")
		return Result{Gone: true}, nil
	} else if err != nil {
		return Result{}, err
	}

	repo, err := s.store.GetRepository(ctx, owner, name)
	if err != nil {
		return Result{}, storeErr("load repository", err)
	}
	res := Result{OldCount: repo.StargazerCount, NewTotal: newTotal}

	entries, err := s.collectNew(ctx, repo, newTotal)
	if err != nil {
		return Result{}, err
	}

	// The count only moves once the entries are durable, so a failed cycle is re-driven
	// from the last committed count.
	if len(entries) > 0 {
		bucket := model.FormatDate(s.today())
		if err := s.store.InsertEntries(ctx, bucket, entries); err != nil {
			return Result{}, storeErr("insert dated entries", err)
		}
		res.Inserted = len(entries)
		res.Bucket = bucket
		s.metrics.AddEntries("dated", len(entries))
	}

	if newTotal != repo.StargazerCount {
		if err := s.store.UpdateStargazerCount(ctx, repo.ID, newTotal); err != nil {
			return Result{}, storeErr("update stargazer count", err)
		}
	}
	if newTotal < repo.StargazerCount {
		logger.Warn("Stargazer count decreased; removals are not tracked", "old_count", repo.StargazerCount, "new_count", newTotal)
	}

	logger.Info("Reconciled repository", "old_count", res.OldCount, "new_count", newTotal, "inserted", res.Inserted)
	return res, nil
}

// collectNew fetches the listing positions [oldCount, newTotal). The partially consumed page
// of the previous cycle is fetched again and its already recorded head dropped.
func (s *Service) collectNew(ctx context.Context, repo model.Repository, newTotal int) ([]model.StarEntry, error) {
	oldCount := repo.StargazerCount
	if newTotal <= oldCount {
		return nil, nil
	}

	oldPage, fractional := resumePage(oldCount)
	first := oldPage + 1
	if fractional {
		first = oldPage
	}

	var entries []model.StarEntry
	for page := first; page <= pageCount(newTotal); page++ {
		stargazers, err := s.lister.ListStargazers(ctx, repo.Owner, repo.Name, page)
		if err != nil {
			return nil, fmt.Errorf("list stargazers page %d: %w", page, err)
		}
		entries = append(entries, model.Entries(repo.ID, window(page, stargazers, oldCount, newTotal))...)
	}
	return entries, nil
}

func cycleOutcome(res Result, err error) string {
	switch {
	case err == nil && res.Gone:
		return "gone"
	case err == nil:
		return "ok"
	case errors.Is(err, custom_errors.ErrUpstreamUnavailable):
		return "upstream_error"
	case errors.Is(err, custom_errors.ErrStoreFailure):
		return "store_error"
	case errors.Is(err, custom_errors.ErrCycleInProgress):
		return "busy"
	default:
		return "error"
	}
}
