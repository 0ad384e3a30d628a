package ledger

import (
	"context"
	"errors"
	"fmt"

	custom_errors "stargazer-ledger/internal/errors"
	"stargazer-ledger/internal/model"
)

// Register starts tracking owner/name. Every current stargazer is written to the baseline
// bucket and the record's count is set to the total observed before the listing started.
// On any failure after the record was created, the record and its baseline entries are removed.
func (s *Service) Register(ctx context.Context, owner, name string) (model.Repository, error) {
	logger := s.logger.With("owner", owner, "repo", name)

	repo, err := s.registerHeld(ctx, owner, name)
	switch {
	case err == nil:
		s.metrics.ObserveRegistration("created")
		logger.Info("Repository registered", "repo_id", repo.ID, "stargazers", repo.StargazerCount)
	case errors.Is(err, custom_errors.ErrAlreadyExists):
		s.metrics.ObserveRegistration("exists")
	case errors.Is(err, custom_errors.ErrCycleInProgress):
		s.metrics.ObserveRegistration("busy")
		logger.Info("Repository is being registered or reconciled elsewhere")
	case errors.Is(err, custom_errors.ErrRepoNotFound):
		s.metrics.ObserveRegistration("not_found")
		logger.Info("Repository not found upstream")
	default:
		s.metrics.ObserveRegistration("error")
		logger.Error("Failed to register repository", "error", err)
	}
	return repo, err
}

// registerHeld keeps reconciliation of owner/name out while the record exists with a zero count
// and a partial baseline.
func (s *Service) registerHeld(ctx context.Context, owner, name string) (model.Repository, error) {
	release, err := s.hold(ctx, repoKey(owner, name))
	if err != nil {
		return model.Repository{}, err
	}
	defer release()
	return s.register(ctx, owner, name)
}

func (s *Service) register(ctx context.Context, owner, name string) (model.Repository, error) {
	if _, err := s.store.GetRepository(ctx, owner, name); err == nil {
		return model.Repository{}, custom_errors.ErrAlreadyExists
	} else if !errors.Is(err, custom_errors.ErrNotTracked) {
		return model.Repository{}, storeErr("lookup repository", err)
	}

	total, err := s.lister.StargazerCount(ctx, owner, name)
	if err != nil {
		return model.Repository{}, err
	}

	// The record is created first so its id can key the baseline entries.
	repo, err := s.store.CreateRepository(ctx, owner, name, s.today())
	if err != nil {
		return model.Repository{}, storeErr("create repository", err)
	}

	written, err := s.ingestBaseline(ctx, repo, total)
	if err == nil {
		if err = s.store.UpdateStargazerCount(ctx, repo.ID, total); err != nil {
			err = storeErr("update stargazer count", err)
		}
	}
	if err != nil {
		s.rollback(ctx, repo)
		return model.Repository{}, err
	}

	s.metrics.AddEntries("baseline", written)
	repo.StargazerCount = total
	return repo, nil
}

// ingestBaseline copies positions [0, total) of the listing into the baseline bucket.
func (s *Service) ingestBaseline(ctx context.Context, repo model.Repository, total int) (int, error) {
	if total == 0 {
		return 0, nil
	}

	written := 0
	for page := 1; page <= pageCount(total); page++ {
		stargazers, err := s.lister.ListStargazers(ctx, repo.Owner, repo.Name, page)
		if err != nil {
			return written, fmt.Errorf("list stargazers page %d: %w", page, err)
		}
		entries := model.Entries(repo.ID, window(page, stargazers, 0, total))
		if len(entries) == 0 {
			continue
		}
		if err := s.store.InsertEntries(ctx, model.BaselineBucket, entries); err != nil {
			return written, storeErr("insert baseline entries", err)
		}
		written += len(entries)
	}
	return written, nil
}

// rollback removes everything a failed registration wrote. It ignores cancellation of ctx so
// a canceled request still cleans up.
func (s *Service) rollback(ctx context.Context, repo model.Repository) {
	ctx = context.WithoutCancel(ctx)
	logger := s.logger.With("owner", repo.Owner, "repo", repo.Name, "repo_id", repo.ID)

	if err := s.store.DeleteEntries(ctx, model.BaselineBucket, repo.ID); err != nil {
		logger.Error("Rollback failed to delete baseline entries", "error", err)
	}
	if err := s.store.DeleteRepository(ctx, repo.ID); err != nil {
		logger.Error("Rollback failed to delete repository record", "error", err)
		return
	}
	logger.Warn("Registration rolled back")
}
