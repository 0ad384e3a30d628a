// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrRepoNotFound is returned when GitHub has no such repository.
	ErrRepoNotFound = errors.New("repository not found upstream")
	// ErrAlreadyExists is returned when registering a repository that is already tracked.
	ErrAlreadyExists = errors.New("repository already tracked")
	// ErrNotTracked is returned when a repository has no record in the store.
	ErrNotTracked = errors.New("repository is not tracked")
	// ErrUpstreamUnavailable wraps transient GitHub failures, rate limiting included.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrStoreFailure wraps persistence errors.
	ErrStoreFailure = errors.New("store failure")
	// ErrCycleInProgress is returned when another replica holds the reconcile lease of a repository.
	ErrCycleInProgress = errors.New("reconciliation already in progress")
	// ErrInvalidDate is returned for query bounds that are not YYYY-M-D dates.
	ErrInvalidDate = errors.New("invalid date, expected YYYY-M-D")
)

// ErrInvalidRepoFormat is returned when a repository string in the config is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}
