package ledger

import (
	"context"
	"time"

	"stargazer-ledger/internal/model"
)

// Lister is the paginated stargazer listing of the upstream forge.
type Lister interface {
	// StargazerCount returns the current total, or ErrRepoNotFound.
	StargazerCount(ctx context.Context, owner, name string) (int, error)
	// ListStargazers returns page (1-based) of at most PageSize stargazers, earliest first.
	ListStargazers(ctx context.Context, owner, name string, page int) ([]model.Stargazer, error)
}

// Store persists repository records and bucketed star entries.
type Store interface {
	EnsureBucket(ctx context.Context, name string) error
	// CreateRepository returns ErrAlreadyExists when (owner, name) is taken.
	CreateRepository(ctx context.Context, owner, name string, registered time.Time) (model.Repository, error)
	// GetRepository returns ErrNotTracked when there is no record.
	GetRepository(ctx context.Context, owner, name string) (model.Repository, error)
	ListRepositories(ctx context.Context) ([]model.Repository, error)
	UpdateStargazerCount(ctx context.Context, id int64, count int) error
	DeleteRepository(ctx context.Context, id int64) error
	// InsertEntries returns only once the entries are durable, creating the bucket if needed.
	InsertEntries(ctx context.Context, bucket string, entries []model.StarEntry) error
	DeleteEntries(ctx context.Context, bucket string, repoID int64) error
	ListBucketNames(ctx context.Context) ([]string, error)
	FindEntries(ctx context.Context, bucket string, repoID int64) ([]model.StarEntry, error)
}

// Locker grants a lease per repository across replicas.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}
