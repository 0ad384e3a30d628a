package database

import (
	"context"
)

type Querier interface {
	CreateBucket(ctx context.Context, name string) error
	CreateRepository(ctx context.Context, arg CreateRepositoryParams) (Repository, error)
	CreateStarEntries(ctx context.Context, arg []CreateStarEntriesParams) (int64, error)
	DeleteRepository(ctx context.Context, id int64) (int64, error)
	DeleteStarEntries(ctx context.Context, arg DeleteStarEntriesParams) (int64, error)
	GetRepositoryByOwnerAndName(ctx context.Context, arg GetRepositoryByOwnerAndNameParams) (Repository, error)
	GetStarEntries(ctx context.Context, arg GetStarEntriesParams) ([]StarEntry, error)
	ListBucketNames(ctx context.Context) ([]string, error)
	ListRepositories(ctx context.Context) ([]Repository, error)
	UpdateRepositoryStargazerCount(ctx context.Context, arg UpdateRepositoryStargazerCountParams) (int64, error)
}

var _ Querier = (*Queries)(nil)
