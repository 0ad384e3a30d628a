// Package store implements the bucket store on Postgres and in memory.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"stargazer-ledger/internal/database"
	custom_errors "stargazer-ledger/internal/errors"
	"stargazer-ledger/internal/model"
)

const uniqueViolation = "23505"

// Postgres stores repositories, buckets and entries in three tables. Buckets are rows of the
// buckets table rather than physical tables, so listing them is a plain query.
type Postgres struct {
	pool    *pgxpool.Pool
	queries *database.Queries
	q       database.Querier
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	queries := database.New(pool)
	return &Postgres{pool: pool, queries: queries, q: queries}
}

func (s *Postgres) EnsureBucket(ctx context.Context, name string) error {
	return s.q.CreateBucket(ctx, name)
}

func (s *Postgres) CreateRepository(ctx context.Context, owner, name string, registered time.Time) (model.Repository, error) {
	row, err := s.q.CreateRepository(ctx, database.CreateRepositoryParams{
		Owner:          owner,
		Name:           name,
		RegisteredDate: pgtype.Date{Time: model.DateOf(registered), Valid: true},
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.Repository{}, custom_errors.ErrAlreadyExists
		}
		return model.Repository{}, err
	}
	return toModelRepository(row), nil
}

func (s *Postgres) GetRepository(ctx context.Context, owner, name string) (model.Repository, error) {
	row, err := s.q.GetRepositoryByOwnerAndName(ctx, database.GetRepositoryByOwnerAndNameParams{
		Owner: owner,
		Name:  name,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Repository{}, custom_errors.ErrNotTracked
	} else if err != nil {
		return model.Repository{}, err
	}
	return toModelRepository(row), nil
}

func (s *Postgres) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	rows, err := s.q.ListRepositories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Repository, len(rows))
	for i, r := range rows {
		out[i] = toModelRepository(r)
	}
	return out, nil
}

// UpdateStargazerCount rejects counts that do not fit the INTEGER column.
func (s *Postgres) UpdateStargazerCount(ctx context.Context, id int64, count int) error {
	if count < 0 || count > math.MaxInt32 {
		return fmt.Errorf("stargazer count %d out of range for repository %d", count, id)
	}
	n, err := s.q.UpdateRepositoryStargazerCount(ctx, database.UpdateRepositoryStargazerCountParams{
		ID:             id,
		StargazerCount: int32(count),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return custom_errors.ErrNotTracked
	}
	return nil
}

func (s *Postgres) DeleteRepository(ctx context.Context, id int64) error {
	_, err := s.q.DeleteRepository(ctx, id)
	return err
}

// InsertEntries creates the bucket if needed and copies the entries in one transaction.
func (s *Postgres) InsertEntries(ctx context.Context, bucket string, entries []model.StarEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction is already committed.

	qtx := s.queries.WithTx(tx)
	if err := qtx.CreateBucket(ctx, bucket); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	n, err := qtx.CreateStarEntries(ctx, prepareEntryBulkInsert(bucket, entries))
	if err != nil {
		return fmt.Errorf("copy entries into %s: %w", bucket, err)
	}
	if int(n) != len(entries) {
		return fmt.Errorf("copy entries into %s: wrote %d of %d rows", bucket, n, len(entries))
	}
	return tx.Commit(ctx)
}

func (s *Postgres) DeleteEntries(ctx context.Context, bucket string, repoID int64) error {
	_, err := s.q.DeleteStarEntries(ctx, database.DeleteStarEntriesParams{Bucket: bucket, RepoID: repoID})
	return err
}

func (s *Postgres) ListBucketNames(ctx context.Context) ([]string, error) {
	return s.q.ListBucketNames(ctx)
}

func (s *Postgres) FindEntries(ctx context.Context, bucket string, repoID int64) ([]model.StarEntry, error) {
	rows, err := s.q.GetStarEntries(ctx, database.GetStarEntriesParams{Bucket: bucket, RepoID: repoID})
	if err != nil {
		return nil, err
	}
	out := make([]model.StarEntry, len(rows))
	for i, r := range rows {
		out[i] = model.StarEntry{RepoID: r.RepoID, Username: r.Username}
	}
	return out, nil
}

func toModelRepository(r database.Repository) model.Repository {
	return model.Repository{
		ID:             r.ID,
		Owner:          r.Owner,
		Name:           r.Name,
		StargazerCount: int(r.StargazerCount),
		RegisteredDate: model.DateOf(r.RegisteredDate.Time),
	}
}

func prepareEntryBulkInsert(bucket string, entries []model.StarEntry) []database.CreateStarEntriesParams {
	params := make([]database.CreateStarEntriesParams, len(entries))
	for i, e := range entries {
		params[i] = database.CreateStarEntriesParams{
			Bucket:   bucket,
			RepoID:   e.RepoID,
			Username: e.Username,
		}
	}
	return params
}
