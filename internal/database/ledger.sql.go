package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const createBucket = `-- name: CreateBucket :exec
INSERT INTO buckets (name) VALUES ($1)
ON CONFLICT (name) DO NOTHING
`

func (q *Queries) CreateBucket(ctx context.Context, name string) error {
	_, err := q.db.Exec(ctx, createBucket, name)
	return err
}

const createRepository = `-- name: CreateRepository :one
INSERT INTO repositories (owner, name, stargazer_count, registered_date)
VALUES ($1, $2, 0, $3)
RETURNING id, owner, name, stargazer_count, registered_date, db_created_at, db_updated_at
`

type CreateRepositoryParams struct {
	Owner          string
	Name           string
	RegisteredDate pgtype.Date
}

func (q *Queries) CreateRepository(ctx context.Context, arg CreateRepositoryParams) (Repository, error) {
	row := q.db.QueryRow(ctx, createRepository, arg.Owner, arg.Name, arg.RegisteredDate)
	var i Repository
	err := row.Scan(
		&i.ID,
		&i.Owner,
		&i.Name,
		&i.StargazerCount,
		&i.RegisteredDate,
		&i.DbCreatedAt,
		&i.DbUpdatedAt,
	)
	return i, err
}

type CreateStarEntriesParams struct {
	Bucket   string
	RepoID   int64
	Username string
}

// CreateStarEntries bulk-loads entries with COPY.
func (q *Queries) CreateStarEntries(ctx context.Context, arg []CreateStarEntriesParams) (int64, error) {
	return q.db.CopyFrom(
		ctx,
		pgx.Identifier{"star_entries"},
		[]string{"bucket", "repo_id", "username"},
		pgx.CopyFromSlice(len(arg), func(i int) ([]any, error) {
			return []any{arg[i].Bucket, arg[i].RepoID, arg[i].Username}, nil
		}),
	)
}

const deleteRepository = `-- name: DeleteRepository :execrows
DELETE FROM repositories WHERE id = $1
`

func (q *Queries) DeleteRepository(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteRepository, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteStarEntries = `-- name: DeleteStarEntries :execrows
DELETE FROM star_entries WHERE bucket = $1 AND repo_id = $2
`

type DeleteStarEntriesParams struct {
	Bucket string
	RepoID int64
}

func (q *Queries) DeleteStarEntries(ctx context.Context, arg DeleteStarEntriesParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteStarEntries, arg.Bucket, arg.RepoID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getRepositoryByOwnerAndName = `-- name: GetRepositoryByOwnerAndName :one
SELECT id, owner, name, stargazer_count, registered_date, db_created_at, db_updated_at
FROM repositories
WHERE owner = $1 AND name = $2
`

type GetRepositoryByOwnerAndNameParams struct {
	Owner string
	Name  string
}

func (q *Queries) GetRepositoryByOwnerAndName(ctx context.Context, arg GetRepositoryByOwnerAndNameParams) (Repository, error) {
	row := q.db.QueryRow(ctx, getRepositoryByOwnerAndName, arg.Owner, arg.Name)
	var i Repository
	err := row.Scan(
		&i.ID,
		&i.Owner,
		&i.Name,
		&i.StargazerCount,
		&i.RegisteredDate,
		&i.DbCreatedAt,
		&i.DbUpdatedAt,
	)
	return i, err
}

const getStarEntries = `-- name: GetStarEntries :many
SELECT id, bucket, repo_id, username
FROM star_entries
WHERE bucket = $1 AND repo_id = $2
ORDER BY id
`

type GetStarEntriesParams struct {
	Bucket string
	RepoID int64
}

func (q *Queries) GetStarEntries(ctx context.Context, arg GetStarEntriesParams) ([]StarEntry, error) {
	rows, err := q.db.Query(ctx, getStarEntries, arg.Bucket, arg.RepoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StarEntry
	for rows.Next() {
		var i StarEntry
		if err := rows.Scan(
			&i.ID,
			&i.Bucket,
			&i.RepoID,
			&i.Username,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listBucketNames = `-- name: ListBucketNames :many
SELECT name FROM buckets ORDER BY name
`

func (q *Queries) ListBucketNames(ctx context.Context) ([]string, error) {
	rows, err := q.db.Query(ctx, listBucketNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		items = append(items, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRepositories = `-- name: ListRepositories :many
SELECT id, owner, name, stargazer_count, registered_date, db_created_at, db_updated_at
FROM repositories
ORDER BY id
`

func (q *Queries) ListRepositories(ctx context.Context) ([]Repository, error) {
	rows, err := q.db.Query(ctx, listRepositories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Repository
	for rows.Next() {
		var i Repository
		if err := rows.Scan(
			&i.ID,
			&i.Owner,
			&i.Name,
			&i.StargazerCount,
			&i.RegisteredDate,
			&i.DbCreatedAt,
			&i.DbUpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateRepositoryStargazerCount = `-- name: UpdateRepositoryStargazerCount :execrows
UPDATE repositories
SET stargazer_count = $2, db_updated_at = NOW()
WHERE id = $1
`

type UpdateRepositoryStargazerCountParams struct {
	ID             int64
	StargazerCount int32
}

func (q *Queries) UpdateRepositoryStargazerCount(ctx context.Context, arg UpdateRepositoryStargazerCountParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateRepositoryStargazerCount, arg.ID, arg.StargazerCount)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
