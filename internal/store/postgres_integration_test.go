//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	custom_errors "stargazer-ledger/internal/errors"
	"stargazer-ledger/internal/model"
)

func setupTestDatabase(ctx context.Context, t *testing.T) *pgxpool.Pool {
	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(context.Background()))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	m, err := migrate.New("file://../../migrations", connStr)
	require.NoError(t, err)
	require.NoError(t, m.Up())

	dbpool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(dbpool.Close)

	return dbpool
}

func TestPostgres_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	s := NewPostgres(setupTestDatabase(ctx, t))
	registered := time.Date(2026, time.October, 18, 17, 39, 0, 0, time.UTC)

	require.NoError(t, s.EnsureBucket(ctx, model.BaselineBucket))
	require.NoError(t, s.EnsureBucket(ctx, model.BaselineBucket))

	repo, err := s.CreateRepository(ctx, "octo", "cat", registered)
	require.NoError(t, err)
	assert.Equal(t, model.DateOf(registered), repo.RegisteredDate)

	_, err = s.CreateRepository(ctx, "octo", "cat", registered)
	assert.ErrorIs(t, err, custom_errors.ErrAlreadyExists)

	require.NoError(t, s.InsertEntries(ctx, model.BaselineBucket, []model.StarEntry{
		{RepoID: repo.ID, Username: "alice"},
		{RepoID: repo.ID, Username: "bob"},
	}))
	require.NoError(t, s.InsertEntries(ctx, "2026-10-19", []model.StarEntry{{RepoID: repo.ID, Username: "carol"}}))
	require.NoError(t, s.InsertEntries(ctx, "2026-10-20", nil))
	require.NoError(t, s.UpdateStargazerCount(ctx, repo.ID, 3))

	names, err := s.ListBucketNames(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{model.BaselineBucket, "2026-10-19"}, names)

	entries, err := s.FindEntries(ctx, model.BaselineBucket, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, model.Usernames(entries))

	got, err := s.GetRepository(ctx, "octo", "cat")
	require.NoError(t, err)
	assert.Equal(t, 3, got.StargazerCount)

	// Registration rollback order: entries first, then the record.
	require.NoError(t, s.DeleteEntries(ctx, model.BaselineBucket, repo.ID))
	require.NoError(t, s.DeleteEntries(ctx, "2026-10-19", repo.ID))
	require.NoError(t, s.DeleteRepository(ctx, repo.ID))
	_, err = s.GetRepository(ctx, "octo", "cat")
	assert.ErrorIs(t, err, custom_errors.ErrNotTracked)

	repos, err := s.ListRepositories(ctx)
	require.NoError(t, err)
	assert.Empty(t, repos)
}
