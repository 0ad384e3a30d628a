package store

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stargazer-ledger/internal/database"
	custom_errors "stargazer-ledger/internal/errors"
	"stargazer-ledger/internal/model"
)

// MockQuerier is a mock of the database.Querier interface.
type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) CreateBucket(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}
func (m *MockQuerier) CreateRepository(ctx context.Context, arg database.CreateRepositoryParams) (database.Repository, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Repository), args.Error(1)
}
func (m *MockQuerier) CreateStarEntries(ctx context.Context, arg []database.CreateStarEntriesParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockQuerier) DeleteRepository(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockQuerier) DeleteStarEntries(ctx context.Context, arg database.DeleteStarEntriesParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockQuerier) GetRepositoryByOwnerAndName(ctx context.Context, arg database.GetRepositoryByOwnerAndNameParams) (database.Repository, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Repository), args.Error(1)
}
func (m *MockQuerier) GetStarEntries(ctx context.Context, arg database.GetStarEntriesParams) ([]database.StarEntry, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).([]database.StarEntry), args.Error(1)
}
func (m *MockQuerier) ListBucketNames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}
func (m *MockQuerier) ListRepositories(ctx context.Context) ([]database.Repository, error) {
	args := m.Called(ctx)
	return args.Get(0).([]database.Repository), args.Error(1)
}
func (m *MockQuerier) UpdateRepositoryStargazerCount(ctx context.Context, arg database.UpdateRepositoryStargazerCountParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}

func TestPostgres_CreateRepository(t *testing.T) {
	ctx := context.Background()
	registered := time.Date(2026, time.October, 18, 17, 39, 0, 0, time.UTC)

	t.Run("converts the row", func(t *testing.T) {
		mockQ := new(MockQuerier)
		s := &Postgres{q: mockQ}

		mockQ.On("CreateRepository", ctx, database.CreateRepositoryParams{
			Owner:          "octo",
			Name:           "cat",
			RegisteredDate: pgtype.Date{Time: model.DateOf(registered), Valid: true},
		}).Return(database.Repository{
			ID:             7,
			Owner:          "octo",
			Name:           "cat",
			RegisteredDate: pgtype.Date{Time: model.DateOf(registered), Valid: true},
		}, nil).Once()

		repo, err := s.CreateRepository(ctx, "octo", "cat", registered)

		assert.NoError(t, err)
		assert.Equal(t, model.Repository{ID: 7, Owner: "octo", Name: "cat", RegisteredDate: model.DateOf(registered)}, repo)
		mockQ.AssertExpectations(t)
	})

	t.Run("maps a unique violation to ErrAlreadyExists", func(t *testing.T) {
		mockQ := new(MockQuerier)
		s := &Postgres{q: mockQ}

		mockQ.On("CreateRepository", ctx, mock.Anything).Return(database.Repository{}, &pgconn.PgError{Code: "23505"}).Once()

		_, err := s.CreateRepository(ctx, "octo", "cat", registered)

		assert.ErrorIs(t, err, custom_errors.ErrAlreadyExists)
		mockQ.AssertExpectations(t)
	})

	t.Run("passes other errors through", func(t *testing.T) {
		mockQ := new(MockQuerier)
		s := &Postgres{q: mockQ}
		dbError := errors.New("connection reset")

		mockQ.On("CreateRepository", ctx, mock.Anything).Return(database.Repository{}, dbError).Once()

		_, err := s.CreateRepository(ctx, "octo", "cat", registered)

		assert.Equal(t, dbError, err)
	})
}

func TestPostgres_GetRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("maps no rows to ErrNotTracked", func(t *testing.T) {
		mockQ := new(MockQuerier)
		s := &Postgres{q: mockQ}

		mockQ.On("GetRepositoryByOwnerAndName", ctx, database.GetRepositoryByOwnerAndNameParams{Owner: "octo", Name: "cat"}).
			Return(database.Repository{}, pgx.ErrNoRows).Once()

		_, err := s.GetRepository(ctx, "octo", "cat")

		assert.ErrorIs(t, err, custom_errors.ErrNotTracked)
		mockQ.AssertExpectations(t)
	})

	t.Run("returns unexpected errors", func(t *testing.T) {
		mockQ := new(MockQuerier)
		s := &Postgres{q: mockQ}
		dbError := errors.New("unexpected database error")

		mockQ.On("GetRepositoryByOwnerAndName", ctx, mock.Anything).Return(database.Repository{}, dbError).Once()

		_, err := s.GetRepository(ctx, "octo", "cat")

		assert.Equal(t, dbError, err)
	})
}

func TestPostgres_UpdateStargazerCount(t *testing.T) {
	ctx := context.Background()

	mockQ := new(MockQuerier)
	s := &Postgres{q: mockQ}

	mockQ.On("UpdateRepositoryStargazerCount", ctx, database.UpdateRepositoryStargazerCountParams{ID: 1, StargazerCount: 260}).Return(int64(1), nil).Once()
	mockQ.On("UpdateRepositoryStargazerCount", ctx, database.UpdateRepositoryStargazerCountParams{ID: 2, StargazerCount: 5}).Return(int64(0), nil).Once()

	assert.NoError(t, s.UpdateStargazerCount(ctx, 1, 260))
	assert.ErrorIs(t, s.UpdateStargazerCount(ctx, 2, 5), custom_errors.ErrNotTracked)

	// Counts outside the column range never reach the database.
	assert.ErrorContains(t, s.UpdateStargazerCount(ctx, 3, math.MaxInt32+1), "out of range")
	assert.ErrorContains(t, s.UpdateStargazerCount(ctx, 3, -1), "out of range")

	mockQ.AssertExpectations(t)
	mockQ.AssertNumberOfCalls(t, "UpdateRepositoryStargazerCount", 2)
}

func TestPostgres_FindEntries(t *testing.T) {
	ctx := context.Background()
	mockQ := new(MockQuerier)
	s := &Postgres{q: mockQ}

	mockQ.On("GetStarEntries", ctx, database.GetStarEntriesParams{Bucket: "2026-10-18", RepoID: 3}).Return([]database.StarEntry{
		{ID: 10, Bucket: "2026-10-18", RepoID: 3, Username: "alice"},
		{ID: 11, Bucket: "2026-10-18", RepoID: 3, Username: "bob"},
	}, nil).Once()

	entries, err := s.FindEntries(ctx, "2026-10-18", 3)

	require.NoError(t, err)
	assert.Equal(t, []model.StarEntry{{RepoID: 3, Username: "alice"}, {RepoID: 3, Username: "bob"}}, entries)
	mockQ.AssertExpectations(t)
}
