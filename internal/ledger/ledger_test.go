package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	custom_errors "stargazer-ledger/internal/errors"
	"stargazer-ledger/internal/model"
	"stargazer-ledger/internal/store"
)

// fakeLister serves a mutable, append-only listing per repository.
type fakeLister struct {
	mu        sync.Mutex
	listings  map[string][]model.Stargazer
	countErr  error
	pageErrs  map[int]error
	requested []int
	// countOverride reports a total different from the listing length when set.
	countOverride map[string]int
	onList        func(page int)
}

func newFakeLister() *fakeLister {
	return &fakeLister{
		listings:      make(map[string][]model.Stargazer),
		pageErrs:      make(map[int]error),
		countOverride: make(map[string]int),
	}
}

func (f *fakeLister) star(owner, name string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := owner + "/" + name
	if _, ok := f.listings[key]; !ok {
		f.listings[key] = []model.Stargazer{}
	}
	start := len(f.listings[key])
	for i := 0; i < n; i++ {
		f.listings[key] = append(f.listings[key], model.Stargazer{Login: fmt.Sprintf("%s-user-%d", name, start+i)})
	}
}

func (f *fakeLister) remove(owner, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.listings, owner+"/"+name)
}

func (f *fakeLister) StargazerCount(_ context.Context, owner, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	key := owner + "/" + name
	listing, ok := f.listings[key]
	if !ok {
		return 0, custom_errors.ErrRepoNotFound
	}
	if n, ok := f.countOverride[key]; ok {
		return n, nil
	}
	return len(listing), nil
}

func (f *fakeLister) ListStargazers(_ context.Context, owner, name string, page int) ([]model.Stargazer, error) {
	f.mu.Lock()
	f.requested = append(f.requested, page)
	hook := f.onList
	err := f.pageErrs[page]
	listing, ok := f.listings[owner+"/"+name]
	f.mu.Unlock()

	if hook != nil {
		hook(page)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, custom_errors.ErrRepoNotFound
	}
	lo := (page - 1) * PageSize
	if lo >= len(listing) {
		return []model.Stargazer{}, nil
	}
	hi := min(lo+PageSize, len(listing))
	out := make([]model.Stargazer, hi-lo)
	copy(out, listing[lo:hi])
	return out, nil
}

func (f *fakeLister) pages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.requested))
	copy(out, f.requested)
	f.requested = nil
	return out
}

// faultyStore fails selected operations of an in-memory store.
type faultyStore struct {
	*store.Memory
	failInsert bool
	failUpdate bool
	failList   bool
}

var errDisk = errors.New("disk full")

func (s *faultyStore) InsertEntries(ctx context.Context, bucket string, entries []model.StarEntry) error {
	if s.failInsert {
		return errDisk
	}
	return s.Memory.InsertEntries(ctx, bucket, entries)
}

func (s *faultyStore) UpdateStargazerCount(ctx context.Context, id int64, count int) error {
	if s.failUpdate {
		return errDisk
	}
	return s.Memory.UpdateStargazerCount(ctx, id, count)
}

func (s *faultyStore) ListBucketNames(ctx context.Context) ([]string, error) {
	if s.failList {
		return nil, errDisk
	}
	return s.Memory.ListBucketNames(ctx)
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var day1 = time.Date(2026, time.October, 18, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	store  *store.Memory
	lister *fakeLister
	clock  *clock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	mem := store.NewMemory()
	return newFixtureWithStore(t, mem, mem, opts...)
}

func newFixtureWithStore(t *testing.T, mem *store.Memory, st Store, opts ...Option) *fixture {
	t.Helper()
	lister := newFakeLister()
	clk := &clock{now: day1}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := New(st, lister, logger, append([]Option{WithClock(clk.Now)}, opts...)...)
	require.NoError(t, svc.Init(context.Background()))

	return &fixture{svc: svc, store: mem, lister: lister, clock: clk}
}

// entryCount is the number of entries of repo across the baseline and every dated bucket.
func (f *fixture) entryCount(t *testing.T, repoID int64) int {
	t.Helper()
	ctx := context.Background()
	names, err := f.store.ListBucketNames(ctx)
	require.NoError(t, err)
	total := 0
	for _, name := range names {
		entries, err := f.store.FindEntries(ctx, name, repoID)
		require.NoError(t, err)
		total += len(entries)
	}
	return total
}

func (f *fixture) bucket(t *testing.T, name string, repoID int64) []string {
	t.Helper()
	entries, err := f.store.FindEntries(context.Background(), name, repoID)
	require.NoError(t, err)
	return model.Usernames(entries)
}
