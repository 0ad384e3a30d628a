package store

import (
	"context"
	"sort"
	"sync"
	"time"

	custom_errors "stargazer-ledger/internal/errors"
	"stargazer-ledger/internal/model"
)

type repoKey struct {
	owner string
	name  string
}

// Memory is an in-process bucket store. It is used by tests and by STORE_DRIVER=memory.
type Memory struct {
	mu      sync.RWMutex
	nextID  int64
	repos   map[int64]model.Repository
	byName  map[repoKey]int64
	buckets map[string][]model.StarEntry
}

func NewMemory() *Memory {
	return &Memory{
		repos:   make(map[int64]model.Repository),
		byName:  make(map[repoKey]int64),
		buckets: make(map[string][]model.StarEntry),
	}
}

func (m *Memory) EnsureBucket(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[name]; !ok {
		m.buckets[name] = nil
	}
	return nil
}

func (m *Memory) CreateRepository(_ context.Context, owner, name string, registered time.Time) (model.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := repoKey{owner, name}
	if _, ok := m.byName[key]; ok {
		return model.Repository{}, custom_errors.ErrAlreadyExists
	}
	m.nextID++
	repo := model.Repository{
		ID:             m.nextID,
		Owner:          owner,
		Name:           name,
		RegisteredDate: model.DateOf(registered),
	}
	m.repos[repo.ID] = repo
	m.byName[key] = repo.ID
	return repo, nil
}

func (m *Memory) GetRepository(_ context.Context, owner, name string) (model.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byName[repoKey{owner, name}]
	if !ok {
		return model.Repository{}, custom_errors.ErrNotTracked
	}
	return m.repos[id], nil
}

func (m *Memory) ListRepositories(_ context.Context) ([]model.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Repository, 0, len(m.repos))
	for _, r := range m.repos {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateStargazerCount(_ context.Context, id int64, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	repo, ok := m.repos[id]
	if !ok {
		return custom_errors.ErrNotTracked
	}
	repo.StargazerCount = count
	m.repos[id] = repo
	return nil
}

func (m *Memory) DeleteRepository(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	repo, ok := m.repos[id]
	if !ok {
		return nil
	}
	delete(m.byName, repoKey{repo.Owner, repo.Name})
	delete(m.repos, id)
	return nil
}

func (m *Memory) InsertEntries(_ context.Context, bucket string, entries []model.StarEntry) error {
	if len(entries) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket] = append(m.buckets[bucket], entries...)
	return nil
}

func (m *Memory) DeleteEntries(_ context.Context, bucket string, repoID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, ok := m.buckets[bucket]
	if !ok {
		return nil
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.RepoID != repoID {
			kept = append(kept, e)
		}
	}
	m.buckets[bucket] = kept
	return nil
}

func (m *Memory) ListBucketNames(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.buckets))
	for name := range m.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) FindEntries(_ context.Context, bucket string, repoID int64) ([]model.StarEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.StarEntry
	for _, e := range m.buckets[bucket] {
		if e.RepoID == repoID {
			out = append(out, e)
		}
	}
	return out, nil
}
