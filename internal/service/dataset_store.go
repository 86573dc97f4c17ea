package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"recommendation-dashboard/internal/models"
	"recommendation-dashboard/internal/redisclient"
)

// ErrSessionNotFound is returned when a session has no uploaded dataset,
// either because nothing was uploaded or because it expired.
var ErrSessionNotFound = errors.New("no dataset for session")

// DatasetStore keeps the rows uploaded by each session
type DatasetStore interface {
	SaveDataset(ctx context.Context, sessionID string, ds *models.Dataset) error
	LoadDataset(ctx context.Context, sessionID string) (*models.Dataset, error)
	DeleteDataset(ctx context.Context, sessionID string) error
}

// RedisDatasetStore stores datasets in Redis with a sliding TTL
type RedisDatasetStore struct {
	client *redisclient.Client
	ttl    time.Duration
}

// NewRedisDatasetStore creates a Redis backed dataset store
func NewRedisDatasetStore(client *redisclient.Client, ttl time.Duration) *RedisDatasetStore {
	return &RedisDatasetStore{client: client, ttl: ttl}
}

func (s *RedisDatasetStore) SaveDataset(ctx context.Context, sessionID string, ds *models.Dataset) error {
	return s.client.SaveDataset(ctx, sessionID, ds, s.ttl)
}

func (s *RedisDatasetStore) LoadDataset(ctx context.Context, sessionID string) (*models.Dataset, error) {
	ds, err := s.client.LoadDataset(ctx, sessionID, s.ttl)
	if errors.Is(err, redisclient.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	return ds, err
}

func (s *RedisDatasetStore) DeleteDataset(ctx context.Context, sessionID string) error {
	return s.client.DeleteDataset(ctx, sessionID)
}

type memoryEntry struct {
	dataset   *models.Dataset
	expiresAt time.Time
}

// MemoryDatasetStore keeps datasets in process memory. Stored datasets are
// shared with callers and must not be modified.
type MemoryDatasetStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryDatasetStore creates an in-process dataset store
func NewMemoryDatasetStore(ttl time.Duration) *MemoryDatasetStore {
	return &MemoryDatasetStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryDatasetStore) SaveDataset(_ context.Context, sessionID string, ds *models.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictExpired(now)
	s.entries[sessionID] = memoryEntry{dataset: ds, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryDatasetStore) LoadDataset(_ context.Context, sessionID string) (*models.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !now.Before(entry.expiresAt) {
		delete(s.entries, sessionID)
		return nil, ErrSessionNotFound
	}

	entry.expiresAt = now.Add(s.ttl)
	s.entries[sessionID] = entry
	return entry.dataset, nil
}

func (s *MemoryDatasetStore) DeleteDataset(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, sessionID)
	return nil
}

// Len reports how many sessions currently hold a dataset
func (s *MemoryDatasetStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired(s.now())
	return len(s.entries)
}

// evictExpired must be called with mu held
func (s *MemoryDatasetStore) evictExpired(now time.Time) {
	for id, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
}
