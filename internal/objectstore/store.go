// Package objectstore persists raw log bytes by key. The pipeline only
// touches it at the request boundary; a store failure is a recoverable
// per-request error, never fatal to the process.
package objectstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/NEMYSESx/sift/internal/config"
)

// Store is the blob storage collaborator.
type Store interface {
	Put(ctx context.Context, data []byte, key, bucket string) error
	Get(ctx context.Context, key, bucket string) ([]byte, error)
	EnsureBucket(ctx context.Context, bucket string) error
}

// New selects the configured backend.
func New(ctx context.Context, cfg config.ObjectStoreConfig) (Store, error) {
	switch cfg.Backend {
	case "minio":
		return NewMinioStore(cfg.Minio)
	case "gcs":
		return NewGCSStore(ctx, cfg.GCS)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown object store backend %q", cfg.Backend)
	}
}

// MemoryStore keeps objects in process memory. Meant for local development
// and tests; nothing survives a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, data []byte, key, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buckets[bucket] == nil {
		m.buckets[bucket] = make(map[string][]byte)
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.buckets[bucket][key] = stored
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key, bucket string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.buckets[bucket][key]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, key)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryStore) EnsureBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buckets[bucket] == nil {
		m.buckets[bucket] = make(map[string][]byte)
	}
	return nil
}

// Keys lists the stored keys of a bucket in sorted order.
func (m *MemoryStore) Keys(bucket string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
