package storage

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	importapp "github.com/certhub/backend/internal/application/import"
)

var _ importapp.BlobStore = (*MemoryBlobStore)(nil)

// MemoryBlobStore keeps uploads in process. It backs development setups
// without a bucket and tests.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	prefix  string
	now     func() time.Time
}

// NewMemoryBlobStore creates an empty store
func NewMemoryBlobStore(prefix string) *MemoryBlobStore {
	return &MemoryBlobStore{
		objects: make(map[string][]byte),
		prefix:  prefix,
		now:     time.Now,
	}
}

// Put stores a copy of data. A key already taken in the same millisecond
// gets a numeric suffix.
func (m *MemoryBlobStore) Put(_ context.Context, fileName string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	base := ObjectKey(m.prefix, fileName, m.now())
	key := base
	for i := 1; ; i++ {
		if _, taken := m.objects[key]; !taken {
			break
		}
		key = base + "." + strconv.Itoa(i)
	}
	m.objects[key] = append([]byte(nil), data...)
	return key, nil
}

// Get returns a copy of the stored bytes
func (m *MemoryBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("storage key is required")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return append([]byte(nil), data...), nil
}

// Delete removes key. Deleting a missing key succeeds.
func (m *MemoryBlobStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Len returns the number of stored objects
func (m *MemoryBlobStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
