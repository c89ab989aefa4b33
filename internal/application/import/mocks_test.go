package importapp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/certhub/backend/internal/domain/community"
	"github.com/certhub/backend/internal/domain/dataset"
	"github.com/certhub/backend/internal/domain/participant"
	"github.com/certhub/backend/internal/domain/shared"
)

// MockDatasetRepository is a mock implementation of dataset.Repository
type MockDatasetRepository struct {
	mock.Mock
}

func (m *MockDatasetRepository) FindByID(ctx context.Context, id uuid.UUID) (*dataset.Version, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dataset.Version), args.Error(1)
}

func (m *MockDatasetRepository) FindAll(ctx context.Context, filter dataset.Filter, page, pageSize int) (*dataset.ListResult, error) {
	args := m.Called(ctx, filter, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dataset.ListResult), args.Error(1)
}

func (m *MockDatasetRepository) FindActive(ctx context.Context) (*dataset.Version, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dataset.Version), args.Error(1)
}

func (m *MockDatasetRepository) Save(ctx context.Context, v *dataset.Version) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockDatasetRepository) SaveWithRecords(ctx context.Context, v *dataset.Version, records []participant.Record) error {
	args := m.Called(ctx, v, records)
	return args.Error(0)
}

func (m *MockDatasetRepository) Activate(ctx context.Context, id uuid.UUID, now time.Time) (*dataset.Version, error) {
	args := m.Called(ctx, id, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dataset.Version), args.Error(1)
}

func (m *MockDatasetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDatasetRepository) FindRecords(ctx context.Context, id uuid.UUID, filter dataset.RecordFilter, page, pageSize int) ([]participant.Record, int64, error) {
	args := m.Called(ctx, id, filter, page, pageSize)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]participant.Record), args.Get(1).(int64), args.Error(2)
}

// MockBlobStore is a mock implementation of BlobStore
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Put(ctx context.Context, fileName string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, fileName, data, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// recordingProgressStore keeps every published progress value
type recordingProgressStore struct {
	mu      sync.Mutex
	updates []dataset.Progress
	getErr  error
}

func (s *recordingProgressStore) Set(_ context.Context, p dataset.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, p)
	return nil
}

func (s *recordingProgressStore) Get(_ context.Context, id uuid.UUID) (*dataset.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	for i := len(s.updates) - 1; i >= 0; i-- {
		if s.updates[i].VersionID == id {
			p := s.updates[i]
			return &p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *recordingProgressStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.updates[:0]
	for _, p := range s.updates {
		if p.VersionID != id {
			kept = append(kept, p)
		}
	}
	s.updates = kept
	return nil
}

func (s *recordingProgressStore) stages() []dataset.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dataset.Stage, len(s.updates))
	for i, p := range s.updates {
		out[i] = p.Stage
	}
	return out
}

// MockCommunityRepository is a mock implementation of community.Repository
type MockCommunityRepository struct {
	mock.Mock
}

func (m *MockCommunityRepository) ExistingSlugs(ctx context.Context) (map[string]struct{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *MockCommunityRepository) SaveBatch(ctx context.Context, creates, updates []*community.Community) error {
	args := m.Called(ctx, creates, updates)
	return args.Error(0)
}

func (m *MockCommunityRepository) FindAll(ctx context.Context, search string, page, pageSize int) ([]*community.Community, int64, error) {
	args := m.Called(ctx, search, page, pageSize)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*community.Community), args.Get(1).(int64), args.Error(2)
}

func (m *MockCommunityRepository) FindBySlug(ctx context.Context, slug string) (*community.Community, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*community.Community), args.Error(1)
}

// recordingMetrics counts recorded ingestions by outcome
type recordingMetrics struct {
	mu              sync.Mutex
	outcomes        []dataset.Status
	communityCounts [3]int
}

func (m *recordingMetrics) RecordIngestion(_ context.Context, outcome dataset.Status, _, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingMetrics) RecordCommunityImport(_ context.Context, imported, updated, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.communityCounts = [3]int{imported, updated, failed}
}

var (
	_ dataset.Repository    = (*MockDatasetRepository)(nil)
	_ dataset.ProgressStore = (*recordingProgressStore)(nil)
	_ community.Repository  = (*MockCommunityRepository)(nil)
	_ BlobStore             = (*MockBlobStore)(nil)
	_ IngestRecorder        = (*recordingMetrics)(nil)
)
