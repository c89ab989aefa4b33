package handler

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	importapp "github.com/certhub/backend/internal/application/import"
	"github.com/certhub/backend/internal/domain/community"
	"github.com/certhub/backend/internal/domain/dataset"
	"github.com/certhub/backend/internal/domain/participant"
	"github.com/certhub/backend/internal/domain/shared"
)

type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) Ingest(ctx context.Context, in importapp.UploadInput) (*importapp.IngestResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importapp.IngestResult), args.Error(1)
}

func (m *MockIngester) Begin(ctx context.Context, in importapp.UploadInput) (*dataset.Version, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dataset.Version), args.Error(1)
}

func (m *MockIngester) Process(ctx context.Context, v *dataset.Version, content []byte) (*importapp.IngestResult, error) {
	args := m.Called(ctx, v, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importapp.IngestResult), args.Error(1)
}

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) ListVersions(ctx context.Context, filter importapp.ListVersionsFilter, page, pageSize int) (*dataset.ListResult, error) {
	args := m.Called(ctx, filter, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dataset.ListResult), args.Error(1)
}

func (m *MockHistory) GetVersion(ctx context.Context, id uuid.UUID) (*dataset.Version, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dataset.Version), args.Error(1)
}

func (m *MockHistory) GetActive(ctx context.Context) (*dataset.Version, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dataset.Version), args.Error(1)
}

func (m *MockHistory) ActivateVersion(ctx context.Context, id uuid.UUID) (*dataset.Version, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dataset.Version), args.Error(1)
}

func (m *MockHistory) DeleteVersion(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockHistory) ListRecords(ctx context.Context, id uuid.UUID, filter dataset.RecordFilter, page, pageSize int) (shared.Paginated[participant.Record], error) {
	args := m.Called(ctx, id, filter, page, pageSize)
	return args.Get(0).(shared.Paginated[participant.Record]), args.Error(1)
}

func (m *MockHistory) GetErrorsCSV(ctx context.Context, id uuid.UUID) (string, string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockHistory) GetProgress(ctx context.Context, id uuid.UUID) (*dataset.Progress, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dataset.Progress), args.Error(1)
}

type MockCommunityImporter struct {
	mock.Mock
}

func (m *MockCommunityImporter) ParseBytes(data []byte, opts importapp.CommunityParseOptions) (*importapp.CommunityParseResult, error) {
	args := m.Called(data, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importapp.CommunityParseResult), args.Error(1)
}

func (m *MockCommunityImporter) Import(ctx context.Context, data []byte, opts importapp.CommunityParseOptions) (*importapp.CommunityImportResult, error) {
	args := m.Called(ctx, data, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importapp.CommunityImportResult), args.Error(1)
}

func (m *MockCommunityImporter) List(ctx context.Context, search string, page, pageSize int) (shared.Paginated[*community.Community], error) {
	args := m.Called(ctx, search, page, pageSize)
	return args.Get(0).(shared.Paginated[*community.Community]), args.Error(1)
}

func (m *MockCommunityImporter) Get(ctx context.Context, slug string) (*community.Community, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*community.Community), args.Error(1)
}
