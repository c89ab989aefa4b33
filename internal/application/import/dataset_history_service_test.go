package importapp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/certhub/backend/internal/domain/dataset"
	"github.com/certhub/backend/internal/domain/participant"
	"github.com/certhub/backend/internal/domain/shared"
)

func newHistoryService(repo *MockDatasetRepository, blobs *MockBlobStore, progress dataset.ProgressStore) *DatasetHistoryService {
	return NewDatasetHistoryService(repo, blobs, progress, WithClock(func() time.Time { return fixedNow }))
}

func completedVersion(t *testing.T, details ...dataset.RowErrorDetail) *dataset.Version {
	t.Helper()
	v, err := dataset.NewVersion("participants.csv", 100, "ops", "abc", fixedNow.Add(-time.Hour))
	require.NoError(t, err)
	v.AttachBlob("datasets/k.csv")
	require.NoError(t, v.Complete("comma", dataset.Stats{RecordCount: 2}, details, fixedNow.Add(-time.Minute)))
	return v
}

func TestDatasetHistoryService_ListVersions(t *testing.T) {
	ctx := context.Background()
	repo := new(MockDatasetRepository)
	svc := newHistoryService(repo, new(MockBlobStore), nil)

	completed := dataset.StatusCompleted
	from := fixedNow.Add(-24 * time.Hour)
	want := &dataset.ListResult{Items: []*dataset.Version{completedVersion(t)}, TotalCount: 1, Page: 1, PageSize: 20}

	repo.On("FindAll", ctx, dataset.Filter{Status: &completed, UploadedBy: "ops", UploadedFrom: &from}, 1, 20).Return(want, nil).Once()
	got, err := svc.ListVersions(ctx, ListVersionsFilter{Status: "completed", UploadedBy: "ops", UploadedFrom: &from}, 0, 0)
	require.NoError(t, err)
	assert.Same(t, want, got)

	repo.On("FindAll", ctx, dataset.Filter{}, 2, 500).Return(&dataset.ListResult{}, nil).Once()
	_, err = svc.ListVersions(ctx, ListVersionsFilter{Status: "bogus"}, 2, 10000)
	require.NoError(t, err)

	repo.AssertExpectations(t)
}

func TestDatasetHistoryService_ActivateVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("activates completed version", func(t *testing.T) {
		repo := new(MockDatasetRepository)
		svc := newHistoryService(repo, new(MockBlobStore), nil)
		v := completedVersion(t)

		activated := *v
		activated.Active = true
		repo.On("FindByID", ctx, v.ID).Return(v, nil)
		repo.On("Activate", ctx, v.ID, fixedNow).Return(&activated, nil)

		got, err := svc.ActivateVersion(ctx, v.ID)
		require.NoError(t, err)
		assert.True(t, got.Active)
		repo.AssertExpectations(t)
	})

	t.Run("refuses failed version", func(t *testing.T) {
		repo := new(MockDatasetRepository)
		svc := newHistoryService(repo, new(MockBlobStore), nil)
		v, err := dataset.NewVersion("x.csv", 1, "", "", fixedNow)
		require.NoError(t, err)
		require.NoError(t, v.Fail("ERR", "bad", fixedNow))

		repo.On("FindByID", ctx, v.ID).Return(v, nil)
		_, err = svc.ActivateVersion(ctx, v.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		repo.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown version", func(t *testing.T) {
		repo := new(MockDatasetRepository)
		svc := newHistoryService(repo, new(MockBlobStore), nil)
		id := uuid.New()

		repo.On("FindByID", ctx, id).Return(nil, shared.ErrNotFound)
		_, err := svc.ActivateVersion(ctx, id)
		assert.True(t, shared.IsNotFound(err))
	})
}

func TestDatasetHistoryService_DeleteVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("removes version, upload and progress", func(t *testing.T) {
		repo := new(MockDatasetRepository)
		blobs := new(MockBlobStore)
		progress := &recordingProgressStore{}
		svc := newHistoryService(repo, blobs, progress)
		v := completedVersion(t)
		require.NoError(t, progress.Set(ctx, dataset.Progress{VersionID: v.ID, Stage: dataset.StageDone}))

		repo.On("FindByID", ctx, v.ID).Return(v, nil)
		repo.On("Delete", ctx, v.ID).Return(nil)
		blobs.On("Delete", ctx, "datasets/k.csv").Return(errors.New("already gone"))

		require.NoError(t, svc.DeleteVersion(ctx, v.ID))
		assert.Empty(t, progress.stages())
		repo.AssertExpectations(t)
		blobs.AssertExpectations(t)
	})

	t.Run("refuses version still processing", func(t *testing.T) {
		repo := new(MockDatasetRepository)
		svc := newHistoryService(repo, new(MockBlobStore), nil)
		v, err := dataset.NewVersion("x.csv", 1, "", "", fixedNow)
		require.NoError(t, err)

		repo.On("FindByID", ctx, v.ID).Return(v, nil)
		err = svc.DeleteVersion(ctx, v.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestDatasetHistoryService_ListRecords(t *testing.T) {
	ctx := context.Background()
	repo := new(MockDatasetRepository)
	svc := newHistoryService(repo, new(MockBlobStore), nil)
	v := completedVersion(t)

	filter := dataset.RecordFilter{SuspiciousOnly: true}
	records := []participant.Record{{RowNumber: 2, Email: "a@example.com"}}
	repo.On("FindByID", ctx, v.ID).Return(v, nil)
	repo.On("FindRecords", ctx, v.ID, filter, 1, 50).Return(records, int64(51), nil)

	page, err := svc.ListRecords(ctx, v.ID, filter, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, records, page.Items)
	assert.Equal(t, 2, page.TotalPages)
}

func TestDatasetHistoryService_GetErrorsCSV(t *testing.T) {
	ctx := context.Background()

	t.Run("renders row errors", func(t *testing.T) {
		repo := new(MockDatasetRepository)
		svc := newHistoryService(repo, new(MockBlobStore), nil)
		v := completedVersion(t,
			dataset.RowErrorDetail{Row: 4, Code: "ERR_IMPORT_MALFORMED_ROW", Message: "row skipped"},
			dataset.RowErrorDetail{Row: 9, Code: "X", Message: `say "hi", twice`},
		)
		repo.On("FindByID", ctx, v.ID).Return(v, nil)

		content, name, err := svc.GetErrorsCSV(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, "Row,Error Code,Error Message\n"+
			"4,ERR_IMPORT_MALFORMED_ROW,row skipped\n"+
			`9,X,"say ""hi"", twice"`+"\n", content)
		assert.Equal(t, "dataset_errors_"+v.ID.String()[:8]+".csv", name)
	})

	t.Run("no errors", func(t *testing.T) {
		repo := new(MockDatasetRepository)
		svc := newHistoryService(repo, new(MockBlobStore), nil)
		v := completedVersion(t)
		repo.On("FindByID", ctx, v.ID).Return(v, nil)

		_, _, err := svc.GetErrorsCSV(ctx, v.ID)
		assert.ErrorIs(t, err, ErrNoRowErrors)
	})
}

func TestDatasetHistoryService_GetProgress(t *testing.T) {
	ctx := context.Background()

	t.Run("live progress", func(t *testing.T) {
		progress := &recordingProgressStore{}
		svc := newHistoryService(new(MockDatasetRepository), new(MockBlobStore), progress)
		id := uuid.New()
		require.NoError(t, progress.Set(ctx, dataset.Progress{VersionID: id, Stage: dataset.StageParsing, Percent: 40}))

		p, err := svc.GetProgress(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 40, p.Percent)
	})

	t.Run("falls back to stored version", func(t *testing.T) {
		repo := new(MockDatasetRepository)
		progress := &recordingProgressStore{getErr: errors.New("redis down")}
		svc := newHistoryService(repo, new(MockBlobStore), progress)
		v := completedVersion(t)
		repo.On("FindByID", ctx, v.ID).Return(v, nil)

		p, err := svc.GetProgress(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, dataset.StageDone, p.Stage)
		assert.Equal(t, 100, p.Percent)
	})

	t.Run("failed version carries the reason", func(t *testing.T) {
		repo := new(MockDatasetRepository)
		svc := newHistoryService(repo, new(MockBlobStore), nil)
		v, err := dataset.NewVersion("x.csv", 1, "", "", fixedNow)
		require.NoError(t, err)
		require.NoError(t, v.Fail("ERR_IMPORT_MISSING_COLUMN", "Column 'Email' not found.", fixedNow))
		repo.On("FindByID", ctx, v.ID).Return(v, nil)

		p, err := svc.GetProgress(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, dataset.StageFailed, p.Stage)
		assert.Equal(t, "Column 'Email' not found.", p.Message)
	})
}
