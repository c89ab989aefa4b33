package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	importapp "github.com/certhub/backend/internal/application/import"
	"github.com/certhub/backend/internal/domain/dataset"
	"github.com/certhub/backend/internal/domain/participant"
	"github.com/certhub/backend/internal/domain/shared"
	"github.com/certhub/backend/internal/infrastructure/logger"
	"github.com/certhub/backend/internal/interfaces/http/dto"
)

// UploadedByHeader names the uploader when the form does not
const UploadedByHeader = "X-Uploaded-By"

// DatasetIngester turns uploads into dataset versions
type DatasetIngester interface {
	Ingest(ctx context.Context, in importapp.UploadInput) (*importapp.IngestResult, error)
	Begin(ctx context.Context, in importapp.UploadInput) (*dataset.Version, error)
	Process(ctx context.Context, v *dataset.Version, content []byte) (*importapp.IngestResult, error)
}

// DatasetHistory reads and manages stored dataset versions
type DatasetHistory interface {
	ListVersions(ctx context.Context, filter importapp.ListVersionsFilter, page, pageSize int) (*dataset.ListResult, error)
	GetVersion(ctx context.Context, id uuid.UUID) (*dataset.Version, error)
	GetActive(ctx context.Context) (*dataset.Version, error)
	ActivateVersion(ctx context.Context, id uuid.UUID) (*dataset.Version, error)
	DeleteVersion(ctx context.Context, id uuid.UUID) error
	ListRecords(ctx context.Context, id uuid.UUID, filter dataset.RecordFilter, page, pageSize int) (shared.Paginated[participant.Record], error)
	GetErrorsCSV(ctx context.Context, id uuid.UUID) (string, string, error)
	GetProgress(ctx context.Context, id uuid.UUID) (*dataset.Progress, error)
}

var (
	_ DatasetIngester = (*importapp.ParticipantImportService)(nil)
	_ DatasetHistory  = (*importapp.DatasetHistoryService)(nil)
)

// DatasetHandler serves participant uploads and dataset version history
type DatasetHandler struct {
	BaseHandler
	ingester       DatasetIngester
	history        DatasetHistory
	logger         *zap.Logger
	async          bool
	processTimeout time.Duration
	uploadMW       []gin.HandlerFunc
	wg             sync.WaitGroup
}

// DatasetHandlerOption configures a DatasetHandler
type DatasetHandlerOption func(*DatasetHandler)

// WithAsyncProcessing answers uploads with 202 once the file is stored and
// parses it in the background, bounded by timeout when positive
func WithAsyncProcessing(timeout time.Duration) DatasetHandlerOption {
	return func(h *DatasetHandler) {
		h.async = true
		h.processTimeout = timeout
	}
}

// WithDatasetLogger sets the logger of background processing
func WithDatasetLogger(l *zap.Logger) DatasetHandlerOption {
	return func(h *DatasetHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithUploadMiddleware runs mw in front of the upload route only
func WithUploadMiddleware(mw ...gin.HandlerFunc) DatasetHandlerOption {
	return func(h *DatasetHandler) {
		h.uploadMW = append(h.uploadMW, mw...)
	}
}

// NewDatasetHandler creates a new DatasetHandler
func NewDatasetHandler(ingester DatasetIngester, history DatasetHistory, opts ...DatasetHandlerOption) *DatasetHandler {
	h := &DatasetHandler{
		ingester: ingester,
		history:  history,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the dataset routes under rg
func (h *DatasetHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/datasets")
	g.POST("", append(h.uploadMW[:len(h.uploadMW):len(h.uploadMW)], h.Upload)...)
	g.GET("", h.List)
	g.GET("/active", h.GetActive)
	g.GET("/:id", h.Get)
	g.GET("/:id/progress", h.GetProgress)
	g.GET("/:id/records", h.ListRecords)
	g.GET("/:id/errors.csv", h.DownloadErrors)
	g.POST("/:id/activate", h.Activate)
	g.DELETE("/:id", h.Delete)
}

// Wait blocks until background processing started by Upload has finished
func (h *DatasetHandler) Wait() {
	h.wg.Wait()
}

// Upload ingests a participant CSV
//
// POST /datasets (multipart: file, uploaded_by)
func (h *DatasetHandler) Upload(c *gin.Context) {
	fileName, content, ok := h.readUpload(c)
	if !ok {
		return
	}
	in := importapp.UploadInput{
		FileName:   fileName,
		Content:    content,
		UploadedBy: uploaderOf(c),
	}

	if !h.async {
		res, err := h.ingester.Ingest(c.Request.Context(), in)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Created(c, dto.NewIngestResponse(res))
		return
	}

	v, err := h.ingester.Begin(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := dto.NewDatasetVersionResponse(v)

	h.wg.Add(1)
	go h.process(context.WithoutCancel(c.Request.Context()), v, content)

	c.Header("Location", c.Request.URL.Path+"/"+v.ID.String()+"/progress")
	h.Accepted(c, resp)
}

func (h *DatasetHandler) process(ctx context.Context, v *dataset.Version, content []byte) {
	defer h.wg.Done()
	if h.processTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.processTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Panic during dataset processing",
				zap.String("dataset_id", v.ID.String()),
				zap.Any("error", r),
				zap.Stack("stacktrace"),
			)
		}
	}()

	if _, err := h.ingester.Process(ctx, v, content); err != nil {
		h.logger.Debug("Background dataset processing failed",
			zap.String("dataset_id", v.ID.String()),
			zap.String("request_id", logger.GetRequestID(ctx)),
			zap.Error(err),
		)
	}
}

func uploaderOf(c *gin.Context) string {
	if v := c.PostForm("uploaded_by"); v != "" {
		return v
	}
	return c.GetHeader(UploadedByHeader)
}

// List pages through dataset versions, newest first
//
// GET /datasets?status=&uploaded_by=&uploaded_from=&uploaded_to=&page=&page_size=
func (h *DatasetHandler) List(c *gin.Context) {
	var req dto.ListDatasetsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	res, err := h.history.ListVersions(c.Request.Context(), req.Filter(), req.Page, req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, dto.NewDatasetVersionListResponse(res.Items), res.TotalCount, res.Page, res.PageSize)
}

// GetActive returns the version currently served to readers
//
// GET /datasets/active
func (h *DatasetHandler) GetActive(c *gin.Context) {
	v, err := h.history.GetActive(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewDatasetVersionResponse(v))
}

// Get returns one version with its skipped rows
//
// GET /datasets/:id
func (h *DatasetHandler) Get(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	v, err := h.history.GetVersion(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewDatasetVersionDetailResponse(v))
}

// GetProgress returns the processing progress of a version
//
// GET /datasets/:id/progress
func (h *DatasetHandler) GetProgress(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	p, err := h.history.GetProgress(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}

// ListRecords pages through the records of a version
//
// GET /datasets/:id/records?suspicious_only=&partner_code=&search=&page=&page_size=
func (h *DatasetHandler) ListRecords(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.ListRecordsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.history.ListRecords(c.Request.Context(), id, req.Filter(), req.Page, req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// DownloadErrors downloads the skipped rows of a version as CSV
//
// GET /datasets/:id/errors.csv
func (h *DatasetHandler) DownloadErrors(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	content, fileName, err := h.history.GetErrorsCSV(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+fileName)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(content))
}

// Activate makes a completed version the active one
//
// POST /datasets/:id/activate
func (h *DatasetHandler) Activate(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	v, err := h.history.ActivateVersion(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewDatasetVersionResponse(v))
}

// Delete removes a finished version with its records and upload
//
// DELETE /datasets/:id
func (h *DatasetHandler) Delete(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	if err := h.history.DeleteVersion(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
