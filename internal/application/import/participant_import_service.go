package importapp

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/certhub/backend/internal/domain/dataset"
	"github.com/certhub/backend/internal/domain/participant"
	"github.com/certhub/backend/internal/domain/shared"
	csvimport "github.com/certhub/backend/internal/infrastructure/import"
	"github.com/certhub/backend/internal/infrastructure/logger"
	"github.com/certhub/backend/internal/infrastructure/telemetry"
)

// Failure codes for errors that are not structural import errors
const (
	ErrCodePersistence = "ERR_PERSISTENCE"
	ErrCodeCanceled    = "ERR_IMPORT_CANCELED"
	ErrCodeInternal    = "ERR_IMPORT_INTERNAL"
)

// ErrPersistence wraps failures to store a finished ingestion
var ErrPersistence = errors.New("failed to persist dataset")

// csvContentType is the content type stored with uploads
const csvContentType = "text/csv"

// UploadInput is one uploaded participant file
type UploadInput struct {
	FileName   string
	Content    []byte
	UploadedBy string
}

// IngestResult is the outcome of ingesting one upload. Version is set even
// when ingestion fails.
type IngestResult struct {
	Version *dataset.Version
	Parse   *ParseResult
}

// ParticipantImportService stores uploads and turns them into dataset versions
type ParticipantImportService struct {
	repo            dataset.Repository
	blobs           BlobStore
	progress        dataset.ProgressStore
	parser          *ParticipantParser
	metrics         IngestRecorder
	logger          *zap.Logger
	clock           shared.Clock
	maxUploadBytes  int64
	fallbackCharset string
}

// ServiceOption configures the import services
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	metrics         IngestRecorder
	logger          *zap.Logger
	clock           shared.Clock
	maxUploadBytes  int64
	fallbackCharset string
	batchSize       int
}

// WithMetrics sets the measurement sink
func WithMetrics(m IngestRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) ServiceOption {
	return func(o *serviceOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the service clock
func WithClock(c shared.Clock) ServiceOption {
	return func(o *serviceOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithUploadLimit rejects uploads larger than n bytes; 0 disables the check
func WithUploadLimit(n int64) ServiceOption {
	return func(o *serviceOptions) {
		o.maxUploadBytes = n
	}
}

// WithFallbackCharset sets the charset tried for input that is not UTF-8
func WithFallbackCharset(name string) ServiceOption {
	return func(o *serviceOptions) {
		o.fallbackCharset = name
	}
}

// WithBatchSize sets the communities written per transaction
func WithBatchSize(n int) ServiceOption {
	return func(o *serviceOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

func buildOptions(opts []ServiceOption) serviceOptions {
	o := serviceOptions{
		metrics:   noopRecorder{},
		logger:    zap.NewNop(),
		clock:     shared.SystemClock,
		batchSize: DefaultCommunityBatchSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewParticipantImportService creates a new ParticipantImportService
func NewParticipantImportService(
	repo dataset.Repository,
	blobs BlobStore,
	progress dataset.ProgressStore,
	parser *ParticipantParser,
	opts ...ServiceOption,
) *ParticipantImportService {
	o := buildOptions(opts)
	if parser == nil {
		parser = NewParticipantParser(WithParserClock(o.clock))
	}
	return &ParticipantImportService{
		repo:            repo,
		blobs:           blobs,
		progress:        progress,
		parser:          parser,
		metrics:         o.metrics,
		logger:          o.logger,
		clock:           o.clock,
		maxUploadBytes:  o.maxUploadBytes,
		fallbackCharset: o.fallbackCharset,
	}
}

// Ingest stores the upload and processes it synchronously
func (s *ParticipantImportService) Ingest(ctx context.Context, in UploadInput) (*IngestResult, error) {
	v, err := s.Begin(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.Process(ctx, v, in.Content)
}

// Begin validates the upload, stores the raw file and creates the version in
// processing state. The returned version is ready for Process.
func (s *ParticipantImportService) Begin(ctx context.Context, in UploadInput) (*dataset.Version, error) {
	if len(in.Content) == 0 {
		return nil, &csvimport.EmptyInputError{}
	}
	if s.maxUploadBytes > 0 && int64(len(in.Content)) > s.maxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds the limit of %d bytes",
			csvimport.ErrFileTooLarge, len(in.Content), s.maxUploadBytes)
	}

	sum := blake2b.Sum256(in.Content)
	v, err := dataset.NewVersion(in.FileName, int64(len(in.Content)), in.UploadedBy, hex.EncodeToString(sum[:]), s.clock())
	if err != nil {
		return nil, err
	}

	key, err := s.blobs.Put(ctx, in.FileName, in.Content, csvContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	v.AttachBlob(key)

	if err := s.repo.Save(ctx, v); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("Failed to remove orphaned upload", zap.String("key", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to save dataset version: %w", err)
	}

	s.publish(ctx, v.ID, dataset.StageQueued, 0, "")
	s.logger.Info("Dataset upload stored",
		zap.String("dataset_id", v.ID.String()),
		zap.String("file_name", v.FileName),
		zap.Int64("file_size", v.FileSize),
		zap.String("blob_key", key),
	)
	return v, nil
}

// Process parses content into records, scores them and stores them with v.
// Failures are recorded on v and returned; the result still carries v.
func (s *ParticipantImportService) Process(ctx context.Context, v *dataset.Version, content []byte) (*IngestResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dataset", "process")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDatasetID, v.ID.String(),
		telemetry.SpanAttrFileSize, v.FileSize,
	)
	ctx = logger.WithDatasetID(ctx, v.ID.String())
	start := s.clock()

	text, err := csvimport.DecodeText(content, s.fallbackCharset)
	if err != nil {
		telemetry.RecordError(span, err)
		return s.fail(ctx, v, err, start)
	}

	parsed, err := s.parser.Parse(ctx, text, func(percent int) {
		s.publish(ctx, v.ID, dataset.StageParsing, percent, "")
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return s.fail(ctx, v, err, start)
	}

	s.publish(ctx, v.ID, dataset.StageSaving, 100, "")
	pending := *v
	if err := v.Complete(csvimport.DelimiterName(parsed.Delimiter), statsOf(parsed), rowErrorDetails(parsed.Skipped), s.clock()); err != nil {
		return &IngestResult{Version: v, Parse: parsed}, err
	}
	if err := s.repo.SaveWithRecords(ctx, v, parsed.Records); err != nil {
		*v = pending
		persistErr := fmt.Errorf("%w: %w", ErrPersistence, err)
		telemetry.RecordError(span, persistErr)
		res, failErr := s.fail(ctx, v, persistErr, start)
		res.Parse = parsed
		return res, failErr
	}

	s.publish(ctx, v.ID, dataset.StageDone, 100, "")
	s.metrics.RecordIngestion(ctx, dataset.StatusCompleted, len(parsed.Records), parsed.Summary.Suspicious, s.clock().Sub(start))
	telemetry.SetAttributes(span,
		telemetry.SpanAttrRecordCount, len(parsed.Records),
		telemetry.SpanAttrSuspiciousCount, parsed.Summary.Suspicious,
		telemetry.SpanAttrSkippedRows, v.Stats.SkippedRows,
		telemetry.SpanAttrDelimiter, v.Delimiter,
	)
	s.log(ctx).Info("Dataset ingested",
		zap.String("delimiter", v.Delimiter),
		zap.Any("columns", parsed.Columns),
		zap.Int("records", len(parsed.Records)),
		zap.Int("suspicious", parsed.Summary.Suspicious),
		zap.Int("sybil_wallets", parsed.Summary.SybilWallets),
		zap.Int("skipped_rows", parsed.SkippedCount),
		zap.Duration("duration", s.clock().Sub(start)),
	)
	return &IngestResult{Version: v, Parse: parsed}, nil
}

// fail records cause on v. The version is saved even when ctx was canceled.
func (s *ParticipantImportService) fail(ctx context.Context, v *dataset.Version, cause error, start time.Time) (*IngestResult, error) {
	code := failureCode(cause)
	if err := v.Fail(code, cause.Error(), s.clock()); err != nil {
		return &IngestResult{Version: v}, errors.Join(cause, err)
	}

	saveCtx := context.WithoutCancel(ctx)
	if err := s.repo.Save(saveCtx, v); err != nil {
		s.log(ctx).Error("Failed to record dataset failure", zap.Error(err))
	}
	s.publish(saveCtx, v.ID, dataset.StageFailed, 0, cause.Error())
	s.metrics.RecordIngestion(saveCtx, dataset.StatusFailed, 0, 0, s.clock().Sub(start))

	s.log(ctx).Warn("Dataset ingestion failed",
		zap.String("code", code),
		zap.Error(cause),
	)
	return &IngestResult{Version: v}, cause
}

// log returns the request logger carried by ctx, falling back to the
// service logger, with the dataset and request IDs attached
func (s *ParticipantImportService) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.logger)
}

// publish stores progress; failures only affect progress polling
func (s *ParticipantImportService) publish(ctx context.Context, id uuid.UUID, stage dataset.Stage, percent int, message string) {
	if s.progress == nil {
		return
	}
	err := s.progress.Set(ctx, dataset.Progress{
		VersionID: id,
		Stage:     stage,
		Percent:   percent,
		Message:   message,
		UpdatedAt: s.clock(),
	})
	if err != nil {
		s.logger.Debug("Failed to publish progress", zap.String("dataset_id", id.String()), zap.Error(err))
	}
}

func failureCode(err error) string {
	if code := csvimport.ErrorCode(err); code != "" {
		return code
	}
	switch {
	case errors.Is(err, ErrPersistence):
		return ErrCodePersistence
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeCanceled
	}
	return ErrCodeInternal
}

func statsOf(p *ParseResult) dataset.Stats {
	stats := dataset.Stats{
		RecordCount:      len(p.Records),
		SuspiciousCount:  p.Summary.Suspicious,
		SybilWalletCount: p.Summary.SybilWallets,
		SkippedRows:      p.SkippedCount,
	}
	for _, r := range p.Records {
		if r.EmailSynthesized {
			stats.SynthesizedEmail++
		}
		if !r.HasTrustedDates() {
			stats.UntrustedDates++
		}
	}
	return stats
}

func rowErrorDetails(errs []csvimport.RowError) []dataset.RowErrorDetail {
	out := make([]dataset.RowErrorDetail, len(errs))
	for i, e := range errs {
		out[i] = dataset.RowErrorDetail{Row: e.Row, Code: e.Code, Message: e.Message}
	}
	return out
}

// Records exposes the parsed records of a result, nil when parsing failed
func (r *IngestResult) Records() []participant.Record {
	if r == nil || r.Parse == nil {
		return nil
	}
	return r.Parse.Records
}
