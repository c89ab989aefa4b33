package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/certhub/backend/internal/domain/dataset"
)

// ErrMeterNil is returned when no meter is supplied
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// IngestMetrics counts dataset ingestions and registry imports.
type IngestMetrics struct {
	ingestTotal       *Counter
	ingestDuration    *Histogram
	recordsTotal      *Counter
	suspiciousTotal   *Counter
	communityImported *Counter
	communityOutcome  *Counter
}

// NewIngestMetrics creates the instruments on meter.
func NewIngestMetrics(meter metric.Meter) (*IngestMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &IngestMetrics{}
	var err error
	if m.ingestTotal, err = NewCounter(meter,
		"certhub_dataset_ingest_total", "Dataset ingestions by outcome", "{ingestions}"); err != nil {
		return nil, err
	}
	if m.ingestDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "certhub_dataset_ingest_duration_seconds",
		Description: "Time from upload to terminal status",
		Unit:        "s",
		Boundaries:  IngestDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.recordsTotal, err = NewCounter(meter,
		"certhub_participant_records_total", "Participant records stored", "{records}"); err != nil {
		return nil, err
	}
	if m.suspiciousTotal, err = NewCounter(meter,
		"certhub_participant_suspicious_total", "Participant records flagged suspicious", "{records}"); err != nil {
		return nil, err
	}
	if m.communityImported, err = NewCounter(meter,
		"certhub_community_import_total", "Registry import runs", "{imports}"); err != nil {
		return nil, err
	}
	if m.communityOutcome, err = NewCounter(meter,
		"certhub_community_entries_total", "Registry entries by outcome", "{entries}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordIngestion records one dataset reaching a terminal status
func (m *IngestMetrics) RecordIngestion(ctx context.Context, outcome dataset.Status, records, suspicious int, d time.Duration) {
	attr := AttrOutcome.String(string(outcome))
	m.ingestTotal.Inc(ctx, attr)
	m.ingestDuration.RecordDuration(ctx, d, attr)
	if records > 0 {
		m.recordsTotal.Add(ctx, int64(records))
	}
	if suspicious > 0 {
		m.suspiciousTotal.Add(ctx, int64(suspicious))
	}
}

// RecordCommunityImport records one bulk registry import
func (m *IngestMetrics) RecordCommunityImport(ctx context.Context, imported, updated, failed int) {
	m.communityImported.Inc(ctx)
	for outcome, n := range map[string]int{"imported": imported, "updated": updated, "failed": failed} {
		if n > 0 {
			m.communityOutcome.Add(ctx, int64(n), AttrOutcome.String(outcome))
		}
	}
}
