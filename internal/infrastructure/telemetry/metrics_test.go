package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"

	importapp "github.com/certhub/backend/internal/application/import"
	"github.com/certhub/backend/internal/domain/dataset"
	"github.com/certhub/backend/internal/infrastructure/telemetry"
)

var _ importapp.IngestRecorder = (*telemetry.IngestMetrics)(nil)

// newTestMeter returns a meter backed by a manual reader
func newTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		ExportInterval: time.Minute,
		ServiceName:    "test-service",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestIngestMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("nil meter", func(t *testing.T) {
		_, err := telemetry.NewIngestMetrics(nil)
		assert.ErrorIs(t, err, telemetry.ErrMeterNil)
	})

	t.Run("records ingestions", func(t *testing.T) {
		provider, reader := newTestMeter(t)
		m, err := telemetry.NewIngestMetrics(provider.Meter("test"))
		require.NoError(t, err)

		m.RecordIngestion(ctx, dataset.StatusCompleted, 120, 7, 2*time.Second)
		m.RecordIngestion(ctx, dataset.StatusFailed, 0, 0, 10*time.Millisecond)

		metrics := collect(t, reader)
		assert.Equal(t, int64(2), sumOf(t, metrics["certhub_dataset_ingest_total"]))
		assert.Equal(t, int64(120), sumOf(t, metrics["certhub_participant_records_total"]))
		assert.Equal(t, int64(7), sumOf(t, metrics["certhub_participant_suspicious_total"]))

		hist, ok := metrics["certhub_dataset_ingest_duration_seconds"].Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		assert.Len(t, hist.DataPoints, 2)
	})

	t.Run("records community imports", func(t *testing.T) {
		provider, reader := newTestMeter(t)
		m, err := telemetry.NewIngestMetrics(provider.Meter("test"))
		require.NoError(t, err)

		m.RecordCommunityImport(ctx, 3, 2, 0)

		metrics := collect(t, reader)
		assert.Equal(t, int64(1), sumOf(t, metrics["certhub_community_import_total"]))
		entries := metrics["certhub_community_entries_total"]
		assert.Equal(t, int64(5), sumOf(t, entries))
		assert.Len(t, entries.Data.(metricdata.Sum[int64]).DataPoints, 2)
	})
}
