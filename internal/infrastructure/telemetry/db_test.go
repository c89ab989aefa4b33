package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type probeRow struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:100"`
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&probeRow{}))
	return db
}

func TestRegisterDBTracing(t *testing.T) {
	t.Run("disabled registers nothing", func(t *testing.T) {
		db := setupTestDB(t)
		require.NoError(t, RegisterDBTracing(db, DefaultDBTracingConfig(), zap.NewNop()))
		assert.Nil(t, db.Callback().Create().Get("otel_span:after_create"))
	})

	t.Run("creates query spans", func(t *testing.T) {
		sr := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
		original := otel.GetTracerProvider()
		otel.SetTracerProvider(tp)
		defer func() {
			otel.SetTracerProvider(original)
			_ = tp.Shutdown(context.Background())
		}()

		db := setupTestDB(t)
		cfg := DefaultDBTracingConfig()
		cfg.Enabled = true
		require.NoError(t, RegisterDBTracing(db, cfg, zap.NewNop()))

		ctx, span := tp.Tracer("test").Start(context.Background(), "parent")
		require.NoError(t, db.WithContext(ctx).Create(&probeRow{Name: "a"}).Error)
		span.End()

		assert.Greater(t, len(sr.Ended()), 1)
	})

	t.Run("registering twice fails", func(t *testing.T) {
		db := setupTestDB(t)
		cfg := DefaultDBTracingConfig()
		cfg.Enabled = true
		require.NoError(t, RegisterDBTracing(db, cfg, zap.NewNop()))
		assert.Error(t, RegisterDBTracing(db, cfg, zap.NewNop()))
	})
}

func TestSlowQueryAnnotator(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "query")
	ctx = context.WithValue(ctx, queryStartTimeKey, time.Now().Add(-time.Second))

	tx := setupTestDB(t).Session(&gorm.Session{})
	tx.Statement.Context = ctx
	tx.Statement.Table = "probe_rows"
	tx.Statement.RowsAffected = 3
	tx.Error = errors.New("constraint failed")

	slowQueryAnnotator{threshold: 100 * time.Millisecond}.after(tx)
	span.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range ended[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "probe_rows", attrs["db.sql.table"].AsString())
	assert.Equal(t, int64(3), attrs["db.rows_affected"].AsInt64())
	assert.True(t, attrs["db.slow_query"].AsBool())
	assert.Equal(t, codes.Error, ended[0].Status().Code)

	names := make([]string, 0, len(ended[0].Events()))
	for _, e := range ended[0].Events() {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "slow_query_warning")
}

func TestDBMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()

	m, err := NewDBMetrics(provider.Meter("test"), DBMetricsConfig{SlowQueryThreshold: time.Hour}, nil)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, m.config.PoolStatsInterval)

	db := setupTestDB(t)
	require.NoError(t, m.Instrument(db))
	require.NoError(t, db.Create(&probeRow{Name: "a"}).Error)
	var rows []probeRow
	require.NoError(t, db.Find(&rows).Error)

	m.RecordQuery(ctx, "select", "", 2*time.Hour)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	totals := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if sum, ok := metric.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					op, _ := dp.Attributes.Value(AttrDBOperation)
					totals[metric.Name+"/"+op.AsString()] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), totals["db_query_total/INSERT"])
	assert.Equal(t, int64(2), totals["db_query_total/SELECT"])
	assert.Equal(t, int64(1), totals["db_slow_query_total/"])

	m.StartPoolStatsCollection(ctx)
	m.Stop()
	m.Stop()
}

func TestOperationOf(t *testing.T) {
	tests := []struct {
		processor string
		sql       string
		want      string
	}{
		{"create", "", "INSERT"},
		{"query", "", "SELECT"},
		{"update", "", "UPDATE"},
		{"delete", "", "DELETE"},
		{"raw", "  select 1", "SELECT"},
		{"row", "DELETE FROM x", "DELETE"},
		{"raw", "VACUUM", "OTHER"},
	}
	for _, tt := range tests {
		t.Run(tt.processor+" "+tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.want, operationOf(tt.processor, tt.sql))
		})
	}
}
