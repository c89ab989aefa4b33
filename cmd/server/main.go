package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	importapp "github.com/certhub/backend/internal/application/import"
	"github.com/certhub/backend/internal/domain/fraud"
	"github.com/certhub/backend/internal/infrastructure/cache"
	"github.com/certhub/backend/internal/infrastructure/config"
	"github.com/certhub/backend/internal/infrastructure/logger"
	"github.com/certhub/backend/internal/infrastructure/migration"
	"github.com/certhub/backend/internal/infrastructure/persistence"
	"github.com/certhub/backend/internal/infrastructure/storage"
	"github.com/certhub/backend/internal/infrastructure/telemetry"
	"github.com/certhub/backend/internal/interfaces/http/handler"
	"github.com/certhub/backend/internal/interfaces/http/middleware"
	"github.com/certhub/backend/internal/interfaces/http/router"
	"github.com/certhub/backend/migrations"
)

const (
	version = "1.0.0"
	// multipart framing on top of the largest accepted file
	multipartOverhead = 1 << 20
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync(log)

	log.Info("Starting certhub backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer shutdown(log, "tracer provider", tracerProvider.Shutdown)

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer shutdown(log, "meter provider", meterProvider.Shutdown)

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	tracingCfg := telemetry.DefaultDBTracingConfig()
	tracingCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	tracingCfg.DBName = cfg.Database.DBName
	if err := telemetry.RegisterDBTracing(db.DB, tracingCfg, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	if meterProvider.IsEnabled() {
		dbMetrics, err := telemetry.NewDBMetrics(meterProvider.Meter("db"), telemetry.DefaultDBMetricsConfig(), log)
		if err != nil {
			log.Fatal("Failed to create database metrics", zap.Error(err))
		}
		if err := dbMetrics.Instrument(db.DB); err != nil {
			log.Fatal("Failed to instrument database", zap.Error(err))
		}
		dbMetrics.StartPoolStatsCollection(ctx)
		defer dbMetrics.Stop()
	}

	if err := migrateUp(db, log); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}

	// Storage and progress
	blobs, err := storage.New(ctx, &cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize blob storage", zap.Error(err))
	}

	progressFactory := cache.NewProgressStoreFactory(cfg.Redis, cfg.Ingest.ProgressTTL,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	progress, progressCloser, err := progressFactory.CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to initialize progress store", zap.Error(err))
	}
	defer closeQuietly(log, "progress store", progressCloser)

	// Application services
	ingestMetrics, err := telemetry.NewIngestMetrics(meterProvider.Meter("ingest"))
	if err != nil {
		log.Fatal("Failed to create ingest metrics", zap.Error(err))
	}
	serviceOpts := []importapp.ServiceOption{
		importapp.WithLogger(log),
		importapp.WithMetrics(ingestMetrics),
		importapp.WithUploadLimit(cfg.Ingest.MaxUploadBytes),
		importapp.WithFallbackCharset(cfg.Ingest.FallbackCharset),
		importapp.WithBatchSize(cfg.Ingest.CommunityBatchSize),
	}

	datasetRepo := persistence.NewGormDatasetRepository(db.DB)
	communityRepo := persistence.NewGormCommunityRepository(db.DB)

	parser := importapp.NewParticipantParser(
		importapp.WithChunkSize(cfg.Ingest.ChunkSize),
		importapp.WithMaxRowErrors(cfg.Ingest.MaxRowErrors),
		importapp.WithFraudEngine(fraud.NewEngine(fraud.WithDisposableDomains(cfg.Ingest.DisposableDomains...))),
	)
	participantService := importapp.NewParticipantImportService(datasetRepo, blobs, progress, parser, serviceOpts...)
	historyService := importapp.NewDatasetHistoryService(datasetRepo, blobs, progress, serviceOpts...)
	communityService := importapp.NewCommunityImportService(communityRepo, serviceOpts...)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	uploadMW := []gin.HandlerFunc{middleware.BodyLimit(cfg.Ingest.MaxUploadBytes + multipartOverhead)}
	if cfg.HTTP.UploadRateLimit > 0 {
		limiter := newUploadLimiter(cfg, progressFactory)
		uploadMW = append(uploadMW, middleware.RateLimit(limiter, log))
		log.Info("Upload rate limiting enabled",
			zap.Int("requests", cfg.HTTP.UploadRateLimit),
			zap.Duration("window", cfg.HTTP.UploadRateWindow),
		)
	}

	datasetOpts := []handler.DatasetHandlerOption{
		handler.WithDatasetLogger(log),
		handler.WithUploadMiddleware(uploadMW...),
	}
	if cfg.Ingest.Async {
		datasetOpts = append(datasetOpts, handler.WithAsyncProcessing(cfg.Ingest.ProcessTimeout))
	}
	datasetHandler := handler.NewDatasetHandler(participantService, historyService, datasetOpts...)
	communityHandler := handler.NewCommunityHandler(communityService, uploadMW...)
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, db)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.HSTSEnabled = cfg.App.Env == "production"

	engine := router.NewEngine(router.EngineConfig{
		Logger: log,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Metrics: middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			Enabled:       cfg.Telemetry.Enabled,
		},
		CORS:     corsCfg,
		Security: securityCfg,
	})
	r := router.NewRouter(engine, router.WithHealthCheck(systemHandler.Health))
	r.Register(datasetHandler, communityHandler, systemHandler)
	r.Setup()

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	waitForUploads(shutdownCtx, datasetHandler, log)

	log.Info("Server exited gracefully")
}

func migrateUp(db *persistence.Database, log *zap.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.NewEmbedded(sqlDB, migrations.FS, log)
	if err != nil {
		return err
	}
	// closing the migrator would close the shared *sql.DB
	if err := m.Up(); err != nil {
		return err
	}
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	log.Info("Database schema ready", zap.Uint("version", v), zap.Bool("dirty", dirty))
	return nil
}

func newUploadLimiter(cfg *config.Config, f *cache.ProgressStoreFactory) middleware.Limiter {
	if client := f.RedisClient(); client != nil {
		return cache.NewRedisRateLimiter(client, cfg.HTTP.UploadRateLimit, cfg.HTTP.UploadRateWindow)
	}
	return middleware.NewRateLimiter(cfg.HTTP.UploadRateLimit, cfg.HTTP.UploadRateWindow)
}

func waitForUploads(ctx context.Context, h *handler.DatasetHandler, log *zap.Logger) {
	done := make(chan struct{})
	go func() {
		h.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("Background dataset processing still running at shutdown")
	}
}

func shutdown(log *zap.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error("Error shutting down "+name, zap.Error(err))
	}
}

func closeQuietly(log *zap.Logger, name string, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Error("Error closing "+name, zap.Error(err))
	}
}
