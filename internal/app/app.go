// Package app assembles the pipeline from configuration. Both cmd/server and
// cmd/ivmsctl build on it.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ivms/internal/anomaly"
	"ivms/internal/coding"
	"ivms/internal/config"
	"ivms/internal/duplicate"
	"ivms/internal/exception"
	"ivms/internal/fraud"
	"ivms/internal/intake"
	"ivms/internal/lock"
	"ivms/internal/logger"
	"ivms/internal/matching"
	"ivms/internal/mlservice"
	noopnotify "ivms/internal/notify/noop"
	sesnotify "ivms/internal/notify/ses"
	"ivms/internal/ocr"
	"ivms/internal/port"
	"ivms/internal/repository/postgres"
	"ivms/internal/service"
	s3storage "ivms/internal/storage/s3"
	"ivms/internal/tax"
)

// App holds the wired components of one process.
type App struct {
	Config *config.Config
	Log    *zap.Logger
	DB     *sqlx.DB
	Redis  *redis.Client
	ML     *mlservice.Client

	Invoices   port.InvoiceRepository
	Vendors    port.VendorRepository
	Files      port.FileMetaRepository
	Matches    port.MatchRecordRepository
	Storage    port.ObjectStorage
	Locker     port.Locker
	Exceptions *exception.Manager

	Pipeline service.PipelineService
	Intake   service.IntakeService
	Analysis service.AnalysisService
	Query    service.InvoiceQueryService

	closers []func() error
}

// New connects to the database and object storage and wires every service.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	log = logger.OrNop(log)
	a := &App{Config: cfg, Log: log}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	storage, err := s3storage.NewS3Client(&cfg.S3)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("initializing S3 client: %w", err)
	}
	a.Storage = storage

	a.Invoices = postgres.NewInvoiceRepo(db)
	a.Vendors = postgres.NewVendorRepo(db)
	a.Files = postgres.NewFileMetaRepo(db)
	a.Matches = postgres.NewMatchRecordRepo(db)
	exceptionRepo := postgres.NewExceptionRepo(db)
	orders := postgres.NewPurchaseOrderRepo(db)
	finder := postgres.NewDuplicateFinderRepo(db)

	ml := a.mlAdapter()

	recognizer, err := a.recognizer(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var matcher port.Matcher = ml
	if strings.EqualFold(cfg.Matching.Provider, "local") {
		matcher = matching.NewLocalMatcher(orders, log.Named("matching"))
	}

	a.Locker = a.locker()

	notifier, err := a.notifier()
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Exceptions = exception.NewManager(exceptionRepo, notifier, exception.DefaultConfig(), log.Named("exception"))

	h := cfg.Heuristics
	detector := duplicate.NewDetector(finder, DuplicateConfig(h), log.Named("duplicate"))
	anomalies := anomaly.NewChecker(AnomalyConfig(h))

	analyzer, err := fraud.NewAnalyzer(a.Invoices, a.Vendors, detector, AnalyzerConfig(h), log.Named("fraud"))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("configuring fraud analyzer: %w", err)
	}

	a.Pipeline = service.NewPipelineService(service.PipelineDeps{
		Invoices:   a.Invoices,
		Files:      a.Files,
		Matches:    a.Matches,
		Storage:    a.Storage,
		Locker:     a.Locker,
		Extractor:  ml,
		Duplicates: detector,
		Fraud:      fraud.NewScorer(ml, ScorerConfig(h), log.Named("fraud")),
		Matching:   matching.NewEngine(matcher, MatchingConfig(h, cfg.ML), log.Named("matching")),
		Tax:        tax.NewValidator(tax.DefaultConfig()),
		Coding:     coding.NewAdvisor(ml, coding.DefaultConfig(), log.Named("coding")),
		Anomalies:  anomalies,
		Exceptions: a.Exceptions,
	}, PipelineConfig(cfg), log.Named("pipeline"))

	a.Intake = service.NewIntakeService(
		intake.NewNormalizer(a.Vendors, recognizer, log.Named("intake")),
		a.Invoices, a.Files, a.Storage,
		service.IntakeConfig{
			Bucket:          cfg.S3.Bucket,
			ReviewBelow:     PipelineConfig(cfg).LowConfidence,
			BulkConcurrency: cfg.Queue.Concurrency,
		},
		log.Named("intake"),
	)

	a.Analysis = service.NewAnalysisService(
		a.Invoices, analyzer, anomalies, a.Exceptions, a.Locker, cfg.Queue.Concurrency, log.Named("analysis"),
	)
	a.Query = service.NewInvoiceQueryService(a.Invoices, a.Matches, exceptionRepo, a.Files)

	log.Info("app.New: wired",
		zap.Bool("ml_enabled", cfg.ML.Enabled),
		zap.String("ocr", cfg.OCR.Provider),
		zap.String("matching", cfg.Matching.Provider),
		zap.String("lock", cfg.Lock.Provider),
		zap.String("notify", cfg.Notify.Provider))
	return a, nil
}

// Worker builds the polling worker over the wired pipeline.
func (a *App) Worker() *service.PipelineWorker {
	return service.NewPipelineWorker(a.Invoices, a.Pipeline, WorkerConfig(a.Config.Queue), a.Log.Named("worker"))
}

// Close releases every connection opened by New, last opened first.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// mlAdapter wraps the live client when the service is enabled; otherwise
// every capability is answered by the deterministic fallbacks.
func (a *App) mlAdapter() *mlservice.Adapter {
	timeouts := mlservice.TimeoutsFromConfig(&a.Config.ML)
	if !a.Config.ML.Enabled {
		return mlservice.NewAdapter(nil, timeouts, a.Log.Named("mlservice"))
	}
	a.ML = mlservice.NewClient(&a.Config.ML)
	return mlservice.NewAdapter(a.ML, timeouts, a.Log.Named("mlservice"))
}

func (a *App) recognizer(ctx context.Context) (port.TextRecognizer, error) {
	switch strings.ToLower(a.Config.OCR.Provider) {
	case "vision":
		v, err := ocr.NewVisionRecognizer(ctx, &a.Config.OCR)
		if err != nil {
			return nil, fmt.Errorf("initializing vision OCR: %w", err)
		}
		a.closers = append(a.closers, v.Close)
		return v, nil
	case "", "noop":
		return ocr.NoopRecognizer{}, nil
	default:
		return nil, fmt.Errorf("unknown OCR provider %q", a.Config.OCR.Provider)
	}
}

func (a *App) locker() port.Locker {
	if !strings.EqualFold(a.Config.Lock.Provider, "redis") {
		return lock.NewMemoryLocker()
	}
	a.Redis = redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	a.closers = append(a.closers, a.Redis.Close)
	return lock.NewRedisLocker(a.Redis, a.Config.Lock.TTL, a.Log.Named("lock"))
}

func (a *App) notifier() (port.ExceptionNotifier, error) {
	if !strings.EqualFold(a.Config.Notify.Provider, "ses") {
		return noopnotify.NewNoopNotifier(a.Log.Named("notify")), nil
	}
	n, err := sesnotify.NewSESNotifier(&a.Config.Notify)
	if err != nil {
		return nil, fmt.Errorf("initializing SES notifier: %w", err)
	}
	return n, nil
}
