package bootstrap

import (
	"context"
	"fmt"

	"github.com/medsync/medsync-server/internal/config"
	"github.com/medsync/medsync-server/internal/core/ports"
	"github.com/medsync/medsync-server/internal/core/usecase"
	"github.com/medsync/medsync-server/internal/export"
	"github.com/medsync/medsync-server/internal/infrastructure/llm/extraction"
	"github.com/medsync/medsync-server/internal/infrastructure/queue/nats"
	"github.com/medsync/medsync-server/internal/infrastructure/repository/postgres"
	"github.com/medsync/medsync-server/internal/infrastructure/resilience"
	"github.com/medsync/medsync-server/internal/infrastructure/storage/localfs"
	"github.com/medsync/medsync-server/internal/infrastructure/storage/s3"
)

type App struct {
	Config config.Config

	Queue    ports.BatchQueue
	Capture  ports.CaptureFlow
	Batches  *usecase.BatchUseCase
	Records  ports.RecordService
	Search   ports.SearchService
	Account  ports.AccountService
	Exporter ports.RecordExporter

	// FilesDir is non-empty when the local storage backend serves documents
	// through the API.
	FilesDir string

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	recordRepo := postgres.NewRecordRepository(db)
	userRepo := postgres.NewUserRepository(db)
	batchRepo := postgres.NewBatchRepository(db)

	var storage ports.ObjectStorage
	filesDir := ""
	switch cfg.StorageBackend {
	case "s3":
		storage, err = s3.New(ctx, s3.Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			Bucket:        cfg.S3Bucket,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.PublicBaseURL,
			UsePathStyle:  cfg.S3UsePathStyle,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
	default:
		local, err := localfs.New(cfg.StoragePath, cfg.PublicBaseURL)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		storage = local
		filesDir = local.RootDir()
	}

	executorCfg := resilience.DefaultConfig()
	if cfg.ExtractMaxAttempts > 0 {
		executorCfg.MaxAttempts = cfg.ExtractMaxAttempts
	}
	executor := resilience.NewExecutor(executorCfg)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init batch queue: %w", err)
	}

	llmClient := extraction.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)

	processUC := usecase.NewProcessImageUseCase(recordRepo, storage, llmClient, executor)
	batchUC := usecase.NewBatchUseCase(batchRepo, queue, processUC)
	reviewUC := usecase.NewReviewUseCase(recordRepo, processUC)
	captureUC := usecase.NewCaptureFlowUseCase(storage, reviewUC, batchUC)
	recordsUC := usecase.NewRecordsUseCase(recordRepo)
	searchUC := usecase.NewSearchUseCase(recordRepo, llmClient)
	accountUC := usecase.NewAccountUseCase(userRepo)
	exporter := export.NewService(recordRepo, nil)

	return &App{
		Config: cfg,

		Queue:    queue,
		Capture:  captureUC,
		Batches:  batchUC,
		Records:  recordsUC,
		Search:   searchUC,
		Account:  accountUC,
		Exporter: exporter,

		FilesDir: filesDir,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
