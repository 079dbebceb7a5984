package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/citysort/citysort/internal/config"
	"github.com/citysort/citysort/internal/core/domain"
	"github.com/citysort/citysort/internal/core/ports"
	"github.com/citysort/citysort/internal/core/usecase"
	"github.com/citysort/citysort/internal/infrastructure/extractor/azuredi"
	"github.com/citysort/citysort/internal/infrastructure/extractor/local"
	"github.com/citysort/citysort/internal/infrastructure/llm"
	"github.com/citysort/citysort/internal/infrastructure/queue/nats"
	"github.com/citysort/citysort/internal/infrastructure/repository/postgres"
	"github.com/citysort/citysort/internal/infrastructure/resilience"
	"github.com/citysort/citysort/internal/infrastructure/rules"
	"github.com/citysort/citysort/internal/infrastructure/storage/localfs"
	"github.com/citysort/citysort/internal/observability/logging"
	"github.com/citysort/citysort/internal/observability/metrics"
	"github.com/citysort/citysort/internal/worker"
)

type App struct {
	Config config.Config
	Log    *slog.Logger
	DB     *sql.DB

	Repo    ports.DocumentRepository
	Jobs    ports.JobService
	Ingest  ports.DocumentIngestor
	Process ports.DocumentProcessor

	Worker  *worker.Worker
	Metrics *metrics.WorkerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	log := logging.NewJSONLogger("citysort", cfg.LogLevel)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	repo := postgres.NewDocumentRepository(db)
	jobStore := postgres.NewJobRepository(db)
	audit := postgres.NewAuditRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig()).
		WithLogger(logging.Component(log, "resilience"))

	signal, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init job signal: %w", err)
	}

	ruleProvider := rules.NewProvider(cfg.RulesPath, log)

	var ocr ports.OCRProvider
	if cfg.OCRProvider == "azure" {
		if provider := azuredi.New(azuredi.Config{
			Endpoint:   cfg.AzureDIEndpoint,
			APIKey:     cfg.AzureDIAPIKey,
			Model:      cfg.AzureDIModel,
			APIVersion: cfg.AzureDIAPIVersion,
		}); provider != nil {
			ocr = provider
		} else {
			log.Warn("ocr_provider_unconfigured", "provider", cfg.OCRProvider)
		}
	}

	llmOptions := llm.ClientOptions{
		Limiter:  rate.NewLimiter(rate.Limit(2), 4),
		Executor: executor,
	}
	factoryCfg := llm.FactoryConfig{
		Provider:        cfg.ClassifierProvider,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIModel:     cfg.OpenAIModel,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		AnthropicModel:  cfg.AnthropicModel,
		Options:         llmOptions,
	}
	classifier := llm.NewClassifier(factoryCfg)
	enricher := llm.NewEnricher(factoryCfg)

	pipeline := usecase.NewProcessPipelineUseCase(
		ruleProvider, ocr, local.New(), classifier, enricher,
		usecase.PipelineConfig{
			ConfidenceThreshold: cfg.ConfidenceThreshold,
			ForceReviewDocTypes: cfg.ForceReviewDocTypes,
		}, logging.Component(log, "pipeline"),
	)

	processUC := usecase.NewProcessDocumentUseCase(repo, ruleProvider, pipeline, storage, audit, log)
	jobsUC := usecase.NewJobServiceUseCase(jobStore, signal, cfg.WorkerMaxAttempts, logging.Component(log, "jobs"))
	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, jobsUC)

	var workerMetrics *metrics.WorkerMetrics
	var w *worker.Worker
	if cfg.WorkerEnabled {
		workerMetrics = metrics.NewWorkerMetrics("citysort-worker")
		w = worker.New(jobStore, signal, logging.Component(log, "worker"), worker.Options{
			PollInterval: cfg.WorkerPollInterval,
			Metrics:      workerMetrics,
		})
		w.Register(domain.JobTypeProcessDocument, func(jobCtx context.Context, payload map[string]any) (map[string]any, error) {
			documentID, _ := payload["document_id"].(string)
			actor, _ := payload["actor"].(string)
			return processUC.ProcessByID(jobCtx, documentID, actor)
		})
	}

	return &App{
		Config:  cfg,
		Log:     log,
		DB:      db,
		Repo:    repo,
		Jobs:    jobsUC,
		Ingest:  ingestUC,
		Process: processUC,
		Worker:  w,
		Metrics: workerMetrics,
		closeFn: func() {
			signal.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
