package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/docpipe/internal/config"
	"github.com/kirillkom/docpipe/internal/core/domain"
	"github.com/kirillkom/docpipe/internal/core/ports"
	"github.com/kirillkom/docpipe/internal/core/usecase"
	"github.com/kirillkom/docpipe/internal/infrastructure/classifications/yamlfile"
	contractjs "github.com/kirillkom/docpipe/internal/infrastructure/contract/jsonschema"
	"github.com/kirillkom/docpipe/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/docpipe/internal/infrastructure/loader"
	"github.com/kirillkom/docpipe/internal/infrastructure/loader/pdf"
	"github.com/kirillkom/docpipe/internal/infrastructure/loader/plaintext"
	"github.com/kirillkom/docpipe/internal/infrastructure/loader/spreadsheet"
	"github.com/kirillkom/docpipe/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docpipe/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docpipe/internal/infrastructure/resilience"
	"github.com/kirillkom/docpipe/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Log     *slog.Logger
	Metrics *metrics.WorkerMetrics

	Queue     ports.JobQueue
	Store     ports.RecordStore
	Loader    ports.DocumentLoader
	ProcessUC ports.DocumentProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string, log *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	store := postgres.NewRecordRepository(db)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init job queue: %w", err)
	}

	workerMetrics := metrics.NewWorkerMetrics(service)

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	var model ports.ModelClient = ollama.New(cfg.OllamaURL, cfg.OllamaModel, ollama.Options{
		VisionModel:       cfg.OllamaVisionModel,
		RequestsPerSecond: cfg.OllamaRPS,
		Executor:          executor,
	})
	model = &instrumentedModel{next: model, metrics: workerMetrics, service: service}

	candidates, tree, err := yamlfile.Load(cfg.ClassificationsPath)
	if err != nil {
		return nil, fmt.Errorf("load classifications: %w", err)
	}

	registry := loader.NewRegistry(plaintext.New(cfg.PlaintextPageChars)).
		Register(".pdf", pdf.New()).
		Register(".xlsx", spreadsheet.New())

	splitter, err := buildSplitter(cfg, model, log)
	if err != nil {
		return nil, err
	}
	splitter = &instrumentedSplitter{next: splitter, metrics: workerMetrics, service: service}

	engine := usecase.NewConsensusEngine(buildVoterLayers(cfg, model), log)
	var classifier ports.Classifier = usecase.NewClassifierService(engine, domain.ConsensusStrategy(cfg.ConsensusStrategy), log)
	classifier = &instrumentedClassifier{next: classifier, metrics: workerMetrics, service: service}

	var extractor ports.Extractor = usecase.NewCompletionEngine(model, contractjs.New(), usecase.CompletionOptions{
		ContextBudgetTokens:   cfg.ContextBudgetTokens,
		MaxContinuationRounds: cfg.MaxContinuationRounds,
		Strict:                cfg.PaginateStrict,
		Vision:                cfg.VisionEnabled,
	}, log)
	extractor = &instrumentedExtractor{next: extractor, metrics: workerMetrics, service: service}

	pipelineCfg := usecase.PipelineConfig{
		Candidates:           candidates,
		ConsensusStrategy:    domain.ConsensusStrategy(cfg.ConsensusStrategy),
		Threshold:            cfg.ConsensusThreshold,
		CompletionStrategy:   domain.CompletionStrategy(cfg.CompletionStrategy),
		ContinueOnNoDecision: cfg.ContinueOnNoDecision,
	}
	if cfg.UseClassificationTree {
		pipelineCfg.Tree = tree
	}

	processUC := usecase.NewProcessDocumentUseCase(store, registry, splitter, classifier, extractor, pipelineCfg, log)

	return &App{
		Config:    cfg,
		Log:       log,
		Metrics:   workerMetrics,
		Queue:     queue,
		Store:     store,
		Loader:    registry,
		ProcessUC: processUC,
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

func buildSplitter(cfg config.Config, model ports.ModelClient, log *slog.Logger) (ports.DocumentSplitter, error) {
	switch ports.SplitAlgorithm(cfg.SplitAlgorithm) {
	case ports.SplitEager:
		s := usecase.NewEagerSplitter(model, log)
		s.FallbackWholeDocument = cfg.SplitFallbackWhole
		return s, nil
	case ports.SplitLazy:
		return usecase.NewLazySplitter(model, log), nil
	default:
		return nil, fmt.Errorf("unknown split algorithm %q", cfg.SplitAlgorithm)
	}
}

// buildVoterLayers sets up the flat consensus layers: a first layer of
// text voters, escalating to a vision-capable layer when a vision model is
// configured.
func buildVoterLayers(cfg config.Config, model ports.ModelClient) [][]usecase.Voter {
	voters := cfg.ConsensusVoters
	if voters <= 0 {
		voters = 1
	}
	first := make([]usecase.Voter, 0, voters)
	for i := 0; i < voters; i++ {
		first = append(first, usecase.NewModelVoter(fmt.Sprintf("text-%d", i), model, false))
	}
	layers := [][]usecase.Voter{first}
	if cfg.OllamaVisionModel != "" {
		layers = append(layers, []usecase.Voter{usecase.NewModelVoter("vision-0", model, true)})
	}
	return layers
}
