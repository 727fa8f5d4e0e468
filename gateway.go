// Package llmgateway wires the gateway's subsystems together, the way
// the teacher's framework.go assembles a runnable component from its
// core pieces. A Gateway is the single entry point callers construct;
// everything underneath is reached through internal/ packages.
package llmgateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gomind-contrib/llmgateway/internal/budget"
	"github.com/gomind-contrib/llmgateway/internal/chain"
	"github.com/gomind-contrib/llmgateway/internal/config"
	"github.com/gomind-contrib/llmgateway/internal/domain"
	"github.com/gomind-contrib/llmgateway/internal/experiment"
	"github.com/gomind-contrib/llmgateway/internal/logging"
	"github.com/gomind-contrib/llmgateway/internal/provider"
	"github.com/gomind-contrib/llmgateway/internal/provider/plugins"
	"github.com/gomind-contrib/llmgateway/internal/semanticcache"
	"github.com/gomind-contrib/llmgateway/internal/storage"
	"github.com/gomind-contrib/llmgateway/internal/telemetry"
	"github.com/gomind-contrib/llmgateway/internal/webhook"
	"github.com/gomind-contrib/llmgateway/internal/workflow"
)

const (
	defaultSemanticCacheCapacity = 1000
	defaultWebhookTimeout        = 10 * time.Second
)

// Gateway is the fully wired system: chain executor, workflow engine,
// semantic cache, budget service, and webhook dispatcher, all sharing one
// provider router and one storage backend.
type Gateway struct {
	Config    *config.Config
	Logger    logging.Logger
	Telemetry telemetry.Telemetry

	Registry *provider.Registry
	Router   *provider.Router

	Chains    storage.Repository[*domain.Chain]
	Workflows storage.Repository[*domain.Workflow]
	Models    storage.Repository[*domain.Model]
	Prompts   storage.Repository[*domain.Prompt]

	ChainExecutor    *chain.Executor
	WorkflowEngine   *workflow.Engine
	SemanticCache    *semanticcache.Service
	BudgetService    *budget.Service
	ExperimentAssign *experiment.Assigner
	WebhookDispatch  *webhook.Dispatcher
	RetryWorker      *webhook.RetryWorker

	pgPool         *pgxpool.Pool
	tracerShutdown func(context.Context) error
}

// Embedder is the minimal collaborator New needs to populate the
// semantic cache with real embeddings; pass nil to disable the cache
// regardless of cfg.SemanticCache.Enabled.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DefaultIDFactory generates a time-sortable UUIDv7 for every durable
// entity and event id the gateway mints (semantic cache entries, webhook
// deliveries). Callers embedding the gateway into their own binary may
// supply a different idFactory to New; this is simply the default.
func DefaultIDFactory() string {
	return uuid.Must(uuid.NewV7()).String()
}

// New builds a Gateway from cfg, wiring every subsystem: storage
// repositories (memory or Postgres per cfg.Storage.Backend), the
// provider registry with every built-in plugin registered, the chain
// and workflow cores over a shared router, the semantic cache service,
// budget accounting, and the webhook dispatcher with its retry queue.
func New(ctx context.Context, cfg *config.Config, embedder Embedder, idFactory func() string) (*Gateway, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	level := logging.LevelInfo
	if cfg.Logging.Level == "debug" {
		level = logging.LevelDebug
	}
	format := logging.FormatPretty
	if cfg.Logging.Format == "json" {
		format = logging.FormatJSON
	}
	logger := logging.NewProductionLogger(format, level)

	var tel telemetry.Telemetry = telemetry.NoOp{}
	var tracerShutdown func(context.Context) error
	if cfg.Observability.Tracing.Enabled {
		shutdown, err := telemetry.NewOtelTracerProvider(ctx, "llmgateway",
			cfg.Observability.Tracing.OTLPEndpoint, cfg.Observability.Tracing.SamplingRatio)
		if err != nil {
			return nil, fmt.Errorf("llmgateway: init tracer provider: %w", err)
		}
		tracerShutdown = shutdown
		tel = telemetry.NewOtelTelemetry("llmgateway")
	}

	gw := &Gateway{Config: cfg, Logger: logger, Telemetry: tel, tracerShutdown: tracerShutdown}

	repos, err := buildRepositories(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: build repositories: %w", err)
	}
	gw.pgPool = repos.pool
	gw.Models = repos.model
	gw.Chains = repos.chain
	gw.Workflows = repos.workflow
	gw.Prompts = repos.prompt

	registry := provider.NewRegistry(logger)
	for _, p := range []provider.Plugin{
		plugins.NewOpenAIPlugin(),
		plugins.NewAzurePlugin(),
		plugins.NewAnthropicPlugin(),
		plugins.NewBedrockPlugin(),
	} {
		if err := registry.Register(p); err != nil {
			return nil, fmt.Errorf("llmgateway: register plugin: %w", err)
		}
		if err := registry.Initialize(ctx, p.Metadata().ID); err != nil {
			return nil, fmt.Errorf("llmgateway: initialize plugin %s: %w", p.Metadata().ID, err)
		}
	}
	gw.Registry = registry

	router := provider.NewRouter(registry, storage.ModelRepository{Repo: repos.model}, storage.CredentialRepository{Repo: repos.credential}, logger)
	gw.Router = router

	gw.ExperimentAssign = experiment.NewAssigner(
		storage.ExperimentRepository{Repo: repos.experiment},
		storage.ExperimentRecordRepository{Repo: repos.experimentRecord},
		idFactory, logger,
	)
	gw.ChainExecutor = chain.NewExecutor(router, logger, tel).WithExperiments(gw.ExperimentAssign)
	gw.WorkflowEngine = workflow.NewEngine(router, nil, nil, logger, tel).
		WithPrompts(storage.PromptRepository{Repo: repos.prompt})

	if cfg.SemanticCache.Enabled && embedder != nil {
		cache := semanticcache.NewCache(defaultSemanticCacheCapacity)
		scCfg := semanticcache.Config{
			Enabled:                 true,
			MinSimilarity:           cfg.SemanticCache.SimilarityThreshold,
			TTLSeconds:              cfg.SemanticCache.TTLSeconds,
			IncludeModelInKey:       cfg.SemanticCache.IncludeModelInKey,
			IncludeTemperatureInKey: cfg.SemanticCache.IncludeTemperatureInKey,
			CacheStreaming:          cfg.SemanticCache.CacheStreaming,
		}
		gw.SemanticCache = semanticcache.NewService(cache, embedder, scCfg, logger, idFactory)
	}

	pricing := domain.PricingTable{}
	gw.BudgetService = budget.NewService(storage.BudgetRepository{Repo: repos.budget}, pricing, nil, logger).
		WithUsageRecording(storage.UsageRecordRepository{Repo: repos.usageRecord}, idFactory)

	var retryQueue webhook.RetryQueue = webhook.NewMemoryRetryQueue()
	transport := webhook.NewHTTPTransport(defaultWebhookTimeout)
	subStore := storage.WebhookSubscriptionRepository{Repo: repos.webhookSub}
	deliveryStore := storage.WebhookDeliveryRepository{Repo: repos.webhookDelivery}
	gw.WebhookDispatch = webhook.NewDispatcher(subStore, deliveryStore, retryQueue, transport, idFactory, logger)
	gw.RetryWorker = webhook.NewRetryWorker(retryQueue, subStore, deliveryStore, transport, logger)

	return gw, nil
}

// Close releases resources the Gateway owns (the Postgres pool, when
// storage.backend=postgres; the tracer provider, when tracing is enabled),
// flushing any spans still buffered for export.
func (g *Gateway) Close() {
	if g.pgPool != nil {
		g.pgPool.Close()
	}
	if g.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.tracerShutdown(ctx); err != nil {
			g.Logger.Warn("tracer provider shutdown error", map[string]interface{}{"error": err.Error()})
		}
	}
}
