package llmgateway

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gomind-contrib/llmgateway/internal/config"
	"github.com/gomind-contrib/llmgateway/internal/domain"
	"github.com/gomind-contrib/llmgateway/internal/storage"
)

// repositories bundles every entity repository New needs. A struct return
// keeps buildRepositories from growing an ever-longer positional return
// list as entity types are added.
type repositories struct {
	model             storage.Repository[*domain.Model]
	credential        storage.Repository[*domain.Credential]
	budget            storage.Repository[*domain.Budget]
	chain             storage.Repository[*domain.Chain]
	workflow          storage.Repository[*domain.Workflow]
	prompt            storage.Repository[*domain.Prompt]
	experiment        storage.Repository[*domain.Experiment]
	experimentRecord  storage.Repository[*domain.ExperimentRecord]
	usageRecord       storage.Repository[*domain.UsageRecord]
	webhookSub        storage.Repository[*domain.WebhookSubscription]
	webhookDelivery   storage.Repository[*domain.WebhookDelivery]
	pool              *pgxpool.Pool
}

// buildRepositories constructs every entity repository New needs, backed
// by either in-memory maps or Postgres tables per cfg.Storage.Backend,
// running migrations for the latter.
func buildRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	switch cfg.Storage.Backend {
	case "", "memory":
		return &repositories{
			model:            storage.NewMemoryRepository[*domain.Model]("model"),
			credential:       storage.NewMemoryRepository[*domain.Credential]("credential"),
			budget:           storage.NewMemoryRepository[*domain.Budget]("budget"),
			chain:            storage.NewMemoryRepository[*domain.Chain]("chain"),
			workflow:         storage.NewMemoryRepository[*domain.Workflow]("workflow"),
			prompt:           storage.NewMemoryRepository[*domain.Prompt]("prompt"),
			experiment:       storage.NewMemoryRepository[*domain.Experiment]("experiment"),
			experimentRecord: storage.NewMemoryRepository[*domain.ExperimentRecord]("experiment_record"),
			usageRecord:      storage.NewMemoryRepository[*domain.UsageRecord]("usage_record"),
			webhookSub:       storage.NewMemoryRepository[*domain.WebhookSubscription]("webhook_subscription"),
			webhookDelivery:  storage.NewMemoryRepository[*domain.WebhookDelivery]("webhook_delivery"),
		}, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		repos := &repositories{
			model:            storage.NewPostgresRepository(pool, "models", func() *domain.Model { return &domain.Model{} }),
			credential:       storage.NewPostgresRepository(pool, "credentials", func() *domain.Credential { return &domain.Credential{} }),
			budget:           storage.NewPostgresRepository(pool, "budgets", func() *domain.Budget { return &domain.Budget{} }),
			chain:            storage.NewPostgresRepository(pool, "chains", func() *domain.Chain { return &domain.Chain{} }),
			workflow:         storage.NewPostgresRepository(pool, "workflows", func() *domain.Workflow { return &domain.Workflow{} }),
			prompt:           storage.NewPostgresRepository(pool, "prompts", func() *domain.Prompt { return &domain.Prompt{} }),
			experiment:       storage.NewPostgresRepository(pool, "experiments", func() *domain.Experiment { return &domain.Experiment{} }),
			experimentRecord: storage.NewPostgresRepository(pool, "experiment_records", func() *domain.ExperimentRecord { return &domain.ExperimentRecord{} }),
			usageRecord:      storage.NewPostgresRepository(pool, "usage_records", func() *domain.UsageRecord { return &domain.UsageRecord{} }),
			webhookSub:       storage.NewPostgresRepository(pool, "webhook_subscriptions", func() *domain.WebhookSubscription { return &domain.WebhookSubscription{} }),
			webhookDelivery:  storage.NewPostgresRepository(pool, "webhook_deliveries", func() *domain.WebhookDelivery { return &domain.WebhookDelivery{} }),
			pool:             pool,
		}

		migrator := storage.NewMigrator(pool)
		if err := migrator.Run(ctx, postgresMigrations()); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		return repos, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// postgresMigrations returns the full, ordered migration set applied to
// a fresh Postgres deployment. Each entity type's table creation is its
// own version so partial failures are diagnosable from _migrations.
func postgresMigrations() []storage.Migration {
	tables := []string{
		"models", "credentials", "budgets", "chains", "workflows",
		"prompts", "teams", "users", "api_keys", "experiments",
		"experiment_records", "usage_records", "webhook_subscriptions", "webhook_deliveries",
	}
	migrations := make([]storage.Migration, 0, len(tables))
	for i, table := range tables {
		table := table
		migrations = append(migrations, storage.Migration{
			Version:     i + 1,
			Description: fmt.Sprintf("create %s table", table),
			Apply: func(ctx context.Context, pool *pgxpool.Pool) error {
				_, err := pool.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					key TEXT PRIMARY KEY,
					data JSONB NOT NULL,
					created_at BIGINT NOT NULL,
					updated_at BIGINT NOT NULL
				)`, table))
				return err
			},
		})
	}
	return migrations
}
