package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gomind-contrib/llmgateway/internal/domain"
)

// PostgresRepository is the storage.backend=postgres Repository
// implementation, grounded on the teacher's Store{pool, cfg} +
// functional-options shape. Every entity type gets its own table of the
// uniform {key TEXT PRIMARY KEY, data JSONB, created_at, updated_at}
// shape, so a new domain type only needs a table name to be durable.
type PostgresRepository[T Entity] struct {
	pool  *pgxpool.Pool
	table string
	cfg   pgRepoConfig
	new   func() T
}

type pgRepoConfig struct {
	schema string
}

// Option configures a PostgresRepository.
type Option func(*pgRepoConfig)

// WithSchema sets a non-default Postgres schema for the table.
func WithSchema(schema string) Option {
	return func(c *pgRepoConfig) { c.schema = schema }
}

// NewPostgresRepository constructs a repository over table for entity
// type T. newFn must return a fresh *zero-value* T (e.g. `func() *Model {
// return &Model{} }`) so Get/List have somewhere to unmarshal into.
func NewPostgresRepository[T Entity](pool *pgxpool.Pool, table string, newFn func() T, opts ...Option) *PostgresRepository[T] {
	var cfg pgRepoConfig
	for _, o := range opts {
		o(&cfg)
	}
	return &PostgresRepository[T]{pool: pool, table: table, cfg: cfg, new: newFn}
}

func (r *PostgresRepository[T]) qualifiedTable() string {
	if r.cfg.schema != "" {
		return fmt.Sprintf("%s.%s", r.cfg.schema, r.table)
	}
	return r.table
}

// Init creates the table backing this repository. Safe to call
// multiple times.
func (r *PostgresRepository[T]) Init(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		data JSONB NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`, r.qualifiedTable())
	if _, err := r.pool.Exec(ctx, stmt); err != nil {
		return domain.NewStorageError(r.table+".init", err)
	}
	return nil
}

func (r *PostgresRepository[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T
	var data []byte
	err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE key = $1`, r.qualifiedTable()), key,
	).Scan(&data)
	if err == pgx.ErrNoRows {
		return zero, domain.NewNotFoundError(r.table+".get", "not found: "+key)
	}
	if err != nil {
		return zero, domain.NewStorageError(r.table+".get", err)
	}
	entity := r.new()
	if err := json.Unmarshal(data, entity); err != nil {
		return zero, domain.NewStorageError(r.table+".get", err)
	}
	return entity, nil
}

func (r *PostgresRepository[T]) List(ctx context.Context, filter Filter) ([]T, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT data FROM %s ORDER BY created_at`, r.qualifiedTable()))
	if err != nil {
		return nil, domain.NewStorageError(r.table+".list", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, domain.NewStorageError(r.table+".list", err)
		}
		entity := r.new()
		if err := json.Unmarshal(data, entity); err != nil {
			return nil, domain.NewStorageError(r.table+".list", err)
		}
		if matchesFilter(entity, filter) {
			out = append(out, entity)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError(r.table+".list", err)
	}
	return out, nil
}

func (r *PostgresRepository[T]) Save(ctx context.Context, entity T) error {
	key := entity.Key()
	if err := domain.ValidateID(r.table, key); err != nil {
		return err
	}
	data, err := json.Marshal(entity)
	if err != nil {
		return domain.NewStorageError(r.table+".save", err)
	}
	now := time.Now().Unix()
	_, err = r.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (key, data, created_at, updated_at)
		 VALUES ($1, $2::jsonb, $3, $3)
		 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = $3`, r.qualifiedTable()),
		key, data, now)
	if err != nil {
		return domain.NewStorageError(r.table+".save", err)
	}
	return nil
}

func (r *PostgresRepository[T]) Delete(ctx context.Context, key string) error {
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, r.qualifiedTable()), key)
	if err != nil {
		return domain.NewStorageError(r.table+".delete", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError(r.table+".delete", "not found: "+key)
	}
	return nil
}
