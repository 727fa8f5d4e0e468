package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gomind-contrib/llmgateway/internal/domain"
)

// Migration is a single idempotent schema change, identified by a
// monotonically increasing version.
type Migration struct {
	Version     int
	Description string
	Apply       func(ctx context.Context, pool *pgxpool.Pool) error
}

// Migrator tracks applied migrations in a _migrations bookkeeping table,
// grounded on the teacher's Store.Init pattern of idempotent
// CREATE-TABLE-IF-NOT-EXISTS statements, extended with a version ledger
// so repeated deploys never re-run a migration that already succeeded.
type Migrator struct {
	pool *pgxpool.Pool
}

func NewMigrator(pool *pgxpool.Pool) *Migrator {
	return &Migrator{pool: pool}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS _migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		installed_on BIGINT NOT NULL,
		success BOOLEAN NOT NULL
	)`)
	if err != nil {
		return domain.NewStorageError("migrations.ensure_table", err)
	}
	return nil
}

func (m *Migrator) isApplied(ctx context.Context, version int) (bool, error) {
	var success bool
	err := m.pool.QueryRow(ctx,
		`SELECT success FROM _migrations WHERE version = $1`, version,
	).Scan(&success)
	if err != nil {
		return false, nil
	}
	return success, nil
}

// Run applies every migration whose version is not yet recorded as
// successful, in ascending version order. Versions must be strictly
// increasing; Run returns an error otherwise since that indicates a
// misordered migration list rather than a runtime condition.
func (m *Migrator) Run(ctx context.Context, migrations []Migration) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	last := -1
	for _, mig := range migrations {
		if mig.Version <= last {
			return domain.NewValidationError("migrations.run", fmt.Sprintf("migration versions must strictly increase, got %d after %d", mig.Version, last))
		}
		last = mig.Version

		applied, err := m.isApplied(ctx, mig.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := mig.Apply(ctx, m.pool); err != nil {
			m.record(ctx, mig, false)
			return domain.NewStorageError("migrations.run", err)
		}
		if err := m.record(ctx, mig, true); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) record(ctx context.Context, mig Migration, success bool) error {
	_, err := m.pool.Exec(ctx,
		`INSERT INTO _migrations (version, description, installed_on, success)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (version) DO UPDATE SET description = EXCLUDED.description, installed_on = EXCLUDED.installed_on, success = EXCLUDED.success`,
		mig.Version, mig.Description, time.Now().Unix(), success)
	if err != nil {
		return domain.NewStorageError("migrations.record", err)
	}
	return nil
}
