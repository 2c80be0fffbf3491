package featureflags

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const upsertFlagSQL = `
	INSERT INTO feature_flags (key, value, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE SET
		value = EXCLUDED.value,
		updated_at = EXCLUDED.updated_at
	RETURNING updated_at
`

// PostgresRepository stores flag overrides in the feature_flags table.
// Values are kept as JSONB so any JSON scalar round-trips.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL feature flags repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Overrides returns every stored override keyed by flag.
func (r *PostgresRepository) Overrides(ctx context.Context) (map[string]*Flag, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value, updated_at FROM feature_flags ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("query flags: %w", err)
	}

	list, err := pgx.CollectRows(rows, scanFlag)
	if err != nil {
		return nil, fmt.Errorf("scan flags: %w", err)
	}

	flags := make(map[string]*Flag, len(list))
	for _, f := range list {
		flags[f.Key] = f
	}
	return flags, nil
}

// Upsert writes all flags in one transaction using a single batch.
// UpdatedAt comes from the database clock.
func (r *PostgresRepository) Upsert(ctx context.Context, flags []*Flag) error {
	batch := &pgx.Batch{}
	for _, flag := range flags {
		valueJSON, err := json.Marshal(flag.Value)
		if err != nil {
			return fmt.Errorf("encode flag %s: %w", flag.Key, err)
		}
		batch.Queue(upsertFlagSQL, flag.Key, valueJSON).QueryRow(func(row pgx.Row) error {
			return row.Scan(&flag.UpdatedAt)
		})
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

// Delete removes an override so the default value applies again.
func (r *PostgresRepository) Delete(ctx context.Context, key string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM feature_flags WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete flag %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFlagNotFound
	}
	return nil
}

func scanFlag(row pgx.CollectableRow) (*Flag, error) {
	var (
		flag      Flag
		valueJSON []byte
	)
	if err := row.Scan(&flag.Key, &valueJSON, &flag.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(valueJSON, &flag.Value); err != nil {
		return nil, fmt.Errorf("decode flag %s: %w", flag.Key, err)
	}
	return &flag, nil
}

var _ Repository = (*PostgresRepository)(nil)
