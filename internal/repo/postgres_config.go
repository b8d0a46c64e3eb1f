package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/zapdispatch/zapdispatch/internal/model"
)

type PostgresConfigRepo struct {
	db *sql.DB
}

func NewPostgresConfigRepo(db *sql.DB) *PostgresConfigRepo {
	return &PostgresConfigRepo{db: db}
}

func (r *PostgresConfigRepo) GetPace(ctx context.Context, accountID string) (*model.PaceConfig, error) {
	var cfg model.PaceConfig
	var delayMin, delayMax, pauseDuration int64

	err := r.db.QueryRowContext(ctx, `
		SELECT account_id, instance_id, delay_min_ms, delay_max_ms,
		       pause_after, pause_duration_ms, updated_at
		FROM pace_config
		WHERE account_id = $1
	`, accountID).Scan(
		&cfg.AccountID,
		&cfg.InstanceID,
		&delayMin,
		&delayMax,
		&cfg.PauseAfter,
		&pauseDuration,
		&cfg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.DelayMin = time.Duration(delayMin) * time.Millisecond
	cfg.DelayMax = time.Duration(delayMax) * time.Millisecond
	cfg.PauseDuration = time.Duration(pauseDuration) * time.Millisecond
	return &cfg, nil
}

func (r *PostgresConfigRepo) UpsertPace(ctx context.Context, cfg model.PaceConfig) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pace_config (
			account_id, instance_id, delay_min_ms, delay_max_ms,
			pause_after, pause_duration_ms, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (account_id) DO UPDATE SET
			instance_id = EXCLUDED.instance_id,
			delay_min_ms = EXCLUDED.delay_min_ms,
			delay_max_ms = EXCLUDED.delay_max_ms,
			pause_after = EXCLUDED.pause_after,
			pause_duration_ms = EXCLUDED.pause_duration_ms,
			updated_at = now()
	`, cfg.AccountID, cfg.InstanceID,
		cfg.DelayMin.Milliseconds(), cfg.DelayMax.Milliseconds(),
		cfg.PauseAfter, cfg.PauseDuration.Milliseconds())
	return err
}
