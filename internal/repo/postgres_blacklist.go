package repo

import (
	"context"
	"database/sql"

	"github.com/zapdispatch/zapdispatch/internal/model"
)

type PostgresBlacklistRepo struct {
	db *sql.DB
}

func NewPostgresBlacklistRepo(db *sql.DB) *PostgresBlacklistRepo {
	return &PostgresBlacklistRepo{db: db}
}

func (r *PostgresBlacklistRepo) ListBlocked(ctx context.Context, accountID string) ([]model.BlacklistEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, phone, number_ids, reason, created_at
		FROM blacklist
		WHERE account_id = $1
		ORDER BY created_at ASC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BlacklistEntry
	for rows.Next() {
		var e model.BlacklistEntry
		var numberIDs, reason sql.NullString
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Phone, &numberIDs, &reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.NumberIDs = numberIDs.String
		e.Reason = reason.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresBlacklistRepo) Add(ctx context.Context, entry model.BlacklistEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO blacklist (id, account_id, phone, number_ids, reason, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), now())
	`, entry.ID, entry.AccountID, entry.Phone, entry.NumberIDs, entry.Reason)
	return err
}

func (r *PostgresBlacklistRepo) Delete(ctx context.Context, accountID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM blacklist WHERE account_id = $1 AND id = $2
	`, accountID, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
