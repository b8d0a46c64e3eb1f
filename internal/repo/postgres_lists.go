package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/zapdispatch/zapdispatch/internal/model"
)

type PostgresSavedListRepo struct {
	db *sql.DB
}

func NewPostgresSavedListRepo(db *sql.DB) *PostgresSavedListRepo {
	return &PostgresSavedListRepo{db: db}
}

func (r *PostgresSavedListRepo) List(ctx context.Context, accountID string, kind model.RecipientKind) ([]model.SavedList, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, name, kind, recipients, created_at, updated_at
		FROM saved_lists
		WHERE account_id = $1 AND kind = $2
		ORDER BY name ASC
	`, accountID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SavedList
	for rows.Next() {
		var l model.SavedList
		var kindStr, recipients string
		if err := rows.Scan(&l.ID, &l.AccountID, &l.Name, &kindStr, &recipients, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.Kind = model.RecipientKind(kindStr)
		if recipients != "" {
			l.Recipients = strings.Split(recipients, ",")
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PostgresSavedListRepo) Create(ctx context.Context, list model.SavedList) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO saved_lists (id, account_id, name, kind, recipients, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
	`, list.ID, list.AccountID, list.Name, string(list.Kind), strings.Join(list.Recipients, ","))
	return err
}

func (r *PostgresSavedListRepo) Update(ctx context.Context, list model.SavedList) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE saved_lists
		SET name = $3, recipients = $4, updated_at = now()
		WHERE account_id = $1 AND id = $2
	`, list.AccountID, list.ID, list.Name, strings.Join(list.Recipients, ","))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresSavedListRepo) Delete(ctx context.Context, accountID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM saved_lists WHERE account_id = $1 AND id = $2
	`, accountID, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
