package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zapdispatch/zapdispatch/internal/model"
)

type PostgresMessageRepo struct {
	db *sql.DB
}

func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

const messageColumns = `
	id, account_id, recipient_kind, recipient, group_name, message_text,
	asset_path, filename, media_kind, status, attempts, ordering_index,
	remote_msg_id, error_message, sent_at, created_at, updated_at`

func (r *PostgresMessageRepo) Enqueue(ctx context.Context, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (
				id, account_id, recipient_kind, recipient, group_name,
				message_text, asset_path, filename, media_kind, status,
				attempts, ordering_index, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'queued', 0, $10, now(), now())
		`, m.ID, m.AccountID, m.RecipientKind, m.Recipient, m.GroupName,
			m.Text, m.AssetPath, m.Filename, m.MediaKind, m.OrderingIndex,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PostgresMessageRepo) ListQueued(ctx context.Context, accountID string) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE account_id = $1 AND status = 'queued'
		ORDER BY created_at ASC, ordering_index ASC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *PostgresMessageRepo) ListFailed(ctx context.Context, accountID string, maxAttempts int) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE account_id = $1 AND status = 'failed' AND attempts < $2
		ORDER BY created_at ASC, ordering_index ASC
	`, accountID, maxAttempts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *PostgresMessageRepo) List(ctx context.Context, accountID string, status model.Status, limit, offset int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE account_id = $1`
	args := []any{accountID}

	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *PostgresMessageRepo) MarkSending(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = 'sending',
		    attempts = attempts + 1,
		    updated_at = now()
		WHERE id = $1 AND status NOT IN ('sent', 'permanently_failed')
	`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresMessageRepo) MarkSent(ctx context.Context, id string, remoteMsgID string, sentAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = 'sent',
		    sent_at = $2,
		    remote_msg_id = NULLIF($3, ''),
		    error_message = NULL,
		    updated_at = now()
		WHERE id = $1 AND status NOT IN ('sent', 'permanently_failed')
	`, id, sentAt.UTC(), remoteMsgID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresMessageRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = 'failed',
		    error_message = $2,
		    updated_at = now()
		WHERE id = $1 AND status NOT IN ('sent', 'permanently_failed')
	`, id, reason)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresMessageRepo) MarkPermanentlyFailed(ctx context.Context, id string, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = 'permanently_failed',
		    error_message = $2,
		    updated_at = now()
		WHERE id = $1 AND status NOT IN ('sent', 'permanently_failed')
	`, id, reason)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresMessageRepo) PauseSending(ctx context.Context, accountID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = 'paused', updated_at = now()
		WHERE account_id = $1 AND status = 'sending'
	`, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresMessageRepo) RequeueFailed(ctx context.Context, accountID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = 'queued',
		    attempts = 0,
		    error_message = NULL,
		    updated_at = now()
		WHERE account_id = $1 AND status IN ('failed', 'permanently_failed', 'paused')
	`, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresMessageRepo) DeleteByStatus(ctx context.Context, accountID string, status model.Status) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE account_id = $1 AND status = $2
	`, accountID, string(status))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresMessageRepo) CountByStatus(ctx context.Context, accountID string) (map[model.Status]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, count(*)
		FROM messages
		WHERE account_id = $1
		GROUP BY status
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.Status(status)] = n
	}
	return counts, rows.Err()
}

func (r *PostgresMessageRepo) ListSentAssetsBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT asset_path
		FROM messages
		WHERE status = 'sent' AND asset_path <> '' AND sent_at < $1
		ORDER BY sent_at ASC
		LIMIT $2
	`, cutoff.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func scanMessages(rows *sql.Rows) ([]model.Message, error) {
	var out []model.Message
	for rows.Next() {
		var m model.Message
		var kind, media, status string
		var remoteID, errMsg sql.NullString
		var sentAt sql.NullTime

		if err := rows.Scan(
			&m.ID,
			&m.AccountID,
			&kind,
			&m.Recipient,
			&m.GroupName,
			&m.Text,
			&m.AssetPath,
			&m.Filename,
			&media,
			&status,
			&m.Attempts,
			&m.OrderingIndex,
			&remoteID,
			&errMsg,
			&sentAt,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, err
		}

		m.RecipientKind = model.RecipientKind(kind)
		m.MediaKind = model.MediaKind(media)
		m.Status = model.Status(status)

		if remoteID.Valid {
			s := remoteID.String
			m.RemoteMsgID = &s
		}
		if errMsg.Valid {
			s := errMsg.String
			m.ErrorMessage = &s
		}
		if sentAt.Valid {
			t := sentAt.Time
			m.SentAt = &t
		}

		out = append(out, m)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
