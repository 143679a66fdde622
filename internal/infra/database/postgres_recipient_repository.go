package database

import (
	"context"
	"database/sql"
	"fmt"

	"governance_reminder_bot/internal/domain/recipient"
)

type PostgresRecipientRepository struct {
	db *sql.DB
}

func NewPostgresRecipientRepository(db *sql.DB) *PostgresRecipientRepository {
	return &PostgresRecipientRepository{db: db}
}

func (r *PostgresRecipientRepository) Create(ctx context.Context, rec *recipient.Recipient) (bool, error) {
	query := `INSERT INTO recipients (chat_id, username, created_at)
               VALUES ($1, $2, $3)
               ON CONFLICT (chat_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, rec.ChatID, rec.Username, rec.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("error creating recipient: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading affected rows: %w", err)
	}
	return affected == 1, nil
}

func (r *PostgresRecipientRepository) Delete(ctx context.Context, chatID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recipients WHERE chat_id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("error deleting recipient: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if affected == 0 {
		return recipient.ErrNotFound
	}
	return nil
}

func (r *PostgresRecipientRepository) ListAll(ctx context.Context) ([]*recipient.Recipient, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT chat_id, username, created_at FROM recipients ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("error listing recipients: %w", err)
	}
	defer rows.Close()

	recipients := make([]*recipient.Recipient, 0)
	for rows.Next() {
		rec := &recipient.Recipient{}
		if err := rows.Scan(&rec.ChatID, &rec.Username, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning recipient: %w", err)
		}
		recipients = append(recipients, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recipients: %w", err)
	}
	return recipients, nil
}
