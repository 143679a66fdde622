package database

import (
	"context"
	"database/sql"
	"fmt"

	"governance_reminder_bot/internal/domain/reminder"
)

type PostgresVoteRepository struct {
	db *sql.DB
}

func NewPostgresVoteRepository(db *sql.DB) *PostgresVoteRepository {
	return &PostgresVoteRepository{db: db}
}

func (r *PostgresVoteRepository) MarkVoted(ctx context.Context, key reminder.JobKey) error {
	query := `INSERT INTO votes (proposal_id, recipient_id)
               VALUES ($1, $2)
               ON CONFLICT (proposal_id, recipient_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, key.ProposalID, key.RecipientID); err != nil {
		return fmt.Errorf("error marking vote: %w", err)
	}
	return nil
}

func (r *PostgresVoteRepository) ClearVote(ctx context.Context, key reminder.JobKey) error {
	query := `DELETE FROM votes WHERE proposal_id = $1 AND recipient_id = $2`
	if _, err := r.db.ExecContext(ctx, query, key.ProposalID, key.RecipientID); err != nil {
		return fmt.Errorf("error clearing vote: %w", err)
	}
	return nil
}

func (r *PostgresVoteRepository) HasVoted(ctx context.Context, key reminder.JobKey) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM votes WHERE proposal_id = $1 AND recipient_id = $2)`
	var voted bool
	if err := r.db.QueryRowContext(ctx, query, key.ProposalID, key.RecipientID).Scan(&voted); err != nil {
		return false, fmt.Errorf("error reading vote: %w", err)
	}
	return voted, nil
}
