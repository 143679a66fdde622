package database

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresSeenStore remembers proposal ids handed off by the watchers, so a
// restart does not re-announce them.
type PostgresSeenStore struct {
	db *sql.DB
}

func NewPostgresSeenStore(db *sql.DB) *PostgresSeenStore {
	return &PostgresSeenStore{db: db}
}

func (s *PostgresSeenStore) MarkSeen(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO seen_proposals (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		return false, fmt.Errorf("error marking proposal seen: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading affected rows: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresSeenStore) Forget(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM seen_proposals WHERE id = $1`, id); err != nil {
		return fmt.Errorf("error forgetting proposal: %w", err)
	}
	return nil
}
