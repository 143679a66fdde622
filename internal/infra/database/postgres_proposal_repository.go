package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"governance_reminder_bot/internal/domain/proposal"
)

const proposalColumns = `id, source, external_id, short_id, title, body, link, start_at, end_at, created_at`

type PostgresProposalRepository struct {
	db *sql.DB
}

func NewPostgresProposalRepository(db *sql.DB) *PostgresProposalRepository {
	return &PostgresProposalRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (*proposal.Proposal, error) {
	p := &proposal.Proposal{}
	var source string
	err := row.Scan(&p.ID, &source, &p.ExternalID, &p.ShortID, &p.Title, &p.Body, &p.Link, &p.Start, &p.End, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Source = proposal.SourceKind(source)
	return p, nil
}

// Save inserts p unless a proposal with the same id exists, in which case p
// is overwritten with the stored row.
func (r *PostgresProposalRepository) Save(ctx context.Context, p *proposal.Proposal) (bool, error) {
	query := `INSERT INTO proposals (` + proposalColumns + `)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
               ON CONFLICT (id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		p.ID, string(p.Source), p.ExternalID, p.ShortID, p.Title, p.Body, p.Link,
		p.Start.UTC(), p.End.UTC(), p.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("error saving proposal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading affected rows: %w", err)
	}
	if affected == 1 {
		return true, nil
	}

	stored, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return false, err
	}
	*p = *stored
	return false, nil
}

func (r *PostgresProposalRepository) GetByID(ctx context.Context, id string) (*proposal.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1`
	p, err := scanProposal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, proposal.ErrNotFound
		}
		return nil, fmt.Errorf("error getting proposal by ID: %w", err)
	}
	return p, nil
}

func (r *PostgresProposalRepository) GetByShortID(ctx context.Context, shortID string) (*proposal.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE short_id = $1`
	p, err := scanProposal(r.db.QueryRowContext(ctx, query, shortID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, proposal.ErrNotFound
		}
		return nil, fmt.Errorf("error getting proposal by short ID: %w", err)
	}
	return p, nil
}

func (r *PostgresProposalRepository) ListOpen(ctx context.Context, now time.Time) ([]*proposal.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE end_at > $1 ORDER BY start_at`
	rows, err := r.db.QueryContext(ctx, query, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("error listing open proposals: %w", err)
	}
	defer rows.Close()

	proposals := make([]*proposal.Proposal, 0)
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning open proposal: %w", err)
		}
		proposals = append(proposals, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating open proposals: %w", err)
	}
	return proposals, nil
}
