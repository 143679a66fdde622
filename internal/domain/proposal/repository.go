// internal/domain/proposal/repository.go
package proposal

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("proposal not found")

	// ErrSourcePoll marks a failed poll cycle of an off-chain source.
	ErrSourcePoll = errors.New("proposal source poll failed")
	// ErrSourceSubscription marks a failed read of an on-chain event subscription.
	ErrSourceSubscription = errors.New("proposal source subscription failed")
)

// Repository persists proposals for lookup by the reminder pipeline.
type Repository interface {
	// Save stores p unless a proposal with the same ID exists. When it exists,
	// p is overwritten with the stored row so callers see the original ShortID.
	Save(ctx context.Context, p *Proposal) (created bool, err error)
	GetByID(ctx context.Context, id string) (*Proposal, error)
	GetByShortID(ctx context.Context, shortID string) (*Proposal, error)
	// ListOpen returns proposals whose voting window ends after now.
	ListOpen(ctx context.Context, now time.Time) ([]*Proposal, error)
}

// SeenStore remembers which proposal ids a watcher has already handed off.
type SeenStore interface {
	// MarkSeen records id and reports whether it was new.
	MarkSeen(ctx context.Context, id string) (bool, error)
	// Forget drops id so the next poll hands it off again.
	Forget(ctx context.Context, id string) error
}

// Intake is the single entry point watchers use to hand off new proposals.
type Intake interface {
	HandleNewProposal(ctx context.Context, p Proposal) (int, error)
}
