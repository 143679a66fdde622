package watcher

import (
	"context"
	"fmt"

	"governance_reminder_bot/internal/domain/proposal"
	"governance_reminder_bot/internal/infra/snapshot"
)

const defaultSnapshotFetchLimit = 3

type SnapshotClient interface {
	LatestProposals(ctx context.Context, space string, first int) ([]snapshot.Proposal, error)
}

// SnapshotSource polls the newest proposals of one Snapshot space.
type SnapshotSource struct {
	client SnapshotClient
	space  string
	limit  int
}

func NewSnapshotSource(client SnapshotClient, space string, limit int) *SnapshotSource {
	if limit <= 0 {
		limit = defaultSnapshotFetchLimit
	}
	return &SnapshotSource{client: client, space: space, limit: limit}
}

func (s *SnapshotSource) Name() string { return "snapshot:" + s.space }

func (s *SnapshotSource) Kind() proposal.SourceKind { return proposal.SourceSnapshot }

// Fetch returns the latest proposals oldest first, so they are announced in
// creation order.
func (s *SnapshotSource) Fetch(ctx context.Context) ([]proposal.Proposal, error) {
	latest, err := s.client.LatestProposals(ctx, s.space, s.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", proposal.ErrSourcePoll, err)
	}

	out := make([]proposal.Proposal, 0, len(latest))
	for i := len(latest) - 1; i >= 0; i-- {
		sp := latest[i]
		out = append(out, proposal.Proposal{
			ID:         proposal.NamespacedID(proposal.SourceSnapshot, sp.ID),
			Source:     proposal.SourceSnapshot,
			ExternalID: sp.ID,
			Title:      sp.Title,
			Body:       sp.Body,
			Link:       snapshot.ProposalLink(s.space, sp.ID),
			Start:      sp.StartTime(),
			End:        sp.EndTime(),
		})
	}
	return out, nil
}
