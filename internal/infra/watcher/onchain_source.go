package watcher

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"governance_reminder_bot/internal/domain/proposal"
	"governance_reminder_bot/internal/infra/chain"
)

const defaultBlockTime = 12 * time.Second

type ProposalPoller interface {
	Poll(ctx context.Context) ([]chain.ProposalInitialized, uint64, error)
}

type OnChainConfig struct {
	LinksBaseURL     string
	ChainPrefix      string
	FrontendContract string
	BlockTime        time.Duration
}

// OnChainSource turns ProposalInitialized events into proposals. Voting
// starts when the event is seen; the end is estimated from the remaining
// block count.
//
// The poller never reports an event twice, so proposals stay pending until
// the watcher acknowledges them and are returned again by every Fetch.
type OnChainSource struct {
	poller ProposalPoller
	cfg    OnChainConfig
	now    func() time.Time

	mu      sync.Mutex
	pending []proposal.Proposal
}

func NewOnChainSource(poller ProposalPoller, cfg OnChainConfig) *OnChainSource {
	if cfg.BlockTime <= 0 {
		cfg.BlockTime = defaultBlockTime
	}
	return &OnChainSource{poller: poller, cfg: cfg, now: time.Now}
}

func (s *OnChainSource) Name() string { return "onchain" }

func (s *OnChainSource) Kind() proposal.SourceKind { return proposal.SourceOnChain }

func (s *OnChainSource) Fetch(ctx context.Context) ([]proposal.Proposal, error) {
	events, head, err := s.poller.Poll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", proposal.ErrSourceSubscription, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[string]bool, len(s.pending))
	for _, p := range s.pending {
		known[p.ID] = true
	}
	now := s.now().UTC()
	for _, ev := range events {
		p := s.toProposal(ev, head, now)
		if known[p.ID] {
			continue
		}
		known[p.ID] = true
		s.pending = append(s.pending, p)
	}

	out := make([]proposal.Proposal, len(s.pending))
	copy(out, s.pending)
	return out, nil
}

// Ack drops id from the pending set.
func (s *OnChainSource) Ack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.pending {
		if p.ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// Pending is the number of proposals awaiting acknowledgement.
func (s *OnChainSource) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *OnChainSource) toProposal(ev chain.ProposalInitialized, head uint64, now time.Time) proposal.Proposal {
	remaining := int64(ev.VotingEndBlock) - int64(head)
	externalID := strconv.FormatUint(uint64(ev.ProposalID), 10)
	return proposal.Proposal{
		ID:         proposal.NamespacedID(proposal.SourceOnChain, externalID),
		Source:     proposal.SourceOnChain,
		ExternalID: externalID,
		Title:      "On-Chain Proposal " + externalID,
		Link:       s.link(externalID),
		Start:      now,
		End:        now.Add(time.Duration(remaining) * s.cfg.BlockTime),
	}
}

func (s *OnChainSource) link(id string) string {
	base := strings.TrimRight(s.cfg.LinksBaseURL, "/")
	return fmt.Sprintf("%s/proposals/%s?dao=%s:%s", base, id, s.cfg.ChainPrefix, s.cfg.FrontendContract)
}
