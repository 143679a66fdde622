// Package memory provides process-local repositories, used when no database
// is configured and in tests. State is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"governance_reminder_bot/internal/domain/proposal"
)

type ProposalRepository struct {
	mu      sync.RWMutex
	byID    map[string]proposal.Proposal
	byShort map[string]string
}

func NewProposalRepository() *ProposalRepository {
	return &ProposalRepository{
		byID:    make(map[string]proposal.Proposal),
		byShort: make(map[string]string),
	}
}

func (r *ProposalRepository) Save(_ context.Context, p *proposal.Proposal) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byID[p.ID]; ok {
		*p = existing
		return false, nil
	}
	r.byID[p.ID] = *p
	r.byShort[p.ShortID] = p.ID
	return true, nil
}

func (r *ProposalRepository) GetByID(_ context.Context, id string) (*proposal.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, proposal.ErrNotFound
	}
	return &p, nil
}

func (r *ProposalRepository) GetByShortID(_ context.Context, shortID string) (*proposal.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byShort[shortID]
	if !ok {
		return nil, proposal.ErrNotFound
	}
	p := r.byID[id]
	return &p, nil
}

func (r *ProposalRepository) ListOpen(_ context.Context, now time.Time) ([]*proposal.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	open := make([]*proposal.Proposal, 0)
	for _, p := range r.byID {
		if p.OpenAt(now) {
			p := p
			open = append(open, &p)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].Start.Before(open[j].Start) })
	return open, nil
}
