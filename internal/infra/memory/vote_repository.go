package memory

import (
	"context"
	"sync"

	"governance_reminder_bot/internal/domain/reminder"
)

type VoteRepository struct {
	mu    sync.RWMutex
	voted map[reminder.JobKey]struct{}
}

func NewVoteRepository() *VoteRepository {
	return &VoteRepository{voted: make(map[reminder.JobKey]struct{})}
}

func (r *VoteRepository) MarkVoted(_ context.Context, key reminder.JobKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.voted[key] = struct{}{}
	return nil
}

func (r *VoteRepository) ClearVote(_ context.Context, key reminder.JobKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.voted, key)
	return nil
}

func (r *VoteRepository) HasVoted(_ context.Context, key reminder.JobKey) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.voted[key]
	return ok, nil
}
