// internal/domain/reminder/repository.go
package reminder

import "context"

// VoteRepository records which recipients confirmed voting on which proposal.
type VoteRepository interface {
	MarkVoted(ctx context.Context, key JobKey) error
	ClearVote(ctx context.Context, key JobKey) error
	HasVoted(ctx context.Context, key JobKey) (bool, error)
}
