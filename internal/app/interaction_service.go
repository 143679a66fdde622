// internal/app/interaction_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"governance_reminder_bot/internal/domain/proposal"
	"governance_reminder_bot/internal/domain/reminder"
	"governance_reminder_bot/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// InteractionService applies button presses to the job store.
type InteractionService struct {
	offsets   reminder.Offsets
	jobs      *JobStore
	votes     reminder.VoteRepository
	proposals proposal.Repository
	clock     Clock
	logger    *logrus.Entry
}

func NewInteractionService(
	offsets reminder.Offsets,
	jobs *JobStore,
	votes reminder.VoteRepository,
	proposals proposal.Repository,
	clock Clock,
	logger *logrus.Entry,
) *InteractionService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &InteractionService{
		offsets:   offsets,
		jobs:      jobs,
		votes:     votes,
		proposals: proposals,
		clock:     clock,
		logger:    logger,
	}
}

// ResolveProposal maps the short id carried in callback data to its proposal.
func (s *InteractionService) ResolveProposal(ctx context.Context, shortID string) (*proposal.Proposal, error) {
	return s.proposals.GetByShortID(ctx, shortID)
}

// ConfirmVote stops all reminders for key. Confirming twice is a no-op.
// The jobs are cancelled even when the vote could not be recorded.
func (s *InteractionService) ConfirmVote(ctx context.Context, key reminder.JobKey) (int, error) {
	log := s.logger.WithFields(logrus.Fields{
		"proposal_id":  key.ProposalID,
		"recipient_id": key.RecipientID,
	})

	markErr := s.votes.MarkVoted(ctx, key)

	cancelled := s.jobs.CancelAll(key)
	if cancelled > 0 {
		metrics.JobsCancelled.WithLabelValues("voted").Add(float64(cancelled))
	}
	log.WithField("cancelled", cancelled).Info("Vote confirmed")

	if markErr != nil {
		log.WithError(markErr).Error("Failed to record vote")
		return cancelled, fmt.Errorf("failed to record vote for %s: %w", key, markErr)
	}
	return cancelled, nil
}

// RequestFollowup replaces every pending reminder for key with a single one
// due hours from now.
func (s *InteractionService) RequestFollowup(ctx context.Context, key reminder.JobKey, hours float64) (time.Time, error) {
	log := s.logger.WithFields(logrus.Fields{
		"proposal_id":  key.ProposalID,
		"recipient_id": key.RecipientID,
		"hours":        hours,
	})
	if !s.offsets.AllowsFollowup(hours) {
		log.Warn("Follow-up interval not offered")
		return time.Time{}, fmt.Errorf("%v hours: %w", hours, reminder.ErrInvalidFollowup)
	}

	trigger := s.offsets.Followup(s.clock.Now(), hours)
	superseded := s.jobs.Replace(key, reminder.Job{
		Key:     key,
		FireAt:  trigger.At,
		Origin:  reminder.OriginFollowup,
		Trigger: trigger,
	})
	if superseded > 0 {
		metrics.JobsCancelled.WithLabelValues("replaced").Add(float64(superseded))
	}

	// Asking for another nudge withdraws an earlier "already voted".
	if err := s.votes.ClearVote(ctx, key); err != nil {
		log.WithError(err).Warn("Failed to clear vote mark")
	}

	log.WithFields(logrus.Fields{
		"fire_at":    trigger.At.Format(time.RFC3339),
		"superseded": superseded,
	}).Info("Follow-up reminder scheduled")
	return trigger.At, nil
}
