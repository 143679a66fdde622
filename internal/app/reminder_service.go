// internal/app/reminder_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"governance_reminder_bot/internal/domain/proposal"
	"governance_reminder_bot/internal/domain/recipient"
	"governance_reminder_bot/internal/domain/reminder"
	"governance_reminder_bot/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultSendTimeout = 15 * time.Second
	shortIDLength      = 8
	shortIDAttempts    = 5
)

// ReminderService turns newly detected proposals into scheduled reminders and
// delivers them when they fire. It is the only writer of initial jobs.
type ReminderService struct {
	offsets     reminder.Offsets
	proposals   proposal.Repository
	votes       reminder.VoteRepository
	recipients  *RecipientRegistry
	deliverer   reminder.Deliverer
	clock       Clock
	jobs        *JobStore
	logger      *logrus.Entry
	sendTimeout time.Duration
}

func NewReminderService(
	offsets reminder.Offsets,
	proposals proposal.Repository,
	votes reminder.VoteRepository,
	recipients *RecipientRegistry,
	deliverer reminder.Deliverer,
	clock Clock,
	logger *logrus.Entry,
	sendTimeout time.Duration,
) *ReminderService {
	if clock == nil {
		clock = SystemClock{}
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	s := &ReminderService{
		offsets:     offsets,
		proposals:   proposals,
		votes:       votes,
		recipients:  recipients,
		deliverer:   deliverer,
		clock:       clock,
		logger:      logger,
		sendTimeout: sendTimeout,
	}
	s.jobs = NewJobStore(clock, s.deliver, logger.WithField("component", "job_store"))
	return s
}

// Jobs exposes the job store to the interaction handler and diagnostics.
func (s *ReminderService) Jobs() *JobStore {
	return s.jobs
}

// HandleNewProposal persists p and schedules its reminders for every
// registered recipient. It returns the number of jobs inserted.
func (s *ReminderService) HandleNewProposal(ctx context.Context, p proposal.Proposal) (int, error) {
	log := s.logger.WithFields(logrus.Fields{
		"proposal_id": p.ID,
		"source":      p.Source,
	})

	now := s.clock.Now()
	triggers, err := s.offsets.FireTimes(p.Start, p.End, now)
	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"error_kind": "InvalidProposalWindow",
			"start":      p.Start,
			"end":        p.End,
		}).Warn("Proposal excluded from scheduling")
		return 0, fmt.Errorf("proposal %s: %w", p.ID, err)
	}

	created, err := s.persist(ctx, &p)
	if err != nil {
		log.WithError(err).Error("Failed to store proposal")
		return 0, err
	}
	if !created {
		log.Info("Proposal already stored; scheduling is idempotent")
	}

	recipients := s.recipients.List()
	scheduled := 0
	for _, rec := range recipients {
		scheduled += s.scheduleFor(ctx, &p, rec.ChatID, triggers)
	}
	log.WithFields(logrus.Fields{
		"recipients": len(recipients),
		"triggers":   len(triggers),
		"jobs":       scheduled,
	}).Info("Reminders scheduled for new proposal")
	return scheduled, nil
}

// ScheduleForRecipient fans every still-open proposal out to one chat, used
// right after the chat registers.
func (s *ReminderService) ScheduleForRecipient(ctx context.Context, chatID int64) (int, error) {
	now := s.clock.Now()
	open, err := s.proposals.ListOpen(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list open proposals: %w", err)
	}
	scheduled := 0
	for _, p := range open {
		triggers, err := s.offsets.FireTimes(p.Start, p.End, now)
		if err != nil {
			continue
		}
		scheduled += s.scheduleFor(ctx, p, chatID, triggers)
	}
	s.logger.WithFields(logrus.Fields{
		"recipient_id":   chatID,
		"open_proposals": len(open),
		"jobs":           scheduled,
	}).Info("Open proposals scheduled for recipient")
	return scheduled, nil
}

// Restore re-creates the initial reminders of every open proposal after a
// process restart. Follow-up reminders do not survive restarts.
func (s *ReminderService) Restore(ctx context.Context) (int, error) {
	now := s.clock.Now()
	open, err := s.proposals.ListOpen(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list open proposals: %w", err)
	}
	recipients := s.recipients.List()
	scheduled := 0
	for _, p := range open {
		triggers, err := s.offsets.FireTimes(p.Start, p.End, now)
		if err != nil {
			continue
		}
		for _, rec := range recipients {
			scheduled += s.scheduleFor(ctx, p, rec.ChatID, triggers)
		}
	}
	s.logger.WithFields(logrus.Fields{
		"open_proposals": len(open),
		"recipients":     len(recipients),
		"jobs":           scheduled,
	}).Info("Reminders restored")
	return scheduled, nil
}

func (s *ReminderService) scheduleFor(ctx context.Context, p *proposal.Proposal, chatID int64, triggers []reminder.Trigger) int {
	key := reminder.JobKey{ProposalID: p.ID, RecipientID: chatID}
	voted, err := s.votes.HasVoted(ctx, key)
	if err != nil {
		s.logger.WithError(err).WithField("job_key", key.String()).Warn("Could not read vote status; scheduling anyway")
	}
	if voted {
		return 0
	}

	inserted := 0
	for _, tr := range triggers {
		if s.jobs.Insert(reminder.Job{Key: key, FireAt: tr.At, Origin: reminder.OriginInitial, Trigger: tr}) {
			inserted++
		}
	}
	return inserted
}

// persist stores p, giving it a short id that is unique among stored proposals.
func (s *ReminderService) persist(ctx context.Context, p *proposal.Proposal) (bool, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.clock.Now()
	}
	if p.ShortID == "" {
		for attempt := 0; attempt < shortIDAttempts; attempt++ {
			candidate := newShortID()
			existing, err := s.proposals.GetByShortID(ctx, candidate)
			if errors.Is(err, proposal.ErrNotFound) {
				p.ShortID = candidate
				break
			}
			if err != nil {
				return false, fmt.Errorf("failed to check short id: %w", err)
			}
			if existing.ID == p.ID {
				p.ShortID = candidate
				break
			}
		}
		if p.ShortID == "" {
			return false, fmt.Errorf("could not allocate a short id for proposal %s", p.ID)
		}
	}
	created, err := s.proposals.Save(ctx, p)
	if err != nil {
		return false, fmt.Errorf("failed to save proposal %s: %w", p.ID, err)
	}
	return created, nil
}

func newShortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:shortIDLength]
}

// deliver is the job store's fire callback. Failures are logged and the
// firing is dropped; nothing here may take the process down.
func (s *ReminderService) deliver(job reminder.Job) {
	log := s.logger.WithFields(logrus.Fields{
		"proposal_id":  job.Key.ProposalID,
		"recipient_id": job.Key.RecipientID,
		"fire_at":      job.FireAt.Format(time.RFC3339),
		"origin":       job.Origin,
	})
	defer func() {
		if r := recover(); r != nil {
			metrics.Deliveries.WithLabelValues("transient").Inc()
			log.WithFields(logrus.Fields{"panic": r, "stack": string(debug.Stack())}).Error("Panic while delivering reminder")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()

	if !s.recipients.IsRegistered(job.Key.RecipientID) {
		metrics.Deliveries.WithLabelValues("skipped").Inc()
		log.Info("Recipient no longer registered; reminder skipped")
		return
	}
	if voted, err := s.votes.HasVoted(ctx, job.Key); err == nil && voted {
		// The vote confirmation should have cancelled this job already.
		metrics.Deliveries.WithLabelValues("skipped").Inc()
		log.Error("Reminder fired for a recipient who already voted; not sending")
		return
	}

	p, err := s.proposals.GetByID(ctx, job.Key.ProposalID)
	if err != nil {
		metrics.Deliveries.WithLabelValues("transient").Inc()
		log.WithError(err).WithField("error_kind", "TransientDeliveryError").Error("Could not load proposal for reminder")
		return
	}

	err = s.deliverer.Send(ctx, reminder.Notice{
		RecipientID: job.Key.RecipientID,
		Proposal:    *p,
		Trigger:     job.Trigger,
		VoteStatus:  reminder.VoteStatusPending,
		Actions:     s.offsets.Actions(),
	})
	switch {
	case err == nil:
		metrics.Deliveries.WithLabelValues("ok").Inc()
		log.Info("Reminder delivered")
	case errors.Is(err, reminder.ErrRecipientUnreachable):
		metrics.Deliveries.WithLabelValues("unreachable").Inc()
		log.WithError(err).Warn("Recipient unreachable; unregistering")
		s.dropRecipient(ctx, job.Key.RecipientID)
	default:
		metrics.Deliveries.WithLabelValues("transient").Inc()
		log.WithError(err).WithField("error_kind", "TransientDeliveryError").Error("Reminder delivery failed; firing dropped")
	}
}

func (s *ReminderService) dropRecipient(ctx context.Context, chatID int64) {
	if _, err := s.Unsubscribe(ctx, chatID); err != nil {
		s.logger.WithError(err).WithField("recipient_id", chatID).Error("Failed to unregister unreachable recipient")
	}
}

// Subscribe registers a chat and schedules every open proposal for it.
// created is false when the chat was already registered; its jobs are then
// left as they are, so follow-ups that replaced initial reminders stand.
func (s *ReminderService) Subscribe(ctx context.Context, rec recipient.Recipient) (created bool, scheduled int, err error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock.Now()
	}
	created, err = s.recipients.Register(ctx, rec)
	if err != nil || !created {
		return created, 0, err
	}
	scheduled, err = s.ScheduleForRecipient(ctx, rec.ChatID)
	return created, scheduled, err
}

// Unsubscribe unregisters a chat and cancels all of its pending reminders.
func (s *ReminderService) Unsubscribe(ctx context.Context, chatID int64) (int, error) {
	if _, err := s.recipients.Unregister(ctx, chatID); err != nil {
		return 0, err
	}
	cancelled := s.jobs.CancelRecipient(chatID)
	if cancelled > 0 {
		metrics.JobsCancelled.WithLabelValues("unsubscribed").Add(float64(cancelled))
	}
	return cancelled, nil
}
