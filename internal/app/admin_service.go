package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"governance_reminder_bot/internal/domain/proposal"

	"github.com/google/uuid"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = errors.New("performing user is not authorized as an admin")

const (
	testProposalStartDelay = 5 * time.Second
	testProposalDuration   = 2 * time.Minute
)

// Stats is a point-in-time view of the scheduler for the admin.
type Stats struct {
	Recipients  int
	PendingJobs int
}

type AdminService struct {
	intake          proposal.Intake
	jobs            *JobStore
	recipients      *RecipientRegistry
	clock           Clock
	adminTelegramID int64
}

func NewAdminService(intake proposal.Intake, jobs *JobStore, recipients *RecipientRegistry, clock Clock, adminID int64) *AdminService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &AdminService{
		intake:          intake,
		jobs:            jobs,
		recipients:      recipients,
		clock:           clock,
		adminTelegramID: adminID,
	}
}

func (s *AdminService) authorize(performingAdminID int64) error {
	if s.adminTelegramID == 0 || performingAdminID != s.adminTelegramID {
		return ErrAdminNotAuthorized
	}
	return nil
}

// CreateTestProposal feeds a short synthetic proposal through the normal
// intake path so an operator can watch reminders arrive end to end.
func (s *AdminService) CreateTestProposal(ctx context.Context, performingAdminID int64) (*proposal.Proposal, int, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, 0, err
	}

	now := s.clock.Now()
	externalID := "test_proposal_id_" + uuid.NewString()
	p := proposal.Proposal{
		ID:         proposal.NamespacedID(proposal.SourceSnapshot, externalID),
		Source:     proposal.SourceSnapshot,
		ExternalID: externalID,
		Title:      "Test Proposal",
		Start:      now.Add(testProposalStartDelay),
		End:        now.Add(testProposalDuration),
	}
	scheduled, err := s.intake.HandleNewProposal(ctx, p)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to schedule test proposal: %w", err)
	}
	return &p, scheduled, nil
}

// Stats reports registered recipients and pending jobs.
func (s *AdminService) Stats(performingAdminID int64) (Stats, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return Stats{}, err
	}
	return Stats{
		Recipients:  s.recipients.Count(),
		PendingJobs: s.jobs.Len(),
	}, nil
}
