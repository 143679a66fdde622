package app

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAdminServiceAuthorization(t *testing.T) {
	t.Parallel()
	h := newHarness(t, tStart)

	tests := []struct {
		name      string
		adminID   int64
		performer int64
		wantErr   error
	}{
		{name: "admin", adminID: 42, performer: 42},
		{name: "other user", adminID: 42, performer: 7, wantErr: ErrAdminNotAuthorized},
		{name: "no admin configured", adminID: 0, performer: 0, wantErr: ErrAdminNotAuthorized},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			admin := NewAdminService(h.reminders, h.reminders.Jobs(), h.recipients, h.clock, tt.adminID)
			_, err := admin.Stats(tt.performer)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Stats err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateTestProposal(t *testing.T) {
	t.Parallel()
	h := newHarness(t, tStart)
	h.register(t, 1, 2)
	admin := NewAdminService(h.reminders, h.reminders.Jobs(), h.recipients, h.clock, 42)

	p, scheduled, err := admin.CreateTestProposal(context.Background(), 42)
	if err != nil {
		t.Fatalf("CreateTestProposal: %v", err)
	}
	// The before-end offsets lie in the past; the from-start ones remain.
	if scheduled != 6 {
		t.Fatalf("scheduled %d jobs, want 6", scheduled)
	}
	if got := p.End.Sub(p.Start); got != testProposalDuration-testProposalStartDelay {
		t.Fatalf("window = %v", got)
	}

	stats, err := admin.Stats(42)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Recipients != 2 || stats.PendingJobs != 6 {
		t.Fatalf("Stats = %+v", stats)
	}

	h.clock.Advance(10 * time.Second)
	if got := len(h.deliverer.Sent()); got != 2 {
		t.Fatalf("delivered %d test reminders, want 2", got)
	}

	if _, _, err := admin.CreateTestProposal(context.Background(), 7); !errors.Is(err, ErrAdminNotAuthorized) {
		t.Fatalf("non-admin err = %v", err)
	}
}
