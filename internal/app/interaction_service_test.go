package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"governance_reminder_bot/internal/domain/recipient"
	"governance_reminder_bot/internal/domain/reminder"
)

func TestVoteConfirmationCancelsRemainingReminders(t *testing.T) {
	t.Parallel()
	h := newHarness(t, tStart.Add(-time.Minute))
	h.register(t, 1, 2)
	ctx := context.Background()
	key := reminder.JobKey{ProposalID: "snapshot:p1", RecipientID: 1}

	if _, err := h.reminders.HandleNewProposal(ctx, testProposal("p1")); err != nil {
		t.Fatalf("HandleNewProposal: %v", err)
	}
	h.clock.AdvanceTo(at(0.5))

	cancelled, err := h.interactions.ConfirmVote(ctx, key)
	if err != nil {
		t.Fatalf("ConfirmVote: %v", err)
	}
	if cancelled != 4 {
		t.Fatalf("cancelled %d jobs, want 4", cancelled)
	}
	if again, _ := h.interactions.ConfirmVote(ctx, key); again != 0 {
		t.Fatalf("second ConfirmVote cancelled %d jobs", again)
	}

	h.clock.AdvanceTo(at(48))
	perRecipient := map[int64]int{}
	for _, n := range h.deliverer.Sent() {
		perRecipient[n.RecipientID]++
	}
	if perRecipient[1] != 1 {
		t.Fatalf("voter received %d reminders, want only the one at start", perRecipient[1])
	}
	if perRecipient[2] != 5 {
		t.Fatalf("other recipient received %d reminders, want 5", perRecipient[2])
	}
}

func TestFollowupReplacesPendingReminders(t *testing.T) {
	t.Parallel()
	h := newHarness(t, tStart.Add(-time.Minute))
	h.register(t, 1)
	ctx := context.Background()
	key := reminder.JobKey{ProposalID: "snapshot:p1", RecipientID: 1}

	if _, err := h.reminders.HandleNewProposal(ctx, testProposal("p1")); err != nil {
		t.Fatalf("HandleNewProposal: %v", err)
	}
	h.clock.AdvanceTo(at(0.3))

	fireAt, err := h.interactions.RequestFollowup(ctx, key, 1)
	if err != nil {
		t.Fatalf("RequestFollowup: %v", err)
	}
	if !fireAt.Equal(at(1.3)) {
		t.Fatalf("follow-up at %v, want %v", fireAt, at(1.3))
	}
	snap := h.reminders.Jobs().Snapshot(key)
	if len(snap) != 1 || !snap[0].FireAt.Equal(at(1.3)) || snap[0].Origin != reminder.OriginFollowup {
		t.Fatalf("Snapshot = %+v, want exactly the follow-up", snap)
	}

	h.clock.AdvanceTo(at(48))
	sent := h.deliverer.Sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d reminders, want 2", len(sent))
	}
	if sent[1].Trigger.Kind != reminder.TriggerFollowup || !sent[1].Trigger.At.Equal(at(1.3)) {
		t.Fatalf("second reminder = %+v", sent[1].Trigger)
	}
}

func TestRepeatedStartKeepsFollowupAlone(t *testing.T) {
	t.Parallel()
	h := newHarness(t, tStart.Add(-time.Minute))
	h.register(t, 1)
	ctx := context.Background()
	key := reminder.JobKey{ProposalID: "snapshot:p1", RecipientID: 1}

	if _, err := h.reminders.HandleNewProposal(ctx, testProposal("p1")); err != nil {
		t.Fatalf("HandleNewProposal: %v", err)
	}
	h.clock.AdvanceTo(at(0.3))
	if _, err := h.interactions.RequestFollowup(ctx, key, 1); err != nil {
		t.Fatalf("RequestFollowup: %v", err)
	}

	created, scheduled, err := h.reminders.Subscribe(ctx, recipient.Recipient{ChatID: 1})
	if err != nil || created || scheduled != 0 {
		t.Fatalf("Subscribe = %v, %d, %v; want an existing chat with nothing scheduled", created, scheduled, err)
	}
	snap := h.reminders.Jobs().Snapshot(key)
	if len(snap) != 1 || snap[0].Origin != reminder.OriginFollowup || !snap[0].FireAt.Equal(at(1.3)) {
		t.Fatalf("Snapshot = %+v, want exactly the follow-up", snap)
	}
}

func TestFollowupAfterVoteClearsVote(t *testing.T) {
	t.Parallel()
	h := newHarness(t, tStart.Add(time.Hour))
	ctx := context.Background()
	key := reminder.JobKey{ProposalID: "snapshot:p1", RecipientID: 1}

	if _, err := h.interactions.ConfirmVote(ctx, key); err != nil {
		t.Fatalf("ConfirmVote: %v", err)
	}
	if _, err := h.interactions.RequestFollowup(ctx, key, 4); err != nil {
		t.Fatalf("RequestFollowup: %v", err)
	}
	if voted, _ := h.votes.HasVoted(ctx, key); voted {
		t.Fatal("vote mark survived a follow-up request")
	}
}

func TestFollowupRejectsUnofferedInterval(t *testing.T) {
	t.Parallel()
	h := newHarness(t, tStart)
	key := reminder.JobKey{ProposalID: "snapshot:p1", RecipientID: 1}

	_, err := h.interactions.RequestFollowup(context.Background(), key, 3)
	if !errors.Is(err, reminder.ErrInvalidFollowup) {
		t.Fatalf("err = %v, want ErrInvalidFollowup", err)
	}
	if got := h.reminders.Jobs().Len(); got != 0 {
		t.Fatalf("pending jobs = %d, want 0", got)
	}
}

func TestResolveProposal(t *testing.T) {
	t.Parallel()
	h := newHarness(t, tStart.Add(-time.Minute))
	ctx := context.Background()
	if _, err := h.reminders.HandleNewProposal(ctx, testProposal("p1")); err != nil {
		t.Fatalf("HandleNewProposal: %v", err)
	}
	stored, _ := h.proposals.GetByID(ctx, "snapshot:p1")

	got, err := h.interactions.ResolveProposal(ctx, stored.ShortID)
	if err != nil || got.ID != "snapshot:p1" {
		t.Fatalf("ResolveProposal = %+v, %v", got, err)
	}
}
