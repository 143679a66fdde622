package telegram

import (
	"context"
	"strings"
	"testing"
	"time"

	"governance_reminder_bot/internal/app"
	"governance_reminder_bot/internal/domain/proposal"
	"governance_reminder_bot/internal/domain/reminder"
	"governance_reminder_bot/internal/infra/memory"
)

type discardDeliverer struct{}

func (discardDeliverer) Send(context.Context, reminder.Notice) error { return nil }

type botFixture struct {
	proposals *memory.ProposalRepository
	reminders *app.ReminderService
	commands  *CommandHandler
	buttons   *InteractionHandler
	admin     *AdminHandler
	shortID   string
}

const adminID = 99

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	offsets := reminder.Offsets{FromStart: []float64{0, 1}, BeforeEnd: []float64{24}, ButtonFollowup: []float64{1, 4}}
	proposals := memory.NewProposalRepository()
	votes := memory.NewVoteRepository()
	registry := app.NewRecipientRegistry(memory.NewRecipientRepository(), testLogger())
	reminders := app.NewReminderService(offsets, proposals, votes, registry, discardDeliverer{}, app.SystemClock{}, testLogger(), time.Second)
	t.Cleanup(func() { reminders.Jobs().Stop() })

	interactions := app.NewInteractionService(offsets, reminders.Jobs(), votes, proposals, app.SystemClock{}, testLogger())
	adminSvc := app.NewAdminService(reminders, reminders.Jobs(), registry, app.SystemClock{}, adminID)

	start := time.Now().Add(24 * time.Hour)
	p := proposal.Proposal{
		ID:         "snapshot:0xfeed",
		Source:     proposal.SourceSnapshot,
		ExternalID: "0xfeed",
		Title:      "Treasury <diversification>",
		Start:      start,
		End:        start.Add(72 * time.Hour),
	}
	if _, err := reminders.HandleNewProposal(context.Background(), p); err != nil {
		t.Fatalf("HandleNewProposal: %v", err)
	}
	stored, err := proposals.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	return &botFixture{
		proposals: proposals,
		reminders: reminders,
		commands:  NewCommandHandler(reminders, proposals, adminID, testLogger()),
		buttons:   NewInteractionHandler(interactions, testLogger()),
		admin:     NewAdminHandler(adminSvc, testLogger()),
		shortID:   stored.ShortID,
	}
}

func TestStartStatusStop(t *testing.T) {
	t.Parallel()
	f := newBotFixture(t)
	ctx := context.Background()

	reply := f.commands.Start(ctx, 10, "alice")
	if !strings.Contains(reply, "added to the reminder list") || !strings.Contains(reply, "3 reminder(s)") {
		t.Fatalf("Start reply = %q", reply)
	}
	if reply := f.commands.Start(ctx, 10, "alice"); !strings.Contains(reply, "already on the reminder list") {
		t.Fatalf("second Start reply = %q", reply)
	}

	status := f.commands.Status(ctx, 10)
	if !strings.Contains(status, "3 pending reminder(s)") || !strings.Contains(status, "Treasury &lt;diversification&gt;") {
		t.Fatalf("Status = %q", status)
	}

	if reply := f.commands.Stop(ctx, 10); !strings.Contains(reply, "3 pending reminder(s) cancelled") {
		t.Fatalf("Stop reply = %q", reply)
	}
	if status := f.commands.Status(ctx, 10); status != "You have no pending reminders." {
		t.Fatalf("Status after Stop = %q", status)
	}
}

func TestHelpShowsAdminCommandsToAdminOnly(t *testing.T) {
	t.Parallel()
	f := newBotFixture(t)
	if strings.Contains(f.commands.Help(1), "/testproposal") {
		t.Fatal("non-admin help lists admin commands")
	}
	if !strings.Contains(f.commands.Help(adminID), "/testproposal") {
		t.Fatal("admin help lacks /testproposal")
	}
}

func TestVotedButton(t *testing.T) {
	t.Parallel()
	f := newBotFixture(t)
	ctx := context.Background()
	f.commands.Start(ctx, 10, "")

	reply, alert := f.buttons.Voted(ctx, 10, f.shortID)
	if !strings.Contains(reply, "Thanks for voting") || alert == "" {
		t.Fatalf("Voted = %q, %q", reply, alert)
	}
	if jobs := f.reminders.Jobs().RecipientJobs(10); len(jobs) != 0 {
		t.Fatalf("jobs left after vote: %+v", jobs)
	}

	// Pressing an old button again is harmless.
	if reply, _ := f.buttons.Voted(ctx, 10, f.shortID); !strings.Contains(reply, "Thanks for voting") {
		t.Fatalf("second Voted reply = %q", reply)
	}

	reply, alert = f.buttons.Voted(ctx, 10, "unknown1")
	if reply != "" || !strings.Contains(alert, "no longer tracked") {
		t.Fatalf("Voted(unknown) = %q, %q", reply, alert)
	}
}

func TestRemindInButton(t *testing.T) {
	t.Parallel()
	f := newBotFixture(t)
	ctx := context.Background()
	f.commands.Start(ctx, 10, "")

	reply, _ := f.buttons.RemindIn(ctx, 10, f.shortID+"|4")
	if !strings.Contains(reply, "Reminder set</b> for 4 hours") {
		t.Fatalf("RemindIn reply = %q", reply)
	}
	jobs := f.reminders.Jobs().RecipientJobs(10)
	if len(jobs) != 1 || jobs[0].Origin != reminder.OriginFollowup {
		t.Fatalf("jobs after RemindIn = %+v", jobs)
	}

	reply, alert := f.buttons.RemindIn(ctx, 10, f.shortID+"|3")
	if reply != "" || !strings.Contains(alert, "no longer offered") {
		t.Fatalf("RemindIn(3h) = %q, %q", reply, alert)
	}
	reply, alert = f.buttons.RemindIn(ctx, 10, "garbage")
	if reply != "" || alert == "" {
		t.Fatalf("RemindIn(garbage) = %q, %q", reply, alert)
	}
}

func TestAdminCommands(t *testing.T) {
	t.Parallel()
	f := newBotFixture(t)
	ctx := context.Background()
	f.commands.Start(ctx, 10, "")

	if reply := f.admin.TestProposal(ctx, 10); !strings.Contains(reply, "not allowed") {
		t.Fatalf("non-admin TestProposal = %q", reply)
	}
	if reply := f.admin.TestProposal(ctx, adminID); !strings.Contains(reply, "test_proposal_id_") {
		t.Fatalf("TestProposal = %q", reply)
	}
	if reply := f.admin.Stats(adminID); !strings.Contains(reply, "Recipients: 1") {
		t.Fatalf("Stats = %q", reply)
	}
}
