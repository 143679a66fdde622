package app

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"governance_reminder_bot/internal/domain/proposal"
	"governance_reminder_bot/internal/domain/recipient"
	"governance_reminder_bot/internal/domain/reminder"
	"governance_reminder_bot/internal/infra/memory"

	"github.com/sirupsen/logrus"
)

var tStart = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func at(h float64) time.Time { return tStart.Add(reminder.Hours(h)) }

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// manualClock only runs timer callbacks from Advance.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newManualClock(now time.Time) *manualClock {
	return &manualClock{now: now}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward, running due callbacks in fire-time order.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *manualTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
	}
}

func (c *manualClock) AdvanceTo(t time.Time) {
	c.Advance(t.Sub(c.Now()))
}

type recordingDeliverer struct {
	mu      sync.Mutex
	notices []reminder.Notice
	err     error
}

func (d *recordingDeliverer) Send(_ context.Context, n reminder.Notice) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.notices = append(d.notices, n)
	return nil
}

func (d *recordingDeliverer) Sent() []reminder.Notice {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]reminder.Notice, len(d.notices))
	copy(out, d.notices)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Trigger.At.Before(out[j].Trigger.At) })
	return out
}

var testOffsets = reminder.Offsets{
	FromStart:      []float64{0, 1, 2},
	BeforeEnd:      []float64{24, 4},
	ButtonFollowup: []float64{1, 4},
}

type harness struct {
	clock        *manualClock
	proposals    *memory.ProposalRepository
	votes        *memory.VoteRepository
	recipients   *RecipientRegistry
	deliverer    *recordingDeliverer
	reminders    *ReminderService
	interactions *InteractionService
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()
	h := &harness{
		clock:     newManualClock(now),
		proposals: memory.NewProposalRepository(),
		votes:     memory.NewVoteRepository(),
		deliverer: &recordingDeliverer{},
	}
	h.recipients = NewRecipientRegistry(memory.NewRecipientRepository(), testLogger())
	h.reminders = NewReminderService(testOffsets, h.proposals, h.votes, h.recipients, h.deliverer, h.clock, testLogger(), time.Second)
	h.interactions = NewInteractionService(testOffsets, h.reminders.Jobs(), h.votes, h.proposals, h.clock, testLogger())
	t.Cleanup(func() { h.reminders.Jobs().Stop() })
	return h
}

func (h *harness) register(t *testing.T, chatIDs ...int64) {
	t.Helper()
	for _, id := range chatIDs {
		if _, err := h.recipients.Register(context.Background(), recipient.Recipient{ChatID: id}); err != nil {
			t.Fatalf("Register(%d): %v", id, err)
		}
	}
}

func testProposal(id string) proposal.Proposal {
	return proposal.Proposal{
		ID:         proposal.NamespacedID(proposal.SourceSnapshot, id),
		Source:     proposal.SourceSnapshot,
		ExternalID: id,
		Title:      "Proposal " + id,
		Start:      tStart,
		End:        at(48),
	}
}
