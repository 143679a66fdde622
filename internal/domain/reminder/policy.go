// internal/domain/reminder/policy.go
package reminder

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var ErrInvalidProposalWindow = errors.New("proposal end time is not after start time")

// TriggerKind tells which offset list produced a fire-time.
type TriggerKind string

const (
	TriggerFromStart TriggerKind = "from_start"
	TriggerBeforeEnd TriggerKind = "before_end"
	TriggerFollowup  TriggerKind = "followup"
)

// Trigger is an absolute fire-time together with the offset that produced it.
type Trigger struct {
	At    time.Time
	Kind  TriggerKind
	Hours float64
}

// Offsets holds the reminder offsets, in hours, read once at startup.
type Offsets struct {
	FromStart      []float64
	BeforeEnd      []float64
	ButtonFollowup []float64
}

// Validate rejects offsets that can never produce a sensible reminder.
func (o Offsets) Validate() error {
	for _, h := range o.FromStart {
		if h < 0 || math.IsNaN(h) || math.IsInf(h, 0) {
			return fmt.Errorf("invalid reminders_from_start offset %v", h)
		}
	}
	for _, h := range o.BeforeEnd {
		if h < 0 || math.IsNaN(h) || math.IsInf(h, 0) {
			return fmt.Errorf("invalid reminders_before_end offset %v", h)
		}
	}
	for _, h := range o.ButtonFollowup {
		if h <= 0 || math.IsNaN(h) || math.IsInf(h, 0) {
			return fmt.Errorf("invalid button_reminders offset %v", h)
		}
	}
	return nil
}

// FireTimes maps a proposal window onto absolute reminder times. Times at or
// before now are dropped; past reminders are never backfilled. Two offsets
// landing on the same instant yield a single trigger.
func (o Offsets) FireTimes(start, end, now time.Time) ([]Trigger, error) {
	if !end.After(start) {
		return nil, ErrInvalidProposalWindow
	}

	seen := make(map[int64]struct{}, len(o.FromStart)+len(o.BeforeEnd))
	triggers := make([]Trigger, 0, len(o.FromStart)+len(o.BeforeEnd))
	add := func(at time.Time, kind TriggerKind, hours float64) {
		if !at.After(now) {
			return
		}
		if _, dup := seen[at.UnixNano()]; dup {
			return
		}
		seen[at.UnixNano()] = struct{}{}
		triggers = append(triggers, Trigger{At: at, Kind: kind, Hours: hours})
	}

	for _, h := range o.FromStart {
		add(start.Add(Hours(h)), TriggerFromStart, h)
	}
	for _, h := range o.BeforeEnd {
		add(end.Add(-Hours(h)), TriggerBeforeEnd, h)
	}

	sort.SliceStable(triggers, func(i, j int) bool { return triggers[i].At.Before(triggers[j].At) })
	return triggers, nil
}

// Followup builds the trigger for a user-requested reminder.
func (o Offsets) Followup(now time.Time, hours float64) Trigger {
	return Trigger{At: now.Add(Hours(hours)), Kind: TriggerFollowup, Hours: hours}
}

// AllowsFollowup reports whether hours is one of the configured button offsets.
func (o Offsets) AllowsFollowup(hours float64) bool {
	for _, h := range o.ButtonFollowup {
		if math.Abs(h-hours) < 1e-9 {
			return true
		}
	}
	return false
}

// Hours converts a possibly fractional hour count to a duration.
func Hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
