// internal/domain/reminder/delivery.go
package reminder

import (
	"context"
	"errors"

	"governance_reminder_bot/internal/domain/proposal"
)

var (
	// ErrTransientDelivery marks a single failed send. The firing is dropped.
	ErrTransientDelivery = errors.New("transient delivery error")
	// ErrRecipientUnreachable marks a recipient that can no longer be messaged
	// (bot blocked, chat deleted).
	ErrRecipientUnreachable = errors.New("recipient unreachable")
	// ErrInvalidFollowup is returned for follow-up hours not offered on the buttons.
	ErrInvalidFollowup = errors.New("follow-up interval is not configured")
)

// ActionKind identifies an interactive control attached to a reminder.
type ActionKind string

const (
	ActionVoted    ActionKind = "voted"
	ActionRemindIn ActionKind = "remind_in"
)

// Action is a button offered with a reminder.
type Action struct {
	Kind  ActionKind
	Hours float64 // only for ActionRemindIn
}

// Notice is everything a deliverer needs to render one reminder.
type Notice struct {
	RecipientID int64
	Proposal    proposal.Proposal
	Trigger     Trigger
	VoteStatus  VoteStatus
	Actions     []Action
}

// Deliverer sends a rendered reminder to a recipient.
type Deliverer interface {
	Send(ctx context.Context, n Notice) error
}

// Actions returns the controls offered with every reminder.
func (o Offsets) Actions() []Action {
	actions := make([]Action, 0, len(o.ButtonFollowup)+1)
	actions = append(actions, Action{Kind: ActionVoted})
	for _, h := range o.ButtonFollowup {
		actions = append(actions, Action{Kind: ActionRemindIn, Hours: h})
	}
	return actions
}
