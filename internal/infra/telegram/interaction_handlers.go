package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"governance_reminder_bot/internal/app"
	"governance_reminder_bot/internal/domain/proposal"
	"governance_reminder_bot/internal/domain/reminder"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const callbackTimeout = 10 * time.Second

// InteractionHandler turns reminder button presses into job store changes.
type InteractionHandler struct {
	interactions *app.InteractionService
	logger       *logrus.Entry
}

func NewInteractionHandler(interactions *app.InteractionService, baseLogger *logrus.Entry) *InteractionHandler {
	return &InteractionHandler{
		interactions: interactions,
		logger:       baseLogger.WithField("handler_group", "interactions"),
	}
}

// RegisterInteractionHandlers binds the reminder buttons to h.
func RegisterInteractionHandlers(ctx context.Context, b *telebot.Bot, h *InteractionHandler) {
	b.Handle(&telebot.InlineButton{Unique: uniqueVoted}, func(c telebot.Context) error {
		return h.respond(ctx, c, h.Voted)
	})
	b.Handle(&telebot.InlineButton{Unique: uniqueRemindIn}, func(c telebot.Context) error {
		return h.respond(ctx, c, h.RemindIn)
	})
}

type callbackFunc func(ctx context.Context, chatID int64, payload string) (reply string, alert string)

// respond answers the callback, removes the pressed keyboard and sends the
// reply. The keyboard goes even when there was nothing left to cancel.
func (h *InteractionHandler) respond(parent context.Context, c telebot.Context, fn callbackFunc) error {
	ctx, cancel := context.WithTimeout(parent, callbackTimeout)
	defer cancel()

	chatID := c.Chat().ID
	reply, alert := fn(ctx, chatID, c.Callback().Data)

	if err := c.Respond(&telebot.CallbackResponse{Text: alert}); err != nil {
		h.logger.WithError(err).WithField("recipient_id", chatID).Warn("Failed to answer callback")
	}
	if msg := c.Message(); msg != nil {
		if _, err := c.Bot().EditReplyMarkup(msg, nil); err != nil {
			h.logger.WithError(err).WithField("recipient_id", chatID).Debug("Could not remove reminder keyboard")
		}
	}
	if reply == "" {
		return nil
	}
	return c.Send(reply, &telebot.SendOptions{ParseMode: telebot.ModeHTML})
}

// Voted handles "I have already voted".
func (h *InteractionHandler) Voted(ctx context.Context, chatID int64, shortID string) (string, string) {
	log := h.logger.WithFields(logrus.Fields{"action": uniqueVoted, "recipient_id": chatID, "short_id": shortID})
	p, errText := h.resolve(ctx, log, shortID)
	if p == nil {
		return "", errText
	}

	key := reminder.JobKey{ProposalID: p.ID, RecipientID: chatID}
	if _, err := h.interactions.ConfirmVote(ctx, key); err != nil {
		log.WithError(err).Error("Vote confirmation partly failed")
	}
	return "<b>Thanks for voting!</b> No more reminders for this vote.", "Vote recorded"
}

// RemindIn handles "Remind me in N hour(s)".
func (h *InteractionHandler) RemindIn(ctx context.Context, chatID int64, payload string) (string, string) {
	log := h.logger.WithFields(logrus.Fields{"action": uniqueRemindIn, "recipient_id": chatID})
	shortID, hours, err := parseRemindIn(payload)
	if err != nil {
		log.WithError(err).Warn("Rejected callback")
		return "", "An error occurred. Please try again later."
	}
	log = log.WithField("short_id", shortID)

	p, errText := h.resolve(ctx, log, shortID)
	if p == nil {
		return "", errText
	}

	key := reminder.JobKey{ProposalID: p.ID, RecipientID: chatID}
	if _, err := h.interactions.RequestFollowup(ctx, key, hours); err != nil {
		if errors.Is(err, reminder.ErrInvalidFollowup) {
			return "", "That reminder interval is no longer offered."
		}
		log.WithError(err).Error("Failed to schedule follow-up")
		return "", "An error occurred. Please try again later."
	}
	return fmt.Sprintf("<b>Reminder set</b> for %s from now.", humanizeHours(hours)), "Reminder set"
}

func (h *InteractionHandler) resolve(ctx context.Context, log *logrus.Entry, shortID string) (*proposal.Proposal, string) {
	p, err := h.interactions.ResolveProposal(ctx, shortID)
	if err == nil {
		return p, ""
	}
	if errors.Is(err, proposal.ErrNotFound) {
		log.Warn("Unknown proposal short id")
		return nil, "This proposal is no longer tracked."
	}
	log.WithError(err).Error("Failed to resolve proposal")
	return nil, "An error occurred. Please try again later."
}
