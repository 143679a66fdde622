// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"errors"
	"fmt"

	"governance_reminder_bot/internal/domain/reminder"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// Telegram allows about 30 messages per second per bot.
const defaultSendRate = 25

// Sender is the part of *telebot.Bot the adapter needs.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelebotAdapter delivers reminders through the Telegram Bot API.
type TelebotAdapter struct {
	sender  Sender
	limiter *rate.Limiter
	logger  *logrus.Entry
}

func NewTelebotAdapter(sender Sender, perSecond int, logger *logrus.Entry) *TelebotAdapter {
	if perSecond <= 0 {
		perSecond = defaultSendRate
	}
	return &TelebotAdapter{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
		logger:  logger,
	}
}

// Send renders n and sends it to its recipient. Errors wrap
// reminder.ErrRecipientUnreachable or reminder.ErrTransientDelivery.
func (a *TelebotAdapter) Send(ctx context.Context, n reminder.Notice) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", reminder.ErrTransientDelivery, err)
	}

	opts := &telebot.SendOptions{
		ReplyMarkup:           Keyboard(n),
		ParseMode:             telebot.ModeHTML,
		DisableWebPagePreview: true,
	}
	_, err := a.sender.Send(telebot.ChatID(n.RecipientID), RenderText(n), opts)
	if err != nil {
		return classifySendError(err)
	}
	return nil
}

func classifySendError(err error) error {
	switch {
	case errors.Is(err, telebot.ErrBlockedByUser),
		errors.Is(err, telebot.ErrChatNotFound),
		errors.Is(err, telebot.ErrNotStartedByUser),
		errors.Is(err, telebot.ErrUserIsDeactivated),
		errors.Is(err, telebot.ErrKickedFromGroup),
		errors.Is(err, telebot.ErrKickedFromSuperGroup):
		return fmt.Errorf("%w: %w", reminder.ErrRecipientUnreachable, err)
	default:
		return fmt.Errorf("%w: %w", reminder.ErrTransientDelivery, err)
	}
}
