package telegram

import (
	"context"
	"errors"
	"io"
	"testing"

	"governance_reminder_bot/internal/domain/reminder"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeSender struct {
	to   []telebot.Recipient
	text []string
	opts []*telebot.SendOptions
	err  error
}

func (f *fakeSender) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	f.to = append(f.to, to)
	f.text = append(f.text, what.(string))
	for _, o := range opts {
		if so, ok := o.(*telebot.SendOptions); ok {
			f.opts = append(f.opts, so)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &telebot.Message{}, nil
}

func TestTelebotAdapterSend(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	adapter := NewTelebotAdapter(sender, 100, testLogger())

	n := notice(reminder.TriggerBeforeEnd, 4)
	n.RecipientID = 4242
	if err := adapter.Send(context.Background(), n); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sender.to) != 1 || sender.to[0].Recipient() != "4242" {
		t.Fatalf("sent to %v", sender.to)
	}
	opts := sender.opts[0]
	if opts.ParseMode != telebot.ModeHTML || opts.ReplyMarkup == nil || len(opts.ReplyMarkup.InlineKeyboard) != 3 {
		t.Fatalf("options = %+v", opts)
	}
}

func TestTelebotAdapterClassifiesErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "blocked", err: telebot.ErrBlockedByUser, want: reminder.ErrRecipientUnreachable},
		{name: "chat gone", err: telebot.ErrChatNotFound, want: reminder.ErrRecipientUnreachable},
		{name: "network", err: errors.New("connection reset"), want: reminder.ErrTransientDelivery},
		{name: "server error", err: telebot.NewError(500, "Internal Server Error"), want: reminder.ErrTransientDelivery},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			adapter := NewTelebotAdapter(&fakeSender{err: tt.err}, 100, testLogger())
			err := adapter.Send(context.Background(), notice(reminder.TriggerFollowup, 1))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTelebotAdapterHonoursContext(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	adapter := NewTelebotAdapter(sender, 1, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The first token is available immediately; the second must wait.
	_ = adapter.Send(context.Background(), notice(reminder.TriggerFollowup, 1))
	err := adapter.Send(ctx, notice(reminder.TriggerFollowup, 1))
	if !errors.Is(err, reminder.ErrTransientDelivery) {
		t.Fatalf("err = %v, want ErrTransientDelivery", err)
	}
	if len(sender.to) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.to))
	}
}
