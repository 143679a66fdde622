// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"governance_reminder_bot/internal/app"
	"governance_reminder_bot/internal/domain/proposal"
	"governance_reminder_bot/internal/domain/recipient"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const maxStatusLines = 10

// CommandHandler serves the commands every chat may use.
type CommandHandler struct {
	reminders *app.ReminderService
	proposals proposal.Repository
	adminID   int64
	logger    *logrus.Entry
}

func NewCommandHandler(reminders *app.ReminderService, proposals proposal.Repository, adminID int64, baseLogger *logrus.Entry) *CommandHandler {
	return &CommandHandler{
		reminders: reminders,
		proposals: proposals,
		adminID:   adminID,
		logger:    baseLogger.WithField("handler_group", "start_help"),
	}
}

func RegisterBotCommands(ctx context.Context, b *telebot.Bot, h *CommandHandler) {
	htmlOpts := &telebot.SendOptions{ParseMode: telebot.ModeHTML}

	b.Handle("/start", func(c telebot.Context) error {
		username := ""
		if c.Sender() != nil {
			username = c.Sender().Username
		}
		return c.Send(h.Start(ctx, c.Chat().ID, username), htmlOpts)
	})
	b.Handle("/stop", func(c telebot.Context) error {
		return c.Send(h.Stop(ctx, c.Chat().ID), htmlOpts)
	})
	b.Handle("/help", func(c telebot.Context) error {
		return c.Send(h.Help(senderID(c)), htmlOpts)
	})
	b.Handle("/status", func(c telebot.Context) error {
		return c.Send(h.Status(ctx, c.Chat().ID), htmlOpts)
	})
}

func senderID(c telebot.Context) int64 {
	if c.Sender() == nil {
		return 0
	}
	return c.Sender().ID
}

// Start registers the chat and schedules every open proposal for it.
func (h *CommandHandler) Start(ctx context.Context, chatID int64, username string) string {
	logCtx := h.logger.WithFields(logrus.Fields{"command": "/start", "recipient_id": chatID})
	logCtx.Info("Processing /start command")

	created, scheduled, err := h.reminders.Subscribe(ctx, recipient.Recipient{ChatID: chatID, Username: username})
	if err != nil {
		logCtx.WithError(err).Error("Failed to register chat")
		return "Something went wrong while adding you to the reminder list. Please try again later."
	}
	logCtx.WithFields(logrus.Fields{"created": created, "jobs": scheduled}).Info("Chat registered")

	var b strings.Builder
	if created {
		b.WriteString("<b>You've been added to the reminder list</b> for DAO votes!")
	} else {
		b.WriteString("You are already on the reminder list.")
	}
	if scheduled > 0 {
		fmt.Fprintf(&b, "\n%d reminder(s) scheduled for proposals that are open right now.", scheduled)
	}
	return b.String()
}

// Stop unregisters the chat and cancels its reminders.
func (h *CommandHandler) Stop(ctx context.Context, chatID int64) string {
	logCtx := h.logger.WithFields(logrus.Fields{"command": "/stop", "recipient_id": chatID})
	logCtx.Info("Processing /stop command")

	cancelled, err := h.reminders.Unsubscribe(ctx, chatID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to unregister chat")
		return "Something went wrong while removing you from the reminder list. Please try again later."
	}
	return fmt.Sprintf("You've been removed from the reminder list. %d pending reminder(s) cancelled.", cancelled)
}

func (h *CommandHandler) Help(senderID int64) string {
	var b strings.Builder
	b.WriteString("I remind you to vote on DAO governance proposals.\n\n")
	b.WriteString("/start - get reminders for new and open proposals\n")
	b.WriteString("/stop - stop all reminders\n")
	b.WriteString("/status - show your upcoming reminders\n")
	b.WriteString("/help - show this message\n")
	if h.adminID != 0 && senderID == h.adminID {
		b.WriteString("\nAdmin:\n")
		b.WriteString("/testproposal - create a proposal that starts in 5 seconds and ends in 2 minutes\n")
		b.WriteString("/stats - show recipient and reminder counts\n")
	}
	b.WriteString("\nUse the buttons under a reminder to stop reminders for that vote or to be reminded later.")
	return b.String()
}

// Status lists the chat's next pending reminders.
func (h *CommandHandler) Status(ctx context.Context, chatID int64) string {
	jobs := h.reminders.Jobs().RecipientJobs(chatID)
	if len(jobs) == 0 {
		return "You have no pending reminders."
	}

	titles := make(map[string]string)
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%d pending reminder(s)</b>\n", len(jobs))
	for i, job := range jobs {
		if i == maxStatusLines {
			fmt.Fprintf(&b, "… and %d more", len(jobs)-maxStatusLines)
			break
		}
		title, ok := titles[job.Key.ProposalID]
		if !ok {
			title = job.Key.ProposalID
			if p, err := h.proposals.GetByID(ctx, job.Key.ProposalID); err == nil && p.Title != "" {
				title = p.Title
			}
			titles[job.Key.ProposalID] = title
		}
		fmt.Fprintf(&b, "%s UTC - %s\n", job.FireAt.UTC().Format(time.DateTime), html.EscapeString(title))
	}
	return strings.TrimRight(b.String(), "\n")
}
