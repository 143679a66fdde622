package telegram

import (
	"context"
	"errors"
	"fmt"

	"governance_reminder_bot/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// AdminHandler serves the operator commands.
type AdminHandler struct {
	admin  *app.AdminService
	logger *logrus.Entry
}

func NewAdminHandler(admin *app.AdminService, baseLogger *logrus.Entry) *AdminHandler {
	return &AdminHandler{admin: admin, logger: baseLogger.WithField("handler_group", "admin")}
}

// RegisterAdminHandlers registers handlers for admin commands.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, h *AdminHandler) {
	b.Handle("/testproposal", func(c telebot.Context) error {
		return c.Send(h.TestProposal(ctx, senderID(c)), &telebot.SendOptions{ParseMode: telebot.ModeHTML})
	})
	b.Handle("/stats", func(c telebot.Context) error {
		return c.Send(h.Stats(senderID(c)))
	})
}

func (h *AdminHandler) TestProposal(ctx context.Context, performingID int64) string {
	handlerLogger := h.logger.WithFields(logrus.Fields{
		"handler":   "/testproposal",
		"sender_id": performingID,
	})
	handlerLogger.Info("Command received")

	p, scheduled, err := h.admin.CreateTestProposal(ctx, performingID)
	if err != nil {
		if errors.Is(err, app.ErrAdminNotAuthorized) {
			handlerLogger.Warn("Unauthorized access attempt")
			return "Error: you are not allowed to run this command."
		}
		handlerLogger.WithError(err).Error("Failed to create test proposal")
		return fmt.Sprintf("Failed to create test proposal: %s", err.Error())
	}

	handlerLogger.WithFields(logrus.Fields{
		"proposal_id": p.ID,
		"jobs":        scheduled,
	}).Info("Test proposal created")
	return fmt.Sprintf("Test proposal <code>%s</code> created. %d reminder(s) scheduled; the first arrives in a few seconds.", p.ExternalID, scheduled)
}

func (h *AdminHandler) Stats(performingID int64) string {
	stats, err := h.admin.Stats(performingID)
	if err != nil {
		if errors.Is(err, app.ErrAdminNotAuthorized) {
			h.logger.WithField("sender_id", performingID).Warn("Unauthorized access attempt")
			return "Error: you are not allowed to run this command."
		}
		return fmt.Sprintf("Failed to read stats: %s", err.Error())
	}
	return fmt.Sprintf("Recipients: %d\nPending reminders: %d", stats.Recipients, stats.PendingJobs)
}
