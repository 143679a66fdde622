package telegram

import (
	"errors"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"governance_reminder_bot/internal/domain/reminder"

	"gopkg.in/telebot.v3"
)

// Callback uniques. telebot routes "\f<unique>|<payload>" to the matching
// InlineButton endpoint and hands the handler only the payload.
const (
	uniqueVoted    = "voted"
	uniqueRemindIn = "remind_in"
)

var errMalformedCallback = errors.New("malformed callback data")

// RenderText builds the HTML body of a reminder.
func RenderText(n reminder.Notice) string {
	p := n.Proposal
	title := html.EscapeString(p.Title)
	if title == "" {
		title = html.EscapeString(p.ID)
	}

	var b strings.Builder
	switch n.Trigger.Kind {
	case reminder.TriggerFromStart:
		if n.Trigger.Hours == 0 {
			fmt.Fprintf(&b, "Voting has started for proposal '<b>%s</b>'. Don't forget to vote!", title)
		} else {
			fmt.Fprintf(&b, "Voting on proposal '<b>%s</b>' has been open for %s. Don't forget to vote!", title, humanizeHours(n.Trigger.Hours))
		}
	case reminder.TriggerBeforeEnd:
		fmt.Fprintf(&b, "%s left to vote on proposal '<b>%s</b>'. Don't miss out!", capitalize(humanizeHours(n.Trigger.Hours)), title)
	default:
		fmt.Fprintf(&b, "Reminder: Time to vote on '<b>%s</b>'!", title)
	}

	externalID := p.ExternalID
	if externalID == "" {
		externalID = p.ID
	}
	fmt.Fprintf(&b, "\n\nProposal ID: <code>%s</code>", html.EscapeString(externalID))
	if p.Link != "" {
		fmt.Fprintf(&b, "\n<a href=\"%s\">View Proposal</a>", html.EscapeString(p.Link))
	}
	return b.String()
}

// Keyboard builds one button row per action. Callback data carries the
// proposal's short id, never the full id, to stay within Telegram's limit.
func Keyboard(n reminder.Notice) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	rows := make([]telebot.Row, 0, len(n.Actions))
	for _, a := range n.Actions {
		switch a.Kind {
		case reminder.ActionVoted:
			rows = append(rows, markup.Row(markup.Data("I have already voted", uniqueVoted, n.Proposal.ShortID)))
		case reminder.ActionRemindIn:
			h := formatHours(a.Hours)
			rows = append(rows, markup.Row(markup.Data(
				fmt.Sprintf("Remind me in %s hour(s)", h), uniqueRemindIn, n.Proposal.ShortID, h)))
		}
	}
	markup.Inline(rows...)
	return markup
}

// parseRemindIn splits a remind_in payload "<short>|<hours>".
func parseRemindIn(payload string) (string, float64, error) {
	parts := strings.Split(payload, "|")
	if len(parts) != 2 || parts[0] == "" {
		return "", 0, fmt.Errorf("%w: %q", errMalformedCallback, payload)
	}
	hours, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || hours <= 0 || math.IsInf(hours, 0) {
		return "", 0, fmt.Errorf("%w: bad hours in %q", errMalformedCallback, payload)
	}
	return parts[0], hours, nil
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

func humanizeHours(h float64) string {
	if h < 1 {
		minutes := int(math.Round(h * 60))
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if h == 1 {
		return "1 hour"
	}
	return formatHours(h) + " hours"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
