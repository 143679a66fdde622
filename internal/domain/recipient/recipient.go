package recipient

import (
	"time"
)

// Recipient is a chat that opted in to vote reminders.
type Recipient struct {
	ChatID    int64
	Username  string // informational only
	CreatedAt time.Time
}
