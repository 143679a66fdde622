package recipient

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("recipient not found")

// Repository defines the operations for persisting registered recipients.
type Repository interface {
	// Create stores r. It returns false without error when the chat is already registered.
	Create(ctx context.Context, r *Recipient) (bool, error)
	Delete(ctx context.Context, chatID int64) error
	ListAll(ctx context.Context) ([]*Recipient, error)
}
