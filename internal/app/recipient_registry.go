// internal/app/recipient_registry.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"governance_reminder_bot/internal/domain/recipient"

	"github.com/sirupsen/logrus"
)

// RecipientRegistry is the in-memory view of registered chats, written
// through to the repository. Readers never see a half-applied change.
type RecipientRegistry struct {
	repo   recipient.Repository
	logger *logrus.Entry

	writeMu sync.Mutex // serializes repository writes with their map update
	mu      sync.RWMutex
	byChat  map[int64]recipient.Recipient
}

func NewRecipientRegistry(repo recipient.Repository, logger *logrus.Entry) *RecipientRegistry {
	return &RecipientRegistry{
		repo:   repo,
		logger: logger,
		byChat: make(map[int64]recipient.Recipient),
	}
}

// Load replaces the in-memory set with the repository contents.
func (r *RecipientRegistry) Load(ctx context.Context) error {
	all, err := r.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load recipients: %w", err)
	}
	byChat := make(map[int64]recipient.Recipient, len(all))
	for _, rec := range all {
		byChat[rec.ChatID] = *rec
	}
	r.mu.Lock()
	r.byChat = byChat
	r.mu.Unlock()
	r.logger.WithField("recipients", len(byChat)).Info("Recipients loaded")
	return nil
}

// Register adds a chat. It returns false when the chat was already registered.
func (r *RecipientRegistry) Register(ctx context.Context, rec recipient.Recipient) (bool, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.IsRegistered(rec.ChatID) {
		return false, nil
	}
	if _, err := r.repo.Create(ctx, &rec); err != nil {
		return false, fmt.Errorf("failed to register chat %d: %w", rec.ChatID, err)
	}

	r.mu.Lock()
	r.byChat[rec.ChatID] = rec
	r.mu.Unlock()
	return true, nil
}

// Unregister removes a chat. It returns false when the chat was not registered.
func (r *RecipientRegistry) Unregister(ctx context.Context, chatID int64) (bool, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if !r.IsRegistered(chatID) {
		return false, nil
	}
	if err := r.repo.Delete(ctx, chatID); err != nil && !errors.Is(err, recipient.ErrNotFound) {
		return false, fmt.Errorf("failed to unregister chat %d: %w", chatID, err)
	}

	r.mu.Lock()
	delete(r.byChat, chatID)
	r.mu.Unlock()
	return true, nil
}

func (r *RecipientRegistry) IsRegistered(chatID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byChat[chatID]
	return ok
}

// List returns a copy of the registered recipients ordered by chat id.
func (r *RecipientRegistry) List() []recipient.Recipient {
	r.mu.RLock()
	list := make([]recipient.Recipient, 0, len(r.byChat))
	for _, rec := range r.byChat {
		list = append(list, rec)
	}
	r.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ChatID < list[j].ChatID })
	return list
}

func (r *RecipientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byChat)
}
