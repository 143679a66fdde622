package memory

import (
	"context"
	"sort"
	"sync"

	"governance_reminder_bot/internal/domain/recipient"
)

type RecipientRepository struct {
	mu     sync.Mutex
	byChat map[int64]recipient.Recipient
}

func NewRecipientRepository() *RecipientRepository {
	return &RecipientRepository{byChat: make(map[int64]recipient.Recipient)}
}

func (r *RecipientRepository) Create(_ context.Context, rec *recipient.Recipient) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byChat[rec.ChatID]; ok {
		return false, nil
	}
	r.byChat[rec.ChatID] = *rec
	return true, nil
}

func (r *RecipientRepository) Delete(_ context.Context, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byChat[chatID]; !ok {
		return recipient.ErrNotFound
	}
	delete(r.byChat, chatID)
	return nil
}

func (r *RecipientRepository) ListAll(_ context.Context) ([]*recipient.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]*recipient.Recipient, 0, len(r.byChat))
	for _, rec := range r.byChat {
		rec := rec
		list = append(list, &rec)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ChatID < list[j].ChatID })
	return list, nil
}
