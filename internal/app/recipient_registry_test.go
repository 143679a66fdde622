package app

import (
	"context"
	"testing"

	"governance_reminder_bot/internal/domain/recipient"
	"governance_reminder_bot/internal/infra/memory"
)

func TestRecipientRegistry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := memory.NewRecipientRepository()
	_, _ = repo.Create(ctx, &recipient.Recipient{ChatID: 3})

	reg := NewRecipientRegistry(repo, testLogger())
	if err := reg.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reg.IsRegistered(3) {
		t.Fatal("loaded recipient is not registered")
	}

	if ok, err := reg.Register(ctx, recipient.Recipient{ChatID: 1}); err != nil || !ok {
		t.Fatalf("Register = %v, %v", ok, err)
	}
	if ok, _ := reg.Register(ctx, recipient.Recipient{ChatID: 1}); ok {
		t.Fatal("duplicate Register returned true")
	}
	if list := reg.List(); len(list) != 2 || list[0].ChatID != 1 {
		t.Fatalf("List = %+v", list)
	}

	if ok, _ := reg.Unregister(ctx, 99); ok {
		t.Fatal("Unregister of unknown chat returned true")
	}
	if ok, err := reg.Unregister(ctx, 3); err != nil || !ok {
		t.Fatalf("Unregister = %v, %v", ok, err)
	}
	stored, _ := repo.ListAll(ctx)
	if len(stored) != 1 || reg.Count() != 1 {
		t.Fatalf("repository has %d recipients, registry %d; want 1", len(stored), reg.Count())
	}
}
