package store

import (
	"context"
	"testing"
)

func TestPushSubscriptionLifecycle(t *testing.T) {
	ps := NewPushStore(setupTestDB(t))
	ctx := context.Background()

	sub, err := ps.CreateSubscription(ctx, 1, "https://push.example.com/sub1", "p256dh_key1", "auth_key1", "Chrome Desktop")
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if sub.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if sub.DeviceName != "Chrome Desktop" {
		t.Errorf("device_name = %q, want %q", sub.DeviceName, "Chrome Desktop")
	}

	// Same endpoint refreshes keys instead of duplicating.
	updated, err := ps.CreateSubscription(ctx, 1, "https://push.example.com/sub1", "p256dh_key2", "auth_key2", "Chrome Desktop")
	if err != nil {
		t.Fatalf("upsert subscription: %v", err)
	}
	if updated.ID != sub.ID {
		t.Errorf("id = %d, want %d", updated.ID, sub.ID)
	}
	if updated.P256dhKey != "p256dh_key2" {
		t.Errorf("p256dh = %q, want p256dh_key2", updated.P256dhKey)
	}

	if _, err := ps.CreateSubscription(ctx, 1, "https://push.example.com/sub2", "k", "a", "Phone"); err != nil {
		t.Fatalf("create second subscription: %v", err)
	}
	subs, err := ps.ListByUser(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(subs))
	}

	if err := ps.DeleteByEndpoint(ctx, "https://push.example.com/sub2"); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}
	if err := ps.DeleteSubscription(ctx, sub.ID, 2); err != nil {
		t.Fatalf("delete wrong user: %v", err)
	}
	subs, _ = ps.ListByUser(ctx, 1)
	if len(subs) != 1 {
		t.Fatalf("expected 1 subscription after deletes, got %d", len(subs))
	}

	if err := ps.DeleteSubscription(ctx, sub.ID, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	subs, _ = ps.ListByUser(ctx, 1)
	if len(subs) != 0 {
		t.Errorf("expected no subscriptions, got %d", len(subs))
	}
}
