package store

import (
	"context"
	"testing"
	"time"

	"github.com/lifesync/lifesync/internal/model"
)

func TestProfileGetOrCreate(t *testing.T) {
	ps := NewProfileStore(setupTestDB(t))
	ctx := context.Background()

	none, err := ps.GetByUserID(ctx, 7)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if none != nil {
		t.Fatal("expected no profile before first progress")
	}

	p, err := ps.GetOrCreate(ctx, 7)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if p.Level != 1 || p.XP != 0 || p.StreakCount != 0 || p.LastActivity != nil {
		t.Errorf("defaults = %+v", p)
	}

	again, err := ps.GetOrCreate(ctx, 7)
	if err != nil {
		t.Fatalf("get or create again: %v", err)
	}
	if again.ID != p.ID {
		t.Errorf("id = %d, want %d", again.ID, p.ID)
	}
}

func TestProfileSaveProgressWithBadges(t *testing.T) {
	ps := NewProfileStore(setupTestDB(t))
	ctx := context.Background()

	p, err := ps.GetOrCreate(ctx, 1)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	p.Level = 2
	p.XP = 1500
	p.StreakCount = 7
	p.LastActivity = &now

	badge := model.Badge{Name: "consistency_king", Description: "Maintain a 7-day streak", Criteria: `{"xp_reward":300}`, IconURL: "/icons/crown.svg"}
	if err := ps.SaveProgress(ctx, p, []model.Badge{badge}); err != nil {
		t.Fatalf("save progress: %v", err)
	}

	got, err := ps.GetByUserID(ctx, 1)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if got.Level != 2 || got.XP != 1500 || got.StreakCount != 7 {
		t.Errorf("profile = %+v", got)
	}
	if got.LastActivity == nil || !got.LastActivity.Equal(now) {
		t.Errorf("last_activity = %v, want %v", got.LastActivity, now)
	}

	has, err := ps.HasBadge(ctx, p.ID, "consistency_king")
	if err != nil {
		t.Fatalf("has badge: %v", err)
	}
	if !has {
		t.Error("expected badge to be recorded")
	}

	// Saving the same badge again is a no-op.
	if err := ps.SaveProgress(ctx, p, []model.Badge{badge}); err != nil {
		t.Fatalf("save progress again: %v", err)
	}
	badges, err := ps.ListBadges(ctx, 1)
	if err != nil {
		t.Fatalf("list badges: %v", err)
	}
	if len(badges) != 1 {
		t.Fatalf("expected 1 badge, got %d", len(badges))
	}
	if badges[0].IconURL != "/icons/crown.svg" {
		t.Errorf("icon_url = %q", badges[0].IconURL)
	}
}

func TestProfileBadgeSharedAcrossProfiles(t *testing.T) {
	ps := NewProfileStore(setupTestDB(t))
	ctx := context.Background()

	p1, _ := ps.GetOrCreate(ctx, 1)
	p2, _ := ps.GetOrCreate(ctx, 2)
	badge := model.Badge{Name: "health_master", Criteria: "{}"}

	if err := ps.SaveProgress(ctx, p1, []model.Badge{badge}); err != nil {
		t.Fatalf("save p1: %v", err)
	}
	has, _ := ps.HasBadge(ctx, p2.ID, "health_master")
	if has {
		t.Error("p2 should not have p1's badge")
	}
	if err := ps.SaveProgress(ctx, p2, []model.Badge{badge}); err != nil {
		t.Fatalf("save p2: %v", err)
	}
	has, _ = ps.HasBadge(ctx, p2.ID, "health_master")
	if !has {
		t.Error("p2 should have badge after award")
	}
}
