package gamification_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifesync/lifesync/internal/database"
	"github.com/lifesync/lifesync/internal/gamification"
	"github.com/lifesync/lifesync/internal/kv"
	"github.com/lifesync/lifesync/internal/model"
	"github.com/lifesync/lifesync/internal/store"
)

func TestEngineWithStores(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	goals := store.NewGoalStore(db)
	profiles := store.NewProfileStore(db)
	audit := kv.NewSQLite(db)

	cfg := gamification.DefaultConfig()
	cfg.Location = time.UTC
	engine := gamification.NewEngine(cfg, profiles, goals, audit, nil, nil, nil)
	ctx := context.Background()

	goal, err := goals.Create(ctx, 1, "Morning run", "", model.CategoryHealth, 5)
	require.NoError(t, err)
	goal, _, err = goals.LogProgress(ctx, goal.ID, 1, 5, "done")
	require.NoError(t, err)
	require.True(t, goal.Completed)

	res, err := engine.ProcessProgress(ctx, 1, goal)
	require.NoError(t, err)

	var gotHealthMaster bool
	for _, r := range res.Rewards {
		if r.Type == model.RewardAchievement && r.Name == "health_master" {
			gotHealthMaster = true
		}
	}
	assert.True(t, gotHealthMaster, "only health goal this week is complete")

	p, err := profiles.GetByUserID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, res.Profile.XP, p.XP)
	assert.Equal(t, res.Profile.Level, p.Level)
	assert.Equal(t, 1, p.StreakCount)
	assert.NotNil(t, p.LastActivity)

	badges, err := profiles.ListBadges(ctx, 1)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, "health_master", badges[0].Name)
	assert.Equal(t, "/icons/heart.svg", badges[0].IconURL)

	keys, err := audit.Scan(ctx, "rewards:1:*")
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	// Second update continues the streak and does not re-award the badge.
	res, err = engine.ProcessProgress(ctx, 1, goal)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Profile.Streak)
	for _, r := range res.Rewards {
		assert.NotEqual(t, model.RewardAchievement, r.Type)
	}
	badges, err = profiles.ListBadges(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, badges, 1)
}
