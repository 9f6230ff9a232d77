package gamification

import (
	"context"
	"fmt"
	"time"

	"github.com/lifesync/lifesync/internal/model"
)

// Input is the state an achievement predicate is evaluated against. Profile
// already reflects the current update.
type Input struct {
	Profile  *model.UserProfile
	Goal     *model.Goal
	History  GoalHistory
	Now      time.Time
	Location *time.Location
}

// Predicate reports whether an achievement is earned.
type Predicate func(ctx context.Context, in Input) (bool, error)

// Never is never earned.
func Never(context.Context, Input) (bool, error) {
	return false, nil
}

func StreakAtLeast(n int) Predicate {
	return func(_ context.Context, in Input) (bool, error) {
		return in.Profile.StreakCount >= n, nil
	}
}

// AllGoalsCompleted is true when the user created at least one goal in
// category within window and every one of them is completed.
func AllGoalsCompleted(category string, window time.Duration) Predicate {
	return func(ctx context.Context, in Input) (bool, error) {
		goals, err := in.History.ListCreatedSince(ctx, in.Profile.UserID, category, in.Now.Add(-window))
		if err != nil {
			return false, fmt.Errorf("list %s goals: %w", category, err)
		}
		if len(goals) == 0 {
			return false, nil
		}
		for _, g := range goals {
			if !g.Completed {
				return false, nil
			}
		}
		return true, nil
	}
}

// ProgressLoggedBefore is true once at least n progress logs were recorded
// before hour o'clock local time.
func ProgressLoggedBefore(hour, n int) Predicate {
	return countProgress(n, func(h int) bool { return h < hour })
}

// ProgressLoggedFrom is true once at least n progress logs were recorded at
// or after hour o'clock local time.
func ProgressLoggedFrom(hour, n int) Predicate {
	return countProgress(n, func(h int) bool { return h >= hour })
}

func countProgress(n int, match func(hour int) bool) Predicate {
	return func(ctx context.Context, in Input) (bool, error) {
		times, err := in.History.ProgressTimes(ctx, in.Profile.UserID)
		if err != nil {
			return false, fmt.Errorf("list progress times: %w", err)
		}
		loc := in.Location
		if loc == nil {
			loc = time.Local
		}
		count := 0
		for _, t := range times {
			if match(t.In(loc).Hour()) {
				count++
				if count >= n {
					return true, nil
				}
			}
		}
		return false, nil
	}
}
