// Package gamification turns goal progress into XP, streaks, levels and
// achievements.
package gamification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/lifesync/lifesync/internal/kv"
	"github.com/lifesync/lifesync/internal/metrics"
	"github.com/lifesync/lifesync/internal/model"
)

// ProfileRepository loads and saves gamification profiles.
type ProfileRepository interface {
	GetOrCreate(ctx context.Context, userID int64) (*model.UserProfile, error)
	HasBadge(ctx context.Context, profileID int64, name string) (bool, error)
	SaveProgress(ctx context.Context, p *model.UserProfile, earned []model.Badge) error
}

// GoalHistory answers the queries achievement predicates need.
type GoalHistory interface {
	ListCreatedSince(ctx context.Context, userID int64, category string, since time.Time) ([]model.Goal, error)
	ProgressTimes(ctx context.Context, userID int64) ([]time.Time, error)
}

// Notifier delivers a user-facing notification.
type Notifier interface {
	Notify(ctx context.Context, userID int64, notifType, message, priority string, data map[string]any) (*model.Notification, error)
}

// Result is the outcome of one progress update.
type Result struct {
	Profile model.ProfileSnapshot `json:"profile"`
	Rewards []model.Reward        `json:"rewards"`
}

type Engine struct {
	cfg      Config
	profiles ProfileRepository
	history  GoalHistory
	audit    kv.Store
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	locks    *userLocks
}

// NewEngine creates an engine. audit, notifier and m may be nil.
func NewEngine(cfg Config, profiles ProfileRepository, history GoalHistory, audit kv.Store, notifier Notifier, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		profiles: profiles,
		history:  history,
		audit:    audit,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With("component", "gamification"),
		locks:    newUserLocks(),
	}
}

// Multiplier returns the XP multiplier for a profile: a small bonus per level
// above 1 plus 10% per streak day, the streak part capped at 100%.
func (e *Engine) Multiplier(p *model.UserProfile) float64 {
	levelBonus := 0.05 * float64(p.Level-1)
	streakBonus := math.Min(float64(p.StreakCount)*0.1, 1.0)
	return 1.0 + levelBonus + streakBonus
}

// Perks returns the names of every perk unlocked at level.
func (e *Engine) Perks(level int) []string {
	return e.cfg.PerksAt(level)
}

// ProcessProgress applies the rewards for one progress update on goal and
// persists the profile. Updates for the same user are serialized.
func (e *Engine) ProcessProgress(ctx context.Context, userID int64, goal *model.Goal) (*Result, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	profile, err := e.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		e.metrics.ObserveProgress(goal.Category, "error")
		return nil, fmt.Errorf("load profile: %w", err)
	}

	now := e.cfg.Now()
	startXP, startLevel := profile.XP, profile.Level

	base := int(math.Round(float64(e.cfg.ProgressXP) * e.Multiplier(profile)))
	profile.XP += base
	rewards := []model.Reward{{Type: model.RewardXP, Amount: base, Reason: "Progress logged"}}

	if r, ok := e.updateStreak(profile, now); ok {
		rewards = append(rewards, r)
	}
	if goal.Completed {
		rewards = append(rewards, e.completionRewards(profile, goal)...)
	}
	rewards = append(rewards, e.levelUps(profile)...)

	earned, achievementRewards, err := e.checkAchievements(ctx, profile, goal, now)
	if err != nil {
		e.metrics.ObserveProgress(goal.Category, "error")
		return nil, err
	}
	rewards = append(rewards, achievementRewards...)
	// Achievement XP can cross another threshold.
	rewards = append(rewards, e.levelUps(profile)...)

	profile.LastActivity = &now
	if err := e.profiles.SaveProgress(ctx, profile, earned); err != nil {
		e.metrics.ObserveProgress(goal.Category, "error")
		return nil, fmt.Errorf("save progress: %w", err)
	}

	result := &Result{
		Profile: model.ProfileSnapshot{Level: profile.Level, XP: profile.XP, Streak: profile.StreakCount},
		Rewards: rewards,
	}

	e.recordAudit(ctx, userID, now, rewards)

	names := make([]string, len(earned))
	for i, b := range earned {
		names[i] = b.Name
	}
	e.metrics.ObserveProgress(goal.Category, "ok")
	e.metrics.ObserveRewards(profile.XP-startXP, profile.Level-startLevel, names)

	e.notify(ctx, userID, result, profile.XP-startXP, len(earned) > 0 || profile.Level > startLevel)

	e.logger.Info("progress processed",
		"user_id", userID,
		"goal_id", goal.ID,
		"xp_gained", profile.XP-startXP,
		"level", profile.Level,
		"streak", profile.StreakCount,
		"rewards", len(rewards),
	)
	return result, nil
}

// updateStreak extends the streak when the previous activity falls within
// the streak window and resets it to 1 otherwise.
func (e *Engine) updateStreak(p *model.UserProfile, now time.Time) (model.Reward, bool) {
	if p.LastActivity == nil || now.Sub(*p.LastActivity) > e.cfg.StreakWindow {
		p.StreakCount = 1
		return model.Reward{}, false
	}
	p.StreakCount++
	p.XP += e.cfg.StreakXP
	return model.Reward{Type: model.RewardStreak, Count: p.StreakCount, XP: e.cfg.StreakXP}, true
}

func (e *Engine) completionRewards(p *model.UserProfile, goal *model.Goal) []model.Reward {
	p.XP += e.cfg.CompletionXP
	rewards := []model.Reward{{Type: model.RewardCompletion, XP: e.cfg.CompletionXP, GoalTitle: goal.Title}}

	switch goal.Category {
	case model.CategoryHealth:
		p.XP += e.cfg.HealthMilestoneXP
		rewards = append(rewards, model.Reward{Type: model.RewardHealthMilestone, XP: e.cfg.HealthMilestoneXP})
	case model.CategoryFinance:
		p.XP += e.cfg.FinanceMilestoneXP
		rewards = append(rewards, model.Reward{Type: model.RewardFinanceMilestone, XP: e.cfg.FinanceMilestoneXP})
	}
	return rewards
}

// levelUps raises the level until XP is below the next threshold.
func (e *Engine) levelUps(p *model.UserProfile) []model.Reward {
	var rewards []model.Reward
	for p.XP >= p.Level*e.cfg.LevelMultiplier {
		p.Level++
		rewards = append(rewards, model.Reward{Type: model.RewardLevelUp, NewLevel: p.Level, Perks: e.cfg.PerksAt(p.Level)})
	}
	return rewards
}

func (e *Engine) checkAchievements(ctx context.Context, p *model.UserProfile, goal *model.Goal, now time.Time) ([]model.Badge, []model.Reward, error) {
	in := Input{Profile: p, Goal: goal, History: e.history, Now: now, Location: e.cfg.Location}

	var earned []model.Badge
	var rewards []model.Reward
	for _, a := range e.cfg.Achievements {
		id := a.ID
		if a.Earned == nil {
			continue
		}
		has, err := e.profiles.HasBadge(ctx, p.ID, id)
		if err != nil {
			return nil, nil, fmt.Errorf("check achievement %s: %w", id, err)
		}
		if has {
			continue
		}
		ok, err := a.Earned(ctx, in)
		if err != nil {
			return nil, nil, fmt.Errorf("evaluate achievement %s: %w", id, err)
		}
		if !ok {
			continue
		}

		criteria, err := json.Marshal(map[string]any{"xp_reward": a.XP, "icon": a.Icon, "description": a.Description})
		if err != nil {
			return nil, nil, fmt.Errorf("marshal criteria %s: %w", id, err)
		}
		earned = append(earned, model.Badge{
			Name:        id,
			Description: a.Description,
			Criteria:    string(criteria),
			IconURL:     "/icons/" + a.Icon + ".svg",
		})
		p.XP += a.XP
		rewards = append(rewards, model.Reward{
			Type:        model.RewardAchievement,
			Name:        id,
			Description: a.Description,
			XP:          a.XP,
			Icon:        a.Icon,
		})
	}
	return earned, rewards, nil
}

// AuditKey is the KV key a reward batch for userID at t is recorded under.
func AuditKey(userID int64, t time.Time) string {
	return fmt.Sprintf("rewards:%d:%d.%06d", userID, t.Unix(), t.Nanosecond()/1000)
}

// recordAudit stores the rewards for short-lived realtime consumers. The
// profile is already committed, so failures are only logged.
func (e *Engine) recordAudit(ctx context.Context, userID int64, now time.Time, rewards []model.Reward) {
	if e.audit == nil {
		return
	}
	if err := kv.SetJSON(ctx, e.audit, AuditKey(userID, now), rewards, e.cfg.AuditTTL); err != nil {
		e.logger.Warn("record reward audit", "user_id", userID, "error", err)
	}
}

func (e *Engine) notify(ctx context.Context, userID int64, result *Result, xpGained int, milestone bool) {
	if e.notifier == nil {
		return
	}
	priority := model.PriorityNormal
	if milestone {
		priority = model.PriorityHigh
	}
	data := map[string]any{
		"profile": result.Profile,
		"rewards": result.Rewards,
	}
	msg := fmt.Sprintf("You earned %d XP", xpGained)
	if _, err := e.notifier.Notify(ctx, userID, model.NotifTypeRewardsGranted, msg, priority, data); err != nil {
		e.logger.Warn("notify rewards", "user_id", userID, "error", err)
	}
}
