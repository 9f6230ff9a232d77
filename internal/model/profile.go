package model

import "time"

type UserProfile struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	Level        int        `json:"level"`
	XP           int        `json:"xp"`
	StreakCount  int        `json:"streak_count"`
	LastActivity *time.Time `json:"last_activity"`
}

type Badge struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Criteria    string `json:"criteria"`
	IconURL     string `json:"icon_url"`
}

type UserBadge struct {
	ID            int64     `json:"id"`
	UserProfileID int64     `json:"user_profile_id"`
	BadgeID       int64     `json:"badge_id"`
	EarnedAt      time.Time `json:"earned_at"`
}

// EarnedBadge is a badge joined with the time the profile earned it.
type EarnedBadge struct {
	Badge
	EarnedAt time.Time `json:"earned_at"`
}
