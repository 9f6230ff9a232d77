package model

import "time"

// Notification types.
const (
	NotifTypeAutomationTriggered = "automation_triggered"
	NotifTypeRewardsGranted      = "rewards_granted"
)

// Notification priorities.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

type Notification struct {
	ID        string         `json:"id"`
	UserID    int64          `json:"user_id"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Priority  string         `json:"priority"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	Read      bool           `json:"read"`
}
