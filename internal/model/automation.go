package model

import "time"

// Trigger types.
const (
	TriggerSchedule    = "schedule"
	TriggerDeviceState = "device_state"
)

// Condition types.
const (
	ConditionTimeRange = "time_range"
)

// Trigger starts rule evaluation. Schedule triggers carry a "HH:MM[:SS]"
// Value; device_state triggers compare State[Property] against Value.
type Trigger struct {
	Type     string `json:"type"`
	Value    any    `json:"value,omitempty"`
	DeviceID int64  `json:"device_id,omitempty"`
	Property string `json:"property,omitempty"`
}

type Action struct {
	DeviceID int64          `json:"device_id"`
	Command  map[string]any `json:"command"`
}

type Condition struct {
	Type  string `json:"type"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type AutomationRule struct {
	ID         string      `json:"id"`
	UserID     int64       `json:"user_id"`
	Trigger    Trigger     `json:"trigger"`
	Action     Action      `json:"action"`
	Conditions []Condition `json:"conditions"`
	CreatedAt  time.Time   `json:"created_at"`
}
