package model

import (
	"encoding/json"
	"time"
)

type SmartDevice struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Name          string          `json:"name"`
	DeviceType    string          `json:"device_type"`
	WebhookURL    string          `json:"webhook_url"`
	WebhookSecret string          `json:"-"`
	Config        json.RawMessage `json:"config"`
	LastState     json.RawMessage `json:"last_state"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// DeviceEvent is a single device state change fed to the automation evaluator.
type DeviceEvent struct {
	DeviceID  int64          `json:"device_id"`
	State     map[string]any `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
}
