package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lifesync/lifesync/internal/model"
)

type DeviceStore struct {
	db *sql.DB
}

func NewDeviceStore(db *sql.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

const deviceCols = `id, user_id, name, device_type, webhook_url, webhook_secret, config, last_state, created_at, updated_at`

func scanDevice(scanner interface{ Scan(...any) error }) (*model.SmartDevice, error) {
	var d model.SmartDevice
	var config string
	var lastState sql.NullString
	err := scanner.Scan(&d.ID, &d.UserID, &d.Name, &d.DeviceType, &d.WebhookURL, &d.WebhookSecret,
		&config, &lastState, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Config = json.RawMessage(config)
	if lastState.Valid {
		d.LastState = json.RawMessage(lastState.String)
	}
	return &d, nil
}

func (s *DeviceStore) Create(ctx context.Context, userID int64, name, deviceType, webhookURL, webhookSecret string, config json.RawMessage) (*model.SmartDevice, error) {
	if len(config) == 0 {
		config = json.RawMessage(`{}`)
	}
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO smart_devices (user_id, name, device_type, webhook_url, webhook_secret, config, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, name, deviceType, webhookURL, webhookSecret, string(config), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert device: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id, userID)
}

// GetByID returns the device owned by userID, or nil if there is none.
func (s *DeviceStore) GetByID(ctx context.Context, id, userID int64) (*model.SmartDevice, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deviceCols+` FROM smart_devices WHERE id = ? AND user_id = ?`, id, userID)
	d, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	return d, nil
}

func (s *DeviceStore) ListByUser(ctx context.Context, userID int64) ([]model.SmartDevice, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+deviceCols+` FROM smart_devices WHERE user_id = ? ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []model.SmartDevice
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

// UpdateLastState overwrites the stored state of a device. No history is kept.
func (s *DeviceStore) UpdateLastState(ctx context.Context, id, userID int64, state json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE smart_devices SET last_state = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		string(state), time.Now().UTC(), id, userID,
	)
	if err != nil {
		return fmt.Errorf("update device state: %w", err)
	}
	return nil
}
