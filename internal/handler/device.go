package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/lifesync/lifesync/internal/auth"
	"github.com/lifesync/lifesync/internal/automation"
	"github.com/lifesync/lifesync/internal/model"
	"github.com/lifesync/lifesync/internal/store"
	"github.com/lifesync/lifesync/internal/webhook"
)

// ErrDeviceNotFound is returned by ApplyState for unknown or foreign devices.
var ErrDeviceNotFound = errors.New("device not found")

// RuleProcessor runs the automation rules triggered by a device state change.
type RuleProcessor interface {
	ProcessRules(ctx context.Context, userID int64, triggerDevice *model.SmartDevice, state map[string]any) ([]automation.Firing, error)
}

type DeviceHandler struct {
	devices   *store.DeviceStore
	sender    automation.CommandSender
	processor RuleProcessor
	logger    *slog.Logger
}

func NewDeviceHandler(ds *store.DeviceStore, sender automation.CommandSender, processor RuleProcessor, logger *slog.Logger) *DeviceHandler {
	return &DeviceHandler{devices: ds, sender: sender, processor: processor, logger: logger}
}

type registerDeviceRequest struct {
	Name          string          `json:"name"`
	DeviceType    string          `json:"device_type"`
	WebhookURL    string          `json:"webhook_url"`
	WebhookSecret string          `json:"webhook_secret"`
	Config        json.RawMessage `json:"config"`
}

// Register handles POST /api/v1/smart-home/devices
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req registerDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if u, err := url.Parse(req.WebhookURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, http.StatusBadRequest, "webhook_url must be an absolute http(s) URL")
		return
	}
	if req.DeviceType == "" {
		req.DeviceType = "generic"
	}

	device, err := h.devices.Create(r.Context(), userID, req.Name, req.DeviceType, req.WebhookURL, req.WebhookSecret, req.Config)
	if err != nil {
		h.logger.Error("register device", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register device")
		return
	}

	writeJSON(w, http.StatusCreated, device)
}

// List handles GET /api/v1/smart-home/devices
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.ListByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list devices", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(devices))
}

// Command handles POST /api/v1/smart-home/devices/{id}/command
func (h *DeviceHandler) Command(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var command map[string]any
	if !decodeJSON(w, r, &command) {
		return
	}

	device, err := h.devices.GetByID(r.Context(), id, userID)
	if err != nil {
		h.logger.Error("get device", "device_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load device")
		return
	}
	if device == nil {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}

	body, err := h.sender.Send(r.Context(), device.WebhookURL, device.WebhookSecret, command)
	if err != nil {
		h.logger.Warn("device command failed", "device_id", id, "error", err)
		var se *webhook.StatusError
		if errors.As(err, &se) {
			writeError(w, http.StatusBadGateway, fmt.Sprintf("device responded with status %d", se.StatusCode))
			return
		}
		writeError(w, http.StatusBadGateway, "device unreachable")
		return
	}

	state := webhook.AsState(body)
	if err := h.devices.UpdateLastState(r.Context(), id, userID, state); err != nil {
		h.logger.Error("store device state", "device_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store device state")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"device_id": id, "response": state})
}

type stateRequest struct {
	State map[string]any `json:"state"`
}

type stateResponse struct {
	Status   string              `json:"status"`
	DeviceID int64               `json:"device_id"`
	Firings  []automation.Firing `json:"firings"`
}

// State handles POST /api/v1/smart-home/devices/{id}/state
func (h *DeviceHandler) State(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req stateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.State == nil {
		writeError(w, http.StatusBadRequest, "state is required")
		return
	}

	firings, err := h.ApplyState(r.Context(), userID, id, req.State)
	if errors.Is(err, ErrDeviceNotFound) {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		h.logger.Error("apply device state", "device_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process state")
		return
	}

	writeJSON(w, http.StatusOK, stateResponse{Status: "processed", DeviceID: id, Firings: emptyIfNil(firings)})
}

// ApplyState stores a reported device state and runs the user's automation
// rules against it.
func (h *DeviceHandler) ApplyState(ctx context.Context, userID, deviceID int64, state map[string]any) ([]automation.Firing, error) {
	device, err := h.devices.GetByID(ctx, deviceID, userID)
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	if device == nil {
		return nil, ErrDeviceNotFound
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	if err := h.devices.UpdateLastState(ctx, deviceID, userID, raw); err != nil {
		return nil, err
	}
	device.LastState = raw

	return h.processor.ProcessRules(ctx, userID, device, state)
}

// SocketState adapts ApplyState to the WebSocket state handler signature.
func (h *DeviceHandler) SocketState(ctx context.Context, userID, deviceID int64, state map[string]any) error {
	_, err := h.ApplyState(ctx, userID, deviceID, state)
	return err
}
