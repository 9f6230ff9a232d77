package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/lifesync/lifesync/internal/auth"
	"github.com/lifesync/lifesync/internal/automation"
	"github.com/lifesync/lifesync/internal/model"
)

type AutomationHandler struct {
	rules  *automation.RuleStore
	logger *slog.Logger
}

func NewAutomationHandler(rs *automation.RuleStore, logger *slog.Logger) *AutomationHandler {
	return &AutomationHandler{rules: rs, logger: logger}
}

type createRuleRequest struct {
	Trigger    model.Trigger     `json:"trigger"`
	Action     model.Action      `json:"action"`
	Conditions []model.Condition `json:"conditions"`
}

// CreateRule handles POST /api/v1/smart-home/automation/rules
func (h *AutomationHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req createRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rule, err := h.rules.Create(r.Context(), userID, req.Trigger, req.Action, req.Conditions)
	if err != nil {
		if errors.Is(err, automation.ErrInvalidRule) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("create automation rule", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create rule")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"rule_id": rule.ID, "status": "created"})
}

// ListRules handles GET /api/v1/smart-home/automation/rules
func (h *AutomationHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list automation rules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(rules))
}

// DeleteRule handles DELETE /api/v1/smart-home/automation/rules/{rule_id}
func (h *AutomationHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.rules.Delete(r.Context(), auth.UserID(r.Context()), r.PathValue("rule_id"))
	if errors.Is(err, automation.ErrInvalidID) {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	if err != nil {
		h.logger.Error("delete automation rule", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
