package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lifesync/lifesync/internal/auth"
	"github.com/lifesync/lifesync/internal/gamification"
	"github.com/lifesync/lifesync/internal/model"
	"github.com/lifesync/lifesync/internal/store"
)

// ProgressProcessor runs the reward engine for a progress update.
type ProgressProcessor interface {
	ProcessProgress(ctx context.Context, userID int64, goal *model.Goal) (*gamification.Result, error)
}

type GoalHandler struct {
	goals  *store.GoalStore
	engine ProgressProcessor
	logger *slog.Logger
}

func NewGoalHandler(gs *store.GoalStore, engine ProgressProcessor, logger *slog.Logger) *GoalHandler {
	return &GoalHandler{goals: gs, engine: engine, logger: logger}
}

type createGoalRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	TargetValue float64 `json:"target_value"`
}

// Create handles POST /api/v1/goals
func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req createGoalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	goal, err := h.goals.Create(r.Context(), userID, req.Title, req.Description, req.Category, req.TargetValue)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCategory) || errors.Is(err, store.ErrInvalidTarget) || errors.Is(err, store.ErrEmptyTitle) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("create goal", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create goal")
		return
	}

	writeJSON(w, http.StatusCreated, goal)
}

// List handles GET /api/v1/goals
func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	goals, err := h.goals.ListByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list goals", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list goals")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(goals))
}

type logProgressRequest struct {
	Value float64 `json:"value"`
	Notes string  `json:"notes"`
}

type progressResponse struct {
	Goal    *model.Goal           `json:"goal"`
	Log     *model.ProgressLog    `json:"progress"`
	Profile model.ProfileSnapshot `json:"profile"`
	Rewards []model.Reward        `json:"rewards"`
}

// LogProgress handles POST /api/v1/goals/{id}/progress
func (h *GoalHandler) LogProgress(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req logProgressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Value <= 0 {
		writeError(w, http.StatusBadRequest, "value must be positive")
		return
	}

	goal, entry, err := h.goals.LogProgress(r.Context(), id, userID, req.Value, req.Notes)
	if err != nil {
		h.logger.Error("log progress", "goal_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to log progress")
		return
	}
	if goal == nil {
		writeError(w, http.StatusNotFound, "goal not found")
		return
	}

	result, err := h.engine.ProcessProgress(r.Context(), userID, goal)
	if err != nil {
		h.logger.Error("process rewards", "goal_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process rewards")
		return
	}

	writeJSON(w, http.StatusOK, progressResponse{
		Goal:    goal,
		Log:     entry,
		Profile: result.Profile,
		Rewards: emptyIfNil(result.Rewards),
	})
}
