package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/lifesync/lifesync/internal/auth"
	"github.com/lifesync/lifesync/internal/gamification"
	"github.com/lifesync/lifesync/internal/store"
)

type ProfileHandler struct {
	profiles *store.ProfileStore
	engine   *gamification.Engine
	logger   *slog.Logger
}

func NewProfileHandler(ps *store.ProfileStore, engine *gamification.Engine, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: ps, engine: engine, logger: logger}
}

type profileResponse struct {
	Level        int        `json:"level"`
	XP           int        `json:"xp"`
	Streak       int        `json:"streak"`
	Multiplier   float64    `json:"multiplier"`
	Perks        []string   `json:"perks"`
	LastActivity *time.Time `json:"last_activity"`
}

// Get handles GET /api/v1/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.GetOrCreate(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		Level:        p.Level,
		XP:           p.XP,
		Streak:       p.StreakCount,
		Multiplier:   h.engine.Multiplier(p),
		Perks:        emptyIfNil(h.engine.Perks(p.Level)),
		LastActivity: p.LastActivity,
	})
}

// Badges handles GET /api/v1/badges
func (h *ProfileHandler) Badges(w http.ResponseWriter, r *http.Request) {
	badges, err := h.profiles.ListBadges(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list badges", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list badges")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(badges))
}
