package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lifesync/lifesync/internal/auth"
	"github.com/lifesync/lifesync/internal/notification"
)

type NotificationHandler struct {
	service *notification.Service
	logger  *slog.Logger
}

func NewNotificationHandler(svc *notification.Service, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{service: svc, logger: logger}
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var unreadOnly bool
	if v := r.URL.Query().Get("unread_only"); v != "" {
		if unreadOnly, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "unread_only must be a boolean")
			return
		}
	}

	notifs, err := h.service.List(r.Context(), auth.UserID(r.Context()), notification.ListOptions{
		Limit:      limit,
		Offset:     offset,
		UnreadOnly: unreadOnly,
	})
	if err != nil {
		h.logger.Error("list notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(notifs))
}

type markReadRequest struct {
	IDs []string `json:"ids"`
}

// MarkRead handles POST /api/v1/notifications/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	n, err := h.service.MarkRead(r.Context(), auth.UserID(r.Context()), req.IDs)
	if err != nil {
		h.logger.Error("mark notifications read", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}
