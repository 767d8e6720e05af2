package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/agrilink/internal/service"
)

type NotificationHandler struct {
	svc    *service.NotificationService
	logger *slog.Logger
}

func NewNotificationHandler(svc *service.NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// HTTP: GET /api/notifications?unread=true&since=<RFC 3339>&limit=
func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var q service.NotificationQuery
	if q.UnreadOnly, err = queryBool(r, "unread"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if q.Since, err = queryTime(r, "since"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	list, err := h.svc.List(r.Context(), userID, q)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HTTP: GET /api/notifications/unread-count
func (h *NotificationHandler) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	n, err := h.svc.UnreadCount(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// HTTP: POST /api/notifications/{id}/read
func (h *NotificationHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.MarkRead(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: POST /api/notifications/read-all
func (h *NotificationHandler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	n, err := h.svc.MarkAllRead(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
