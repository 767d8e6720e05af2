package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/agrilink/internal/service"
)

type ProfileHandler struct {
	svc    *service.ProfileService
	logger *slog.Logger
}

func NewProfileHandler(svc *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{svc: svc, logger: logger}
}

// HandleGet returns the caller's full profile, contact details included.
//
// HTTP: GET /api/profile
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	fp, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fp)
}

// HandleUpdate applies the groups present in the body in one transaction.
//
// HTTP: PUT /api/profile
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in service.ProfileUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	fp, err := h.svc.Update(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fp)
}

// HandleGetPublic is another user's profile page.
//
// HTTP: GET /api/users/{id}
func (h *ProfileHandler) HandleGetPublic(w http.ResponseWriter, r *http.Request) {
	pub, err := h.svc.GetPublic(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pub)
}
