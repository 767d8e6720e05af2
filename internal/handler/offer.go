package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/agrilink/internal/model"
	"github.com/sakif/agrilink/internal/service"
)

type OfferHandler struct {
	svc    *service.OfferService
	logger *slog.Logger
}

func NewOfferHandler(svc *service.OfferService, logger *slog.Logger) *OfferHandler {
	return &OfferHandler{svc: svc, logger: logger}
}

// HandleCreate proposes an offer inside a conversation.
//
// HTTP: POST /api/conversations/{id}/offers
func (h *OfferHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in service.CreateOfferInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	v, err := h.svc.Create(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// HandleList returns the caller's offers, most recently changed first.
//
// HTTP: GET /api/offers?conversation=&status=&role=buyer|seller&since=&limit=
func (h *OfferHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	f := model.OfferFilter{
		ConversationID: q.Get("conversation"),
		Status:         model.OfferStatus(q.Get("status")),
		Role:           model.Actor(q.Get("role")),
	}
	if f.Since, err = queryTime(r, "since"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	views, err := h.svc.List(r.Context(), userID, f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// HTTP: GET /api/offers/{id}
func (h *OfferHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	v, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleUpdateStatus moves an offer along its lifecycle.
//
// HTTP: PATCH /api/offers/{id} {"status": "shipped", "trackingNumber": "..."}
//
// 422 means the move does not exist from the current status, 403 that the
// caller's role may not make it and 409 that someone else changed the offer
// first.
func (h *OfferHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in service.UpdateOfferStatusInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	v, err := h.svc.UpdateStatus(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
