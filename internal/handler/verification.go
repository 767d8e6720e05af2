package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/agrilink/internal/model"
	"github.com/sakif/agrilink/internal/service"
)

// VerificationHandler serves both sides of the verification workflow: the
// user's own status and uploads, and the admin review queue.
type VerificationHandler struct {
	svc    *service.VerificationService
	logger *slog.Logger
}

func NewVerificationHandler(svc *service.VerificationService, logger *slog.Logger) *VerificationHandler {
	return &VerificationHandler{svc: svc, logger: logger}
}

// HTTP: GET /api/verification
func (h *VerificationHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	state, err := h.svc.Status(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type addDocumentRequest struct {
	DocType   model.DocType `json:"docType"`
	ObjectKey string        `json:"objectKey"`
}

// HandleAddDocument attaches a file uploaded earlier with kind=document.
//
// HTTP: POST /api/verification/documents
func (h *VerificationHandler) HandleAddDocument(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req addDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	doc, err := h.svc.AddDocument(r.Context(), userID, req.DocType, req.ObjectKey)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// HTTP: GET /api/verification/documents
func (h *VerificationHandler) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	docs, err := h.svc.ListDocuments(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// HTTP: POST /api/verification/submit
func (h *VerificationHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	v, err := h.svc.Submit(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HTTP: GET /api/admin/verifications
func (h *VerificationHandler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListPending(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HTTP: POST /api/admin/verifications/{userID}/approve
func (h *VerificationHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	adminID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	v, err := h.svc.Approve(r.Context(), chi.URLParam(r, "userID"), adminID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// HTTP: POST /api/admin/verifications/{userID}/reject {"reason": "..."}
func (h *VerificationHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	adminID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req rejectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	v, err := h.svc.Reject(r.Context(), chi.URLParam(r, "userID"), adminID, req.Reason)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type contactRequest struct {
	Channel service.ContactChannel `json:"channel"`
}

// HandleContact records that an admin confirmed the user's email or phone.
//
// HTTP: POST /api/admin/verifications/{userID}/contact {"channel": "phone"}
func (h *VerificationHandler) HandleContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	v, err := h.svc.MarkContactVerified(r.Context(), chi.URLParam(r, "userID"), req.Channel)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
