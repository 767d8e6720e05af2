package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/agrilink/internal/service"
)

// ChatHandler serves conversations and messages. Clients poll
// GET .../messages?after=<last id> for new messages.
type ChatHandler struct {
	svc    *service.ChatService
	logger *slog.Logger
}

func NewChatHandler(svc *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, logger: logger}
}

// HTTP: GET /api/conversations
func (h *ChatHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	list, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleStart finds or creates the conversation with a seller.
//
// HTTP: POST /api/conversations {"sellerId": "...", "productId": "..."}
func (h *ChatHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in service.StartConversationInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	c, err := h.svc.Start(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HTTP: GET /api/conversations/{id}/messages?after=&limit=
func (h *ChatHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	msgs, err := h.svc.Messages(r.Context(), userID, chi.URLParam(r, "id"), r.URL.Query().Get("after"), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// HTTP: POST /api/conversations/{id}/messages
func (h *ChatHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	m, err := h.svc.Send(r.Context(), userID, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// HTTP: POST /api/conversations/{id}/read
func (h *ChatHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	n, err := h.svc.MarkRead(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
