package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/agrilink/internal/service"
)

type DashboardHandler struct {
	svc    *service.DashboardService
	logger *slog.Logger
}

func NewDashboardHandler(svc *service.DashboardService, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{svc: svc, logger: logger}
}

// HTTP: GET /api/dashboard
func (h *DashboardHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sum, err := h.svc.Summary(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
