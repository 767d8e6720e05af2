package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/auth"
	"github.com/sakif/agrilink/internal/model"
	"github.com/sakif/agrilink/internal/service"
)

type ProductHandler struct {
	svc    *service.ProductService
	logger *slog.Logger
}

func NewProductHandler(svc *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{svc: svc, logger: logger}
}

// HandleList searches listings.
//
// HTTP: GET /api/products?q=&category=&region=&seller=&minPrice=&maxPrice=&active=&limit=&offset=
//
// Only active listings are shown unless active=false is passed explicitly,
// and a seller may only do that for their own listings.
func (h *ProductHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.ProductFilter{
		SellerID:   q.Get("seller"),
		Category:   q.Get("category"),
		Region:     q.Get("region"),
		Query:      q.Get("q"),
		ActiveOnly: true,
	}

	var err error
	if f.MinPrice, err = queryInt64(r, "minPrice"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if f.MaxPrice, err = queryInt64(r, "maxPrice"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if q.Has("active") {
		active, err := queryBool(r, "active")
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		f.ActiveOnly = active
	}
	if !f.ActiveOnly {
		caller, ok := auth.UserIDFromContext(r.Context())
		if !ok || f.SellerID == "" || f.SellerID != caller {
			writeError(w, r, h.logger, apperror.Forbidden("inactive listings are only visible to their seller"))
			return
		}
	}

	products, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// HTTP: GET /api/products/{id}
func (h *ProductHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.UserIDFromContext(r.Context())
	p, err := h.svc.Get(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HTTP: POST /api/products
func (h *ProductHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in service.ProductInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HTTP: PUT /api/products/{id}
func (h *ProductHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in service.ProductInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.svc.Update(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HTTP: DELETE /api/products/{id}
func (h *ProductHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
