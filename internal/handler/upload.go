package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/service"
)

// multipartOverhead is allowed on top of the file limit for boundaries and
// the other form fields.
const multipartOverhead = 64 << 10

type UploadHandler struct {
	svc    *service.UploadService
	logger *slog.Logger
}

func NewUploadHandler(svc *service.UploadService, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{svc: svc, logger: logger}
}

// HandleUpload stores one file and returns its key and public URL. The key
// is what verification documents and profile images refer to.
//
// HTTP: POST /api/uploads (multipart/form-data: kind, file)
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.svc.MaxBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(h.svc.MaxBytes()); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, h.logger, apperror.ValidationFailed("file", "file is too large"))
			return
		}
		writeError(w, r, h.logger, apperror.ValidationFailed("file", "expected a multipart form with a file field"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, h.logger, apperror.ValidationFailed("file", "file is required"))
		return
	}
	defer file.Close()

	kind := service.UploadKind(r.FormValue("kind"))
	if kind == "" {
		kind = service.UploadProduct
	}

	obj, err := h.svc.Upload(r.Context(), userID, kind, file)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, obj)
}
