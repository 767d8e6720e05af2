// Package handler is the HTTP edge of the API. Handlers decode requests,
// call one service method and encode the result; every error goes through
// writeError so clients always see the same JSON shape:
//
//	{"error": "not_found", "message": "offer not found with id ...", "field": ""}
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/auth"
)

// maxJSONBody caps request bodies that are decoded as JSON.
const maxJSONBody = 1 << 20

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable kind, e.g. "not_found"
	Message string `json:"message"`         // safe to show to users
	Field   string `json:"field,omitempty"` // request field at fault, when known
}

// writeJSON sets headers, then the status, then the body. Headers set after
// WriteHeader are silently dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps a sentinel from apperror to its HTTP status and kind.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrInvalidState):
		return http.StatusUnprocessableEntity, "invalid_state"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError is the only place domain errors become HTTP. Anything that is
// not an AppError is logged and reported as a bare 500 so SQL or file paths
// never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, kind := statusFor(err)
		if status == http.StatusInternalServerError {
			logger.Error("unmapped application error",
				slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		}
		writeJSON(w, status, ErrorResponse{Error: kind, Message: appErr.Message, Field: appErr.Field})
		return
	}

	logger.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "an internal error occurred",
	})
}

// decodeJSON reads one JSON object into dst. Unknown fields are rejected so
// typos in field names surface as 400s instead of silently doing nothing.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &syntaxErr):
			return apperror.ValidationFailed("", fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset))
		case errors.As(err, &typeErr):
			return apperror.ValidationFailed(typeErr.Field, fmt.Sprintf("%s has the wrong type", typeErr.Field))
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("", "request body is too large")
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("", "request body is empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
			return apperror.ValidationFailed(field, "unknown field "+field)
		}
		return apperror.ValidationFailed("", "invalid JSON body")
	}
	if dec.More() {
		return apperror.ValidationFailed("", "request body must hold a single JSON object")
	}
	return nil
}

// callerID returns the authenticated user's id. Routes behind RequireAuth
// always have one.
func callerID(r *http.Request) (string, error) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return "", apperror.Unauthorized("valid authentication required")
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return n, nil
}

func queryInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return &n, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperror.ValidationFailed(name, name+" must be true or false")
	}
	return b, nil
}

// queryTime parses an RFC 3339 timestamp used as a polling cursor.
func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, apperror.ValidationFailed(name, name+" must be an RFC 3339 timestamp")
	}
	t = t.UTC()
	return &t, nil
}
