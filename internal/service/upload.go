package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/storage"
)

// UploadKind says what a file is for, which decides the accepted types.
type UploadKind string

const (
	UploadProduct  UploadKind = "product"
	UploadProfile  UploadKind = "profile"
	UploadCover    UploadKind = "cover"
	UploadDocument UploadKind = "document"
)

var imageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// allowedTypes lists the sniffed MIME types accepted per kind. Documents may
// also be scanned PDFs.
var allowedTypes = map[UploadKind][]string{
	UploadProduct:  imageTypes,
	UploadProfile:  imageTypes,
	UploadCover:    imageTypes,
	UploadDocument: append(append([]string{}, imageTypes...), "application/pdf"),
}

// UploadService stores user files. The client-declared content type is
// ignored; the bytes are sniffed.
type UploadService struct {
	store    storage.Store
	maxBytes int64
	logger   *slog.Logger
}

func NewUploadService(store storage.Store, maxBytes int64, logger *slog.Logger) *UploadService {
	return &UploadService{store: store, maxBytes: maxBytes, logger: logger}
}

// MaxBytes is the per-file size limit.
func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload reads r (at most MaxBytes), checks its type against kind and stores
// it under <kind>/<userID>/<uuid><ext>.
func (s *UploadService) Upload(ctx context.Context, userID string, kind UploadKind, r io.Reader) (storage.Object, error) {
	allowed, ok := allowedTypes[kind]
	if !ok {
		return storage.Object{}, apperror.ValidationFailed("kind", "kind must be one of: product profile cover document")
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return storage.Object{}, fmt.Errorf("service/upload: reading file: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return storage.Object{}, apperror.ValidationFailed("file", fmt.Sprintf("file must be at most %d bytes", s.maxBytes))
	}
	if len(data) == 0 {
		return storage.Object{}, apperror.ValidationFailed("file", "file is empty")
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowed...) {
		return storage.Object{}, apperror.ValidationFailed("file",
			fmt.Sprintf("%s files are not accepted for %s uploads", mt.String(), kind))
	}

	key := fmt.Sprintf("%s/%s/%s%s", kind, userID, uuid.NewString(), mt.Extension())
	obj, err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mt.String())
	if err != nil {
		return storage.Object{}, fmt.Errorf("service/upload: storing %s: %w", key, err)
	}

	s.logger.Info("file uploaded",
		slog.String("userID", userID),
		slog.String("key", key),
		slog.String("contentType", obj.ContentType),
		slog.Int64("size", obj.Size),
	)
	return obj, nil
}

// URL resolves a stored key to its public address.
func (s *UploadService) URL(key string) string {
	return s.store.URL(key)
}
