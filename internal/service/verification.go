package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/model"
	"github.com/sakif/agrilink/internal/repository"
)

type VerificationRepository interface {
	repository.VerificationRepository
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// VerificationService runs the trust workflow: users upload documents and
// submit, admins approve or reject, and the tier is recomputed after every
// decision.
type VerificationService struct {
	repo     VerificationRepository
	urls     URLResolver
	notifier *NotificationService
	logger   *slog.Logger
	now      func() time.Time
}

// URLResolver turns a storage key into a public URL.
type URLResolver interface {
	URL(key string) string
}

func NewVerificationService(repo VerificationRepository, urls URLResolver, notifier *NotificationService, logger *slog.Logger) *VerificationService {
	return &VerificationService{repo: repo, urls: urls, notifier: notifier, logger: logger, now: time.Now}
}

// VerificationState is the verification record plus the documents behind it.
type VerificationState struct {
	*model.Verification
	TierName  string                       `json:"tierName"`
	Documents []model.VerificationDocument `json:"documents"`
}

func (s *VerificationService) Status(ctx context.Context, userID string) (*VerificationState, error) {
	v, err := s.repo.GetVerification(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/verification: loading %s: %w", userID, err)
	}
	docs, err := s.repo.ListDocuments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/verification: listing documents of %s: %w", userID, err)
	}
	return &VerificationState{Verification: v, TierName: v.Tier.String(), Documents: docs}, nil
}

func (s *VerificationService) ListDocuments(ctx context.Context, userID string) ([]model.VerificationDocument, error) {
	docs, err := s.repo.ListDocuments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/verification: listing documents of %s: %w", userID, err)
	}
	return docs, nil
}

// AddDocument attaches a file the user already uploaded with kind
// "document". Documents are frozen while a review is pending or after
// approval.
func (s *VerificationService) AddDocument(ctx context.Context, userID string, docType model.DocType, objectKey string) (*model.VerificationDocument, error) {
	if !docType.Valid() {
		return nil, apperror.ValidationFailed("docType", "docType must be one of: national_id business_license farm_certificate other")
	}
	objectKey = strings.TrimSpace(objectKey)
	if !strings.HasPrefix(objectKey, string(UploadDocument)+"/"+userID+"/") {
		return nil, apperror.ValidationFailed("objectKey", "objectKey must be a document you uploaded")
	}

	v, err := s.repo.GetVerification(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/verification: loading %s: %w", userID, err)
	}
	if v.Status == model.VerificationPending || v.Status == model.VerificationVerified {
		return nil, &apperror.AppError{
			Err:     apperror.ErrInvalidState,
			Message: fmt.Sprintf("documents cannot be added while verification is %s", v.Status),
		}
	}

	doc := &model.VerificationDocument{
		UserID:    userID,
		DocType:   docType,
		ObjectKey: objectKey,
		URL:       s.urls.URL(objectKey),
	}
	if err := s.repo.AddDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("service/verification: adding document for %s: %w", userID, err)
	}
	s.logger.Info("verification document added",
		slog.String("userID", userID),
		slog.String("docType", string(docType)),
	)
	return doc, nil
}

// Submit queues the user's documents for review.
func (s *VerificationService) Submit(ctx context.Context, userID string) (*model.Verification, error) {
	v, err := s.repo.GetVerification(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/verification: loading %s: %w", userID, err)
	}
	if v.Status != model.VerificationNotSubmitted && v.Status != model.VerificationRejected {
		return nil, apperror.InvalidState("verification", string(v.Status), string(model.VerificationPending))
	}
	docs, err := s.repo.ListDocuments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/verification: listing documents of %s: %w", userID, err)
	}
	if len(docs) == 0 {
		return nil, apperror.ValidationFailed("documents", "upload at least one document before submitting")
	}

	now := s.now().UTC()
	v.Status = model.VerificationPending
	v.SubmittedAt = &now
	v.RejectionReason = ""
	if err := s.repo.SaveVerification(ctx, v); err != nil {
		return nil, fmt.Errorf("service/verification: submitting %s: %w", userID, err)
	}
	s.logger.Info("verification submitted", slog.String("userID", userID), slog.Int("documents", len(docs)))
	return v, nil
}

func (s *VerificationService) ListPending(ctx context.Context) ([]model.PendingVerification, error) {
	list, err := s.repo.ListPendingVerifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/verification: listing pending: %w", err)
	}
	return list, nil
}

// Approve marks a pending submission verified and recomputes the tier.
func (s *VerificationService) Approve(ctx context.Context, userID, adminID string) (*model.Verification, error) {
	v, err := s.decide(ctx, userID, adminID, model.VerificationVerified, "")
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, &model.Notification{
		UserID:    userID,
		Type:      model.NotifyVerification,
		Title:     "Verification approved",
		Body:      fmt.Sprintf("Your account is now verified at the %s tier.", v.Tier),
		Link:      "/verification",
		RelatedID: userID,
	})
	return v, nil
}

// Reject sends a pending submission back with a reason the user will see.
func (s *VerificationService) Reject(ctx context.Context, userID, adminID, reason string) (*model.Verification, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.ValidationFailed("reason", "reason is required")
	}
	if len([]rune(reason)) > 500 {
		return nil, apperror.ValidationFailed("reason", "reason must be at most 500 characters")
	}
	v, err := s.decide(ctx, userID, adminID, model.VerificationRejected, reason)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, &model.Notification{
		UserID:    userID,
		Type:      model.NotifyVerification,
		Title:     "Verification rejected",
		Body:      reason,
		Link:      "/verification",
		RelatedID: userID,
	})
	return v, nil
}

func (s *VerificationService) decide(ctx context.Context, userID, adminID string, to model.VerificationStatus, reason string) (*model.Verification, error) {
	v, err := s.repo.GetVerification(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/verification: loading %s: %w", userID, err)
	}
	if v.Status != model.VerificationPending {
		return nil, apperror.InvalidState("verification", string(v.Status), string(to))
	}

	now := s.now().UTC()
	v.Status = to
	v.RejectionReason = reason
	v.ReviewedAt = &now
	v.ReviewedBy = &adminID
	if err := s.recomputeTier(ctx, v); err != nil {
		return nil, err
	}
	if err := s.repo.SaveVerification(ctx, v); err != nil {
		return nil, fmt.Errorf("service/verification: saving decision for %s: %w", userID, err)
	}

	s.logger.Info("verification decided",
		slog.String("userID", userID),
		slog.String("adminID", adminID),
		slog.String("status", string(to)),
		slog.String("tier", v.Tier.String()),
	)
	return v, nil
}

// ContactChannel names a contact detail an admin can confirm.
type ContactChannel string

const (
	ContactEmail ContactChannel = "email"
	ContactPhone ContactChannel = "phone"
)

// MarkContactVerified records that the user's email or phone was confirmed.
// The user must actually have that contact on file.
func (s *VerificationService) MarkContactVerified(ctx context.Context, userID string, channel ContactChannel) (*model.Verification, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/verification: loading user %s: %w", userID, err)
	}
	v, err := s.repo.GetVerification(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/verification: loading %s: %w", userID, err)
	}

	switch channel {
	case ContactEmail:
		if user.Email == nil {
			return nil, apperror.ValidationFailed("channel", "user has no email address")
		}
		v.EmailVerified = true
	case ContactPhone:
		if user.Phone == nil {
			return nil, apperror.ValidationFailed("channel", "user has no phone number")
		}
		v.PhoneVerified = true
	default:
		return nil, apperror.ValidationFailed("channel", "channel must be email or phone")
	}

	if err := s.recomputeTierFor(ctx, v, user.AccountType); err != nil {
		return nil, err
	}
	if err := s.repo.SaveVerification(ctx, v); err != nil {
		return nil, fmt.Errorf("service/verification: saving %s: %w", userID, err)
	}

	s.notifier.Notify(ctx, &model.Notification{
		UserID:    userID,
		Type:      model.NotifyVerification,
		Title:     fmt.Sprintf("Your %s was verified", channel),
		Link:      "/verification",
		RelatedID: userID,
	})
	s.logger.Info("contact verified", slog.String("userID", userID), slog.String("channel", string(channel)))
	return v, nil
}

func (s *VerificationService) recomputeTier(ctx context.Context, v *model.Verification) error {
	user, err := s.repo.GetUserByID(ctx, v.UserID)
	if err != nil {
		return fmt.Errorf("service/verification: loading user %s: %w", v.UserID, err)
	}
	return s.recomputeTierFor(ctx, v, user.AccountType)
}

func (s *VerificationService) recomputeTierFor(ctx context.Context, v *model.Verification, account model.AccountType) error {
	docs, err := s.repo.ListDocuments(ctx, v.UserID)
	if err != nil {
		return fmt.Errorf("service/verification: listing documents of %s: %w", v.UserID, err)
	}
	v.Tier = model.ComputeTier(*v, docs, account)
	return nil
}
