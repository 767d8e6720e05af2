package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/agrilink/internal/model"
	"github.com/sakif/agrilink/internal/repository"
)

// NotificationService stores in-app notifications and serves the bell icon.
// Clients poll List with a since cursor.
type NotificationService struct {
	repo   repository.NotificationRepository
	logger *slog.Logger
}

func NewNotificationService(repo repository.NotificationRepository, logger *slog.Logger) *NotificationService {
	return &NotificationService{repo: repo, logger: logger}
}

// Notify records n. Failure is logged, not returned: a missed notification
// must never undo the chat message or offer change that caused it.
func (s *NotificationService) Notify(ctx context.Context, n *model.Notification) {
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		s.logger.Error("failed to create notification",
			slog.String("userID", n.UserID),
			slog.String("type", string(n.Type)),
			slog.String("relatedID", n.RelatedID),
			slog.String("error", err.Error()),
		)
	}
}

type NotificationQuery struct {
	UnreadOnly bool
	Since      *time.Time
	Limit      int
}

func (s *NotificationService) List(ctx context.Context, userID string, q NotificationQuery) ([]model.Notification, error) {
	list, err := s.repo.ListNotifications(ctx, repository.NotificationFilter{
		UserID:     userID,
		UnreadOnly: q.UnreadOnly,
		Since:      q.Since,
		Limit:      q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("service/notification: listing for %s: %w", userID, err)
	}
	return list, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	n, err := s.repo.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("service/notification: counting for %s: %w", userID, err)
	}
	return n, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if err := s.repo.MarkNotificationRead(ctx, userID, id); err != nil {
		return fmt.Errorf("service/notification: marking %s read: %w", id, err)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("service/notification: marking all read for %s: %w", userID, err)
	}
	return n, nil
}
