package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/model"
	"github.com/sakif/agrilink/internal/repository"
)

func (db *DB) CreateNotification(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		n.ID = xid.New().String()
	}
	n.CreatedAt = nowUTC()
	_, err := db.conn.ExecContext(ctx, db.q(`
		INSERT INTO notifications (id, user_id, type, title, body, link, related_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		n.ID, n.UserID, n.Type, n.Title, n.Body, n.Link, n.RelatedID, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return translate(err, "notification", n.ID, "inserting notification")
	}
	return nil
}

// ListNotifications returns the newest notifications first.
func (db *DB) ListNotifications(ctx context.Context, f repository.NotificationFilter) ([]model.Notification, error) {
	where := []string{"user_id = ?"}
	args := []any{f.UserID}
	if f.UnreadOnly {
		where = append(where, "is_read = ?")
		args = append(args, false)
	}
	if f.Since != nil {
		where = append(where, "created_at > ?")
		args = append(args, f.Since.UTC())
	}
	args = append(args, clampLimit(f.Limit))

	out := []model.Notification{}
	query := `SELECT * FROM notifications WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id DESC LIMIT ?`
	if err := db.conn.SelectContext(ctx, &out, db.q(query), args...); err != nil {
		return nil, fmt.Errorf("sqlstore: listing notifications for %s: %w", f.UserID, err)
	}
	return out, nil
}

func (db *DB) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var n int
	err := db.conn.GetContext(ctx, &n, db.q(`
		SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = ?`), userID, false)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: counting notifications for %s: %w", userID, err)
	}
	return n, nil
}

// MarkNotificationRead only touches the caller's own notification; someone
// else's id is reported as not found.
func (db *DB) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := db.conn.ExecContext(ctx, db.q(`
		UPDATE notifications SET is_read = ? WHERE id = ? AND user_id = ?`), true, id, userID)
	if err != nil {
		return fmt.Errorf("sqlstore: marking notification %s read: %w", id, err)
	}
	return affectedOne(res, apperror.NotFound("notification", id))
}

func (db *DB) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, db.q(`
		UPDATE notifications SET is_read = ? WHERE user_id = ? AND is_read = ?`), true, userID, false)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: marking notifications read for %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: reading rows affected: %w", err)
	}
	return n, nil
}
