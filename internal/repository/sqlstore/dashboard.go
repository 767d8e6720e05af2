package sqlstore

import (
	"context"
	"fmt"

	"github.com/sakif/agrilink/internal/model"
)

// DashboardSummary counts everything in one round trip.
func (db *DB) DashboardSummary(ctx context.Context, userID string) (*model.DashboardSummary, error) {
	var s model.DashboardSummary
	err := db.conn.GetContext(ctx, &s, db.q(`
		SELECT
			(SELECT COUNT(*) FROM products WHERE seller_id = ?) AS products,
			(SELECT COUNT(*) FROM offers
			  WHERE (buyer_id = ? OR seller_id = ?)
			    AND status IN (?, ?, ?, ?, ?, ?)) AS active_offers,
			(SELECT COUNT(*) FROM offers
			  WHERE (buyer_id = ? OR seller_id = ?) AND status = ?) AS completed_offers,
			(SELECT COUNT(*) FROM messages m
			  JOIN conversations c ON c.id = m.conversation_id
			  WHERE (c.buyer_id = ? OR c.seller_id = ?)
			    AND m.sender_id <> ? AND m.is_read = ?) AS unread_messages,
			(SELECT COUNT(*) FROM notifications
			  WHERE user_id = ? AND is_read = ?) AS unread_notifications`),
		userID,
		userID, userID,
		model.OfferPending, model.OfferAccepted, model.OfferToShip,
		model.OfferShipped, model.OfferDelivered, model.OfferReceived,
		userID, userID, model.OfferCompleted,
		userID, userID, userID, false,
		userID, false,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: loading dashboard for %s: %w", userID, err)
	}
	return &s, nil
}
