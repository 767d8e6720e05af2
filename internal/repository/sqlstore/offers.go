package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/model"
	"github.com/sakif/agrilink/internal/repository"
)

// CreateOffer stores o and posts msg (if any) in the same transaction, so
// the chat never shows an offer that does not exist.
func (db *DB) CreateOffer(ctx context.Context, o *model.Offer, msg *model.Message) error {
	if o.ID == "" {
		o.ID = xid.New().String()
	}
	now := nowUTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	if o.Status == "" {
		o.Status = model.OfferPending
	}

	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, db.q(`
			INSERT INTO offers (id, conversation_id, product_id, buyer_id, seller_id, created_by,
				price, quantity, unit, delivery_terms, note, status, tracking_number,
				expires_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			o.ID, o.ConversationID, o.ProductID, o.BuyerID, o.SellerID, o.CreatedBy,
			o.Price, o.Quantity, o.Unit, o.DeliveryTerms, o.Note, o.Status, o.TrackingNumber,
			o.ExpiresAt.UTC(), o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return translate(err, "offer", o.ID, "inserting offer")
		}
		if msg == nil {
			return nil
		}
		msg.OfferID = &o.ID
		return db.insertMessage(ctx, tx, msg)
	})
}

func (db *DB) GetOffer(ctx context.Context, id string) (*model.Offer, error) {
	var o model.Offer
	if err := db.conn.GetContext(ctx, &o, db.q(`SELECT * FROM offers WHERE id = ?`), id); err != nil {
		return nil, translate(err, "offer", id, "getting offer "+id)
	}
	return &o, nil
}

// ListOffers returns offers the user takes part in, most recently changed first.
func (db *DB) ListOffers(ctx context.Context, f model.OfferFilter) ([]model.Offer, error) {
	var (
		where []string
		args  []any
	)
	switch f.Role {
	case model.ActorBuyer:
		where = append(where, "buyer_id = ?")
		args = append(args, f.UserID)
	case model.ActorSeller:
		where = append(where, "seller_id = ?")
		args = append(args, f.UserID)
	default:
		where = append(where, "(buyer_id = ? OR seller_id = ?)")
		args = append(args, f.UserID, f.UserID)
	}
	if f.ConversationID != "" {
		where = append(where, "conversation_id = ?")
		args = append(args, f.ConversationID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Since != nil {
		where = append(where, "updated_at > ?")
		args = append(args, f.Since.UTC())
	}
	args = append(args, clampLimit(f.Limit))

	offers := []model.Offer{}
	query := `SELECT * FROM offers WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY updated_at DESC, id DESC LIMIT ?`
	if err := db.conn.SelectContext(ctx, &offers, db.q(query), args...); err != nil {
		return nil, fmt.Errorf("sqlstore: listing offers for %s: %w", f.UserID, err)
	}
	return offers, nil
}

// UpdateOfferStatus applies one transition with compare-and-set on the
// current status. When nothing matched it tells NotFound apart from a
// concurrent change.
func (db *DB) UpdateOfferStatus(ctx context.Context, u repository.OfferStatusUpdate) error {
	at := u.At.UTC()
	if u.At.IsZero() {
		at = nowUTC()
	}

	set := "status = ?, updated_at = ?"
	args := []any{u.To, at}
	if u.TrackingNumber != "" {
		set += ", tracking_number = ?"
		args = append(args, u.TrackingNumber)
	}
	args = append(args, u.OfferID, u.From)

	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, db.q(`UPDATE offers SET `+set+` WHERE id = ? AND status = ?`), args...)
		if err != nil {
			return fmt.Errorf("sqlstore: updating offer %s: %w", u.OfferID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlstore: reading rows affected: %w", err)
		}
		if n == 0 {
			var current model.OfferStatus
			err := tx.GetContext(ctx, &current, db.q(`SELECT status FROM offers WHERE id = ?`), u.OfferID)
			if err != nil {
				return translate(err, "offer", u.OfferID, "reloading offer "+u.OfferID)
			}
			return apperror.Conflict("offer", fmt.Sprintf("status is now %s", current))
		}

		if u.Message == nil {
			return nil
		}
		u.Message.OfferID = &u.OfferID
		if u.Message.CreatedAt.IsZero() {
			u.Message.CreatedAt = at
		}
		return db.insertMessage(ctx, tx, u.Message)
	})
}

func (db *DB) ListOverdueOffers(ctx context.Context, now time.Time, limit int) ([]model.Offer, error) {
	offers := []model.Offer{}
	err := db.conn.SelectContext(ctx, &offers, db.q(`
		SELECT * FROM offers WHERE status = ? AND expires_at < ?
		ORDER BY expires_at, id LIMIT ?`),
		model.OfferPending, now.UTC(), clampOverdueLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing overdue offers: %w", err)
	}
	return offers, nil
}

func clampOverdueLimit(n int) int {
	if n <= 0 || n > 1000 {
		return 1000
	}
	return n
}
