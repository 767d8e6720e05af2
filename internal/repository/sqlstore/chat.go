package sqlstore

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/model"
)

const conversationColumns = `id, buyer_id, seller_id, product_id, last_message, last_message_at, created_at`

// messagePreviewLen caps conversations.last_message.
const messagePreviewLen = 200

func (db *DB) FindConversation(ctx context.Context, buyerID, sellerID string, productID *string) (*model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE buyer_id = ? AND seller_id = ? AND `
	args := []any{buyerID, sellerID}
	if productID == nil {
		query += "product_id IS NULL"
	} else {
		query += "product_id = ?"
		args = append(args, *productID)
	}

	var c model.Conversation
	if err := db.conn.GetContext(ctx, &c, db.q(query), args...); err != nil {
		return nil, translate(err, "conversation", buyerID+"/"+sellerID, "finding conversation")
	}
	return &c, nil
}

func (db *DB) CreateConversation(ctx context.Context, c *model.Conversation) error {
	if c.ID == "" {
		c.ID = xid.New().String()
	}
	c.CreatedAt = nowUTC()
	_, err := db.conn.ExecContext(ctx, db.q(`
		INSERT INTO conversations (`+conversationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.BuyerID, c.SellerID, c.ProductID, c.LastMessage, c.LastMessageAt, c.CreatedAt,
	)
	if err != nil {
		return translate(err, "conversation", c.ID, "inserting conversation")
	}
	return nil
}

func (db *DB) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var c model.Conversation
	err := db.conn.GetContext(ctx, &c, db.q(`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`), id)
	if err != nil {
		return nil, translate(err, "conversation", id, "getting conversation "+id)
	}
	return &c, nil
}

// ListConversations is userID's inbox, most recently active first.
func (db *DB) ListConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	out := []model.ConversationSummary{}
	err := db.conn.SelectContext(ctx, &out, db.q(`
		SELECT c.id, c.buyer_id, c.seller_id, c.product_id, c.last_message, c.last_message_at, c.created_at,
			u.id AS other_user_id,
			u.name AS other_user_name,
			p.name AS product_name,
			(SELECT COUNT(*) FROM messages m
			  WHERE m.conversation_id = c.id AND m.sender_id <> ? AND m.is_read = ?) AS unread_count
		FROM conversations c
		JOIN users u ON u.id = CASE WHEN c.buyer_id = ? THEN c.seller_id ELSE c.buyer_id END
		LEFT JOIN products p ON p.id = c.product_id
		WHERE c.buyer_id = ? OR c.seller_id = ?
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC, c.id DESC`),
		userID, false, userID, userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing conversations for %s: %w", userID, err)
	}
	return out, nil
}

func (db *DB) CreateMessage(ctx context.Context, m *model.Message) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		return db.insertMessage(ctx, tx, m)
	})
}

// insertMessage stores m and updates the conversation preview. It is shared
// with the offer writes, which post their chat message in the same transaction.
func (db *DB) insertMessage(ctx context.Context, tx *sqlx.Tx, m *model.Message) error {
	if m.ID == "" {
		m.ID = xid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = nowUTC()
	}
	if m.MessageType == "" {
		m.MessageType = model.MessageText
	}

	_, err := tx.ExecContext(ctx, db.q(`
		INSERT INTO messages (id, conversation_id, sender_id, content, message_type, offer_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		m.ID, m.ConversationID, m.SenderID, m.Content, m.MessageType, m.OfferID, m.IsRead, m.CreatedAt,
	)
	if err != nil {
		return translate(err, "message", m.ID, "inserting message")
	}

	res, err := tx.ExecContext(ctx, db.q(`
		UPDATE conversations SET last_message = ?, last_message_at = ? WHERE id = ?`),
		preview(m.Content), m.CreatedAt, m.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: updating conversation %s: %w", m.ConversationID, err)
	}
	return affectedOne(res, apperror.NotFound("conversation", m.ConversationID))
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= messagePreviewLen {
		return s
	}
	return string(r[:messagePreviewLen])
}

// ListMessages returns up to limit messages oldest first. Without afterID
// that is the most recent page; with it, the messages that follow afterID,
// which is what polling clients ask for.
func (db *DB) ListMessages(ctx context.Context, conversationID, afterID string, limit int) ([]model.Message, error) {
	query := `SELECT * FROM messages WHERE conversation_id = ?`
	args := []any{conversationID}

	if afterID != "" {
		var cursor struct {
			ID        string    `db:"id"`
			CreatedAt time.Time `db:"created_at"`
		}
		err := db.conn.GetContext(ctx, &cursor, db.q(`
			SELECT id, created_at FROM messages WHERE id = ? AND conversation_id = ?`),
			afterID, conversationID)
		if err != nil {
			return nil, translate(err, "message", afterID, "loading message cursor")
		}
		query += ` AND (created_at > ? OR (created_at = ? AND id > ?))`
		args = append(args, cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	// Without a cursor the client wants the latest page, so read it
	// backwards and flip it.
	newestFirst := afterID == ""
	if newestFirst {
		query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	} else {
		query += ` ORDER BY created_at, id LIMIT ?`
	}
	args = append(args, clampMessageLimit(limit))

	msgs := []model.Message{}
	if err := db.conn.SelectContext(ctx, &msgs, db.q(query), args...); err != nil {
		return nil, fmt.Errorf("sqlstore: listing messages for %s: %w", conversationID, err)
	}
	if newestFirst {
		slices.Reverse(msgs)
	}
	return msgs, nil
}

func clampMessageLimit(n int) int {
	if n <= 0 || n > 500 {
		return 500
	}
	return n
}

func (db *DB) MarkMessagesRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, db.q(`
		UPDATE messages SET is_read = ?
		WHERE conversation_id = ? AND sender_id <> ? AND is_read = ?`),
		true, conversationID, readerID, false,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: marking messages read in %s: %w", conversationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: reading rows affected: %w", err)
	}
	return n, nil
}
