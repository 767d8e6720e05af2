package model

import "time"

// Conversation is a 1:1 thread between a buyer and a seller, optionally
// about one product.
type Conversation struct {
	ID            string     `json:"id"                      db:"id"`
	BuyerID       string     `json:"buyerId"                 db:"buyer_id"`
	SellerID      string     `json:"sellerId"                db:"seller_id"`
	ProductID     *string    `json:"productId,omitempty"     db:"product_id"`
	LastMessage   string     `json:"lastMessage"             db:"last_message"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty" db:"last_message_at"`
	CreatedAt     time.Time  `json:"createdAt"               db:"created_at"`
}

// HasParticipant reports whether userID is the buyer or the seller.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.BuyerID == userID || c.SellerID == userID
}

// Counterpart returns the other participant's id.
func (c *Conversation) Counterpart(userID string) string {
	if c.BuyerID == userID {
		return c.SellerID
	}
	return c.BuyerID
}

// ConversationSummary is a conversation as seen from one participant's inbox.
type ConversationSummary struct {
	Conversation
	OtherUserID   string  `json:"otherUserId"           db:"other_user_id"`
	OtherUserName string  `json:"otherUserName"         db:"other_user_name"`
	ProductName   *string `json:"productName,omitempty" db:"product_name"`
	UnreadCount   int     `json:"unreadCount"           db:"unread_count"`
}

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageOffer  MessageType = "offer"
	MessageSystem MessageType = "system"
)

type Message struct {
	ID             string      `json:"id"                db:"id"`
	ConversationID string      `json:"conversationId"    db:"conversation_id"`
	SenderID       string      `json:"senderId"          db:"sender_id"`
	Content        string      `json:"content"           db:"content"`
	MessageType    MessageType `json:"messageType"       db:"message_type"`
	OfferID        *string     `json:"offerId,omitempty" db:"offer_id"`
	IsRead         bool        `json:"isRead"            db:"is_read"`
	CreatedAt      time.Time   `json:"createdAt"         db:"created_at"`
}
