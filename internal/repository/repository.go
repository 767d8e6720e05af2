// Package repository defines the storage interfaces the services depend on.
// The sqlstore package implements all of them over database/sql; services
// tests use in-memory fakes instead.
package repository

import (
	"context"
	"time"

	"github.com/sakif/agrilink/internal/model"
)

type UserRepository interface {
	// CreateUser inserts the user and its empty verification record together.
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*model.User, error)
	GetUserByOAuth(ctx context.Context, provider, subject string) (*model.User, error)
	UpdatePassword(ctx context.Context, userID, hash string) error
	SetAdmin(ctx context.Context, userID string, admin bool) error
}

type ProfileRepository interface {
	// GetFullProfile returns the user plus every profile group that exists.
	GetFullProfile(ctx context.Context, userID string) (*model.FullProfile, error)
	// ApplyProfilePatch upserts each non-nil group in a single transaction.
	// An account type change also re-derives the verification tier.
	ApplyProfilePatch(ctx context.Context, userID string, patch model.ProfilePatch) error
}

type VerificationRepository interface {
	GetVerification(ctx context.Context, userID string) (*model.Verification, error)
	SaveVerification(ctx context.Context, v *model.Verification) error
	AddDocument(ctx context.Context, d *model.VerificationDocument) error
	ListDocuments(ctx context.Context, userID string) ([]model.VerificationDocument, error)
	ListPendingVerifications(ctx context.Context) ([]model.PendingVerification, error)
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, p *model.Product) error
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	UpdateProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, id string) error
	ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error)
}

type ChatRepository interface {
	// FindConversation looks up the thread for a buyer, seller and optional product.
	FindConversation(ctx context.Context, buyerID, sellerID string, productID *string) (*model.Conversation, error)
	CreateConversation(ctx context.Context, c *model.Conversation) error
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error)
	// CreateMessage stores m and bumps the conversation's last message.
	CreateMessage(ctx context.Context, m *model.Message) error
	// ListMessages returns messages oldest first. A non-empty afterID only
	// returns messages newer than that message.
	ListMessages(ctx context.Context, conversationID, afterID string, limit int) ([]model.Message, error)
	// MarkMessagesRead marks every message not sent by readerID as read.
	MarkMessagesRead(ctx context.Context, conversationID, readerID string) (int64, error)
}

type OfferRepository interface {
	// CreateOffer stores o and, when msg is non-nil, posts msg in the same transaction.
	CreateOffer(ctx context.Context, o *model.Offer, msg *model.Message) error
	GetOffer(ctx context.Context, id string) (*model.Offer, error)
	ListOffers(ctx context.Context, f model.OfferFilter) ([]model.Offer, error)
	// UpdateOfferStatus moves the offer from -> to only if it is still in
	// from. A lost race returns apperror.ErrConflict.
	UpdateOfferStatus(ctx context.Context, u OfferStatusUpdate) error
	// ListOverdueOffers returns pending offers whose expiry is before now.
	ListOverdueOffers(ctx context.Context, now time.Time, limit int) ([]model.Offer, error)
}

// OfferStatusUpdate is one compare-and-set transition.
type OfferStatusUpdate struct {
	OfferID        string
	From           model.OfferStatus
	To             model.OfferStatus
	TrackingNumber string // kept unchanged when empty
	At             time.Time
	Message        *model.Message // optional system message, posted atomically
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, f NotificationFilter) ([]model.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
}

type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Since      *time.Time
	Limit      int
}

type DashboardRepository interface {
	DashboardSummary(ctx context.Context, userID string) (*model.DashboardSummary, error)
}

// Store is everything the application needs from the database.
type Store interface {
	UserRepository
	ProfileRepository
	VerificationRepository
	ProductRepository
	ChatRepository
	OfferRepository
	NotificationRepository
	DashboardRepository
	Ping(ctx context.Context) error
	Close() error
}
