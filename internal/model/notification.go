package model

import "time"

type NotificationType string

const (
	NotifyMessage      NotificationType = "message"
	NotifyOffer        NotificationType = "offer"
	NotifyVerification NotificationType = "verification"
)

type Notification struct {
	ID        string           `json:"id"        db:"id"`
	UserID    string           `json:"userId"    db:"user_id"`
	Type      NotificationType `json:"type"      db:"type"`
	Title     string           `json:"title"     db:"title"`
	Body      string           `json:"body"      db:"body"`
	Link      string           `json:"link"      db:"link"`
	RelatedID string           `json:"relatedId" db:"related_id"`
	IsRead    bool             `json:"isRead"    db:"is_read"`
	CreatedAt time.Time        `json:"createdAt" db:"created_at"`
}

// DashboardSummary is the at-a-glance view for a signed-in user.
type DashboardSummary struct {
	Products            int `json:"products"            db:"products"`
	ActiveOffers        int `json:"activeOffers"        db:"active_offers"`
	CompletedOffers     int `json:"completedOffers"     db:"completed_offers"`
	UnreadMessages      int `json:"unreadMessages"      db:"unread_messages"`
	UnreadNotifications int `json:"unreadNotifications" db:"unread_notifications"`
}
