package model

import "time"

// The profile is split across several tables, one per field group. A group
// row only exists once the user has saved that group, so reads return nil
// for groups that were never written.

type Profile struct {
	UserID       string    `json:"-"            db:"user_id"`
	Bio          string    `json:"bio"          db:"bio"`
	ProfileImage string    `json:"profileImage" db:"profile_image"`
	CoverImage   string    `json:"coverImage"   db:"cover_image"`
	UpdatedAt    time.Time `json:"updatedAt"    db:"updated_at"`
}

type BusinessDetails struct {
	UserID             string    `json:"-"                  db:"user_id"`
	BusinessName       string    `json:"businessName"       db:"business_name"`
	BusinessType       string    `json:"businessType"       db:"business_type"`
	RegistrationNumber string    `json:"registrationNumber" db:"registration_number"`
	Description        string    `json:"description"        db:"description"`
	UpdatedAt          time.Time `json:"updatedAt"          db:"updated_at"`
}

type Storefront struct {
	UserID          string     `json:"-"               db:"user_id"`
	Tagline         string     `json:"tagline"         db:"tagline"`
	BusinessHours   string     `json:"businessHours"   db:"business_hours"`
	DeliveryOptions StringList `json:"deliveryOptions" db:"delivery_options"`
	PaymentMethods  StringList `json:"paymentMethods"  db:"payment_methods"`
	ReturnPolicy    string     `json:"returnPolicy"    db:"return_policy"`
	UpdatedAt       time.Time  `json:"updatedAt"       db:"updated_at"`
}

type Location struct {
	UserID    string    `json:"-"         db:"user_id"`
	Region    string    `json:"region"    db:"region"`
	Township  string    `json:"township"  db:"township"`
	Address   string    `json:"address"   db:"address"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type Social struct {
	UserID    string    `json:"-"         db:"user_id"`
	Facebook  string    `json:"facebook"  db:"facebook"`
	Viber     string    `json:"viber"     db:"viber"`
	Telegram  string    `json:"telegram"  db:"telegram"`
	Website   string    `json:"website"   db:"website"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// FullProfile is everything known about a user, assembled from all groups.
type FullProfile struct {
	User         User             `json:"user"`
	Profile      *Profile         `json:"profile"`
	Business     *BusinessDetails `json:"business"`
	Storefront   *Storefront      `json:"storefront"`
	Location     *Location        `json:"location"`
	Social       *Social          `json:"social"`
	Verification *Verification    `json:"verification"`
}

// ProfilePatch carries the groups a client wants to change. Nil groups are
// left alone; a non-nil group replaces the stored row for that group.
type ProfilePatch struct {
	Name        *string
	AccountType *AccountType
	Profile     *Profile
	Business    *BusinessDetails
	Storefront  *Storefront
	Location    *Location
	Social      *Social
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.Name == nil && p.AccountType == nil && p.Profile == nil &&
		p.Business == nil && p.Storefront == nil && p.Location == nil && p.Social == nil
}
