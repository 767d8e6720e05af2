// Package model defines the data structures used throughout the application.
package model

import "time"

// UserType is the marketplace role a user signed up as.
type UserType string

const (
	UserTypeFarmer UserType = "farmer"
	UserTypeTrader UserType = "trader"
	UserTypeBuyer  UserType = "buyer"
)

// Valid reports whether t is one of the known user types.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeFarmer, UserTypeTrader, UserTypeBuyer:
		return true
	}
	return false
}

// CanSell reports whether users of this type may list products.
func (t UserType) CanSell() bool {
	return t == UserTypeFarmer || t == UserTypeTrader
}

type AccountType string

const (
	AccountIndividual AccountType = "individual"
	AccountBusiness   AccountType = "business"
)

func (a AccountType) Valid() bool {
	return a == AccountIndividual || a == AccountBusiness
}

// User represents a registered account.
//
// Email and Phone are both optional but at least one is set for password
// accounts. They are pointers so that the UNIQUE constraints in the schema
// ignore accounts that never supplied one (NULLs never collide).
type User struct {
	ID            string      `json:"id"                  db:"id"`
	Email         *string     `json:"email,omitempty"     db:"email"`
	Phone         *string     `json:"phone,omitempty"     db:"phone"`
	PasswordHash  string      `json:"-"                   db:"password_hash"`
	Name          string      `json:"name"                db:"name"`
	UserType      UserType    `json:"userType"            db:"user_type"`
	AccountType   AccountType `json:"accountType"         db:"account_type"`
	IsAdmin       bool        `json:"isAdmin"             db:"is_admin"`
	OAuthProvider *string     `json:"-"                   db:"oauth_provider"`
	OAuthSubject  *string     `json:"-"                   db:"oauth_subject"`
	CreatedAt     time.Time   `json:"createdAt"           db:"created_at"`
	UpdatedAt     time.Time   `json:"updatedAt"           db:"updated_at"`
}

// Public returns a copy of u without contact details.
func (u User) Public() User {
	u.Email = nil
	u.Phone = nil
	return u
}
