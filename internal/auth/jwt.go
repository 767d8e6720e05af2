// Package auth provides password hashing, JWT access tokens and the HTTP
// middleware that turns a bearer token into an Identity on the request context.
//
// AUTHENTICATION FLOW:
//  1. Client registers or logs in via /api/auth/* with email/phone + password
//     (or signs in with Google when configured).
//  2. Server issues a signed JWT carrying the user id, user type and admin flag.
//  3. Client sends it back as "Authorization: Bearer <jwt>" on every request,
//     including the 2-5 second polling calls for messages and notifications.
//  4. Middleware validates the signature and expiry without a DB lookup.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<userID>","role":"farmer","adm":false,"exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "agrilink"

// DefaultTTL is used when NewTokenService is given a non-positive ttl.
const DefaultTTL = 24 * time.Hour

// Identity is what a valid token tells us about the caller.
type Identity struct {
	UserID  string
	Role    string // user type: farmer, trader or buyer
	IsAdmin bool
}

// TokenService handles JWT creation and validation.
//
// The same HMAC secret signs and verifies; rotating it logs everybody out.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and token lifetime.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// claims is the JWT payload. "sub" holds the user id; the role and admin
// flag let handlers make coarse authorization decisions without a DB hit.
type claims struct {
	Role  string `json:"role"`
	Admin bool   `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

// Generate signs a token for id using the service's configured lifetime.
func (s *TokenService) Generate(id Identity) (string, error) {
	return s.GenerateWithDuration(id, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime.
// Tests use a negative duration to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(id Identity, d time.Duration) (string, error) {
	if id.UserID == "" {
		return "", errors.New("auth: cannot issue a token without a user id")
	}
	now := time.Now()

	c := claims{
		Role:  id.Role,
		Admin: id.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// TTL returns the lifetime of tokens issued by Generate.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Validate parses and verifies a JWT string and returns the caller's identity.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid
//   - Token is not expired, and carries an expiry at all
//   - Issuer is "agrilink"
//   - Algorithm is HS256 (blocks "alg":"none" and algorithm confusion)
func (s *TokenService) Validate(tokenStr string) (Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, fmt.Errorf("auth: token expired")
		}
		return Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("auth: token has no subject")
	}

	return Identity{UserID: c.Subject, Role: c.Role, IsAdmin: c.Admin}, nil
}
