// Package service holds the business rules. Handlers call services with
// plain Go values; services call the repository interfaces and return
// apperror values the handlers turn into status codes.
//
//	Handler (HTTP) → Service (rules, permissions) → Repository (SQL)
//
// Nothing here imports net/http, so the same services back the API server,
// the cron job and the operator CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/auth"
	"github.com/sakif/agrilink/internal/model"
	"github.com/sakif/agrilink/internal/repository"
)

// AccountRepository is what AuthService needs from storage.
type AccountRepository interface {
	repository.UserRepository
	repository.VerificationRepository
}

// AuthService handles registration, password login, Google sign-in and
// password changes.
type AuthService struct {
	users     AccountRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger

	// dummyHash is compared against on unknown logins so a missing account
	// takes as long to reject as a wrong password.
	dummyHash string
}

func NewAuthService(
	users AccountRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	dummy, _ := passwords.Hash("agrilink-timing-equaliser")
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
		dummyHash: dummy,
	}
}

// AuthResult bundles the user and a freshly issued token.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

type RegisterInput struct {
	Email       string            `json:"email"       validate:"omitempty,email,max=254"`
	Phone       string            `json:"phone"       validate:"omitempty,min=6,max=20"`
	Password    string            `json:"password"    validate:"required,min=8"`
	Name        string            `json:"name"        validate:"required,max=100"`
	UserType    model.UserType    `json:"userType"    validate:"required,oneof=farmer trader buyer"`
	AccountType model.AccountType `json:"accountType" validate:"omitempty,oneof=individual business"`
}

// Register creates a password account and logs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	in.Phone = normalizePhone(in.Phone)
	in.Name = strings.TrimSpace(in.Name)
	if in.Email == "" && in.Phone == "" {
		return nil, apperror.ValidationFailed("email", "email or phone is required")
	}
	if err := checkInput(in); err != nil {
		return nil, err
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
	}
	if in.AccountType == "" {
		in.AccountType = model.AccountIndividual
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Email:        optional(in.Email),
		Phone:        optional(in.Phone),
		PasswordHash: hash,
		Name:         in.Name,
		UserType:     in.UserType,
		AccountType:  in.AccountType,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("userType", string(user.UserType)),
	)
	return s.issue(user)
}

// Login accepts an email address or a phone number as identifier. Unknown
// accounts and wrong passwords get the same answer.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, apperror.ValidationFailed("identifier", "email or phone is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	user, err := s.lookup(ctx, identifier)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			_ = s.passwords.Verify(s.dummyHash, password)
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("service/auth: looking up %q: %w", identifier, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			// OAuth-only accounts have no usable hash.
			s.logger.Warn("password login against unusable hash", slog.String("userID", user.ID))
		}
		return nil, errInvalidCredentials
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

var errInvalidCredentials = apperror.Unauthorized("invalid credentials")

// lookup treats identifiers containing "@" as emails and anything else as
// a phone number.
func (s *AuthService) lookup(ctx context.Context, identifier string) (*model.User, error) {
	if strings.Contains(identifier, "@") {
		return s.users.GetUserByEmail(ctx, normalizeEmail(identifier))
	}
	return s.users.GetUserByPhone(ctx, normalizePhone(identifier))
}

// SetAdmin grants or revokes the admin flag for the account with the given
// email or phone. The flag travels in the token, so it takes effect at the
// user's next sign-in.
func (s *AuthService) SetAdmin(ctx context.Context, identifier string, admin bool) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, apperror.ValidationFailed("identifier", "email or phone is required")
	}
	user, err := s.lookup(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("service/auth: looking up %q: %w", identifier, err)
	}
	if err := s.users.SetAdmin(ctx, user.ID, admin); err != nil {
		return nil, fmt.Errorf("service/auth: updating admin flag for %s: %w", user.ID, err)
	}
	user.IsAdmin = admin

	s.logger.Info("admin flag changed", slog.String("userID", user.ID), slog.Bool("admin", admin))
	return user, nil
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}
	return user, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return apperror.ValidationFailed("newPassword", "newPassword must be at least 8 characters")
	}
	if len(newPassword) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed("newPassword",
			fmt.Sprintf("newPassword must be at most %d bytes", auth.MaxPasswordBytes))
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}
	if err := s.passwords.Verify(user.PasswordHash, oldPassword); err != nil {
		return apperror.Unauthorized("current password is incorrect")
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("service/auth: hashing password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("service/auth: updating password for %s: %w", userID, err)
	}
	s.logger.Info("password changed", slog.String("userID", userID))
	return nil
}

// LoginWithOAuth signs in the account linked to the provider identity,
// creating a buyer account on first sign-in. An email the provider has
// verified counts as a verified contact.
func (s *AuthService) LoginWithOAuth(ctx context.Context, provider string, ou *auth.OAuthUser) (*AuthResult, error) {
	if ou == nil || ou.Subject == "" {
		return nil, fmt.Errorf("service/auth: %s user must have a subject", provider)
	}

	user, err := s.users.GetUserByOAuth(ctx, provider, ou.Subject)
	if err == nil {
		s.logger.Info("user logged in", slog.String("userID", user.ID), slog.String("provider", provider))
		return s.issue(user)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up %s user: %w", provider, err)
	}

	email := normalizeEmail(ou.Email)
	if email != "" {
		if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
			return nil, apperror.Conflict("user", "email already registered; sign in with your password")
		} else if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/auth: checking email: %w", err)
		}
	}

	name := strings.TrimSpace(ou.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	user = &model.User{
		Email:         optional(email),
		Name:          name,
		UserType:      model.UserTypeBuyer,
		AccountType:   model.AccountIndividual,
		OAuthProvider: &provider,
		OAuthSubject:  &ou.Subject,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating %s user: %w", provider, err)
	}

	if email != "" && ou.EmailVerified {
		v, err := s.users.GetVerification(ctx, user.ID)
		if err == nil {
			v.EmailVerified = true
			v.Tier = model.ComputeTier(*v, nil, user.AccountType)
			err = s.users.SaveVerification(ctx, v)
		}
		if err != nil {
			s.logger.Error("failed to record verified email",
				slog.String("userID", user.ID), slog.String("error", err.Error()))
		}
	}

	s.logger.Info("user registered", slog.String("userID", user.ID), slog.String("provider", provider))
	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(auth.Identity{
		UserID:  user.ID,
		Role:    string(user.UserType),
		IsAdmin: user.IsAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizePhone drops spaces, dashes and brackets so "09 420-000 000" and
// "09420000000" are the same account.
func normalizePhone(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
