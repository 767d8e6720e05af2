package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/model"
)

const userColumns = `id, email, phone, password_hash, name, user_type, account_type,
	is_admin, oauth_provider, oauth_subject, created_at, updated_at`

// CreateUser inserts u and its verification record in one transaction.
// ID and timestamps are filled in when empty.
func (db *DB) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = xid.New().String()
	}
	now := nowUTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.AccountType == "" {
		u.AccountType = model.AccountIndividual
	}

	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, db.q(`
			INSERT INTO users (`+userColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			u.ID, u.Email, u.Phone, u.PasswordHash, u.Name, u.UserType, u.AccountType,
			u.IsAdmin, u.OAuthProvider, u.OAuthSubject, u.CreatedAt, u.UpdatedAt,
		)
		if err != nil {
			return translate(err, "user", u.ID, "inserting user")
		}

		_, err = tx.ExecContext(ctx, db.q(`
			INSERT INTO user_verification (user_id, status, tier, updated_at)
			VALUES (?, ?, ?, ?)`),
			u.ID, model.VerificationNotSubmitted, model.TierUnverified, now,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: creating verification for user %s: %w", u.ID, err)
		}
		return nil
	})
}

func (db *DB) getUser(ctx context.Context, where, label string, arg any) (*model.User, error) {
	var u model.User
	err := db.conn.GetContext(ctx, &u, db.q(`SELECT `+userColumns+` FROM users WHERE `+where), arg)
	if err != nil {
		return nil, translate(err, "user", label, "getting user "+label)
	}
	return &u, nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, "id = ?", id, id)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, "email = ?", email, email)
}

func (db *DB) GetUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	return db.getUser(ctx, "phone = ?", phone, phone)
}

func (db *DB) GetUserByOAuth(ctx context.Context, provider, subject string) (*model.User, error) {
	var u model.User
	err := db.conn.GetContext(ctx, &u, db.q(`SELECT `+userColumns+` FROM users
		WHERE oauth_provider = ? AND oauth_subject = ?`), provider, subject)
	if err != nil {
		label := provider + ":" + subject
		return nil, translate(err, "user", label, "getting user "+label)
	}
	return &u, nil
}

func (db *DB) UpdatePassword(ctx context.Context, userID, hash string) error {
	res, err := db.conn.ExecContext(ctx, db.q(`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`),
		hash, nowUTC(), userID)
	if err != nil {
		return fmt.Errorf("sqlstore: updating password for %s: %w", userID, err)
	}
	return affectedOne(res, apperror.NotFound("user", userID))
}

func (db *DB) SetAdmin(ctx context.Context, userID string, admin bool) error {
	res, err := db.conn.ExecContext(ctx, db.q(`UPDATE users SET is_admin = ?, updated_at = ? WHERE id = ?`),
		admin, nowUTC(), userID)
	if err != nil {
		return fmt.Errorf("sqlstore: setting admin flag for %s: %w", userID, err)
	}
	return affectedOne(res, apperror.NotFound("user", userID))
}
