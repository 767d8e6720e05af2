package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/model"
)

// GetFullProfile assembles the user and every profile group. Groups that
// were never saved come back nil.
func (db *DB) GetFullProfile(ctx context.Context, userID string) (*model.FullProfile, error) {
	u, err := db.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	fp := &model.FullProfile{User: *u}

	var (
		profile    model.Profile
		business   model.BusinessDetails
		storefront model.Storefront
		location   model.Location
		social     model.Social
		verif      model.Verification
	)
	if fp.Profile, err = getGroup(ctx, db, &profile, "user_profiles", userID); err != nil {
		return nil, err
	}
	if fp.Business, err = getGroup(ctx, db, &business, "business_details", userID); err != nil {
		return nil, err
	}
	if fp.Storefront, err = getGroup(ctx, db, &storefront, "storefront_details", userID); err != nil {
		return nil, err
	}
	if fp.Location, err = getGroup(ctx, db, &location, "locations", userID); err != nil {
		return nil, err
	}
	if fp.Social, err = getGroup(ctx, db, &social, "user_social", userID); err != nil {
		return nil, err
	}
	if fp.Verification, err = getGroup(ctx, db, &verif, "user_verification", userID); err != nil {
		return nil, err
	}
	return fp, nil
}

// getGroup loads one per-user row into dest. A missing row is not an
// error; it returns nil.
func getGroup[T any](ctx context.Context, db *DB, dest *T, table, userID string) (*T, error) {
	err := db.conn.GetContext(ctx, dest, db.q(`SELECT * FROM `+table+` WHERE user_id = ?`), userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("sqlstore: loading %s for %s: %w", table, userID, err)
	}
	return dest, nil
}

// ApplyProfilePatch writes every group present in patch, all or nothing.
func (db *DB) ApplyProfilePatch(ctx context.Context, userID string, patch model.ProfilePatch) error {
	now := nowUTC()
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := db.touchUser(ctx, tx, userID, patch, now); err != nil {
			return err
		}
		if patch.AccountType != nil {
			if err := db.retier(ctx, tx, userID, *patch.AccountType, now); err != nil {
				return err
			}
		}

		if p := patch.Profile; p != nil {
			if err := db.upsert(ctx, tx, "user_profiles",
				[]string{"bio", "profile_image", "cover_image"},
				userID, now, p.Bio, p.ProfileImage, p.CoverImage); err != nil {
				return err
			}
		}
		if b := patch.Business; b != nil {
			if err := db.upsert(ctx, tx, "business_details",
				[]string{"business_name", "business_type", "registration_number", "description"},
				userID, now, b.BusinessName, b.BusinessType, b.RegistrationNumber, b.Description); err != nil {
				return err
			}
		}
		if s := patch.Storefront; s != nil {
			if err := db.upsert(ctx, tx, "storefront_details",
				[]string{"tagline", "business_hours", "delivery_options", "payment_methods", "return_policy"},
				userID, now, s.Tagline, s.BusinessHours, s.DeliveryOptions, s.PaymentMethods, s.ReturnPolicy); err != nil {
				return err
			}
		}
		if l := patch.Location; l != nil {
			if err := db.upsert(ctx, tx, "locations",
				[]string{"region", "township", "address"},
				userID, now, l.Region, l.Township, l.Address); err != nil {
				return err
			}
		}
		if s := patch.Social; s != nil {
			if err := db.upsert(ctx, tx, "user_social",
				[]string{"facebook", "viber", "telegram", "website"},
				userID, now, s.Facebook, s.Viber, s.Telegram, s.Website); err != nil {
				return err
			}
		}
		return nil
	})
}

// touchUser applies the users-table part of the patch and fails with
// NotFound when the user does not exist, so group rows never dangle.
func (db *DB) touchUser(ctx context.Context, tx *sqlx.Tx, userID string, patch model.ProfilePatch, now time.Time) error {
	set := "updated_at = ?"
	args := []any{now}
	if patch.Name != nil {
		set += ", name = ?"
		args = append(args, *patch.Name)
	}
	if patch.AccountType != nil {
		set += ", account_type = ?"
		args = append(args, *patch.AccountType)
	}
	args = append(args, userID)

	res, err := tx.ExecContext(ctx, db.q(`UPDATE users SET `+set+` WHERE id = ?`), args...)
	if err != nil {
		return fmt.Errorf("sqlstore: updating user %s: %w", userID, err)
	}
	return affectedOne(res, apperror.NotFound("user", userID))
}

// retier re-derives the stored verification tier for a new account type.
// The business tier depends on it, so the badge must follow the change.
func (db *DB) retier(ctx context.Context, tx *sqlx.Tx, userID string, account model.AccountType, now time.Time) error {
	var v model.Verification
	err := tx.GetContext(ctx, &v, db.q(`SELECT * FROM user_verification WHERE user_id = ?`), userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("sqlstore: loading verification for %s: %w", userID, err)
	}

	docs := []model.VerificationDocument{}
	if err := tx.SelectContext(ctx, &docs, db.q(`SELECT * FROM verification_documents WHERE user_id = ?`), userID); err != nil {
		return fmt.Errorf("sqlstore: listing documents for %s: %w", userID, err)
	}
	tier := model.ComputeTier(v, docs, account)
	if tier == v.Tier {
		return nil
	}
	if _, err := tx.ExecContext(ctx, db.q(`UPDATE user_verification SET tier = ?, updated_at = ? WHERE user_id = ?`),
		tier, now, userID); err != nil {
		return fmt.Errorf("sqlstore: updating tier for %s: %w", userID, err)
	}
	return nil
}

// upsert inserts or replaces the one-row-per-user group in table.
// INSERT ... ON CONFLICT DO UPDATE is understood by Postgres and SQLite 3.24+.
func (db *DB) upsert(ctx context.Context, tx *sqlx.Tx, table string, cols []string, userID string, now time.Time, vals ...any) error {
	query := "INSERT INTO " + table + " (user_id"
	placeholders := "?"
	update := ""
	for _, c := range cols {
		query += ", " + c
		placeholders += ", ?"
		update += c + " = excluded." + c + ", "
	}
	query += ", updated_at) VALUES (" + placeholders + ", ?) ON CONFLICT (user_id) DO UPDATE SET " +
		update + "updated_at = excluded.updated_at"

	args := make([]any, 0, len(vals)+2)
	args = append(args, userID)
	args = append(args, vals...)
	args = append(args, now)

	if _, err := tx.ExecContext(ctx, db.q(query), args...); err != nil {
		return fmt.Errorf("sqlstore: upserting %s for %s: %w", table, userID, err)
	}
	return nil
}
