package sqlstore

import (
	"context"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/agrilink/internal/model"
)

func (db *DB) GetVerification(ctx context.Context, userID string) (*model.Verification, error) {
	var v model.Verification
	err := db.conn.GetContext(ctx, &v, db.q(`SELECT * FROM user_verification WHERE user_id = ?`), userID)
	if err != nil {
		return nil, translate(err, "verification", userID, "getting verification for "+userID)
	}
	return &v, nil
}

// SaveVerification writes the whole record, creating it for accounts that
// predate the verification table.
func (db *DB) SaveVerification(ctx context.Context, v *model.Verification) error {
	v.UpdatedAt = nowUTC()
	_, err := db.conn.ExecContext(ctx, db.q(`
		INSERT INTO user_verification (user_id, email_verified, phone_verified, status, tier,
			rejection_reason, submitted_at, reviewed_at, reviewed_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			email_verified = excluded.email_verified,
			phone_verified = excluded.phone_verified,
			status = excluded.status,
			tier = excluded.tier,
			rejection_reason = excluded.rejection_reason,
			submitted_at = excluded.submitted_at,
			reviewed_at = excluded.reviewed_at,
			reviewed_by = excluded.reviewed_by,
			updated_at = excluded.updated_at`),
		v.UserID, v.EmailVerified, v.PhoneVerified, v.Status, v.Tier,
		v.RejectionReason, v.SubmittedAt, v.ReviewedAt, v.ReviewedBy, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: saving verification for %s: %w", v.UserID, err)
	}
	return nil
}

func (db *DB) AddDocument(ctx context.Context, d *model.VerificationDocument) error {
	if d.ID == "" {
		d.ID = xid.New().String()
	}
	d.CreatedAt = nowUTC()
	_, err := db.conn.ExecContext(ctx, db.q(`
		INSERT INTO verification_documents (id, user_id, doc_type, object_key, url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		d.ID, d.UserID, d.DocType, d.ObjectKey, d.URL, d.CreatedAt,
	)
	if err != nil {
		return translate(err, "verification document", d.ID, "adding verification document")
	}
	return nil
}

func (db *DB) ListDocuments(ctx context.Context, userID string) ([]model.VerificationDocument, error) {
	docs := []model.VerificationDocument{}
	err := db.conn.SelectContext(ctx, &docs, db.q(`
		SELECT * FROM verification_documents WHERE user_id = ? ORDER BY created_at, id`), userID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing documents for %s: %w", userID, err)
	}
	return docs, nil
}

// ListPendingVerifications is the admin review queue, oldest submission first.
func (db *DB) ListPendingVerifications(ctx context.Context) ([]model.PendingVerification, error) {
	out := []model.PendingVerification{}
	err := db.conn.SelectContext(ctx, &out, db.q(`
		SELECT v.user_id, v.email_verified, v.phone_verified, v.status, v.tier,
			v.rejection_reason, v.submitted_at, v.reviewed_at, v.reviewed_by, v.updated_at,
			u.name, u.user_type, u.account_type
		FROM user_verification v
		JOIN users u ON u.id = v.user_id
		WHERE v.status = ?
		ORDER BY v.submitted_at, v.user_id`), model.VerificationPending)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing pending verifications: %w", err)
	}
	return out, nil
}
