package model

import "time"

type VerificationStatus string

const (
	VerificationNotSubmitted VerificationStatus = "not_submitted"
	VerificationPending      VerificationStatus = "pending"
	VerificationVerified     VerificationStatus = "verified"
	VerificationRejected     VerificationStatus = "rejected"
)

// Tier is the trust level shown next to a seller's name.
type Tier int

const (
	TierUnverified Tier = iota
	TierContact         // email or phone confirmed
	TierIdentity        // national ID reviewed and approved
	TierBusiness        // identity plus an approved business document
)

func (t Tier) String() string {
	switch t {
	case TierContact:
		return "contact"
	case TierIdentity:
		return "identity"
	case TierBusiness:
		return "business"
	default:
		return "unverified"
	}
}

type DocType string

const (
	DocNationalID      DocType = "national_id"
	DocBusinessLicense DocType = "business_license"
	DocFarmCertificate DocType = "farm_certificate"
	DocOther           DocType = "other"
)

func (d DocType) Valid() bool {
	switch d {
	case DocNationalID, DocBusinessLicense, DocFarmCertificate, DocOther:
		return true
	}
	return false
}

type Verification struct {
	UserID          string             `json:"userId"                    db:"user_id"`
	EmailVerified   bool               `json:"emailVerified"             db:"email_verified"`
	PhoneVerified   bool               `json:"phoneVerified"             db:"phone_verified"`
	Status          VerificationStatus `json:"status"                    db:"status"`
	Tier            Tier               `json:"tier"                      db:"tier"`
	RejectionReason string             `json:"rejectionReason,omitempty" db:"rejection_reason"`
	SubmittedAt     *time.Time         `json:"submittedAt,omitempty"     db:"submitted_at"`
	ReviewedAt      *time.Time         `json:"reviewedAt,omitempty"      db:"reviewed_at"`
	ReviewedBy      *string            `json:"reviewedBy,omitempty"      db:"reviewed_by"`
	UpdatedAt       time.Time          `json:"updatedAt"                 db:"updated_at"`
}

type VerificationDocument struct {
	ID        string    `json:"id"        db:"id"`
	UserID    string    `json:"userId"    db:"user_id"`
	DocType   DocType   `json:"docType"   db:"doc_type"`
	ObjectKey string    `json:"objectKey" db:"object_key"`
	URL       string    `json:"url"       db:"url"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// PendingVerification is a row in the admin review queue.
type PendingVerification struct {
	Verification
	Name        string      `json:"name"        db:"name"`
	UserType    UserType    `json:"userType"    db:"user_type"`
	AccountType AccountType `json:"accountType" db:"account_type"`
}

// ComputeTier derives the tier from the verification record, the submitted
// documents and the account type. Document-based tiers only count once an
// admin has approved the submission.
func ComputeTier(v Verification, docs []VerificationDocument, account AccountType) Tier {
	tier := TierUnverified
	if v.EmailVerified || v.PhoneVerified {
		tier = TierContact
	}
	if v.Status != VerificationVerified {
		return tier
	}

	var hasID, hasBusinessDoc bool
	for _, d := range docs {
		switch d.DocType {
		case DocNationalID:
			hasID = true
		case DocBusinessLicense, DocFarmCertificate:
			hasBusinessDoc = true
		}
	}
	if !hasID {
		return tier
	}
	if hasBusinessDoc && account == AccountBusiness {
		return TierBusiness
	}
	return TierIdentity
}
