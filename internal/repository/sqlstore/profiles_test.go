package sqlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/model"
)

func TestGetFullProfile_MissingGroupsAreNil(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "farmer@example.com", model.UserTypeFarmer)

	fp, err := db.GetFullProfile(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, fp.User.ID)
	assert.Nil(t, fp.Profile)
	assert.Nil(t, fp.Business)
	assert.Nil(t, fp.Storefront)
	assert.Nil(t, fp.Location)
	assert.Nil(t, fp.Social)
	require.NotNil(t, fp.Verification)
	assert.Equal(t, model.VerificationNotSubmitted, fp.Verification.Status)
}

func TestApplyProfilePatch_UpsertsGroups(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "farmer@example.com", model.UserTypeFarmer)

	business := model.AccountBusiness
	patch := model.ProfilePatch{
		Name:        ptr("Daw Hla"),
		AccountType: &business,
		Profile:     &model.Profile{Bio: "Rice grower"},
		Storefront: &model.Storefront{
			Tagline:         "Fresh paddy",
			DeliveryOptions: model.StringList{"pickup", "courier"},
		},
		Location: &model.Location{Region: "Ayeyarwady", Township: "Pathein"},
	}
	require.NoError(t, db.ApplyProfilePatch(ctx, u.ID, patch))

	fp, err := db.GetFullProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Daw Hla", fp.User.Name)
	assert.Equal(t, model.AccountBusiness, fp.User.AccountType)
	require.NotNil(t, fp.Profile)
	assert.Equal(t, "Rice grower", fp.Profile.Bio)
	require.NotNil(t, fp.Storefront)
	assert.Equal(t, model.StringList{"pickup", "courier"}, fp.Storefront.DeliveryOptions)
	assert.Equal(t, model.StringList{}, fp.Storefront.PaymentMethods)
	require.NotNil(t, fp.Location)
	assert.Equal(t, "Pathein", fp.Location.Township)
	assert.Nil(t, fp.Business, "absent groups stay absent")

	// Second write replaces the row rather than adding another.
	require.NoError(t, db.ApplyProfilePatch(ctx, u.ID, model.ProfilePatch{
		Profile: &model.Profile{Bio: "Rice and beans"},
	}))
	fp, err = db.GetFullProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rice and beans", fp.Profile.Bio)
	assert.Equal(t, "Daw Hla", fp.User.Name, "untouched fields keep their value")
	assert.Equal(t, "Pathein", fp.Location.Township)
}

func TestApplyProfilePatch_UnknownUserWritesNothing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.ApplyProfilePatch(ctx, "ghost", model.ProfilePatch{Profile: &model.Profile{Bio: "x"}})
	require.ErrorIs(t, err, apperror.ErrNotFound)

	var n int
	require.NoError(t, db.conn.Get(&n, `SELECT COUNT(*) FROM user_profiles`))
	assert.Equal(t, 0, n)
}

func TestApplyProfilePatch_AccountTypeRetiers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "farmer@example.com", model.UserTypeFarmer)

	for _, dt := range []model.DocType{model.DocNationalID, model.DocBusinessLicense} {
		require.NoError(t, db.AddDocument(ctx, &model.VerificationDocument{
			UserID: u.ID, DocType: dt, ObjectKey: "document/" + string(dt), URL: "https://cdn.test/" + string(dt),
		}))
	}
	v, err := db.GetVerification(ctx, u.ID)
	require.NoError(t, err)
	v.Status = model.VerificationVerified
	v.Tier = model.TierBusiness
	require.NoError(t, db.SaveVerification(ctx, v))

	business := model.AccountBusiness
	require.NoError(t, db.ApplyProfilePatch(ctx, u.ID, model.ProfilePatch{AccountType: &business}))
	v, err = db.GetVerification(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierBusiness, v.Tier)

	individual := model.AccountIndividual
	require.NoError(t, db.ApplyProfilePatch(ctx, u.ID, model.ProfilePatch{AccountType: &individual}))
	v, err = db.GetVerification(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierIdentity, v.Tier, "the business tier needs a business account")

	require.NoError(t, db.ApplyProfilePatch(ctx, u.ID, model.ProfilePatch{AccountType: &business}))
	v, err = db.GetVerification(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierBusiness, v.Tier)
}
