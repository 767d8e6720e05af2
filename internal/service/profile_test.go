package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/model"
)

func strPtr(s string) *string { return &s }

func TestProfileUpdate(t *testing.T) {
	store := newFakeStore()
	svc := NewProfileService(store, discardLogger())
	u := seedUser(store, "Thida", model.UserTypeTrader)
	business := model.AccountBusiness

	fp, err := svc.Update(context.Background(), u.ID, ProfileUpdate{
		User:       &UserFields{Name: strPtr(" Thida Traders "), AccountType: &business},
		Profile:    &ProfileFields{Bio: " wholesale beans "},
		Storefront: &StorefrontFields{DeliveryOptions: []string{"pickup", "courier"}},
		Location:   &LocationFields{Region: "Mandalay"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Thida Traders", fp.User.Name)
	assert.Equal(t, model.AccountBusiness, fp.User.AccountType)
	require.NotNil(t, fp.Profile)
	assert.Equal(t, "wholesale beans", fp.Profile.Bio)
	require.NotNil(t, fp.Storefront)
	assert.Equal(t, model.StringList{"pickup", "courier"}, fp.Storefront.DeliveryOptions)
	assert.Nil(t, fp.Business, "groups that were not sent stay empty")
}

func TestProfileUpdate_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		in        ProfileUpdate
		wantField string
	}{
		{"empty patch", ProfileUpdate{}, "profile"},
		{"blank name", ProfileUpdate{User: &UserFields{Name: strPtr("  ")}}, "name"},
		{"bad website", ProfileUpdate{Social: &SocialFields{Website: "not a url"}}, "website"},
		{"long bio", ProfileUpdate{Profile: &ProfileFields{Bio: string(make([]rune, 1001))}}, "bio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			svc := NewProfileService(store, discardLogger())
			u := seedUser(store, "Thida", model.UserTypeTrader)

			_, err := svc.Update(context.Background(), u.ID, tt.in)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, tt.wantField, appErr.Field)
		})
	}
}

func TestProfileGetPublic_HidesPrivateFields(t *testing.T) {
	store := newFakeStore()
	svc := NewProfileService(store, discardLogger())
	seller := seedUser(store, "Seller", model.UserTypeFarmer)
	ctx := context.Background()

	admin := "admin-1"
	require.NoError(t, store.SaveVerification(ctx, &model.Verification{
		UserID: seller.ID, Status: model.VerificationRejected,
		RejectionReason: "blurry photo", ReviewedBy: &admin,
	}))
	require.NoError(t, store.CreateProduct(ctx, &model.Product{SellerID: seller.ID, Name: "Onion", IsActive: true}))
	require.NoError(t, store.CreateProduct(ctx, &model.Product{SellerID: seller.ID, Name: "Old stock", IsActive: false}))

	pub, err := svc.GetPublic(ctx, seller.ID)
	require.NoError(t, err)
	assert.Nil(t, pub.User.Email)
	assert.Nil(t, pub.User.Phone)
	assert.Empty(t, pub.Verification.RejectionReason)
	assert.Nil(t, pub.Verification.ReviewedBy)
	require.Len(t, pub.Products, 1, "only active listings are shown")
	assert.Equal(t, "Onion", pub.Products[0].Name)

	own, err := svc.Get(ctx, seller.ID)
	require.NoError(t, err)
	assert.NotNil(t, own.User.Email, "the owner still sees their own contact details")
}

func TestProfileGetPublic_BuyerHasNoProducts(t *testing.T) {
	store := newFakeStore()
	svc := NewProfileService(store, discardLogger())
	buyer := seedUser(store, "Buyer", model.UserTypeBuyer)

	pub, err := svc.GetPublic(context.Background(), buyer.ID)
	require.NoError(t, err)
	assert.NotNil(t, pub.Products)
	assert.Empty(t, pub.Products)
}

func TestProfileUpdate_AccountTypeMovesTier(t *testing.T) {
	store := newFakeStore()
	verify := newTestVerificationService(store)
	profiles := NewProfileService(store, discardLogger())
	u := seedUser(store, "Coop", model.UserTypeFarmer)
	ctx := context.Background()

	business := model.AccountBusiness
	_, err := profiles.Update(ctx, u.ID, ProfileUpdate{User: &UserFields{AccountType: &business}})
	require.NoError(t, err)
	_, err = verify.AddDocument(ctx, u.ID, model.DocNationalID, docKey(u.ID, "id.jpg"))
	require.NoError(t, err)
	_, err = verify.AddDocument(ctx, u.ID, model.DocBusinessLicense, docKey(u.ID, "licence.pdf"))
	require.NoError(t, err)
	_, err = verify.Submit(ctx, u.ID)
	require.NoError(t, err)
	v, err := verify.Approve(ctx, u.ID, "admin-1")
	require.NoError(t, err)
	require.Equal(t, model.TierBusiness, v.Tier)

	individual := model.AccountIndividual
	fp, err := profiles.Update(ctx, u.ID, ProfileUpdate{User: &UserFields{AccountType: &individual}})
	require.NoError(t, err)
	assert.Equal(t, model.AccountIndividual, fp.User.AccountType)
	require.NotNil(t, fp.Verification)
	assert.Equal(t, model.TierIdentity, fp.Verification.Tier)

	state, err := verify.Status(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierIdentity, state.Verification.Tier)
}
