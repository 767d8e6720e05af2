package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/model"
	"github.com/sakif/agrilink/internal/repository"
)

type ProfileRepository interface {
	repository.ProfileRepository
	ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error)
}

type ProfileService struct {
	repo   ProfileRepository
	logger *slog.Logger
}

func NewProfileService(repo ProfileRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{repo: repo, logger: logger}
}

// ProfileUpdate is the PUT /api/profile body. Each group is optional;
// a group that is present replaces what was stored for it.
type ProfileUpdate struct {
	User       *UserFields       `json:"user"`
	Profile    *ProfileFields    `json:"profile"`
	Business   *BusinessFields   `json:"business"`
	Storefront *StorefrontFields `json:"storefront"`
	Location   *LocationFields   `json:"location"`
	Social     *SocialFields     `json:"social"`
}

type UserFields struct {
	Name        *string            `json:"name"        validate:"omitempty,min=1,max=100"`
	AccountType *model.AccountType `json:"accountType" validate:"omitempty,oneof=individual business"`
}

type ProfileFields struct {
	Bio          string `json:"bio"          validate:"max=1000"`
	ProfileImage string `json:"profileImage" validate:"omitempty,max=1024"`
	CoverImage   string `json:"coverImage"   validate:"omitempty,max=1024"`
}

type BusinessFields struct {
	BusinessName       string `json:"businessName"       validate:"max=150"`
	BusinessType       string `json:"businessType"       validate:"max=100"`
	RegistrationNumber string `json:"registrationNumber" validate:"max=100"`
	Description        string `json:"description"        validate:"max=2000"`
}

type StorefrontFields struct {
	Tagline         string   `json:"tagline"         validate:"max=150"`
	BusinessHours   string   `json:"businessHours"   validate:"max=200"`
	DeliveryOptions []string `json:"deliveryOptions" validate:"max=20,dive,min=1,max=100"`
	PaymentMethods  []string `json:"paymentMethods"  validate:"max=20,dive,min=1,max=100"`
	ReturnPolicy    string   `json:"returnPolicy"    validate:"max=2000"`
}

type LocationFields struct {
	Region   string `json:"region"   validate:"max=100"`
	Township string `json:"township" validate:"max=100"`
	Address  string `json:"address"  validate:"max=500"`
}

type SocialFields struct {
	Facebook string `json:"facebook" validate:"max=300"`
	Viber    string `json:"viber"    validate:"max=50"`
	Telegram string `json:"telegram" validate:"max=100"`
	Website  string `json:"website"  validate:"omitempty,url,max=300"`
}

// PublicProfile is what other users see: no contact details, no review
// notes, plus the seller's active listings.
type PublicProfile struct {
	model.FullProfile
	Products []model.Product `json:"products"`
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*model.FullProfile, error) {
	fp, err := s.repo.GetFullProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: loading %s: %w", userID, err)
	}
	return fp, nil
}

// Update validates every group first, then writes them in one transaction.
func (s *ProfileService) Update(ctx context.Context, userID string, in ProfileUpdate) (*model.FullProfile, error) {
	patch, err := in.toPatch()
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, apperror.ValidationFailed("profile", "nothing to update")
	}

	if err := s.repo.ApplyProfilePatch(ctx, userID, patch); err != nil {
		return nil, fmt.Errorf("service/profile: updating %s: %w", userID, err)
	}
	s.logger.Info("profile updated", slog.String("userID", userID))
	return s.Get(ctx, userID)
}

func (in ProfileUpdate) toPatch() (model.ProfilePatch, error) {
	var p model.ProfilePatch

	if u := in.User; u != nil {
		if err := checkInput(u); err != nil {
			return p, err
		}
		if u.Name != nil {
			name := strings.TrimSpace(*u.Name)
			if name == "" {
				return p, apperror.ValidationFailed("name", "name is required")
			}
			p.Name = &name
		}
		p.AccountType = u.AccountType
	}
	if g := in.Profile; g != nil {
		if err := checkInput(g); err != nil {
			return p, err
		}
		p.Profile = &model.Profile{Bio: strings.TrimSpace(g.Bio), ProfileImage: g.ProfileImage, CoverImage: g.CoverImage}
	}
	if g := in.Business; g != nil {
		if err := checkInput(g); err != nil {
			return p, err
		}
		p.Business = &model.BusinessDetails{
			BusinessName:       strings.TrimSpace(g.BusinessName),
			BusinessType:       strings.TrimSpace(g.BusinessType),
			RegistrationNumber: strings.TrimSpace(g.RegistrationNumber),
			Description:        strings.TrimSpace(g.Description),
		}
	}
	if g := in.Storefront; g != nil {
		if err := checkInput(g); err != nil {
			return p, err
		}
		p.Storefront = &model.Storefront{
			Tagline:         strings.TrimSpace(g.Tagline),
			BusinessHours:   strings.TrimSpace(g.BusinessHours),
			DeliveryOptions: model.StringList(g.DeliveryOptions),
			PaymentMethods:  model.StringList(g.PaymentMethods),
			ReturnPolicy:    strings.TrimSpace(g.ReturnPolicy),
		}
	}
	if g := in.Location; g != nil {
		if err := checkInput(g); err != nil {
			return p, err
		}
		p.Location = &model.Location{
			Region:   strings.TrimSpace(g.Region),
			Township: strings.TrimSpace(g.Township),
			Address:  strings.TrimSpace(g.Address),
		}
	}
	if g := in.Social; g != nil {
		if err := checkInput(g); err != nil {
			return p, err
		}
		p.Social = &model.Social{Facebook: g.Facebook, Viber: g.Viber, Telegram: g.Telegram, Website: g.Website}
	}
	return p, nil
}

// GetPublic is the profile page other users see.
func (s *ProfileService) GetPublic(ctx context.Context, userID string) (*PublicProfile, error) {
	fp, err := s.repo.GetFullProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: loading %s: %w", userID, err)
	}
	fp.User = fp.User.Public()
	if v := fp.Verification; v != nil {
		v.RejectionReason = ""
		v.ReviewedBy = nil
	}

	products := []model.Product{}
	if fp.User.UserType.CanSell() {
		products, err = s.repo.ListProducts(ctx, model.ProductFilter{
			SellerID:   userID,
			ActiveOnly: true,
			Limit:      MaxListLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("service/profile: listing products of %s: %w", userID, err)
		}
	}
	return &PublicProfile{FullProfile: *fp, Products: products}, nil
}
