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

const (
	MaxProductNameLength = 120
	MaxProductImages     = 8
	DefaultListLimit     = 20
	MaxListLimit         = 100
)

type ProductRepository interface {
	repository.ProductRepository
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// ProductService manages listings. Only farmers and traders sell, and only
// the seller may change or remove a listing.
type ProductService struct {
	repo   ProductRepository
	logger *slog.Logger
}

func NewProductService(repo ProductRepository, logger *slog.Logger) *ProductService {
	return &ProductService{repo: repo, logger: logger}
}

type ProductInput struct {
	Name        string   `json:"name"        validate:"required,max=120"`
	Category    string   `json:"category"    validate:"max=60"`
	Description string   `json:"description" validate:"max=5000"`
	Price       int64    `json:"price"       validate:"gte=0,max=1000000000000"`
	Unit        string   `json:"unit"        validate:"required,max=20"`
	Quantity    float64  `json:"quantity"    validate:"gte=0,max=1000000000"`
	MinOrder    float64  `json:"minOrder"    validate:"gte=0,max=1000000000"`
	ImageURLs   []string `json:"imageUrls"   validate:"max=8,dive,required,max=1024"`
	Region      string   `json:"region"      validate:"max=100"`
	// IsActive defaults to true on create and to the stored value on update.
	IsActive *bool `json:"isActive"`
}

func (in *ProductInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Description = strings.TrimSpace(in.Description)
	in.Unit = strings.TrimSpace(in.Unit)
	in.Region = strings.TrimSpace(in.Region)
}

func (in *ProductInput) apply(p *model.Product) {
	p.Name = in.Name
	p.Category = in.Category
	p.Description = in.Description
	p.Price = in.Price
	p.Unit = in.Unit
	p.Quantity = in.Quantity
	p.MinOrder = in.MinOrder
	p.ImageURLs = model.StringList(in.ImageURLs)
	p.Region = in.Region
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
}

func (s *ProductService) Create(ctx context.Context, sellerID string, in ProductInput) (*model.Product, error) {
	in.normalize()
	if err := checkInput(in); err != nil {
		return nil, err
	}

	seller, err := s.repo.GetUserByID(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("service/product: loading seller %s: %w", sellerID, err)
	}
	if !seller.UserType.CanSell() {
		return nil, apperror.Forbidden("only farmers and traders can list products")
	}

	p := &model.Product{SellerID: sellerID, IsActive: true}
	in.apply(p)
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("service/product: creating product: %w", err)
	}

	s.logger.Info("product created",
		slog.String("productID", p.ID),
		slog.String("sellerID", sellerID),
	)
	return p, nil
}

// Get returns the listing. A hidden listing exists only for its seller;
// callerID is empty for anonymous requests.
func (s *ProductService) Get(ctx context.Context, callerID, id string) (*model.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/product: fetching %s: %w", id, err)
	}
	if !p.IsActive && p.SellerID != callerID {
		return nil, apperror.NotFound("product", id)
	}
	return p, nil
}

// Update replaces the listing's fields. The seller never changes.
func (s *ProductService) Update(ctx context.Context, userID, id string, in ProductInput) (*model.Product, error) {
	in.normalize()
	if err := checkInput(in); err != nil {
		return nil, err
	}

	p, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	in.apply(p)
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("service/product: updating %s: %w", id, err)
	}

	s.logger.Info("product updated", slog.String("productID", id))
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("service/product: deleting %s: %w", id, err)
	}
	s.logger.Info("product deleted", slog.String("productID", id))
	return nil
}

func (s *ProductService) owned(ctx context.Context, userID, id string) (*model.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/product: fetching %s: %w", id, err)
	}
	if p.SellerID != userID {
		return nil, apperror.Forbidden("you can only modify your own products")
	}
	return p, nil
}

// List applies f with the limit clamped to [1, MaxListLimit].
func (s *ProductService) List(ctx context.Context, f model.ProductFilter) ([]model.Product, error) {
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return nil, apperror.ValidationFailed("minPrice", "minPrice must not exceed maxPrice")
	}
	f.Limit = clampLimit(f.Limit)
	if f.Offset < 0 {
		f.Offset = 0
	}
	products, err := s.repo.ListProducts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("service/product: listing: %w", err)
	}
	return products, nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultListLimit
	case n > MaxListLimit:
		return MaxListLimit
	}
	return n
}
