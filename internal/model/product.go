package model

import "time"

// Product is a listing created by a farmer or trader.
// Price is in whole Myanmar kyat; the currency has no minor unit in practice.
type Product struct {
	ID          string     `json:"id"          db:"id"`
	SellerID    string     `json:"sellerId"    db:"seller_id"`
	Name        string     `json:"name"        db:"name"`
	Category    string     `json:"category"    db:"category"`
	Description string     `json:"description" db:"description"`
	Price       int64      `json:"price"       db:"price"`
	Unit        string     `json:"unit"        db:"unit"`
	Quantity    float64    `json:"quantity"    db:"quantity"`
	MinOrder    float64    `json:"minOrder"    db:"min_order"`
	ImageURLs   StringList `json:"imageUrls"   db:"image_urls"`
	Region      string     `json:"region"      db:"region"`
	IsActive    bool       `json:"isActive"    db:"is_active"`
	CreatedAt   time.Time  `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt"   db:"updated_at"`
}

// ProductFilter narrows a product listing. Zero values mean "no filter".
type ProductFilter struct {
	SellerID   string
	Category   string
	Region     string
	Query      string
	MinPrice   *int64
	MaxPrice   *int64
	ActiveOnly bool
	Limit      int
	Offset     int
}
