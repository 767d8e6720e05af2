package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/model"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func (db *DB) CreateProduct(ctx context.Context, p *model.Product) error {
	if p.ID == "" {
		p.ID = xid.New().String()
	}
	now := nowUTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.ImageURLs == nil {
		p.ImageURLs = model.StringList{}
	}

	_, err := db.conn.ExecContext(ctx, db.q(`
		INSERT INTO products (id, seller_id, name, category, description, price, unit,
			quantity, min_order, image_urls, region, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.SellerID, p.Name, p.Category, p.Description, p.Price, p.Unit,
		p.Quantity, p.MinOrder, p.ImageURLs, p.Region, p.IsActive, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return translate(err, "product", p.ID, "inserting product")
	}
	return nil
}

func (db *DB) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	if err := db.conn.GetContext(ctx, &p, db.q(`SELECT * FROM products WHERE id = ?`), id); err != nil {
		return nil, translate(err, "product", id, "getting product "+id)
	}
	return &p, nil
}

// UpdateProduct overwrites the editable fields. SellerID and CreatedAt are
// never changed.
func (db *DB) UpdateProduct(ctx context.Context, p *model.Product) error {
	p.UpdatedAt = nowUTC()
	res, err := db.conn.ExecContext(ctx, db.q(`
		UPDATE products SET name = ?, category = ?, description = ?, price = ?, unit = ?,
			quantity = ?, min_order = ?, image_urls = ?, region = ?, is_active = ?, updated_at = ?
		WHERE id = ?`),
		p.Name, p.Category, p.Description, p.Price, p.Unit,
		p.Quantity, p.MinOrder, p.ImageURLs, p.Region, p.IsActive, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: updating product %s: %w", p.ID, err)
	}
	return affectedOne(res, apperror.NotFound("product", p.ID))
}

func (db *DB) DeleteProduct(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, db.q(`DELETE FROM products WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting product %s: %w", id, err)
	}
	return affectedOne(res, apperror.NotFound("product", id))
}

// ListProducts returns products matching f, newest first.
func (db *DB) ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error) {
	var (
		where []string
		args  []any
	)
	if f.SellerID != "" {
		where = append(where, "seller_id = ?")
		args = append(args, f.SellerID)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Region != "" {
		where = append(where, "region = ?")
		args = append(args, f.Region)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)")
		args = append(args, like, like)
	}
	if f.MinPrice != nil {
		where = append(where, "price >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		where = append(where, "price <= ?")
		args = append(args, *f.MaxPrice)
	}
	if f.ActiveOnly {
		where = append(where, "is_active = ?")
		args = append(args, true)
	}

	query := "SELECT * FROM products"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, clampLimit(f.Limit), max(f.Offset, 0))

	products := []model.Product{}
	if err := db.conn.SelectContext(ctx, &products, db.q(query), args...); err != nil {
		return nil, fmt.Errorf("sqlstore: listing products: %w", err)
	}
	return products, nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	}
	return n
}
