package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/jmoiron/sqlx"
)

const productColumns = `id, product_group_id, name, sku, price, stock, is_active`

type productDetailsRow struct {
	domain.Product
	GroupImages string `db:"group_images"`
}

// CatalogRepository reads products and their groups. The catalog is owned
// elsewhere; this service never writes to it.
type CatalogRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

func NewCatalogRepository(db *sqlx.DB, log *slog.Logger) *CatalogRepository {
	return &CatalogRepository{db: db, log: log}
}

func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select product: %w", err)
	}
	return &p, nil
}

// GetProductDetails returns the products that still resolve together with
// their group; ids that do not resolve are absent from the map.
func (r *CatalogRepository) GetProductDetails(ctx context.Context, ids []string) (map[string]domain.ProductDetails, error) {
	result := make(map[string]domain.ProductDetails, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(
		`SELECT p.id, p.product_group_id, p.name, p.sku, p.price, p.stock, p.is_active, g.images AS group_images
		 FROM products p
		 JOIN product_groups g ON g.id = p.product_group_id
		 WHERE p.id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build product query: %w", err)
	}

	var rows []productDetailsRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}

	for _, row := range rows {
		result[row.ID] = domain.ProductDetails{
			Product:     row.Product,
			GroupImages: r.decodeImages(row.ProductGroupID, row.GroupImages),
		}
	}
	return result, nil
}

func (r *CatalogRepository) decodeImages(groupID, raw string) []domain.GroupImage {
	if raw == "" {
		return nil
	}
	var images []domain.GroupImage
	if err := json.Unmarshal([]byte(raw), &images); err != nil {
		r.log.Warn("invalid product group images", "product_group_id", groupID, "error", err)
		return nil
	}
	return images
}
