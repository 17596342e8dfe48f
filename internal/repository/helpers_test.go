package repository

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupSQLite(t *testing.T) *sqlx.DB {
	t.Helper()

	cred := &Credentials{
		Driver:     DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "cart.db"),
	}
	db, err := Connect(context.Background(), cred)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(db))

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedGroup(t *testing.T, db *sqlx.DB, id, images string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO product_groups (id, name, images) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		id, "group "+id, images)
	require.NoError(t, err)
}

func seedProduct(t *testing.T, db *sqlx.DB, id string, price string, stock int, active bool) domain.Product {
	t.Helper()
	seedGroup(t, db, "g-"+id, `[{"url":"https://img/`+id+`.jpg","isThumbnail":true}]`)

	p := domain.Product{
		ID:             id,
		ProductGroupID: "g-" + id,
		Name:           "Product " + id,
		SKU:            "SKU-" + id,
		Price:          decimal.RequireFromString(price),
		Stock:          stock,
		IsActive:       active,
	}
	_, err := db.Exec(`INSERT INTO products (id, product_group_id, name, sku, price, stock, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.ProductGroupID, p.Name, p.SKU, p.Price, p.Stock, p.IsActive)
	require.NoError(t, err)
	return p
}

func setStock(t *testing.T, db *sqlx.DB, productID string, stock int) {
	t.Helper()
	_, err := db.Exec(`UPDATE products SET stock = $1 WHERE id = $2`, stock, productID)
	require.NoError(t, err)
}

func quantities(c *domain.CartContents) map[string]int {
	out := make(map[string]int, len(c.Items))
	for _, it := range c.Items {
		out[it.ProductID] = it.Quantity
	}
	return out
}
