package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProduct(t *testing.T) {
	db := setupSQLite(t)
	repo := NewCatalogRepository(db, discardLogger())
	ctx := context.Background()
	seedProduct(t, db, "p1", "19.99", 5, true)

	p, err := repo.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Product p1", p.Name)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, 5, p.Stock)
	assert.True(t, p.IsActive)

	_, err = repo.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestGetProductDetails(t *testing.T) {
	db := setupSQLite(t)
	repo := NewCatalogRepository(db, discardLogger())
	ctx := context.Background()
	seedProduct(t, db, "p1", "19.99", 5, true)
	seedProduct(t, db, "p2", "5.00", 1, false)

	details, err := repo.GetProductDetails(ctx, []string{"p1", "p2", "gone"})
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, "g-p1", details["p1"].ProductGroupID)
	require.Len(t, details["p1"].GroupImages, 1)
	assert.True(t, details["p1"].GroupImages[0].IsThumbnail)
	assert.False(t, details["p2"].IsActive)

	empty, err := repo.GetProductDetails(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetProductDetails_ReadsLivePrice(t *testing.T) {
	db := setupSQLite(t)
	repo := NewCatalogRepository(db, discardLogger())
	ctx := context.Background()
	seedProduct(t, db, "p1", "19.99", 5, true)

	_, err := db.Exec(`UPDATE products SET price = $1 WHERE id = $2`, decimal.RequireFromString("24.50"), "p1")
	require.NoError(t, err)

	details, err := repo.GetProductDetails(ctx, []string{"p1"})
	require.NoError(t, err)
	assert.True(t, details["p1"].Price.Equal(decimal.RequireFromString("24.5")))
}

func TestGetProductDetails_BadImagesJSON(t *testing.T) {
	db := setupSQLite(t)
	repo := NewCatalogRepository(db, discardLogger())
	ctx := context.Background()
	seedProduct(t, db, "p1", "1.00", 5, true)
	_, err := db.Exec(`UPDATE product_groups SET images = $1 WHERE id = $2`, "oops", "g-p1")
	require.NoError(t, err)

	details, err := repo.GetProductDetails(ctx, []string{"p1"})
	require.NoError(t, err)
	assert.Empty(t, details["p1"].GroupImages)
}
