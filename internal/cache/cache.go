package cache

import (
	"context"
	"errors"

	"github.com/fjod/storefront-cart/internal/domain"
)

// CartCache holds cart lines only. Catalog data is never cached here.
//
// Get reports the owner's current version even on a miss; Set stores the
// contents only if no Delete happened for the owner since that version was
// read, so a slow reader cannot resurrect lines a writer just invalidated.
type CartCache interface {
	Get(ctx context.Context, owner domain.Owner) (*domain.CartContents, int64, error)
	Set(ctx context.Context, owner domain.Owner, version int64, contents *domain.CartContents) error
	Delete(ctx context.Context, owners ...domain.Owner) error
}

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrStale     = errors.New("cache entry invalidated since read")
)
