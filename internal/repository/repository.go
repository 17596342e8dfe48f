package repository

import (
	"context"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
)

var (
	ErrCartNotFound    = &domain.NotFoundError{Resource: "cart"}
	ErrItemNotFound    = &domain.NotFoundError{Resource: "cart item"}
	ErrProductNotFound = &domain.NotFoundError{Resource: "product"}
)

// CartRepository defines the interface for cart data operations.
// Every method is one unit of work against the relational store.
type CartRepository interface {
	GetCart(ctx context.Context, owner domain.Owner) (*domain.CartContents, error)
	AddItem(ctx context.Context, owner domain.Owner, productID string, quantity int, variants domain.VariantSelections) (*domain.CartItem, error)
	RemoveItem(ctx context.Context, owner domain.Owner, itemID string) error
	UpdateItemQuantity(ctx context.Context, owner domain.Owner, itemID string, quantity int) error
	ClearCart(ctx context.Context, owner domain.Owner) error
	ClaimGuestCart(ctx context.Context, guest, user domain.Owner) (bool, error)
	DeleteInactiveSessionCarts(ctx context.Context, before time.Time) ([]domain.Owner, error)
}

// ProductRepository is the read-only view of the catalog.
type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductDetails(ctx context.Context, ids []string) (map[string]domain.ProductDetails, error)
}
