package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// VariantSelections holds the shopper's choices for a product, e.g. size or colour.
type VariantSelections map[string]string

type Cart struct {
	ID             string    `db:"id" json:"id"`
	UserID         *string   `db:"user_id" json:"user_id,omitempty"`
	SessionID      *string   `db:"session_id" json:"session_id,omitempty"`
	LastActivityAt time.Time `db:"last_activity_at" json:"last_activity_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

func (c Cart) Owner() Owner {
	if c.UserID != nil {
		return UserOwner(*c.UserID)
	}
	if c.SessionID != nil {
		return SessionOwner(*c.SessionID)
	}
	return Owner{}
}

type CartItem struct {
	ID                string            `json:"id"`
	CartID            string            `json:"cart_id"`
	ProductID         string            `json:"product_id"`
	Quantity          int               `json:"quantity"`
	VariantSelections VariantSelections `json:"variant_selections"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// CartContents is a cart with its lines and no catalog data. It is what the
// cache stores; prices and stock are always joined in live.
type CartContents struct {
	Cart  Cart       `json:"cart"`
	Items []CartItem `json:"items"`
}

// CartView is one cart line as presented to the shopper.
type CartView struct {
	ID                string            `json:"id"`
	ProductID         string            `json:"productId"`
	ProductGroupID    string            `json:"productGroupId"`
	Name              string            `json:"name"`
	SKU               string            `json:"sku"`
	Price             decimal.Decimal   `json:"price"`
	Quantity          int               `json:"quantity"`
	Stock             int               `json:"stock"`
	ThumbnailURL      *string           `json:"thumbnailUrl"`
	VariantSelections VariantSelections `json:"variantSelections"`
	AddedAt           int64             `json:"addedAt"`
	UpdatedAt         int64             `json:"updatedAt"`
}

// NewCartView joins a stored line with the live catalog entry of its product.
func NewCartView(item CartItem, details ProductDetails) CartView {
	variants := item.VariantSelections
	if variants == nil {
		variants = VariantSelections{}
	}
	return CartView{
		ID:                item.ID,
		ProductID:         details.ID,
		ProductGroupID:    details.ProductGroupID,
		Name:              details.Name,
		SKU:               details.SKU,
		Price:             details.Price,
		Quantity:          item.Quantity,
		Stock:             details.Stock,
		ThumbnailURL:      Thumbnail(details.GroupImages),
		VariantSelections: variants,
		AddedAt:           item.CreatedAt.UnixMilli(),
		UpdatedAt:         item.UpdatedAt.UnixMilli(),
	}
}

// ProductData is what a client sends when adding a product. Only ProductID and
// VariantSelections are trusted; stock and price are re-read from the catalog.
type ProductData struct {
	ProductID         string            `json:"productId"`
	ProductGroupID    string            `json:"productGroupId"`
	Name              string            `json:"name"`
	SKU               string            `json:"sku"`
	Price             decimal.Decimal   `json:"price"`
	Stock             int               `json:"stock"`
	ThumbnailURL      *string           `json:"thumbnailUrl"`
	VariantSelections VariantSelections `json:"variantSelections"`
}
