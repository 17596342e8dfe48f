package domain

import "github.com/shopspring/decimal"

type ValidationKind string

const (
	KindProductUnavailable ValidationKind = "PRODUCT_UNAVAILABLE"
	KindOutOfStock         ValidationKind = "OUT_OF_STOCK"
	KindPriceChanged       ValidationKind = "PRICE_CHANGED"
)

type SuggestedAction string

const (
	ActionRemove         SuggestedAction = "REMOVE"
	ActionUpdateQuantity SuggestedAction = "UPDATE_QUANTITY"
	ActionUpdatePrice    SuggestedAction = "UPDATE_PRICE"
)

// ItemValidation describes one problem found for one cart line.
type ItemValidation struct {
	ItemID          string           `json:"itemId"`
	ProductID       string           `json:"productId"`
	Kind            ValidationKind   `json:"type"`
	Message         string           `json:"message"`
	SuggestedAction SuggestedAction  `json:"suggestedAction"`
	CurrentStock    *int             `json:"currentStock,omitempty"`
	CurrentPrice    *decimal.Decimal `json:"currentPrice,omitempty"`
}

type ValidationResult struct {
	Valid  bool             `json:"valid"`
	Errors []ItemValidation `json:"errors"`
}
