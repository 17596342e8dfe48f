package service

import (
	"context"
	"fmt"

	"github.com/fjod/storefront-cart/internal/domain"
)

// ValidateCart re-checks a cart snapshot against the live catalog. The price
// in each view is the one the shopper saw; it is compared with the current one.
func (s *CartService) ValidateCart(ctx context.Context, items []domain.CartView) (domain.ValidationResult, error) {
	result := domain.ValidationResult{Valid: true, Errors: []domain.ItemValidation{}}
	if len(items) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	live, err := s.products.GetProductDetails(ctx, ids)
	if err != nil {
		return domain.ValidationResult{}, s.fail(ctx, "validate cart", err)
	}

	for _, it := range items {
		result.Errors = append(result.Errors, checkItem(it, live)...)
	}
	result.Valid = len(result.Errors) == 0
	return result, nil
}

func checkItem(item domain.CartView, live map[string]domain.ProductDetails) []domain.ItemValidation {
	p, ok := live[item.ProductID]
	if !ok || !p.IsActive {
		return []domain.ItemValidation{{
			ItemID:          item.ID,
			ProductID:       item.ProductID,
			Kind:            domain.KindProductUnavailable,
			Message:         fmt.Sprintf("%s is no longer available", displayName(item)),
			SuggestedAction: domain.ActionRemove,
		}}
	}

	var problems []domain.ItemValidation
	if p.Stock < item.Quantity {
		stock := p.Stock
		problems = append(problems, domain.ItemValidation{
			ItemID:          item.ID,
			ProductID:       item.ProductID,
			Kind:            domain.KindOutOfStock,
			Message:         fmt.Sprintf("only %d units of %s available", stock, p.Name),
			SuggestedAction: domain.ActionUpdateQuantity,
			CurrentStock:    &stock,
		})
	}
	if !p.Price.Equal(item.Price) {
		price := p.Price
		problems = append(problems, domain.ItemValidation{
			ItemID:          item.ID,
			ProductID:       item.ProductID,
			Kind:            domain.KindPriceChanged,
			Message:         fmt.Sprintf("price of %s changed from %s to %s", p.Name, item.Price.StringFixed(2), price.StringFixed(2)),
			SuggestedAction: domain.ActionUpdatePrice,
			CurrentPrice:    &price,
		})
	}
	return problems
}

func displayName(item domain.CartView) string {
	if item.Name != "" {
		return item.Name
	}
	return "product " + item.ProductID
}
