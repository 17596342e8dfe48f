package domain

// CheckQuantity rejects non-positive quantities on add.
func CheckQuantity(quantity int) error {
	if quantity <= 0 {
		return NewValidationError("quantity must be greater than zero")
	}
	return nil
}

// CheckAvailability verifies that the product can be sold in the requested quantity.
// A nil product is treated as missing from the catalog.
func CheckAvailability(p *Product, quantity int) error {
	if p == nil {
		return NewValidationError("product not found")
	}
	if !p.IsActive {
		return NewValidationError("product %s is not available", p.Name)
	}
	return CheckStockCeiling(p, quantity)
}

// CheckStockCeiling enforces quantity <= stock for the resulting line quantity.
func CheckStockCeiling(p *Product, quantity int) error {
	if p.Stock < quantity {
		return NewValidationError("only %d units of %s available", p.Stock, p.Name)
	}
	return nil
}
