package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID             string          `db:"id" json:"id"`
	ProductGroupID string          `db:"product_group_id" json:"product_group_id"`
	Name           string          `db:"name" json:"name"`
	SKU            string          `db:"sku" json:"sku"`
	Price          decimal.Decimal `db:"price" json:"price"`
	Stock          int             `db:"stock" json:"stock"`
	IsActive       bool            `db:"is_active" json:"is_active"`
}

type GroupImage struct {
	URL         string `json:"url"`
	IsThumbnail bool   `json:"isThumbnail"`
}

// ProductDetails is a product together with the images of its group.
type ProductDetails struct {
	Product
	GroupImages []GroupImage
}

// Thumbnail picks the image flagged as thumbnail, falling back to the first one.
func Thumbnail(images []GroupImage) *string {
	for _, img := range images {
		if img.IsThumbnail {
			url := img.URL
			return &url
		}
	}
	if len(images) > 0 {
		url := images[0].URL
		return &url
	}
	return nil
}
