package domain

import "strings"

// Product is the cart's read-only view of a catalog item.
type Product struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Price      float64  `json:"price"`
	Images     []string `json:"images"`
	Bestseller bool     `json:"bestseller"`
	Sizes      []string `json:"sizes,omitempty"`
}

// Image returns the first image, or "" when the product has none.
func (p Product) Image() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// OffersSize reports whether size is sold for this product. A product
// without a size list accepts any size.
func (p Product) OffersSize(size string) bool {
	if len(p.Sizes) == 0 {
		return true
	}
	for _, s := range p.Sizes {
		if strings.EqualFold(strings.TrimSpace(s), size) {
			return true
		}
	}
	return false
}
