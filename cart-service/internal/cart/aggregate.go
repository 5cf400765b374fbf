package cart

import (
	"github.com/legacyxi/shopcart/cart-service/internal/domain"
	"github.com/shopspring/decimal"
)

// UnknownProductName is shown for lines whose product is missing from the catalog.
const UnknownProductName = "Unknown"

// Catalog resolves products by id. A nil Catalog behaves as an empty one.
type Catalog interface {
	Lookup(productID string) (domain.Product, bool)
}

// ComputeLines joins every cart line with the catalog. Lines whose product
// cannot be resolved are kept with fallback values so they stay removable.
func ComputeLines(lines []domain.CartLine, catalog Catalog) []domain.CartLineView {
	views := make([]domain.CartLineView, 0, len(lines))
	for _, l := range lines {
		v := domain.CartLineView{
			ProductID: l.ProductID,
			Size:      l.Size,
			Quantity:  l.Quantity,
			Name:      UnknownProductName,
			UnitPrice: decimal.Zero,
		}
		if p, ok := lookup(catalog, l.ProductID); ok {
			v.Name = p.Name
			v.UnitPrice = decimal.NewFromFloat(p.Price)
			v.Image = p.Image()
		}
		v.LineSubtotal = v.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		views = append(views, v)
	}
	return views
}

// ComputeTotal sums unitPrice * quantity at full precision.
func ComputeTotal(views []domain.CartLineView) decimal.Decimal {
	total := decimal.Zero
	for _, v := range views {
		total = total.Add(v.UnitPrice.Mul(decimal.NewFromInt(int64(v.Quantity))))
	}
	return total
}

// FormatAmount renders an amount with two decimals for display.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func lookup(catalog Catalog, productID string) (domain.Product, bool) {
	if catalog == nil {
		return domain.Product{}, false
	}
	return catalog.Lookup(productID)
}
