// Package pricing computes the price a shopper pays for a catalog entry.
package pricing

import (
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Price is the result of Calculate.
type Price struct {
	FinalPrice         float64 `json:"finalPrice"`
	OriginalPrice      float64 `json:"originalPrice"`
	DiscountPercentage float64 `json:"discountPercentage"`
	HasDiscount        bool    `json:"hasDiscount"`
}

// Calculate dispatches on the source's scheme. Missing fields count as zero
// and an unknown scheme yields the zero Price.
func Calculate(src domain.PriceSource) Price {
	switch src.Scheme {
	case domain.SchemeSale:
		return fromSale(src.BasePrice, src.SalePrice)
	case domain.SchemePercentage:
		return fromPercentage(src.OriginalPrice, src.DiscountPercentage)
	default:
		return Price{}
	}
}

// ForProduct prices a catalog product using the scheme its fields select.
func ForProduct(p domain.Product) Price {
	return Calculate(p.PriceSource())
}

func fromSale(basePrice, salePrice float64) Price {
	base := decimal.NewFromFloat(basePrice)
	discount := base.Sub(decimal.NewFromFloat(salePrice))

	var pct decimal.Decimal
	if discount.IsPositive() && base.IsPositive() {
		pct = discount.Div(base).Mul(hundred).Round(0)
	}

	return Price{
		FinalPrice:         salePrice,
		OriginalPrice:      basePrice,
		DiscountPercentage: pct.InexactFloat64(),
		HasDiscount:        discount.IsPositive(),
	}
}

func fromPercentage(originalPrice, discountPercentage float64) Price {
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discountPercentage).Div(hundred))
	final := decimal.NewFromFloat(originalPrice).Mul(factor).Round(0)

	return Price{
		FinalPrice:         final.InexactFloat64(),
		OriginalPrice:      originalPrice,
		DiscountPercentage: discountPercentage,
		HasDiscount:        discountPercentage > 0,
	}
}
