package domain

import (
	"strconv"
	"time"
)

// Cart is the persisted form of a user's cart.
type Cart struct {
	ID        string         `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string         `bson:"user_id" json:"userId"`
	Items     []CartLineItem `bson:"items" json:"items"`
	CreatedAt time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `bson:"updated_at" json:"updatedAt"`
}

// CartLineItem is a product snapshot plus the selected variant and quantity.
type CartLineItem struct {
	Product `bson:",inline"`

	Quantity          int      `bson:"quantity" json:"quantity"`
	VariantID         int64    `bson:"variant_id,omitempty" json:"variantId,omitempty"`
	VariantSKU        string   `bson:"variant_sku,omitempty" json:"variantSku,omitempty"`
	SelectedColor     string   `bson:"selected_color,omitempty" json:"selectedColor,omitempty"`
	SelectedColorCode string   `bson:"selected_color_code,omitempty" json:"selectedColorCode,omitempty"`
	SelectedSize      string   `bson:"selected_size,omitempty" json:"selectedSize,omitempty"`
	Price             *float64 `bson:"price,omitempty" json:"price,omitempty"`
}

// LineKey identifies a cart line: the variant when one is selected, else the product.
type LineKey struct {
	Variant bool
	ID      int64
}

func (k LineKey) String() string {
	if k.Variant {
		return "variant:" + strconv.FormatInt(k.ID, 10)
	}
	return "product:" + strconv.FormatInt(k.ID, 10)
}

// Key returns the identity of the line item.
func (i CartLineItem) Key() LineKey {
	if i.VariantID != 0 {
		return LineKey{Variant: true, ID: i.VariantID}
	}
	return LineKey{ID: i.ID}
}
