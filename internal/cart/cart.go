// Package cart aggregates line items keyed by product or variant identity.
package cart

import (
	"errors"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/pricing"
	"github.com/shopspring/decimal"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

// Cart is an ordered collection with at most one line per LineKey.
// It is not safe for concurrent use; Service serialises access per user.
type Cart struct {
	items []domain.CartLineItem
}

// New restores a cart from persisted items. Lines with a non-positive
// quantity are dropped and duplicate keys are merged.
func New(items []domain.CartLineItem) *Cart {
	c := &Cart{}
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		if i := c.index(item.Key()); i >= 0 {
			c.items[i].Quantity += item.Quantity
			continue
		}
		c.items = append(c.items, item)
	}
	return c
}

func (c *Cart) index(key domain.LineKey) int {
	for i := range c.items {
		if c.items[i].Key() == key {
			return i
		}
	}
	return -1
}

func (c *Cart) delete(i int) {
	c.items = append(c.items[:i], c.items[i+1:]...)
}

// Add merges quantity into the line with the item's key, or appends a new line.
func (c *Cart) Add(item domain.CartLineItem, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if i := c.index(item.Key()); i >= 0 {
		c.items[i].Quantity += quantity
		return nil
	}
	item.Quantity = quantity
	c.items = append(c.items, item)
	return nil
}

// UpdateQuantity sets the absolute quantity of an existing line and deletes
// the line when quantity <= 0. Unknown items are ignored.
func (c *Cart) UpdateQuantity(item domain.CartLineItem, quantity int) {
	i := c.index(item.Key())
	if i < 0 {
		return
	}
	if quantity <= 0 {
		c.delete(i)
		return
	}
	c.items[i].Quantity = quantity
}

// Remove decrements an existing line, deleting it once it reaches zero.
func (c *Cart) Remove(item domain.CartLineItem, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	i := c.index(item.Key())
	if i < 0 {
		return nil
	}
	c.items[i].Quantity -= quantity
	if c.items[i].Quantity <= 0 {
		c.delete(i)
	}
	return nil
}

// ClearItem deletes the line with the item's key.
func (c *Cart) ClearItem(item domain.CartLineItem) {
	if i := c.index(item.Key()); i >= 0 {
		c.delete(i)
	}
}

func (c *Cart) Clear() {
	c.items = nil
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []domain.CartLineItem {
	out := make([]domain.CartLineItem, len(c.items))
	copy(out, c.items)
	return out
}

// Quantity returns the quantity held for key, 0 when absent.
func (c *Cart) Quantity(key domain.LineKey) int {
	if i := c.index(key); i >= 0 {
		return c.items[i].Quantity
	}
	return 0
}

func (c *Cart) TotalItems() int {
	total := 0
	for _, item := range c.items {
		total += item.Quantity
	}
	return total
}

// TotalPrice sums quantity times the variant price override, falling back
// to the calculated final price of the product.
func (c *Cart) TotalPrice() float64 {
	total := decimal.Zero
	for _, item := range c.items {
		total = total.Add(decimal.NewFromFloat(UnitPrice(item)).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total.InexactFloat64()
}

// UnitPrice is the price of a single unit of the line.
func UnitPrice(item domain.CartLineItem) float64 {
	if item.Price != nil {
		return *item.Price
	}
	return pricing.ForProduct(item.Product).FinalPrice
}
