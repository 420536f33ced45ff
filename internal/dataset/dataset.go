// Package dataset holds the static records used when the remote collections
// are unreachable, and for order detail joins.
package dataset

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fjod/go_storefront/internal/domain"
)

//go:embed data.json
var fixture []byte

// Dataset is a mutable, per-owner copy of the static records. It is not safe
// for concurrent use.
type Dataset struct {
	Orders          []domain.Order          `json:"orders"`
	Users           []domain.User           `json:"users"`
	OrderItems      []domain.OrderItem      `json:"order_items"`
	ProductVariants []domain.ProductVariant `json:"product_variants"`
	Products        []domain.Product        `json:"products"`
	Reviews         []domain.Review         `json:"reviews"`
}

// Default returns a fresh copy of the embedded records.
func Default() (*Dataset, error) {
	return Parse(fixture)
}

func Parse(data []byte) (*Dataset, error) {
	var d Dataset
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	for i := range d.Orders {
		d.Orders[i].SyncState = domain.SyncStateSynced
	}
	return &d, nil
}

// Clone returns a deep copy of orders; the read-only collections are copied
// shallowly.
func (d *Dataset) Clone() *Dataset {
	c := &Dataset{
		Orders:          make([]domain.Order, len(d.Orders)),
		Users:           append([]domain.User(nil), d.Users...),
		OrderItems:      append([]domain.OrderItem(nil), d.OrderItems...),
		ProductVariants: append([]domain.ProductVariant(nil), d.ProductVariants...),
		Products:        append([]domain.Product(nil), d.Products...),
		Reviews:         append([]domain.Review(nil), d.Reviews...),
	}
	for i := range d.Orders {
		c.Orders[i] = *d.Orders[i].Clone()
	}
	return c
}

// Order returns a pointer into the dataset so callers can mutate it in place.
func (d *Dataset) Order(id string) *domain.Order {
	for i := range d.Orders {
		if d.Orders[i].ID == id {
			return &d.Orders[i]
		}
	}
	return nil
}

// RemoveOrder drops the order and its items. It reports whether the order
// was present.
func (d *Dataset) RemoveOrder(id string) bool {
	found := false
	orders := d.Orders[:0]
	for _, o := range d.Orders {
		if o.ID == id {
			found = true
			continue
		}
		orders = append(orders, o)
	}
	d.Orders = orders

	items := d.OrderItems[:0]
	for _, item := range d.OrderItems {
		if item.OrderID != id {
			items = append(items, item)
		}
	}
	d.OrderItems = items
	return found
}

func (d *Dataset) User(id string) (domain.User, bool) {
	for _, u := range d.Users {
		if strconv.FormatInt(u.ID, 10) == id {
			return u, true
		}
	}
	return domain.User{}, false
}

func (d *Dataset) ItemsFor(orderID string) []domain.OrderItem {
	var items []domain.OrderItem
	for _, item := range d.OrderItems {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	return items
}

func (d *Dataset) Variant(id int64) (domain.ProductVariant, bool) {
	for _, v := range d.ProductVariants {
		if v.ID == id {
			return v, true
		}
	}
	return domain.ProductVariant{}, false
}

func (d *Dataset) Product(id int64) (domain.Product, bool) {
	for _, p := range d.Products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

// ReviewsFor returns the reviews of a product, or every review when
// productID is 0.
func (d *Dataset) ReviewsFor(productID int64) []domain.Review {
	reviews := []domain.Review{}
	for _, r := range d.Reviews {
		if productID == 0 || r.ProductID == productID {
			reviews = append(reviews, r)
		}
	}
	return reviews
}

// Export renders the dataset with orders replaced by the given snapshot.
// Passwords are never exported.
func (d *Dataset) Export(orders []domain.Order) ([]byte, error) {
	out := *d
	out.Orders = orders
	out.Users = make([]domain.User, len(d.Users))
	for i, u := range d.Users {
		out.Users[i] = u.Public()
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export dataset: %w", err)
	}
	return data, nil
}
