package domain

// PricingScheme discriminates the two price representations found in the catalog.
type PricingScheme string

const (
	// SchemeSale prices a product by a base price and the sale price it sells at.
	SchemeSale PricingScheme = "sale"
	// SchemePercentage prices a product by an original price and a discount percentage.
	SchemePercentage PricingScheme = "percentage"
)

// PriceSource is the input of the pricing calculator. Only the fields of the
// selected Scheme are read.
type PriceSource struct {
	Scheme             PricingScheme
	BasePrice          float64
	SalePrice          float64
	OriginalPrice      float64
	DiscountPercentage float64
}

type Dimensions struct {
	Length float64 `json:"length" bson:"length"`
	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`
}

// Product is a catalog entry. Catalogs use one of two price shapes:
// basePrice/salePrice or originalPrice/discountPercentage.
type Product struct {
	ID               int64    `json:"id" bson:"id"`
	Name             string   `json:"name" bson:"name"`
	Slug             string   `json:"slug,omitempty" bson:"slug,omitempty"`
	Description      string   `json:"description,omitempty" bson:"description,omitempty"`
	ShortDescription string   `json:"shortDescription,omitempty" bson:"short_description,omitempty"`
	CategoryID       int64    `json:"categoryId,omitempty" bson:"category_id,omitempty"`
	Brand            string   `json:"brand,omitempty" bson:"brand,omitempty"`
	SKU              string   `json:"sku,omitempty" bson:"sku,omitempty"`
	Tags             []string `json:"tags,omitempty" bson:"tags,omitempty"`
	MainImage        string   `json:"mainImage,omitempty" bson:"main_image,omitempty"`
	Images           []string `json:"images,omitempty" bson:"images,omitempty"`

	BasePrice          float64 `json:"basePrice,omitempty" bson:"base_price,omitempty"`
	SalePrice          float64 `json:"salePrice,omitempty" bson:"sale_price,omitempty"`
	OriginalPrice      float64 `json:"originalPrice,omitempty" bson:"original_price,omitempty"`
	DiscountPercentage float64 `json:"discountPercentage,omitempty" bson:"discount_percentage,omitempty"`

	Dimensions *Dimensions `json:"dimensions,omitempty" bson:"dimensions,omitempty"`
	IsActive   bool        `json:"isActive,omitempty" bson:"is_active,omitempty"`
	CreatedAt  string      `json:"createdAt,omitempty" bson:"created_at,omitempty"`
	UpdatedAt  string      `json:"updatedAt,omitempty" bson:"updated_at,omitempty"`
}

// PriceSource selects the scheme from the fields that are set. A product
// carrying basePrice or salePrice is priced by sale; otherwise, if it carries
// originalPrice or a discount percentage, by percentage.
func (p Product) PriceSource() PriceSource {
	switch {
	case p.BasePrice != 0 || p.SalePrice != 0:
		return PriceSource{Scheme: SchemeSale, BasePrice: p.BasePrice, SalePrice: p.SalePrice}
	case p.OriginalPrice != 0 || p.DiscountPercentage != 0:
		return PriceSource{
			Scheme:             SchemePercentage,
			OriginalPrice:      p.OriginalPrice,
			DiscountPercentage: p.DiscountPercentage,
		}
	default:
		return PriceSource{Scheme: SchemeSale}
	}
}

// ProductVariant is a size/color/SKU instance of a product with its own stock.
type ProductVariant struct {
	ID            int64   `json:"id"`
	ProductID     int64   `json:"productId"`
	SKU           string  `json:"sku"`
	Size          string  `json:"size"`
	Color         string  `json:"color"`
	ColorCode     string  `json:"colorCode,omitempty"`
	Price         float64 `json:"price,omitempty"`
	StockQuantity int     `json:"stockQuantity"`
	IsActive      bool    `json:"isActive"`
}

// InStock reports whether the variant can cover quantity. Advisory only.
func (v ProductVariant) InStock(quantity int) bool {
	return v.StockQuantity >= quantity
}
