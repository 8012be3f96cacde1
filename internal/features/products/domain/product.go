package domain

import "errors"

var (
	// ErrProductNotFound is returned when the product does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrVariantNotFound is returned when the product has no such weight option.
	ErrVariantNotFound = errors.New("weight option not found")
	// ErrInsufficientStock is returned when stock cannot cover the requested quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Product is a catalog item with per-weight-option stock.
// Catalog management is out of scope here; orders only check and decrement stock.
type Product struct {
	// ID is the unique product identifier.
	ID string `json:"id"`
	// Name is the product display name.
	Name string `json:"name"`
	// Variants are the purchasable weight options.
	Variants []Variant `json:"variants"`
}

// Variant is a purchasable weight option of a product.
type Variant struct {
	// ID is the variant identifier, unique within the product.
	ID string `json:"id"`
	// Weight is the numeric weight of the option.
	Weight float64 `json:"weight"`
	// Unit is the weight unit: g, kg or piece.
	Unit string `json:"unit"`
	// Price is the unit price for this option.
	Price float64 `json:"price"`
	// Stock is the number of units on hand.
	Stock int64 `json:"stock"`
}

// Variant returns the variant with the given id, or nil.
func (p *Product) Variant(variantID string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			return &p.Variants[i]
		}
	}
	return nil
}
