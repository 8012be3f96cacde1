package ports

import (
	"context"

	"cakeshop-dispatch/internal/features/products/domain"
)

// ProductRepository defines the secondary port for product stock storage.
// DecrementStock is the only mutation order creation relies on; its
// stock predicate and write are a single atomic storage operation.
type ProductRepository interface {
	// FindByID retrieves a product. Returns domain.ErrProductNotFound when absent.
	FindByID(ctx context.Context, productID string) (*domain.Product, error)

	// Save persists a product (seeding and admin tooling).
	Save(ctx context.Context, product *domain.Product) error

	// CheckStock reports whether the variant has at least quantity units.
	// Advisory only; DecrementStock re-checks atomically.
	CheckStock(ctx context.Context, productID, variantID string, quantity int64) (bool, error)

	// DecrementStock atomically takes quantity units from the variant's stock,
	// failing with domain.ErrInsufficientStock when not enough remain.
	DecrementStock(ctx context.Context, productID, variantID string, quantity int64) error

	// IncrementStock returns units to the variant's stock (compensation path).
	IncrementStock(ctx context.Context, productID, variantID string, quantity int64) error
}
