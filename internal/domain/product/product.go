package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item offered by the product source.
type Product struct {
	ID          string
	Title       string
	Price       decimal.Decimal
	Category    string
	Description string
	Image       string
	Rating      *Rating
}

// Rating is the aggregate customer score of a product.
type Rating struct {
	Rate  decimal.Decimal
	Count int
}

// Source defines read operations against a product catalog.
type Source interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Categories(ctx context.Context) ([]string, error)
}

// Categories returns the distinct categories of products in first-appearance
// order.
func Categories(products []Product) []string {
	seen := make(map[string]struct{}, len(products))
	out := make([]string, 0)
	for _, p := range products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}
