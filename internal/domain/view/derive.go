package view

import (
	"slices"
	"strings"

	"github.com/xenking/storefront/internal/domain/product"
)

// Options tune how Derive matches products.
type Options struct {
	// FoldCategory makes the category filter case-insensitive.
	FoldCategory bool
}

// Derive computes the view of catalog under p: products whose title contains
// the search term (case-insensitive) and, when a category is set, whose
// category matches it, stably sorted by price. Equal prices keep catalog order
// in both directions. The catalog is not modified.
func Derive(catalog []product.Product, p Params, opts Options) []product.Product {
	term := strings.ToLower(p.SearchTerm)

	out := make([]product.Product, 0, len(catalog))
	for _, item := range catalog {
		if term != "" && !strings.Contains(strings.ToLower(item.Title), term) {
			continue
		}
		if p.Category != "" && !matchCategory(item.Category, p.Category, opts.FoldCategory) {
			continue
		}
		out = append(out, item)
	}

	desc := p.Sort == SortDescending
	slices.SortStableFunc(out, func(a, b product.Product) int {
		if desc {
			return b.Price.Cmp(a.Price)
		}
		return a.Price.Cmp(b.Price)
	})
	return out
}

func matchCategory(category, filter string, fold bool) bool {
	if fold {
		return strings.EqualFold(category, filter)
	}
	return category == filter
}
