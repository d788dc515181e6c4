package wishlist

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xenking/storefront/internal/domain/product"
)

func ids(products []product.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func TestAdd_Idempotent(t *testing.T) {
	w := New()
	w.Add(product.Product{ID: "1"})
	w.Add(product.Product{ID: "2"})
	w.Add(product.Product{ID: "1"})

	assert.Equal(t, []string{"1", "2"}, ids(w.Items()))
	assert.True(t, w.Contains("1"))
	assert.False(t, w.Contains("3"))
}

func TestRemove(t *testing.T) {
	w := New()
	w.Add(product.Product{ID: "1"})

	assert.True(t, w.Remove("1"))
	assert.False(t, w.Remove("1"))
	assert.Empty(t, w.Items())
}

func TestToggle(t *testing.T) {
	w := New()

	assert.True(t, w.Toggle(product.Product{ID: "1"}))
	assert.True(t, w.Contains("1"))
	assert.False(t, w.Toggle(product.Product{ID: "1"}))
	assert.False(t, w.Contains("1"))
}
