package wishlist

import (
	"slices"
	"sync"

	"github.com/xenking/storefront/internal/domain/product"
)

// Wishlist is an ordered set of saved products. It is safe for concurrent use.
type Wishlist struct {
	mu    sync.Mutex
	items []product.Product
}

// New returns an empty wishlist.
func New() *Wishlist {
	return &Wishlist{}
}

// Add saves p. Adding a product twice keeps its original position.
func (w *Wishlist) Add(p product.Product) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.indexLocked(p.ID) < 0 {
		w.items = append(w.items, p)
	}
}

// Remove drops the product with the given id and reports whether it was saved.
func (w *Wishlist) Remove(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.indexLocked(id)
	if i < 0 {
		return false
	}
	w.items = slices.Delete(w.items, i, i+1)
	return true
}

// Toggle adds p when absent and removes it otherwise. It returns whether p is
// saved afterwards.
func (w *Wishlist) Toggle(p product.Product) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i := w.indexLocked(p.ID); i >= 0 {
		w.items = slices.Delete(w.items, i, i+1)
		return false
	}
	w.items = append(w.items, p)
	return true
}

// Contains reports whether the product with the given id is saved.
func (w *Wishlist) Contains(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.indexLocked(id) >= 0
}

// Items returns the saved products in the order they were added.
func (w *Wishlist) Items() []product.Product {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.items)
}

func (w *Wishlist) indexLocked(id string) int {
	return slices.IndexFunc(w.items, func(p product.Product) bool { return p.ID == id })
}
