package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/session"
)

func (h *Handler) getWishlist(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	writeWishlist(w, s)
}

// addWishlistItem saves a product. Saving twice is a no-op.
func (h *Handler) addWishlistItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	p, err := h.lookupProduct(r.Context(), s, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.Wishlist.Add(p)
	writeWishlist(w, s)
}

func (h *Handler) removeWishlistItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if !s.Wishlist.Remove(r.PathValue("id")) {
		writeError(w, r, product.ErrNotFound)
		return
	}
	writeWishlist(w, s)
}

// toggleWishlistItem saves the product when absent and drops it otherwise.
// Dropping does not consult the source.
func (h *Handler) toggleWishlistItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	id := r.PathValue("id")
	p := product.Product{ID: id}
	if !s.Wishlist.Contains(id) {
		var err error
		if p, err = h.lookupProduct(r.Context(), s, id); err != nil {
			writeError(w, r, err)
			return
		}
	}
	saved := s.Wishlist.Toggle(p)
	items := s.Wishlist.Items()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("saved", func(e *jx.Encoder) { e.Bool(saved) })
			e.Field("items", func(e *jx.Encoder) { encodeProducts(e, items) })
		})
	})
}

func writeWishlist(w http.ResponseWriter, s *session.Session) {
	items := s.Wishlist.Items()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("items", func(e *jx.Encoder) { encodeProducts(e, items) })
		})
	})
}
