package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/session"
)

func (h *Handler) getCart(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, s.Cart) })
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	req, err := h.decodeCartItem(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.lookupProduct(r.Context(), s, req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Cart.Add(p, req.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, s.Cart) })
}

// setCartItem sets the quantity of a cart line; zero removes it.
func (h *Handler) setCartItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	req, err := h.decodeQuantity(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Cart.SetQuantity(r.PathValue("id"), *req.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, s.Cart) })
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if err := s.Cart.Remove(r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, s.Cart) })
}

func (h *Handler) clearCart(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	s.Cart.Clear()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, s.Cart) })
}
