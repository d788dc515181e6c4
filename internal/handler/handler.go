// Package handler implements the storefront JSON API on top of per-session
// view engines.
package handler

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/view"
	"github.com/xenking/storefront/internal/session"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// SessionHeader carries the session id in both directions.
const SessionHeader = "X-Session-ID"

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// MaxBodyBytes limits request bodies. Defaults to 64 KiB.
	MaxBodyBytes int64
}

// Handler serves the storefront API. Each request is bound to a session
// resolved from SessionHeader; unknown or missing ids start a new session.
type Handler struct {
	sessions *session.Store
	source   product.Source
	validate *validator.Validate
	maxBody  int64
}

// NewHandler constructs a Handler. source is used for product lookups that
// must not disturb the session's detail state, such as adding an uncached
// product to the cart.
func NewHandler(cfg HandlerConfig, sessions *session.Store, source product.Source) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	return &Handler{
		sessions: sessions,
		source:   source,
		validate: newValidator(),
		maxBody:  cfg.MaxBodyBytes,
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.withSession(h.listProducts))
	mux.HandleFunc("POST /api/products/refresh", h.withSession(h.refreshProducts))
	mux.HandleFunc("GET /api/products/{id}", h.withSession(h.getProduct))
	mux.HandleFunc("GET /api/categories", h.withSession(h.listCategories))
	mux.HandleFunc("PATCH /api/view", h.withSession(h.patchView))

	mux.HandleFunc("GET /api/cart", h.withSession(h.getCart))
	mux.HandleFunc("DELETE /api/cart", h.withSession(h.clearCart))
	mux.HandleFunc("POST /api/cart/items", h.withSession(h.addCartItem))
	mux.HandleFunc("PUT /api/cart/items/{id}", h.withSession(h.setCartItem))
	mux.HandleFunc("DELETE /api/cart/items/{id}", h.withSession(h.removeCartItem))

	mux.HandleFunc("GET /api/wishlist", h.withSession(h.getWishlist))
	mux.HandleFunc("PUT /api/wishlist/{id}", h.withSession(h.addWishlistItem))
	mux.HandleFunc("DELETE /api/wishlist/{id}", h.withSession(h.removeWishlistItem))
	mux.HandleFunc("POST /api/wishlist/{id}/toggle", h.withSession(h.toggleWishlistItem))
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, s *session.Session)

func (h *Handler) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, created := h.sessions.GetOrCreate(r.Header.Get(SessionHeader))
		if created {
			zctx.From(r.Context()).Debug("Session started", zap.String("session", s.ID))
		}
		w.Header().Set(SessionHeader, s.ID)
		next(w, r, s)
	}
}

// lookupProduct resolves id from the session catalog first and falls back to
// the source.
func (h *Handler) lookupProduct(ctx context.Context, s *session.Session, id string) (product.Product, error) {
	if p, ok := s.View.Lookup(id); ok {
		return p, nil
	}
	p, err := h.source.GetByID(ctx, id)
	if err != nil {
		return product.Product{}, err
	}
	return *p, nil
}

// requestError marks a malformed or invalid request body.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }

func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{err: err}
}

// writeError maps err to a status code and JSON error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr *requestError
		valErr validator.ValidationErrors
	)
	status, msg := http.StatusBadGateway, "upstream product source failed"
	switch {
	case errors.As(err, &valErr):
		status, msg = http.StatusBadRequest, validationMessage(valErr)
	case errors.As(err, &reqErr), errors.Is(err, view.ErrInvalidSortOrder):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, cart.ErrInvalidQuantity):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, product.ErrNotFound):
		status, msg = http.StatusNotFound, "product not found"
	case errors.Is(err, cart.ErrNotInCart):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, view.ErrSuperseded):
		status, msg = http.StatusConflict, "superseded by a newer request"
	case errors.Is(err, view.ErrClosed):
		status, msg = http.StatusServiceUnavailable, "session closed"
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "product source timed out"
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// Client went away.
		return
	}

	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Warn("Request failed", zap.Int("status", status), zap.Error(err))
	}
	httpmiddleware.WriteError(w, status, msg)
}

func validationMessage(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "invalid request"
	}
	fe := errs[0]
	if fe.Param() != "" {
		return fe.Field() + ": must satisfy " + fe.Tag() + "=" + fe.Param()
	}
	return fe.Field() + ": must satisfy " + fe.Tag()
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
