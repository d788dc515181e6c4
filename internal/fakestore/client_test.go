package fakestore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
)

// --- Helpers ---

func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.HandleFunc(pattern, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: baseURL, Timeout: 5 * time.Second, UserAgent: "storefront-test"}, nil, nil)
	require.NoError(t, err)
	return c
}

func writeJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func fixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("testdata/products.json")
	require.NoError(t, err)
	return string(data)
}

// --- Tests ---

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "ftp://example.com"}, nil, nil)
	require.Error(t, err)
}

func TestList(t *testing.T) {
	var userAgent string
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"GET /products": func(w http.ResponseWriter, r *http.Request) {
			userAgent = r.Header.Get("User-Agent")
			writeJSON(fixture(t))(w, r)
		},
	})
	c := newTestClient(t, srv.URL)

	products, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "storefront-test", userAgent)

	p := products[0]
	assert.Equal(t, "1", p.ID)
	assert.Equal(t, "Fjallraven - Foldsack No. 1 Backpack, Fits 15 Laptops", p.Title)
	assert.True(t, decimal.RequireFromString("109.95").Equal(p.Price))
	assert.Equal(t, "men's clothing", p.Category)
	assert.Equal(t, "https://fakestoreapi.com/img/81fPKd-2AYL._AC_SL1500_.jpg", p.Image)
	require.NotNil(t, p.Rating)
	assert.True(t, decimal.RequireFromString("3.9").Equal(p.Rating.Rate))
	assert.Equal(t, 120, p.Rating.Count)

	// String id and price, unknown fields skipped, rating absent.
	assert.Equal(t, "sku-7", products[2].ID)
	assert.True(t, decimal.RequireFromString("9.99").Equal(products[2].Price))
	assert.Nil(t, products[2].Rating)
}

func TestList_Empty(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"GET /products": writeJSON(`[]`),
	})

	products, err := newTestClient(t, srv.URL).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestList_ParseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html>oops</html>`},
		{name: "object instead of array", body: `{"id": 1}`},
		{name: "missing id", body: `[{"title": "x", "price": 1}]`},
		{name: "negative price", body: `[{"id": 1, "price": -3}]`},
		{name: "bad price", body: `[{"id": 1, "price": "cheap"}]`},
		{name: "truncated", body: `[{"id": 1, "title": "x"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, map[string]http.HandlerFunc{
				"GET /products": writeJSON(tt.body),
			})

			_, err := newTestClient(t, srv.URL).List(context.Background())
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, perr.URL, "/products")
		})
	}
}

func TestGetByID(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"GET /products/{id}": func(w http.ResponseWriter, r *http.Request) {
			switch r.PathValue("id") {
			case "2":
				writeJSON(`{"id":2,"title":"Mens Casual Premium Slim Fit T-Shirts ","price":22.3,"category":"men's clothing"}`)(w, r)
			case "21":
				// The public API answers unknown ids with an empty body.
				w.WriteHeader(http.StatusOK)
			case "22":
				writeJSON(`null`)(w, r)
			case "404":
				http.NotFound(w, r)
			default:
				http.Error(w, "boom", http.StatusInternalServerError)
			}
		},
	})
	c := newTestClient(t, srv.URL)

	t.Run("found", func(t *testing.T) {
		p, err := c.GetByID(context.Background(), "2")
		require.NoError(t, err)
		assert.Equal(t, "2", p.ID)
		assert.True(t, decimal.RequireFromString("22.3").Equal(p.Price))
	})

	t.Run("empty body is not found", func(t *testing.T) {
		_, err := c.GetByID(context.Background(), "21")
		require.ErrorIs(t, err, product.ErrNotFound)
	})

	t.Run("null body is not found", func(t *testing.T) {
		_, err := c.GetByID(context.Background(), "22")
		require.ErrorIs(t, err, product.ErrNotFound)
	})

	t.Run("404 is not found", func(t *testing.T) {
		_, err := c.GetByID(context.Background(), "404")
		require.ErrorIs(t, err, product.ErrNotFound)

		var herr *HTTPError
		require.ErrorAs(t, err, &herr)
		assert.Equal(t, http.StatusNotFound, herr.StatusCode)
	})

	t.Run("500 is http error", func(t *testing.T) {
		_, err := c.GetByID(context.Background(), "9")
		var herr *HTTPError
		require.ErrorAs(t, err, &herr)
		assert.Equal(t, http.StatusInternalServerError, herr.StatusCode)
		assert.NotErrorIs(t, err, product.ErrNotFound)
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("dot segments rejected", func(t *testing.T) {
		_, err := c.GetByID(context.Background(), "..")
		require.ErrorIs(t, err, product.ErrNotFound)
	})
}

func TestCategories(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"GET /products/categories": writeJSON(`["electronics","jewelery","men's clothing","women's clothing"]`),
	})

	categories, err := newTestClient(t, srv.URL).Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"electronics", "jewelery", "men's clothing", "women's clothing"}, categories)
}

func TestPing(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"GET /products/categories": writeJSON(`[]`),
	})
	require.NoError(t, newTestClient(t, srv.URL).Ping(context.Background()))
}

func TestBaseURLWithPath(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"GET /v1/products": writeJSON(`[{"id":5,"price":1}]`),
	})

	products, err := newTestClient(t, srv.URL+"/v1/").List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "5", products[0].ID)
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url).List(context.Background())
	var nerr *NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "GET", nerr.Op)
}

func TestContextCanceled(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"GET /products": writeJSON(`[]`),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, srv.URL).List(ctx)
	require.ErrorIs(t, err, context.Canceled)

	var nerr *NetworkError
	assert.True(t, errors.As(err, &nerr))
}
