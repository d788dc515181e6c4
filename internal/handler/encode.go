package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/view"
)

// writeJSON encodes a JSON body with fn and writes it with status.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// encodeDecimal writes d as a JSON number without a float round trip.
func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("title", func(e *jx.Encoder) { e.Str(p.Title) })
		e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, p.Price) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("image", func(e *jx.Encoder) { e.Str(p.Image) })
		if p.Rating != nil {
			e.Field("rating", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("rate", func(e *jx.Encoder) { encodeDecimal(e, p.Rating.Rate) })
					e.Field("count", func(e *jx.Encoder) { e.Int(p.Rating.Count) })
				})
			})
		}
	})
}

func encodeProducts(e *jx.Encoder, products []product.Product) {
	e.Arr(func(e *jx.Encoder) {
		for _, p := range products {
			encodeProduct(e, p)
		}
	})
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.Arr(func(e *jx.Encoder) {
		for _, v := range values {
			e.Str(v)
		}
	})
}

func encodeParams(e *jx.Encoder, p view.Params) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("search", func(e *jx.Encoder) { e.Str(p.SearchTerm) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("sort", func(e *jx.Encoder) { e.Str(string(p.Sort)) })
	})
}

func encodeSnapshot(e *jx.Encoder, s view.Snapshot) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("version", func(e *jx.Encoder) { e.UInt64(s.Version) })
		e.Field("params", func(e *jx.Encoder) { encodeParams(e, s.Params) })
		e.Field("products", func(e *jx.Encoder) { encodeProducts(e, s.View) })
		e.Field("catalogSize", func(e *jx.Encoder) { e.Int(s.CatalogSize) })
		e.Field("categories", func(e *jx.Encoder) { encodeStrings(e, s.Categories) })
		e.Field("detail", func(e *jx.Encoder) {
			if s.Detail == nil {
				e.Null()
				return
			}
			encodeProduct(e, *s.Detail)
		})
		e.Field("loading", func(e *jx.Encoder) { e.Bool(s.Loading) })
		e.Field("error", func(e *jx.Encoder) { e.Str(s.Error) })
	})
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	lines := c.Lines()
	count, total := cart.Totals(lines)
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product", func(e *jx.Encoder) { encodeProduct(e, l.Product) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
						e.Field("subtotal", func(e *jx.Encoder) { encodeDecimal(e, l.Subtotal()) })
					})
				}
			})
		})
		e.Field("count", func(e *jx.Encoder) { e.Int(count) })
		e.Field("total", func(e *jx.Encoder) { encodeDecimal(e, total) })
	})
}
