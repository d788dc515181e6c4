package fakestore

import (
	"bufio"
	"bytes"
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

var gzipMagic = []byte{0x1f, 0x8b}

// ReadCatalog decodes a catalog dump in the /products wire format. Gzip
// compressed input is detected and decompressed.
func ReadCatalog(r io.Reader) ([]product.Product, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(gzipMagic)); err == nil && bytes.Equal(head, gzipMagic) {
		zr, err := pgzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	} else {
		r = br
	}

	data, err := io.ReadAll(io.LimitReader(r, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read catalog")
	}
	products, err := decodeProducts(data)
	if err != nil {
		return nil, &ParseError{URL: "catalog dump", Err: err}
	}
	return products, nil
}

// WriteCatalog encodes products in the /products wire format. With compress
// set the output is gzip compressed.
func WriteCatalog(w io.Writer, products []product.Product, compress bool) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeProducts(e, products)

	if !compress {
		if _, err := w.Write(e.Bytes()); err != nil {
			return errors.Wrap(err, "write catalog")
		}
		return nil
	}

	zw := pgzip.NewWriter(w)
	if _, err := zw.Write(e.Bytes()); err != nil {
		_ = zw.Close()
		return errors.Wrap(err, "write catalog")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "flush gzip")
	}
	return nil
}

func encodeProducts(e *jx.Encoder, products []product.Product) {
	e.Arr(func(e *jx.Encoder) {
		for _, p := range products {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { encodeID(e, p.ID) })
				e.Field("title", func(e *jx.Encoder) { e.Str(p.Title) })
				e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, p.Price) })
				e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
				e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
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
	})
}

// encodeID writes numeric ids as numbers, matching the remote API.
func encodeID(e *jx.Encoder, id string) {
	if isDigits(id) {
		e.Num(jx.Num(id))
		return
	}
	e.Str(id)
}

func isDigits(s string) bool {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}
