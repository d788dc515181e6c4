package fakestore

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

func decodeProducts(data []byte) ([]product.Product, error) {
	out := make([]product.Product, 0)
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		p, err := decodeProduct(d)
		if err != nil {
			return errors.Wrapf(err, "product #%d", len(out))
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var (
		p     product.Product
		hasID bool
	)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = decodeID(d)
			hasID = true
		case "title":
			p.Title, err = d.Str()
		case "price":
			p.Price, err = decodeDecimal(d)
		case "category":
			p.Category, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "image":
			p.Image, err = d.Str()
		case "rating":
			p.Rating, err = decodeRating(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return product.Product{}, err
	}

	if !hasID || p.ID == "" {
		return product.Product{}, errors.New("missing id")
	}
	if p.Price.IsNegative() {
		return product.Product{}, errors.Errorf("negative price %s", p.Price)
	}
	return p, nil
}

// decodeID accepts both numeric and string identifiers.
func decodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return string(n), nil
	case jx.String:
		return d.Str()
	default:
		return "", errors.Errorf("unexpected id type %s", d.Next())
	}
}

// decodeDecimal accepts a JSON number or a numeric string without going
// through float64.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = string(n)
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	default:
		return decimal.Zero, errors.Errorf("unexpected number type %s", d.Next())
	}
	return decimal.NewFromString(raw)
}

func decodeRating(d *jx.Decoder) (*product.Rating, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}

	var r product.Rating
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "rate":
			r.Rate, err = decodeDecimal(d)
		case "count":
			r.Count, err = d.Int()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func decodeStrings(data []byte) ([]string, error) {
	out := make([]string, 0)
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
