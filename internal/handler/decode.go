package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

type viewPatch struct {
	Search   *string `json:"search" validate:"omitempty,max=200"`
	Category *string `json:"category" validate:"omitempty,max=200"`
	Sort     *string `json:"sort" validate:"omitempty,oneof=asc desc"`
}

type cartItemRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"min=1,max=999"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0,max=999"`
}

// readBody reads a bounded, non-empty request body.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, badRequest(errors.Errorf("body exceeds %d bytes", tooLarge.Limit))
		}
		return nil, badRequest(errors.Wrap(err, "read body"))
	}
	if len(data) == 0 {
		return nil, badRequest(errors.New("empty body"))
	}
	return data, nil
}

// decodeObject decodes a JSON object from r, calling field for each key, and
// validates the result.
func (h *Handler) decodeObject(w http.ResponseWriter, r *http.Request, dst any, field func(d *jx.Decoder, key string) error) error {
	data, err := h.readBody(w, r)
	if err != nil {
		return err
	}
	if err := jx.DecodeBytes(data).Obj(field); err != nil {
		return badRequest(errors.Wrap(err, "decode body"))
	}
	return h.validate.Struct(dst)
}

func optString(d *jx.Decoder) (*string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// decodeID accepts a product id as a JSON string or number.
func decodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		return string(n), err
	case jx.String:
		return d.Str()
	default:
		return "", errors.Errorf("unexpected id type %s", d.Next())
	}
}

func (h *Handler) decodeViewPatch(w http.ResponseWriter, r *http.Request) (viewPatch, error) {
	var req viewPatch
	err := h.decodeObject(w, r, &req, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "search":
			req.Search, err = optString(d)
		case "category":
			req.Category, err = optString(d)
		case "sort":
			req.Sort, err = optString(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

func (h *Handler) decodeCartItem(w http.ResponseWriter, r *http.Request) (cartItemRequest, error) {
	req := cartItemRequest{Quantity: 1}
	err := h.decodeObject(w, r, &req, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			req.ProductID, err = decodeID(d)
		case "quantity":
			req.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

func (h *Handler) decodeQuantity(w http.ResponseWriter, r *http.Request) (quantityRequest, error) {
	var req quantityRequest
	err := h.decodeObject(w, r, &req, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		q, err := d.Int()
		req.Quantity = &q
		return err
	})
	return req, err
}
