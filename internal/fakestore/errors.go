package fakestore

import (
	"fmt"
	"net/http"

	"github.com/xenking/storefront/internal/domain/product"
)

// NetworkError indicates the request could not be sent or the response could
// not be read.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError indicates the source answered with a non-2xx status.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is makes a 404 match product.ErrNotFound.
func (e *HTTPError) Is(target error) bool {
	return target == product.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// ParseError indicates the response body is not valid JSON or does not have
// the product shape.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
