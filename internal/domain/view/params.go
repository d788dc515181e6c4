package view

import (
	"strings"

	"github.com/go-faster/errors"
)

// ErrInvalidSortOrder is returned when a sort order is neither ascending nor
// descending.
var ErrInvalidSortOrder = errors.New("sort order must be asc or desc")

// SortOrder is the price ordering of a derived view.
type SortOrder string

// Supported sort orders.
const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// Valid reports whether o is a known sort order.
func (o SortOrder) Valid() bool {
	return o == SortAscending || o == SortDescending
}

// ParseSortOrder accepts "asc"/"ascending" and "desc"/"descending" in any case.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending":
		return SortAscending, nil
	case "desc", "descending":
		return SortDescending, nil
	default:
		return "", errors.Wrapf(ErrInvalidSortOrder, "parse %q", s)
	}
}

// Params are the user-controlled inputs of a derived view.
type Params struct {
	// SearchTerm is matched case-insensitively as a substring of the title.
	SearchTerm string
	// Category filters by exact category; empty means no filter.
	Category string
	Sort     SortOrder
}

// DefaultParams returns the neutral parameters every engine starts with.
func DefaultParams() Params {
	return Params{Sort: SortAscending}
}
