package cart

import (
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// Sentinel errors for cart operations.
var (
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrNotInCart       = errors.New("product not in cart")
)

// Line is one product in the cart with its quantity.
type Line struct {
	Product  product.Product
	Quantity int
}

// Subtotal returns price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an in-memory shopping cart. Lines keep the order in which products
// were first added. It is safe for concurrent use.
type Cart struct {
	mu    sync.Mutex
	lines []Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add puts qty units of p in the cart, merging with an existing line. The
// stored product is refreshed to p.
func (c *Cart) Add(p product.Product, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexLocked(p.ID); i >= 0 {
		c.lines[i].Product = p
		c.lines[i].Quantity += qty
		return nil
	}
	c.lines = append(c.lines, Line{Product: p, Quantity: qty})
	return nil
}

// SetQuantity replaces the quantity of a line; zero removes it.
func (c *Cart) SetQuantity(id string, qty int) error {
	if qty < 0 {
		return ErrInvalidQuantity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return ErrNotInCart
	}
	if qty == 0 {
		c.lines = slices.Delete(c.lines, i, i+1)
		return nil
	}
	c.lines[i].Quantity = qty
	return nil
}

// Remove deletes the line for id.
func (c *Cart) Remove(id string) error {
	return c.SetQuantity(id, 0)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}

// Lines returns a copy of the cart lines.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Count returns the total number of units.
func (c *Cart) Count() int {
	count, _ := Totals(c.Lines())
	return count
}

// Total returns the sum of line subtotals rounded to 2 decimal places.
func (c *Cart) Total() decimal.Decimal {
	_, total := Totals(c.Lines())
	return total
}

// Totals sums the units and subtotals of lines. The total is rounded to 2
// decimal places.
func Totals(lines []Line) (count int, total decimal.Decimal) {
	total = decimal.Zero
	for _, l := range lines {
		count += l.Quantity
		total = total.Add(l.Subtotal())
	}
	return count, total.Round(2)
}

func (c *Cart) indexLocked(id string) int {
	return slices.IndexFunc(c.lines, func(l Line) bool { return l.Product.ID == id })
}
