package order

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-faster/errors"

	"github.com/romeosyl08-png/resto/internal/domain/cart"
	"github.com/romeosyl08-png/resto/internal/domain/menu"
)

// Sentinel errors for checkout and order edits.
var (
	ErrNotFound        = errors.New("order not found")
	ErrItemNotFound    = errors.New("order item not found")
	ErrOrderingClosed  = errors.New("ordering is closed")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrNotEditable     = errors.New("order can no longer be edited")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	// ErrInsufficientStock is also returned when a concurrent checkout took
	// the stock first.
	ErrInsufficientStock = menu.ErrInsufficientStock
)

// StaleCartError is returned when checkout had to drop lines from the cart.
// The caller should show the cart again.
type StaleCartError struct {
	Purge cart.PurgeResult
}

func (e *StaleCartError) Error() string {
	reasons := make([]string, len(e.Purge.Reasons))
	for i, r := range e.Purge.Reasons {
		reasons[i] = string(r)
	}
	return fmt.Sprintf("cart changed: %d line(s) removed (%s)", e.Purge.Removed, strings.Join(reasons, ", "))
}

// StockError identifies the line that ran out of stock.
type StockError struct {
	ItemID  int64
	Variant string
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d (%s)", e.ItemID, e.Variant)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// ValidationError lists invalid checkout fields.
type ValidationError struct {
	// Fields maps a field name to the failed rule.
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + e.Fields[name]
	}
	return "invalid checkout form: " + strings.Join(parts, "; ")
}

// TransitionError indicates a status change the lifecycle does not allow.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}
