// Package menu describes the items staff put on the rotating daily menu and
// their priced variants.
package menu

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/romeosyl08-png/resto/internal/domain/pricing"
)

// Variant codes. Each item has at most one variant per code.
const (
	VariantBasic    = "basic"
	VariantStandard = "standard"
	VariantPremium  = "premium"
)

var (
	// ErrNotFound is returned when an item or variant does not exist.
	ErrNotFound = errors.New("menu item not found")
	// ErrInsufficientStock is returned when a stock decrement would go negative.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ValidVariant reports whether code is a known variant code.
func ValidVariant(code string) bool {
	switch code {
	case VariantBasic, VariantStandard, VariantPremium:
		return true
	default:
		return false
	}
}

// Item is a dish on the menu.
type Item struct {
	ID     int64
	Name   string
	Active bool
	// Weekdays lists the Monday-based weekdays (0..6) the item is served on.
	Weekdays []int
	// Stock is an optional item-wide counter on top of per-variant stock.
	Stock *int
	// MaxPerOrder caps the quantity of one line. Zero means no item cap.
	MaxPerOrder int
	Variants    []Variant
}

// ServedOn reports whether the item is on the menu for the given weekday.
func (i *Item) ServedOn(weekday int) bool {
	return slices.Contains(i.Weekdays, weekday)
}

// Variant returns the variant with the given code.
func (i *Item) Variant(code string) (*Variant, bool) {
	for k := range i.Variants {
		if i.Variants[k].Code == code {
			return &i.Variants[k], true
		}
	}
	return nil, false
}

// InStock reports whether any active variant has stock left.
func (i *Item) InStock() bool {
	if i.Stock != nil && *i.Stock <= 0 {
		return false
	}
	for _, v := range i.Variants {
		if v.Active && v.Stock > 0 {
			return true
		}
	}
	return false
}

// Variant is a priced tier of an item with its own stock.
type Variant struct {
	ItemID int64
	Code   string
	// Price is in integer minor units.
	Price  int64
	Stock  int
	Active bool
}

// UnitPrice returns the variant price as a decimal amount.
func (v *Variant) UnitPrice() decimal.Decimal {
	return pricing.FromMinor(v.Price)
}

// HardLimit returns the largest quantity one cart line may hold for the item
// and variant given the global cap. A result <= 0 means the line cannot exist.
func HardLimit(globalMax int, item *Item, v *Variant) int {
	limit := globalMax
	if item.MaxPerOrder > 0 {
		limit = min(limit, item.MaxPerOrder)
	}
	limit = min(limit, v.Stock)
	if item.Stock != nil {
		limit = min(limit, *item.Stock)
	}
	return limit
}

// Repository provides access to menu items and inventory.
type Repository interface {
	// GetItem returns an item with its variants, including inactive ones.
	GetItem(ctx context.Context, id int64) (*Item, error)
	// GetItems returns the items with the given ids that exist.
	GetItems(ctx context.Context, ids []int64) ([]Item, error)
	// ListActive returns active items ordered by descending id.
	ListActive(ctx context.Context) ([]Item, error)
	// LockVariant reads a variant and its item's stock under a row lock.
	LockVariant(ctx context.Context, itemID int64, code string) (*Item, *Variant, error)
	// DecrementStock atomically removes qty from the variant (and item) stock,
	// returning ErrInsufficientStock when not enough is left.
	DecrementStock(ctx context.Context, itemID int64, code string, qty int) error
}
