// Package cart implements the session-owned shopping cart.
//
// A cart stores only item identities and quantities. Prices and stock are
// resolved from the menu on every read so staff changes reach uncommitted
// carts.
package cart

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/romeosyl08-png/resto/internal/domain/menu"
	"github.com/romeosyl08-png/resto/internal/domain/pricing"
	"github.com/romeosyl08-png/resto/internal/domain/promotion"
)

// MaxQty is the default cap on the quantity of a single line.
const MaxQty = 20

// ErrUnavailable is returned when an item or variant cannot be put in a cart:
// it does not exist, is inactive or has nothing left to sell.
var ErrUnavailable = errors.New("item unavailable")

// Line is a stored cart entry.
type Line struct {
	ItemID   int64
	Variant  string
	Quantity int
}

// PendingPromotion is a code estimated against the cart but not yet redeemed.
type PendingPromotion struct {
	Code      string
	Discount  decimal.Decimal
	AppliedAt time.Time
}

// State is the persisted form of a cart.
type State struct {
	Lines []Line
	Promo *PendingPromotion
}

// Catalog resolves menu items for a cart.
type Catalog interface {
	GetItem(ctx context.Context, id int64) (*menu.Item, error)
	GetItems(ctx context.Context, ids []int64) ([]menu.Item, error)
}

// Store persists cart state per session.
type Store interface {
	// Load returns the state of the session, empty when none is stored.
	Load(ctx context.Context, sessionID string) (*State, error)
	Save(ctx context.Context, sessionID string, s *State) error
	Delete(ctx context.Context, sessionID string) error
}

// Cart operates on a State using live menu data.
type Cart struct {
	state   *State
	catalog Catalog
	promos  promotion.Estimator
	maxQty  int
	now     func() time.Time
}

// Option configures a Cart.
type Option func(*Cart)

// WithMaxQty overrides MaxQty.
func WithMaxQty(n int) Option {
	return func(c *Cart) {
		if n > 0 {
			c.maxQty = n
		}
	}
}

// WithClock sets the clock used to stamp pending promotions.
func WithClock(now func() time.Time) Option {
	return func(c *Cart) { c.now = now }
}

// New wraps state. A nil state starts an empty cart.
func New(state *State, catalog Catalog, promos promotion.Estimator, opts ...Option) *Cart {
	if state == nil {
		state = &State{}
	}
	c := &Cart{
		state:   state,
		catalog: catalog,
		promos:  promos,
		maxQty:  MaxQty,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the underlying state for persistence.
func (c *Cart) State() *State { return c.state }

// Len returns the number of lines.
func (c *Cart) Len() int { return len(c.state.Lines) }

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool { return len(c.state.Lines) == 0 }

func (c *Cart) index(itemID int64, variant string) int {
	return slices.IndexFunc(c.state.Lines, func(l Line) bool {
		return l.ItemID == itemID && l.Variant == variant
	})
}

// limit resolves the item and returns the hard quantity limit of a line.
func (c *Cart) limit(ctx context.Context, itemID int64, variant string) (int, error) {
	item, err := c.catalog.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, menu.ErrNotFound) {
			return 0, ErrUnavailable
		}
		return 0, errors.Wrap(err, "get item")
	}
	v, ok := item.Variant(variant)
	if !ok || !v.Active || !item.Active {
		return 0, ErrUnavailable
	}
	limit := menu.HardLimit(c.maxQty, item, v)
	if limit <= 0 {
		return 0, ErrUnavailable
	}
	return limit, nil
}

func (c *Cart) put(itemID int64, variant string, qty int) {
	if i := c.index(itemID, variant); i >= 0 {
		c.state.Lines[i].Quantity = qty
		return
	}
	c.state.Lines = append(c.state.Lines, Line{ItemID: itemID, Variant: variant, Quantity: qty})
}

// Add increases the quantity of a line by qty, clamped to [1, hard limit].
func (c *Cart) Add(ctx context.Context, itemID int64, variant string, qty int) error {
	limit, err := c.limit(ctx, itemID, variant)
	if err != nil {
		return err
	}
	wanted := qty
	if i := c.index(itemID, variant); i >= 0 {
		wanted += c.state.Lines[i].Quantity
	}
	c.put(itemID, variant, clamp(wanted, limit))
	return nil
}

// Set replaces the quantity of a line, clamped to [1, hard limit].
// A quantity <= 0 removes the line.
func (c *Cart) Set(ctx context.Context, itemID int64, variant string, qty int) error {
	if qty <= 0 {
		c.Remove(itemID, variant)
		return nil
	}
	limit, err := c.limit(ctx, itemID, variant)
	if err != nil {
		return err
	}
	c.put(itemID, variant, clamp(qty, limit))
	return nil
}

func clamp(qty, limit int) int {
	return max(1, min(qty, limit))
}

// Remove deletes a line if present.
func (c *Cart) Remove(itemID int64, variant string) {
	if i := c.index(itemID, variant); i >= 0 {
		c.state.Lines = slices.Delete(c.state.Lines, i, i+1)
	}
}

// Clear empties the cart and drops the pending promotion.
func (c *Cart) Clear() {
	c.state.Lines = nil
	c.state.Promo = nil
}

// Resolved is a cart line priced with live menu data.
type Resolved struct {
	Item      *menu.Item
	Variant   *menu.Variant
	Quantity  int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

// PricingLine returns the line as used by the pricing package.
func (r Resolved) PricingLine() pricing.Line {
	return pricing.Line{UnitPrice: r.UnitPrice, Quantity: r.Quantity}
}

func (c *Cart) items(ctx context.Context) (map[int64]*menu.Item, error) {
	ids := make([]int64, 0, len(c.state.Lines))
	for _, l := range c.state.Lines {
		if !slices.Contains(ids, l.ItemID) {
			ids = append(ids, l.ItemID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	items, err := c.catalog.GetItems(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get items")
	}
	out := make(map[int64]*menu.Item, len(items))
	for i := range items {
		out[items[i].ID] = &items[i]
	}
	return out, nil
}

// Lines resolves every line against the current menu. Lines whose item or
// variant no longer exists are skipped.
func (c *Cart) Lines(ctx context.Context) ([]Resolved, error) {
	items, err := c.items(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Resolved, 0, len(c.state.Lines))
	for _, l := range c.state.Lines {
		item, ok := items[l.ItemID]
		if !ok {
			continue
		}
		v, ok := item.Variant(l.Variant)
		if !ok {
			continue
		}
		price := v.UnitPrice()
		out = append(out, Resolved{
			Item:      item,
			Variant:   v,
			Quantity:  l.Quantity,
			UnitPrice: price,
			Total:     pricing.Line{UnitPrice: price, Quantity: l.Quantity}.Total(),
		})
	}
	return out, nil
}

// Subtotal sums the resolved lines.
func (c *Cart) Subtotal(ctx context.Context) (decimal.Decimal, error) {
	lines, err := c.Lines(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total)
	}
	return sum, nil
}

// Pending returns the pending promotion or nil.
func (c *Cart) Pending() *PendingPromotion { return c.state.Promo }

// ApplyPromo estimates code against the current subtotal. A successful
// estimate becomes the pending promotion; a rejection clears it.
func (c *Cart) ApplyPromo(ctx context.Context, userID, code string) (promotion.Result, error) {
	subtotal, err := c.Subtotal(ctx)
	if err != nil {
		return promotion.Result{}, err
	}
	res, err := c.promos.Estimate(ctx, userID, subtotal, code)
	if err != nil {
		return promotion.Result{}, errors.Wrap(err, "estimate")
	}
	if !res.OK {
		c.state.Promo = nil
		return res, nil
	}
	c.state.Promo = &PendingPromotion{
		Code:      res.Code,
		Discount:  res.Discount,
		AppliedAt: c.now(),
	}
	return res, nil
}

// RemovePromo drops the pending promotion.
func (c *Cart) RemovePromo() { c.state.Promo = nil }

// TotalAfterDiscount is the subtotal minus the pending discount, with the
// discount clamped to [0, subtotal].
func (c *Cart) TotalAfterDiscount(ctx context.Context) (decimal.Decimal, error) {
	subtotal, err := c.Subtotal(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	discount := decimal.Zero
	if p := c.state.Promo; p != nil {
		discount = decimal.Min(pricing.FloorAtZero(p.Discount), subtotal)
	}
	return pricing.Round(subtotal.Sub(discount)), nil
}
