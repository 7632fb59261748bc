// Package pricing holds the money arithmetic shared by carts, orders,
// promotions and loyalty vouchers.
package pricing

import (
	"github.com/shopspring/decimal"
)

// minorExp is the number of decimal places of a minor unit.
const minorExp = 2

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Line is a priced quantity of one item.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Total returns UnitPrice * Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Subtotal returns the sum of line totals.
func Subtotal(lines []Line) decimal.Decimal {
	sum := zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// FromMinor converts an integer minor-unit price to a decimal amount:
// 1050 is 10.50.
func FromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -minorExp)
}

// ToMinor converts an amount back to minor units. It reports false when the
// amount has sub-minor digits.
func ToMinor(d decimal.Decimal) (int64, bool) {
	m := d.Shift(minorExp)
	if !m.IsInteger() {
		return 0, false
	}
	return m.IntPart(), true
}

// Round rounds to 2 decimal places, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns pct percent of amount rounded to 2 decimal places.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(pct).Div(hundred))
}

// FloorAtZero clamps negative values to zero.
func FloorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}

// Totals are the amounts charged for an order.
//
// Total is always max(0, Subtotal - DiscountTotal); mutate through the
// methods to keep it that way.
type Totals struct {
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	Total         decimal.Decimal
}

// NewTotals returns totals for a subtotal with no discount.
func NewTotals(subtotal decimal.Decimal) Totals {
	t := Totals{Subtotal: subtotal, DiscountTotal: zero}
	t.recompute()
	return t
}

func (t *Totals) recompute() {
	t.Total = Round(FloorAtZero(t.Subtotal.Sub(t.DiscountTotal)))
}

// SetSubtotal replaces the subtotal, keeping the accumulated discount.
func (t *Totals) SetSubtotal(subtotal decimal.Decimal) {
	t.Subtotal = subtotal
	t.recompute()
}

// AddDiscount adds d to the discount total.
func (t *Totals) AddDiscount(d decimal.Decimal) {
	t.DiscountTotal = Round(t.DiscountTotal.Add(d))
	t.recompute()
}

// RemoveDiscount takes back a previously granted discount. The discount total
// never goes below zero.
func (t *Totals) RemoveDiscount(d decimal.Decimal) {
	t.DiscountTotal = Round(FloorAtZero(t.DiscountTotal.Sub(d)))
	t.recompute()
}

// Consistent reports whether Total matches Subtotal and DiscountTotal.
func (t Totals) Consistent() bool {
	return t.Total.Equal(Round(FloorAtZero(t.Subtotal.Sub(t.DiscountTotal))))
}
