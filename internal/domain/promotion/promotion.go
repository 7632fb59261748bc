// Package promotion validates promotional codes and records their
// redemption against orders.
package promotion

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/romeosyl08-png/resto/internal/domain/pricing"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypePercent discounts a percentage of the subtotal.
	TypePercent Type = "percent"
	// TypeFixedAmount discounts a fixed amount, capped at the subtotal.
	TypeFixedAmount Type = "fixed_amount"
)

// Segment restricts which customers may use a promotion.
type Segment string

const (
	SegmentAll            Segment = "all"
	SegmentNewCustomers   Segment = "new_customers"
	SegmentInactive30Days Segment = "inactive_30_days"
)

// ErrNotFound is returned by repositories when no promotion has the code.
var ErrNotFound = errors.New("promotion not found")

// Promotion is a discount campaign addressed by its code.
type Promotion struct {
	ID    string
	Code  string
	Type  Type
	Value decimal.Decimal
	// Optional limits; nil means unlimited.
	MinOrderAmount    *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	UsageLimitTotal   *int
	UsageLimitPerUser *int

	Segment Segment
	StartAt *time.Time
	EndAt   *time.Time
	Active  bool
}

// NormalizeCode trims and upper-cases a code the way it is stored.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidAt reports whether the promotion is active and inside its window.
func (p *Promotion) ValidAt(now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.StartAt != nil && now.Before(*p.StartAt) {
		return false
	}
	if p.EndAt != nil && now.After(*p.EndAt) {
		return false
	}
	return true
}

// Discount computes the raw discount for subtotal, clamped to the promotion
// cap and to the subtotal itself.
func (p *Promotion) Discount(subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch p.Type {
	case TypePercent:
		amount = pricing.Percent(subtotal, p.Value)
	default:
		amount = p.Value
	}
	if p.MaxDiscountAmount != nil {
		amount = decimal.Min(amount, *p.MaxDiscountAmount)
	}
	return decimal.Min(amount, subtotal)
}

// RedemptionStatus is the state of a redemption record.
type RedemptionStatus string

const (
	RedemptionApplied   RedemptionStatus = "applied"
	RedemptionCancelled RedemptionStatus = "cancelled"
)

// Redemption links a promotion to the order it discounted.
type Redemption struct {
	ID          string
	PromotionID string
	// UserID is empty for guest orders.
	UserID         string
	OrderID        string
	DiscountAmount decimal.Decimal
	Status         RedemptionStatus
	RedeemedAt     time.Time
}

// Repository provides promotion lookups and redemption bookkeeping.
type Repository interface {
	// FindByCode returns the promotion with the normalized code or ErrNotFound.
	FindByCode(ctx context.Context, code string) (*Promotion, error)
	// LockByCode is FindByCode holding a row lock until the transaction ends.
	LockByCode(ctx context.Context, code string) (*Promotion, error)
	CountApplied(ctx context.Context, promotionID string) (int, error)
	CountAppliedByUser(ctx context.Context, promotionID, userID string) (int, error)
	// CancelApplied cancels the applied redemptions of an order and returns the
	// sum of their discounts.
	CancelApplied(ctx context.Context, orderID string) (decimal.Decimal, error)
	CreateRedemption(ctx context.Context, r *Redemption) error
}

// History answers segment questions about a customer.
type History interface {
	// DeliveredOrders returns the number of delivered orders of the user and
	// the time of the most recent delivery (zero when none).
	DeliveredOrders(ctx context.Context, userID string) (int, time.Time, error)
}

// OrderWriter persists the order fields a redemption changes.
type OrderWriter interface {
	UpdateTotals(ctx context.Context, orderID string, t pricing.Totals) error
	SetPromoCode(ctx context.Context, orderID, code string) error
}

// Transactor runs fn in a transaction, joining one already carried by ctx.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
