// Package loyalty tracks per-tier purchase counters for customers and issues
// free item vouchers when a counter reaches the stamps target.
package loyalty

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/romeosyl08-png/resto/internal/domain/pricing"
)

// ErrNotFound is returned when no voucher matches a lookup.
var ErrNotFound = errors.New("voucher not found")

// Config holds the loyalty program parameters.
type Config struct {
	// StampsTarget is the number of purchases of one tier that earn a voucher.
	StampsTarget int
	// VoucherTTL is how long an issued voucher stays redeemable.
	VoucherTTL time.Duration
	// Tiers are the variant prices, in minor units, that earn stamps.
	Tiers []int64
}

// DefaultConfig returns the standard program: 8 stamps, 30 day vouchers,
// tiers at 500, 1000 and 1500.
func DefaultConfig() Config {
	return Config{
		StampsTarget: 8,
		VoucherTTL:   30 * 24 * time.Hour,
		Tiers:        []int64{500, 1000, 1500},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.StampsTarget <= 0 {
		c.StampsTarget = def.StampsTarget
	}
	if c.VoucherTTL <= 0 {
		c.VoucherTTL = def.VoucherTTL
	}
	if len(c.Tiers) == 0 {
		c.Tiers = def.Tiers
	}
	return c
}

// tierOf returns the configured tier priced exactly at price.
func (c Config) tierOf(price decimal.Decimal) (int64, bool) {
	for _, t := range c.Tiers {
		if price.Equal(pricing.FromMinor(t)) {
			return t, true
		}
	}
	return 0, false
}

// Account is the loyalty state of one customer.
type Account struct {
	UserID string
	// Counters maps a tier to the stamps collected toward its next voucher.
	Counters  map[int64]int
	UpdatedAt time.Time
}

// Count returns the counter of tier.
func (a *Account) Count(tier int64) int {
	if a.Counters == nil {
		return 0
	}
	return a.Counters[tier]
}

// VoucherStatus is the lifecycle state of a voucher.
type VoucherStatus string

const (
	VoucherAvailable VoucherStatus = "available"
	VoucherUsed      VoucherStatus = "used"
	VoucherExpired   VoucherStatus = "expired"
)

// Voucher grants one free item of its tier.
type Voucher struct {
	ID        string
	UserID    string
	Tier      int64
	Status    VoucherStatus
	ExpiresAt time.Time
	CreatedAt time.Time
	// UsedOrderID is set once the voucher is redeemed.
	UsedOrderID string
}

// Value is the discount the voucher grants.
func (v *Voucher) Value() decimal.Decimal {
	return pricing.FromMinor(v.Tier)
}

// EffectiveStatus derives the status at now: an available voucher past its
// expiry reads as expired even if the stored status was never swept.
func (v *Voucher) EffectiveStatus(now time.Time) VoucherStatus {
	if v.Status == VoucherAvailable && !now.Before(v.ExpiresAt) {
		return VoucherExpired
	}
	return v.Status
}

// Reason explains why no voucher was redeemed.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonNoMatchingVoucher Reason = "NO_MATCHING_VOUCHER"
)

// Redemption is the outcome of ApplyBestVoucher.
type Redemption struct {
	Applied   bool
	Reason    Reason
	Discount  decimal.Decimal
	VoucherID string
}

// linePrices returns the distinct minor-unit prices among lines.
func linePrices(lines []pricing.Line) []int64 {
	var out []int64
	for _, l := range lines {
		p, ok := pricing.ToMinor(l.UnitPrice)
		if !ok || p <= 0 {
			continue
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

// Repository persists accounts and vouchers. Lock methods must be called
// inside a transaction.
type Repository interface {
	// LockAccount returns the account of the user under a row lock, creating
	// an empty one if it does not exist.
	LockAccount(ctx context.Context, userID string) (*Account, error)
	SaveAccount(ctx context.Context, a *Account) error
	// GetAccount returns the account without locking; a missing account is
	// returned empty.
	GetAccount(ctx context.Context, userID string) (*Account, error)

	CreateVoucher(ctx context.Context, v *Voucher) error
	// LockBestVoucher locks the available voucher of the user expiring
	// soonest, among those with a tier in tiers and expiring after now.
	// Returns ErrNotFound when none matches.
	LockBestVoucher(ctx context.Context, userID string, tiers []int64, now time.Time) (*Voucher, error)
	MarkUsed(ctx context.Context, voucherID, orderID string) error
	CountAvailable(ctx context.Context, userID string, now time.Time) (int, error)
	// ListVouchers returns the most recent vouchers of the user.
	ListVouchers(ctx context.Context, userID string, limit int) ([]Voucher, error)
	// ExpireVouchers marks available vouchers expired when past expiry and
	// returns how many were changed.
	ExpireVouchers(ctx context.Context, now time.Time) (int64, error)
}

// OrderWriter persists order totals after a voucher is redeemed.
type OrderWriter interface {
	UpdateTotals(ctx context.Context, orderID string, t pricing.Totals) error
}

// Transactor runs fn in a transaction, joining one already carried by ctx.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
