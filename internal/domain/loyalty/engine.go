package loyalty

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/romeosyl08-png/resto/internal/domain/pricing"
)

// Engine accrues stamps on delivered orders and redeems vouchers at checkout.
type Engine struct {
	repo   Repository
	orders OrderWriter
	tx     Transactor
	cfg    Config
	now    func() time.Time
}

// NewEngine creates a loyalty Engine. Zero fields of cfg take defaults.
func NewEngine(repo Repository, orders OrderWriter, tx Transactor, cfg Config) *Engine {
	return &Engine{
		repo:   repo,
		orders: orders,
		tx:     tx,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
	}
}

// Config returns the effective program parameters.
func (e *Engine) Config() Config {
	return e.cfg
}

// OnOrderDelivered adds the delivered lines to the customer's counters and
// issues a voucher for every StampsTarget stamps collected in a tier.
//
// It must run in the same transaction as the status change that delivered
// the order. Guest orders (empty userID) earn nothing.
func (e *Engine) OnOrderDelivered(ctx context.Context, userID string, lines []pricing.Line) ([]Voucher, error) {
	if userID == "" {
		return nil, nil
	}

	var issued []Voucher
	err := e.tx.InTx(ctx, func(ctx context.Context) error {
		acc, err := e.repo.LockAccount(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "lock account")
		}
		if acc.Counters == nil {
			acc.Counters = make(map[int64]int)
		}

		for _, l := range lines {
			if l.Quantity <= 0 {
				continue
			}
			if tier, ok := e.cfg.tierOf(l.UnitPrice); ok {
				acc.Counters[tier] += l.Quantity
			}
		}

		now := e.now()
		tiers := make([]int64, 0, len(acc.Counters))
		for tier := range acc.Counters {
			tiers = append(tiers, tier)
		}
		slices.Sort(tiers)

		for _, tier := range tiers {
			for acc.Counters[tier] >= e.cfg.StampsTarget {
				acc.Counters[tier] -= e.cfg.StampsTarget
				v := Voucher{
					ID:        uuid.New().String(),
					UserID:    userID,
					Tier:      tier,
					Status:    VoucherAvailable,
					ExpiresAt: now.Add(e.cfg.VoucherTTL),
					CreatedAt: now,
				}
				if err := e.repo.CreateVoucher(ctx, &v); err != nil {
					return errors.Wrap(err, "create voucher")
				}
				issued = append(issued, v)
			}
		}

		acc.UpdatedAt = now
		if err := e.repo.SaveAccount(ctx, acc); err != nil {
			return errors.Wrap(err, "save account")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, v := range issued {
		zctx.From(ctx).Info("Voucher issued",
			zap.String("user_id", userID),
			zap.Int64("tier", v.Tier),
			zap.Time("expires_at", v.ExpiresAt),
		)
	}
	return issued, nil
}

// ApplyBestVoucher redeems at most one voucher of the user against the order.
// Only vouchers whose tier equals the unit price of one of lines qualify; the
// one expiring soonest wins. totals is updated in place and persisted.
//
// Finding nothing is not an error: the Redemption reports
// ReasonNoMatchingVoucher.
func (e *Engine) ApplyBestVoucher(ctx context.Context, userID, orderID string, lines []pricing.Line, totals *pricing.Totals) (Redemption, error) {
	none := Redemption{Reason: ReasonNoMatchingVoucher, Discount: decimal.Zero}
	if userID == "" {
		return none, nil
	}
	prices := linePrices(lines)
	if len(prices) == 0 {
		return none, nil
	}

	res := none
	err := e.tx.InTx(ctx, func(ctx context.Context) error {
		v, err := e.repo.LockBestVoucher(ctx, userID, prices, e.now())
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return errors.Wrap(err, "lock voucher")
		}
		if err := e.repo.MarkUsed(ctx, v.ID, orderID); err != nil {
			return errors.Wrap(err, "mark voucher used")
		}

		discount := v.Value()
		totals.AddDiscount(discount)
		if err := e.orders.UpdateTotals(ctx, orderID, *totals); err != nil {
			return errors.Wrap(err, "update totals")
		}

		res = Redemption{Applied: true, Discount: discount, VoucherID: v.ID}
		zctx.From(ctx).Info("Voucher redeemed",
			zap.String("order_id", orderID),
			zap.String("voucher_id", v.ID),
			zap.Int64("tier", v.Tier),
		)
		return nil
	})
	if err != nil {
		return Redemption{}, err
	}
	return res, nil
}

// TierProgress is the stamp count of one tier.
type TierProgress struct {
	Tier  int64
	Count int
	// Remaining is the number of purchases until the next voucher.
	Remaining int
}

// Summary is the loyalty overview of a customer shown to staff.
type Summary struct {
	UserID    string
	Tiers     []TierProgress
	Available int
	Recent    []Voucher
}

const recentVouchers = 10

// Summary reports the counters and vouchers of the user. Recent vouchers
// carry their effective status.
func (e *Engine) Summary(ctx context.Context, userID string) (*Summary, error) {
	acc, err := e.repo.GetAccount(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get account")
	}
	now := e.now()
	available, err := e.repo.CountAvailable(ctx, userID, now)
	if err != nil {
		return nil, errors.Wrap(err, "count vouchers")
	}
	recent, err := e.repo.ListVouchers(ctx, userID, recentVouchers)
	if err != nil {
		return nil, errors.Wrap(err, "list vouchers")
	}
	for i := range recent {
		recent[i].Status = recent[i].EffectiveStatus(now)
	}

	s := &Summary{UserID: userID, Available: available, Recent: recent}
	for _, tier := range e.cfg.Tiers {
		c := acc.Count(tier)
		s.Tiers = append(s.Tiers, TierProgress{
			Tier:      tier,
			Count:     c,
			Remaining: e.cfg.StampsTarget - c,
		})
	}
	return s, nil
}

// ExpireVouchers persists the expired status of vouchers past their expiry.
func (e *Engine) ExpireVouchers(ctx context.Context) (int64, error) {
	n, err := e.repo.ExpireVouchers(ctx, e.now())
	if err != nil {
		return 0, errors.Wrap(err, "expire vouchers")
	}
	if n > 0 {
		zctx.From(ctx).Info("Vouchers expired", zap.Int64("count", n))
	}
	return n, nil
}
