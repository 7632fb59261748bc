package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/romeosyl08-png/resto/internal/domain/pricing"
)

// DefaultInactivePeriod is how long without a delivered order makes a
// customer "inactive".
const DefaultInactivePeriod = 30 * 24 * time.Hour

// Result is the outcome of estimating or applying a code.
type Result struct {
	OK       bool
	Reason   Reason
	Discount decimal.Decimal
	// Code is the normalized code on success.
	Code string
}

func reject(r Reason) Result {
	return Result{Reason: r, Discount: decimal.Zero}
}

// Estimator computes what a code would be worth without recording anything.
type Estimator interface {
	Estimate(ctx context.Context, userID string, subtotal decimal.Decimal, code string) (Result, error)
}

var _ Estimator = (*Service)(nil)

// Service validates codes and redeems them against orders.
type Service struct {
	repo     Repository
	history  History
	orders   OrderWriter
	tx       Transactor
	inactive time.Duration
	now      func() time.Time
}

// NewService creates a promotion Service.
func NewService(repo Repository, history History, orders OrderWriter, tx Transactor) *Service {
	return &Service{
		repo:     repo,
		history:  history,
		orders:   orders,
		tx:       tx,
		inactive: DefaultInactivePeriod,
		now:      time.Now,
	}
}

// WithInactivePeriod overrides the inactivity period of the inactive segment.
func (s *Service) WithInactivePeriod(d time.Duration) *Service {
	if d > 0 {
		s.inactive = d
	}
	return s
}

// Estimate checks code for the user (empty for guests) against subtotal.
// It performs no writes; business rejections are reported in the Result.
func (s *Service) Estimate(ctx context.Context, userID string, subtotal decimal.Decimal, code string) (Result, error) {
	code = NormalizeCode(code)
	if code == "" {
		return reject(ReasonEmptyCode), nil
	}
	p, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return reject(ReasonInvalidOrExpired), nil
		}
		return Result{}, errors.Wrap(err, "lookup promotion")
	}
	return s.evaluate(ctx, p, userID, subtotal)
}

func (s *Service) evaluate(ctx context.Context, p *Promotion, userID string, subtotal decimal.Decimal) (Result, error) {
	now := s.now()
	if !p.ValidAt(now) {
		return reject(ReasonInvalidOrExpired), nil
	}

	if p.Segment != SegmentAll && userID == "" {
		return reject(ReasonLoginRequired), nil
	}
	if userID != "" {
		ok, err := s.eligible(ctx, p.Segment, userID, now)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return reject(ReasonNotEligible), nil
		}
	}

	if p.MinOrderAmount != nil && subtotal.LessThan(*p.MinOrderAmount) {
		return reject(ReasonMinOrderNotMet), nil
	}

	if p.UsageLimitTotal != nil {
		used, err := s.repo.CountApplied(ctx, p.ID)
		if err != nil {
			return Result{}, errors.Wrap(err, "count redemptions")
		}
		if used >= *p.UsageLimitTotal {
			return reject(ReasonPromoLimitReached), nil
		}
	}
	if userID != "" && p.UsageLimitPerUser != nil {
		used, err := s.repo.CountAppliedByUser(ctx, p.ID, userID)
		if err != nil {
			return Result{}, errors.Wrap(err, "count user redemptions")
		}
		if used >= *p.UsageLimitPerUser {
			return reject(ReasonUserLimitReached), nil
		}
	}

	discount := p.Discount(subtotal)
	if !discount.IsPositive() {
		return reject(ReasonNoDiscount), nil
	}
	return Result{OK: true, Discount: discount, Code: p.Code}, nil
}

func (s *Service) eligible(ctx context.Context, seg Segment, userID string, now time.Time) (bool, error) {
	switch seg {
	case SegmentAll:
		return true, nil
	case SegmentNewCustomers, SegmentInactive30Days:
	default:
		return false, nil
	}

	count, last, err := s.history.DeliveredOrders(ctx, userID)
	if err != nil {
		return false, errors.Wrap(err, "customer history")
	}
	if seg == SegmentNewCustomers {
		return count == 0, nil
	}
	if count == 0 || last.IsZero() {
		return true, nil
	}
	return now.Sub(last) >= s.inactive, nil
}

// ApplyToOrder redeems code against an order, replacing any promotion
// already applied to it. totals is updated in place and persisted.
//
// The promotion row is locked while usage caps are re-checked so concurrent
// redemptions cannot both slip under a limit.
func (s *Service) ApplyToOrder(ctx context.Context, userID, orderID string, totals *pricing.Totals, code string) (Result, error) {
	var res Result
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		normalized := NormalizeCode(code)
		if normalized == "" {
			res = reject(ReasonEmptyCode)
			return nil
		}
		p, err := s.repo.LockByCode(ctx, normalized)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				res = reject(ReasonInvalidOrExpired)
				return nil
			}
			return errors.Wrap(err, "lock promotion")
		}

		res, err = s.evaluate(ctx, p, userID, totals.Subtotal)
		if err != nil || !res.OK {
			return err
		}

		cancelled, err := s.repo.CancelApplied(ctx, orderID)
		if err != nil {
			return errors.Wrap(err, "cancel previous redemption")
		}
		if err := s.repo.CreateRedemption(ctx, &Redemption{
			ID:             uuid.New().String(),
			PromotionID:    p.ID,
			UserID:         userID,
			OrderID:        orderID,
			DiscountAmount: res.Discount,
			Status:         RedemptionApplied,
			RedeemedAt:     s.now(),
		}); err != nil {
			return errors.Wrap(err, "create redemption")
		}

		totals.RemoveDiscount(cancelled)
		totals.AddDiscount(res.Discount)

		if err := s.orders.SetPromoCode(ctx, orderID, res.Code); err != nil {
			return errors.Wrap(err, "set promo code")
		}
		if err := s.orders.UpdateTotals(ctx, orderID, *totals); err != nil {
			return errors.Wrap(err, "update totals")
		}

		zctx.From(ctx).Info("Promotion applied",
			zap.String("order_id", orderID),
			zap.String("code", res.Code),
			zap.Stringer("discount", res.Discount),
		)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
