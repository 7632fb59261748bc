package order

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/romeosyl08-png/resto/internal/domain/cart"
	"github.com/romeosyl08-png/resto/internal/domain/loyalty"
	"github.com/romeosyl08-png/resto/internal/domain/menu"
	"github.com/romeosyl08-png/resto/internal/domain/pricing"
	"github.com/romeosyl08-png/resto/internal/domain/promotion"
	"github.com/romeosyl08-png/resto/internal/domain/window"
)

// PromotionApplier redeems a promotion code against an order.
type PromotionApplier interface {
	ApplyToOrder(ctx context.Context, userID, orderID string, totals *pricing.Totals, code string) (promotion.Result, error)
}

// Loyalty accrues and redeems loyalty rewards.
type Loyalty interface {
	OnOrderDelivered(ctx context.Context, userID string, lines []pricing.Line) ([]loyalty.Voucher, error)
	ApplyBestVoucher(ctx context.Context, userID, orderID string, lines []pricing.Line, totals *pricing.Totals) (loyalty.Redemption, error)
}

// CheckoutRequest holds the input for placing an order from a cart.
type CheckoutRequest struct {
	Cart *cart.Cart
	// UserID is empty for guest checkout.
	UserID string
	Form   CheckoutForm
	// PromoCode overrides the pending promotion of the cart when set.
	PromoCode string
}

// CheckoutResult holds the output of a successful checkout.
type CheckoutResult struct {
	Order *Order
	// Promotion is nil when no code was presented.
	Promotion *promotion.Result
	Voucher   loyalty.Redemption
}

// Service encapsulates checkout and order lifecycle business logic.
type Service struct {
	menu     menu.Repository
	orders   Repository
	promos   PromotionApplier
	loyalty  Loyalty
	tx       Transactor
	policy   window.Policy
	validate *validator.Validate
	metrics  *Metrics
	now      func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
// metrics may be nil.
func NewService(
	items menu.Repository,
	orders Repository,
	promos PromotionApplier,
	loyalty Loyalty,
	tx Transactor,
	policy window.Policy,
	metrics *Metrics,
) *Service {
	return &Service{
		menu:     items,
		orders:   orders,
		promos:   promos,
		loyalty:  loyalty,
		tx:       tx,
		policy:   policy,
		validate: newValidator(),
		metrics:  metrics,
		now:      time.Now,
	}
}

// Checkout turns the cart into a pending order.
//
// Outside the ordering window the cart is cleared and ErrOrderingClosed is
// returned. If any line had to be purged the order is not placed and
// *StaleCartError is returned. Everything after validation runs in one
// transaction: a stock shortfall on any line rolls back the whole order.
// The cart is cleared once the order is committed; persisting it is up to
// the caller.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (_ *CheckoutResult, rerr error) {
	defer func() { s.metrics.checkout(ctx, rerr) }()

	c := req.Cart
	now := s.now()
	if !s.policy.IsOpen(now) {
		c.Clear()
		return nil, ErrOrderingClosed
	}

	purge, err := c.PurgeUnavailable(ctx, true)
	if err != nil {
		return nil, errors.Wrap(err, "purge cart")
	}
	if purge.Removed > 0 {
		return nil, &StaleCartError{Purge: purge}
	}
	if c.Empty() {
		return nil, ErrEmptyCart
	}

	form, err := validateForm(s.validate, req.Form)
	if err != nil {
		return nil, err
	}

	code := req.PromoCode
	if code == "" && c.Pending() != nil {
		code = c.Pending().Code
	}

	// Lock rows in a stable order so concurrent checkouts cannot deadlock.
	lines := slices.Clone(c.State().Lines)
	slices.SortFunc(lines, func(a, b cart.Line) int {
		return cmp.Or(cmp.Compare(a.ItemID, b.ItemID), cmp.Compare(a.Variant, b.Variant))
	})

	res := &CheckoutResult{}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		o := &Order{
			ID:        uuid.New().String(),
			UserID:    req.UserID,
			Contact:   form.Contact(),
			Status:    StatusPending,
			CreatedAt: now,
		}

		for _, l := range lines {
			item, v, err := s.menu.LockVariant(ctx, l.ItemID, l.Variant)
			if err != nil {
				if errors.Is(err, menu.ErrNotFound) {
					return &StockError{ItemID: l.ItemID, Variant: l.Variant}
				}
				return errors.Wrap(err, "lock variant")
			}
			if !item.Active || !v.Active || v.Stock < l.Quantity ||
				(item.Stock != nil && *item.Stock < l.Quantity) {
				return &StockError{ItemID: l.ItemID, Variant: l.Variant}
			}
			o.Items = append(o.Items, Item{
				ID:        uuid.New().String(),
				OrderID:   o.ID,
				ItemID:    l.ItemID,
				Variant:   l.Variant,
				Quantity:  l.Quantity,
				UnitPrice: v.UnitPrice(),
			})
		}
		o.Totals = pricing.NewTotals(pricing.Subtotal(o.Lines()))

		if err := s.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		for _, it := range o.Items {
			if err := s.menu.DecrementStock(ctx, it.ItemID, it.Variant, it.Quantity); err != nil {
				if errors.Is(err, menu.ErrInsufficientStock) {
					return &StockError{ItemID: it.ItemID, Variant: it.Variant}
				}
				return errors.Wrap(err, "decrement stock")
			}
		}

		if code != "" {
			pr, err := s.promos.ApplyToOrder(ctx, req.UserID, o.ID, &o.Totals, code)
			if err != nil {
				return errors.Wrap(err, "apply promotion")
			}
			if pr.OK {
				o.PromoCode = pr.Code
			}
			res.Promotion = &pr
		}

		vr, err := s.loyalty.ApplyBestVoucher(ctx, req.UserID, o.ID, o.Lines(), &o.Totals)
		if err != nil {
			return errors.Wrap(err, "apply voucher")
		}
		res.Voucher = vr
		res.Order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.Clear()

	if res.Promotion != nil {
		s.metrics.promotion(ctx, string(res.Promotion.Reason))
	}
	if res.Voucher.Applied {
		s.metrics.redeemed(ctx)
	}
	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", res.Order.ID),
		zap.Bool("guest", req.UserID == ""),
		zap.Int("items", len(res.Order.Items)),
		zap.Stringer("total", res.Order.Total),
	)
	return res, nil
}

// Get returns an order with its items.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Transition changes the order status. Moving to the current status is a
// no-op. Entering delivered accrues loyalty stamps in the same transaction,
// so an order is only ever counted once.
func (s *Service) Transition(ctx context.Context, id string, to Status) (*Order, error) {
	if !to.Valid() {
		return nil, &TransitionError{To: to}
	}

	var (
		o      *Order
		issued int
		moved  bool
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		prev, changed, err := s.orders.TransitionStatus(ctx, id, to, Sources(to), s.now())
		if err != nil {
			return err
		}
		if !changed && prev != to {
			return &TransitionError{From: prev, To: to}
		}
		moved = changed

		o, err = s.orders.Get(ctx, id)
		if err != nil {
			return errors.Wrap(err, "reload order")
		}
		if !changed || to != StatusDelivered {
			return nil
		}

		vouchers, err := s.loyalty.OnOrderDelivered(ctx, o.UserID, o.Lines())
		if err != nil {
			return errors.Wrap(err, "accrue loyalty")
		}
		issued = len(vouchers)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if moved {
		s.metrics.transition(ctx, to)
		s.metrics.issued(ctx, issued)
		zctx.From(ctx).Info("Order status changed",
			zap.String("order_id", id),
			zap.String("status", string(to)),
			zap.Int("vouchers_issued", issued),
		)
	}
	return o, nil
}

// AddItem adds a line to an editable order at the current variant price and
// recomputes its totals. Stock is left untouched.
func (s *Service) AddItem(ctx context.Context, orderID string, itemID int64, variant string, qty int) (*Order, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	var o *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if o, err = s.lockEditable(ctx, orderID); err != nil {
			return err
		}
		item, err := s.menu.GetItem(ctx, itemID)
		if err != nil {
			return errors.Wrap(err, "get item")
		}
		v, ok := item.Variant(variant)
		if !ok {
			return errors.Wrapf(menu.ErrNotFound, "variant %q", variant)
		}

		it := Item{
			ID:        uuid.New().String(),
			OrderID:   orderID,
			ItemID:    itemID,
			Variant:   variant,
			Quantity:  qty,
			UnitPrice: v.UnitPrice(),
		}
		if err := s.orders.AddItem(ctx, &it); err != nil {
			return errors.Wrap(err, "add item")
		}
		o.Items = append(o.Items, it)
		return s.saveTotals(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// RemoveItem deletes a line from an editable order and recomputes its totals.
func (s *Service) RemoveItem(ctx context.Context, orderID, orderItemID string) (*Order, error) {
	var o *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if o, err = s.lockEditable(ctx, orderID); err != nil {
			return err
		}
		i := slices.IndexFunc(o.Items, func(it Item) bool { return it.ID == orderItemID })
		if i < 0 {
			return ErrItemNotFound
		}
		if err := s.orders.DeleteItem(ctx, orderID, orderItemID); err != nil {
			return errors.Wrap(err, "delete item")
		}
		o.Items = slices.Delete(o.Items, i, i+1)
		return s.saveTotals(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) lockEditable(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.Editable() {
		return nil, ErrNotEditable
	}
	return o, nil
}

func (s *Service) saveTotals(ctx context.Context, o *Order) error {
	o.Recompute()
	if err := s.orders.UpdateTotals(ctx, o.ID, o.Totals); err != nil {
		return errors.Wrap(err, "update totals")
	}
	return nil
}
