package order

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics are the business counters of the order service.
type Metrics struct {
	checkouts        metric.Int64Counter
	promotions       metric.Int64Counter
	vouchersIssued   metric.Int64Counter
	vouchersRedeemed metric.Int64Counter
	transitions      metric.Int64Counter
}

// NewMetrics registers the counters on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.checkouts, err = meter.Int64Counter("resto.checkouts",
		metric.WithDescription("Checkout attempts by outcome"),
		metric.WithUnit("{checkout}"),
	); err != nil {
		return nil, errors.Wrap(err, "checkouts counter")
	}
	if m.promotions, err = meter.Int64Counter("resto.promotions.applied",
		metric.WithDescription("Promotion codes evaluated at checkout by reason"),
		metric.WithUnit("{promotion}"),
	); err != nil {
		return nil, errors.Wrap(err, "promotions counter")
	}
	if m.vouchersIssued, err = meter.Int64Counter("resto.vouchers.issued",
		metric.WithDescription("Loyalty vouchers issued"),
		metric.WithUnit("{voucher}"),
	); err != nil {
		return nil, errors.Wrap(err, "vouchers issued counter")
	}
	if m.vouchersRedeemed, err = meter.Int64Counter("resto.vouchers.redeemed",
		metric.WithDescription("Loyalty vouchers redeemed"),
		metric.WithUnit("{voucher}"),
	); err != nil {
		return nil, errors.Wrap(err, "vouchers redeemed counter")
	}
	if m.transitions, err = meter.Int64Counter("resto.orders.transitions",
		metric.WithDescription("Order status changes"),
		metric.WithUnit("{transition}"),
	); err != nil {
		return nil, errors.Wrap(err, "transitions counter")
	}
	return &m, nil
}

func checkoutOutcome(err error) string {
	var (
		stale *StaleCartError
		inval *ValidationError
	)
	switch {
	case err == nil:
		return "placed"
	case errors.Is(err, ErrOrderingClosed):
		return "closed"
	case errors.Is(err, ErrInsufficientStock):
		return "stock"
	case errors.As(err, &stale):
		return "stale"
	case errors.As(err, &inval):
		return "invalid"
	default:
		return "error"
	}
}

func (m *Metrics) checkout(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", checkoutOutcome(err))))
}

func (m *Metrics) promotion(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "OK"
	}
	m.promotions.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) issued(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.vouchersIssued.Add(ctx, int64(n))
}

func (m *Metrics) redeemed(ctx context.Context) {
	if m == nil {
		return
	}
	m.vouchersRedeemed.Add(ctx, 1)
}

func (m *Metrics) transition(ctx context.Context, to Status) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(to))))
}
