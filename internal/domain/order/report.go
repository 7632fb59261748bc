package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

const (
	latestOrders   = 50
	topItems       = 5
	customerOrders = 50
)

// Tally counts orders and sums their totals.
type Tally struct {
	Orders int
	Total  decimal.Decimal
}

// ItemSales is what one menu item sold over a period.
type ItemSales struct {
	ItemID int64
	// Name is empty when the item was deleted since.
	Name     string
	Quantity int
	Revenue  decimal.Decimal
}

// ListFilter selects orders for staff listings. Zero fields do not filter.
type ListFilter struct {
	UserID string
	// From and To bound created_at to [From, To).
	From, To  time.Time
	Limit     int
	WithItems bool
}

// Reports are the read-only queries behind the staff overviews.
type Reports interface {
	// List returns the matching orders newest first, with VoucherIDs set.
	List(ctx context.Context, f ListFilter) ([]Order, error)
	// DaySales tallies the orders created in [from, to). Canceled orders
	// count but do not add to Total.
	DaySales(ctx context.Context, from, to time.Time) (Tally, error)
	// TopItems ranks the items of orders created in [from, to), canceled
	// ones excluded, by quantity sold.
	TopItems(ctx context.Context, from, to time.Time, limit int) ([]ItemSales, error)
	// StatusTallies tallies orders per status. An empty userID covers all
	// customers and guests.
	StatusTallies(ctx context.Context, userID string) (map[Status]Tally, error)
}

// DailyStats is the staff overview of one calendar day.
type DailyStats struct {
	Day    time.Time
	Orders int
	Sales  decimal.Decimal
	// Pending counts every pending order, whatever the day it was placed.
	Pending  int
	Latest   []Order
	TopItems []ItemSales
}

// DailyStats reports on the orders placed on the calendar date of day,
// taken in the ordering window location.
func (s *Service) DailyStats(ctx context.Context, day time.Time) (*DailyStats, error) {
	loc := s.policy.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := day.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 1)

	sales, err := s.orders.DaySales(ctx, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "day sales")
	}
	tallies, err := s.orders.StatusTallies(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "status tallies")
	}
	latest, err := s.orders.List(ctx, ListFilter{From: from, To: to, Limit: latestOrders})
	if err != nil {
		return nil, errors.Wrap(err, "latest orders")
	}
	top, err := s.orders.TopItems(ctx, from, to, topItems)
	if err != nil {
		return nil, errors.Wrap(err, "top items")
	}

	return &DailyStats{
		Day:      from,
		Orders:   sales.Orders,
		Sales:    sales.Total,
		Pending:  tallies[StatusPending].Orders,
		Latest:   latest,
		TopItems: top,
	}, nil
}

// CustomerHistory is the staff view of one customer's orders.
type CustomerHistory struct {
	UserID string
	// Orders are the most recent orders with their items and the vouchers
	// redeemed on them.
	Orders []Order
	Counts map[Status]int
	// Spent sums the totals of delivered orders.
	Spent decimal.Decimal
}

// CustomerHistory returns the recent orders of a signed-in customer. Guests
// have no history: an empty userID yields ErrNotFound.
func (s *Service) CustomerHistory(ctx context.Context, userID string) (*CustomerHistory, error) {
	if userID == "" {
		return nil, ErrNotFound
	}
	orders, err := s.orders.List(ctx, ListFilter{UserID: userID, Limit: customerOrders, WithItems: true})
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	tallies, err := s.orders.StatusTallies(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "status tallies")
	}

	h := &CustomerHistory{
		UserID: userID,
		Orders: orders,
		Counts: make(map[Status]int, 4),
		Spent:  decimal.Zero,
	}
	for _, st := range []Status{StatusPending, StatusConfirmed, StatusDelivered, StatusCanceled} {
		h.Counts[st] = tallies[st].Orders
	}
	if t, ok := tallies[StatusDelivered]; ok {
		h.Spent = t.Total
	}
	return h, nil
}
