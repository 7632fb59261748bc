// Package order implements checkout and the order lifecycle.
package order

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/romeosyl08-png/resto/internal/domain/pricing"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDelivered Status = "delivered"
	StatusCanceled  Status = "canceled"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCanceled},
	StatusConfirmed: {StatusDelivered, StatusCanceled},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusDelivered, StatusCanceled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCanceled
}

// Editable reports whether items may still be added or removed.
func (s Status) Editable() bool {
	return s.Valid() && !s.Terminal()
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// Sources returns the statuses that may transition into to.
func Sources(to Status) []Status {
	var out []Status
	for _, from := range []Status{StatusPending, StatusConfirmed} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// Contact is the customer snapshot copied onto the order at checkout.
type Contact struct {
	Name    string
	Phone   string
	Address string
}

// Order is a placed order.
type Order struct {
	ID string
	// UserID is empty for guest orders, which earn no loyalty.
	UserID  string
	Contact Contact
	Status  Status
	pricing.Totals
	PromoCode   string
	Items       []Item
	CreatedAt   time.Time
	DeliveredAt *time.Time
	// VoucherIDs are the loyalty vouchers redeemed on the order. Only
	// listings fill it.
	VoucherIDs []string
}

// Item is an order line with the unit price frozen at purchase.
type Item struct {
	ID        string
	OrderID   string
	ItemID    int64
	Variant   string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal returns Quantity * UnitPrice.
func (i Item) Subtotal() decimal.Decimal {
	return i.Line().Total()
}

// Line returns the item as a pricing line.
func (i Item) Line() pricing.Line {
	return pricing.Line{UnitPrice: i.UnitPrice, Quantity: i.Quantity}
}

// Lines returns the pricing lines of all items.
func (o *Order) Lines() []pricing.Line {
	out := make([]pricing.Line, len(o.Items))
	for i, it := range o.Items {
		out[i] = it.Line()
	}
	return out
}

// Recompute sets the subtotal from the items, keeping the discount.
func (o *Order) Recompute() {
	o.SetSubtotal(pricing.Subtotal(o.Lines()))
}

// Repository persists orders. Methods join the transaction carried by ctx.
type Repository interface {
	// Create inserts the order and its items.
	Create(ctx context.Context, o *Order) error
	// Get returns the order with its items or ErrNotFound.
	Get(ctx context.Context, id string) (*Order, error)
	// Lock is Get holding a row lock on the order.
	Lock(ctx context.Context, id string) (*Order, error)
	AddItem(ctx context.Context, it *Item) error
	DeleteItem(ctx context.Context, orderID, itemID string) error
	UpdateTotals(ctx context.Context, orderID string, t pricing.Totals) error
	SetPromoCode(ctx context.Context, orderID, code string) error
	// TransitionStatus moves the order to `to` if its current status is one
	// of from, stamping delivered_at when to is delivered. It returns the
	// status read under lock before the write and whether the write happened.
	TransitionStatus(ctx context.Context, id string, to Status, from []Status, at time.Time) (Status, bool, error)
	Reports
}

// Transactor runs fn in a transaction, joining one already carried by ctx.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
