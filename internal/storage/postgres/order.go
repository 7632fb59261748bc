package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/romeosyl08-png/resto/internal/domain/order"
	"github.com/romeosyl08-png/resto/internal/domain/pricing"
	"github.com/romeosyl08-png/resto/internal/domain/promotion"
)

const (
	orderColumns = `id, user_id, customer_name, phone, address, status,
		subtotal, discount_total, total, promo_code, created_at, delivered_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	getOrderSQL  = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	lockOrderSQL = getOrderSQL + ` FOR UPDATE`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, item_id, variant, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6)`

	listOrderItemsSQL = `SELECT id, order_id, item_id, variant, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY seq`

	deleteOrderItemSQL = `DELETE FROM order_items WHERE order_id = $1 AND id = $2`

	updateTotalsSQL = `UPDATE orders SET subtotal = $2, discount_total = $3, total = $4 WHERE id = $1`

	setPromoCodeSQL = `UPDATE orders SET promo_code = $2 WHERE id = $1`

	// The sub-select locks the row and yields the status seen before the
	// update, so the caller learns atomically what it transitioned from.
	transitionStatusSQL = `UPDATE orders o
		SET status = $2,
			delivered_at = CASE WHEN $2 = 'delivered' THEN $4 ELSE o.delivered_at END
		FROM (SELECT id, status FROM orders WHERE id = $1 FOR UPDATE) prev
		WHERE o.id = prev.id AND prev.status = ANY($3)
		RETURNING prev.status`

	getStatusSQL = `SELECT status FROM orders WHERE id = $1`

	deliveredOrdersSQL = `SELECT count(*), max(delivered_at)
		FROM orders WHERE user_id = $1 AND status = 'delivered'`
)

var (
	_ order.Repository  = (*OrderRepository)(nil)
	_ promotion.History = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository backed by PostgreSQL. It also
// answers customer history questions for promotion segments.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order with its items.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	batch := &pgx.Batch{}
	batch.Queue(createOrderSQL,
		o.ID, nullable(o.UserID), o.Contact.Name, o.Contact.Phone, o.Contact.Address, string(o.Status),
		o.Subtotal, o.DiscountTotal, o.Total, nullable(o.PromoCode), o.CreatedAt, o.DeliveredAt,
	)
	for _, it := range o.Items {
		batch.Queue(insertOrderItemSQL, it.ID, o.ID, it.ItemID, it.Variant, it.Quantity, it.UnitPrice)
	}
	if err := conn(ctx, r.pool).SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// Get returns an order with its items.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, getOrderSQL, id)
}

// Lock returns an order with its items, holding a row lock on the order.
func (r *OrderRepository) Lock(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, lockOrderSQL, id)
}

func (r *OrderRepository) get(ctx context.Context, sql, id string) (*order.Order, error) {
	q := conn(ctx, r.pool)
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	rows, err = q.Query(ctx, listOrderItemsSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "list items of order %q", id)
	}
	o.Items, err = pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return nil, errors.Wrapf(err, "list items of order %q", id)
	}
	return &o, nil
}

// AddItem inserts one order line.
func (r *OrderRepository) AddItem(ctx context.Context, it *order.Item) error {
	_, err := conn(ctx, r.pool).Exec(ctx, insertOrderItemSQL,
		it.ID, it.OrderID, it.ItemID, it.Variant, it.Quantity, it.UnitPrice,
	)
	if err != nil {
		return errors.Wrapf(err, "add item to order %q", it.OrderID)
	}
	return nil
}

// DeleteItem removes one order line.
func (r *OrderRepository) DeleteItem(ctx context.Context, orderID, itemID string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, deleteOrderItemSQL, orderID, itemID)
	if err != nil {
		return errors.Wrapf(err, "delete item %q of order %q", itemID, orderID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrItemNotFound
	}
	return nil
}

// UpdateTotals writes the amounts of an order.
func (r *OrderRepository) UpdateTotals(ctx context.Context, orderID string, t pricing.Totals) error {
	return r.exec(ctx, "update totals", updateTotalsSQL, orderID, t.Subtotal, t.DiscountTotal, t.Total)
}

// SetPromoCode records the promotion code applied to an order.
func (r *OrderRepository) SetPromoCode(ctx context.Context, orderID, code string) error {
	return r.exec(ctx, "set promo code", setPromoCodeSQL, orderID, nullable(code))
}

func (r *OrderRepository) exec(ctx context.Context, op, sql, orderID string, args ...any) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, sql, append([]any{orderID}, args...)...)
	if err != nil {
		return errors.Wrapf(err, "%s of order %q", op, orderID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// TransitionStatus moves an order to `to` when its locked status is one of
// from. When nothing was written it reports the current status instead.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id string, to order.Status, from []order.Status, at time.Time) (order.Status, bool, error) {
	sources := make([]string, len(from))
	for i, s := range from {
		sources[i] = string(s)
	}

	q := conn(ctx, r.pool)
	var prev string
	err := q.QueryRow(ctx, transitionStatusSQL, id, string(to), sources, at).Scan(&prev)
	if err == nil {
		return order.Status(prev), true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, errors.Wrapf(err, "transition order %q", id)
	}

	if err := q.QueryRow(ctx, getStatusSQL, id).Scan(&prev); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, order.ErrNotFound
		}
		return "", false, errors.Wrapf(err, "get status of order %q", id)
	}
	return order.Status(prev), false, nil
}

// DeliveredOrders counts the delivered orders of a user and returns the time
// of the latest delivery.
func (r *OrderRepository) DeliveredOrders(ctx context.Context, userID string) (int, time.Time, error) {
	var (
		count int64
		last  *time.Time
	)
	if err := conn(ctx, r.pool).QueryRow(ctx, deliveredOrdersSQL, userID).Scan(&count, &last); err != nil {
		return 0, time.Time{}, errors.Wrapf(err, "delivered orders of %q", userID)
	}
	if last == nil {
		return int(count), time.Time{}, nil
	}
	return int(count), *last, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		userID    *string
		status    string
		promoCode *string
	)
	err := row.Scan(
		&o.ID, &userID, &o.Contact.Name, &o.Contact.Phone, &o.Contact.Address, &status,
		&o.Subtotal, &o.DiscountTotal, &o.Total, &promoCode, &o.CreatedAt, &o.DeliveredAt,
	)
	o.UserID = deref(userID)
	o.Status = order.Status(status)
	o.PromoCode = deref(promoCode)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		it    order.Item
		qty   int32
		price decimal.Decimal
	)
	err := row.Scan(&it.ID, &it.OrderID, &it.ItemID, &it.Variant, &qty, &price)
	it.Quantity = int(qty)
	it.UnitPrice = price
	return it, err
}
