package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/romeosyl08-png/resto/internal/domain/order"
)

const (
	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1::text IS NULL OR user_id = $1)
			AND ($2::timestamptz IS NULL OR created_at >= $2)
			AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC, id
		LIMIT $4`

	listItemsOfOrdersSQL = `SELECT id, order_id, item_id, variant, quantity, unit_price
		FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY seq`

	usedVouchersSQL = `SELECT used_order_id::text, id::text
		FROM loyalty_vouchers WHERE used_order_id = ANY($1::uuid[])
		ORDER BY created_at, id`

	daySalesSQL = `SELECT count(*), coalesce(sum(total) FILTER (WHERE status <> 'canceled'), 0)
		FROM orders WHERE created_at >= $1 AND created_at < $2`

	topItemsSQL = `SELECT oi.item_id, coalesce(mi.name, ''), sum(oi.quantity), sum(oi.quantity * oi.unit_price)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		LEFT JOIN menu_items mi ON mi.id = oi.item_id
		WHERE o.created_at >= $1 AND o.created_at < $2 AND o.status <> 'canceled'
		GROUP BY oi.item_id, mi.name
		ORDER BY sum(oi.quantity) DESC, oi.item_id
		LIMIT $3`

	statusTalliesSQL = `SELECT status, count(*), coalesce(sum(total), 0)
		FROM orders WHERE ($1::text IS NULL OR user_id = $1)
		GROUP BY status`
)

var _ order.Reports = (*OrderRepository)(nil)

// List returns orders newest first. Items are loaded only when f.WithItems
// is set; redeemed vouchers always are.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]order.Order, error) {
	var limit *int
	if f.Limit > 0 {
		limit = &f.Limit
	}
	q := conn(ctx, r.pool)
	rows, err := q.Query(ctx, listOrdersSQL, nullable(f.UserID), nullableTime(f.From), nullableTime(f.To), limit)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	if f.WithItems {
		rows, err := q.Query(ctx, listItemsOfOrdersSQL, ids)
		if err != nil {
			return nil, errors.Wrap(err, "list order items")
		}
		items, err := pgx.CollectRows(rows, scanOrderItem)
		if err != nil {
			return nil, errors.Wrap(err, "list order items")
		}
		for _, it := range items {
			o := &orders[index[it.OrderID]]
			o.Items = append(o.Items, it)
		}
	}

	rows, err = q.Query(ctx, usedVouchersSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "list used vouchers")
	}
	var orderID, voucherID string
	_, err = pgx.ForEachRow(rows, []any{&orderID, &voucherID}, func() error {
		o := &orders[index[orderID]]
		o.VoucherIDs = append(o.VoucherIDs, voucherID)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list used vouchers")
	}
	return orders, nil
}

// DaySales counts the orders created in [from, to) and sums the totals of
// those not canceled.
func (r *OrderRepository) DaySales(ctx context.Context, from, to time.Time) (order.Tally, error) {
	var (
		n     int64
		total decimal.Decimal
	)
	if err := conn(ctx, r.pool).QueryRow(ctx, daySalesSQL, from, to).Scan(&n, &total); err != nil {
		return order.Tally{}, errors.Wrap(err, "day sales")
	}
	return order.Tally{Orders: int(n), Total: total}, nil
}

// TopItems ranks items by quantity sold in [from, to), ties broken by item
// id.
func (r *OrderRepository) TopItems(ctx context.Context, from, to time.Time, limit int) ([]order.ItemSales, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, topItemsSQL, from, to, limit)
	if err != nil {
		return nil, errors.Wrap(err, "top items")
	}
	top, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.ItemSales, error) {
		var (
			s   order.ItemSales
			qty int64
		)
		err := row.Scan(&s.ItemID, &s.Name, &qty, &s.Revenue)
		s.Quantity = int(qty)
		return s, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "top items")
	}
	return top, nil
}

// StatusTallies counts orders and sums totals per status, for one user or
// for everyone when userID is empty.
func (r *OrderRepository) StatusTallies(ctx context.Context, userID string) (map[order.Status]order.Tally, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, statusTalliesSQL, nullable(userID))
	if err != nil {
		return nil, errors.Wrap(err, "status tallies")
	}
	out := make(map[order.Status]order.Tally, 4)
	var (
		status string
		n      int64
		total  decimal.Decimal
	)
	_, err = pgx.ForEachRow(rows, []any{&status, &n, &total}, func() error {
		out[order.Status(status)] = order.Tally{Orders: int(n), Total: total}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "status tallies")
	}
	return out, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
