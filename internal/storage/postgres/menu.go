package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/romeosyl08-png/resto/internal/domain/menu"
)

const (
	itemColumns = `i.id, i.name, i.active, i.weekdays, i.stock, i.max_per_order`

	getItemSQL = `SELECT ` + itemColumns + ` FROM menu_items i WHERE i.id = $1`

	getItemsSQL = `SELECT ` + itemColumns + ` FROM menu_items i WHERE i.id = ANY($1) ORDER BY i.id`

	listActiveItemsSQL = `SELECT ` + itemColumns + ` FROM menu_items i WHERE i.active ORDER BY i.id DESC`

	listVariantsSQL = `SELECT item_id, code, price, stock, active
		FROM menu_variants WHERE item_id = ANY($1)
		ORDER BY item_id, CASE code WHEN 'basic' THEN 0 WHEN 'standard' THEN 1 ELSE 2 END`

	lockVariantSQL = `SELECT ` + itemColumns + `, v.item_id, v.code, v.price, v.stock, v.active
		FROM menu_variants v JOIN menu_items i ON i.id = v.item_id
		WHERE v.item_id = $1 AND v.code = $2
		FOR UPDATE`

	decrementVariantStockSQL = `UPDATE menu_variants SET stock = stock - $3
		WHERE item_id = $1 AND code = $2 AND stock >= $3`

	decrementItemStockSQL = `UPDATE menu_items SET stock = stock - $2
		WHERE id = $1 AND (stock IS NULL OR stock >= $2)`

	createItemSQL = `INSERT INTO menu_items (name, active, weekdays, stock, max_per_order)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	upsertVariantSQL = `INSERT INTO menu_variants (item_id, code, price, stock, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (item_id, code) DO UPDATE
		SET price = EXCLUDED.price, stock = EXCLUDED.stock, active = EXCLUDED.active`
)

var _ menu.Repository = (*MenuRepository)(nil)

// MenuRepository implements menu.Repository backed by PostgreSQL.
type MenuRepository struct {
	pool *pgxpool.Pool
}

// NewMenuRepository returns a MenuRepository that uses the given pool.
func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

// GetItem returns a single item with all its variants.
func (r *MenuRepository) GetItem(ctx context.Context, id int64) (*menu.Item, error) {
	q := conn(ctx, r.pool)
	rows, err := q.Query(ctx, getItemSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get item %d", id)
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, menu.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get item %d", id)
	}
	items := []menu.Item{item}
	if err := r.attachVariants(ctx, q, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// GetItems returns the items matching any of ids.
func (r *MenuRepository) GetItems(ctx context.Context, ids []int64) ([]menu.Item, error) {
	return r.list(ctx, getItemsSQL, ids)
}

// ListActive returns active items, newest first.
func (r *MenuRepository) ListActive(ctx context.Context) ([]menu.Item, error) {
	return r.list(ctx, listActiveItemsSQL)
}

func (r *MenuRepository) list(ctx context.Context, sql string, args ...any) ([]menu.Item, error) {
	q := conn(ctx, r.pool)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list items")
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, errors.Wrap(err, "list items")
	}
	if err := r.attachVariants(ctx, q, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MenuRepository) attachVariants(ctx context.Context, q querier, items []menu.Item) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]int64, len(items))
	byID := make(map[int64]*menu.Item, len(items))
	for i := range items {
		ids[i] = items[i].ID
		byID[items[i].ID] = &items[i]
	}
	rows, err := q.Query(ctx, listVariantsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "list variants")
	}
	variants, err := pgx.CollectRows(rows, scanVariant)
	if err != nil {
		return errors.Wrap(err, "list variants")
	}
	for _, v := range variants {
		if it, ok := byID[v.ItemID]; ok {
			it.Variants = append(it.Variants, v)
		}
	}
	return nil
}

// LockVariant reads a variant with its item under a row lock on both.
func (r *MenuRepository) LockVariant(ctx context.Context, itemID int64, code string) (*menu.Item, *menu.Variant, error) {
	var (
		item menu.Item
		v    menu.Variant
	)
	row := conn(ctx, r.pool).QueryRow(ctx, lockVariantSQL, itemID, code)
	err := scanItemInto(row, &item, &v.ItemID, &v.Code, &v.Price, &v.Stock, &v.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, menu.ErrNotFound
		}
		return nil, nil, errors.Wrapf(err, "lock variant %d/%s", itemID, code)
	}
	item.Variants = []menu.Variant{v}
	return &item, &v, nil
}

// DecrementStock removes qty from the variant stock and from the item stock
// when the item tracks one. Either update matching no row means a concurrent
// sale got there first.
func (r *MenuRepository) DecrementStock(ctx context.Context, itemID int64, code string, qty int) error {
	q := conn(ctx, r.pool)
	tag, err := q.Exec(ctx, decrementVariantStockSQL, itemID, code, qty)
	if err != nil {
		return errors.Wrapf(err, "decrement variant %d/%s", itemID, code)
	}
	if tag.RowsAffected() == 0 {
		return menu.ErrInsufficientStock
	}
	tag, err = q.Exec(ctx, decrementItemStockSQL, itemID, qty)
	if err != nil {
		return errors.Wrapf(err, "decrement item %d", itemID)
	}
	if tag.RowsAffected() == 0 {
		return menu.ErrInsufficientStock
	}
	return nil
}

// CreateItem inserts an item and its variants, setting item.ID.
func (r *MenuRepository) CreateItem(ctx context.Context, item *menu.Item) error {
	q := conn(ctx, r.pool)
	weekdays := make([]int32, len(item.Weekdays))
	for i, d := range item.Weekdays {
		weekdays[i] = int32(d)
	}
	if err := q.QueryRow(ctx, createItemSQL,
		item.Name, item.Active, weekdays, item.Stock, item.MaxPerOrder,
	).Scan(&item.ID); err != nil {
		return errors.Wrapf(err, "create item %q", item.Name)
	}

	batch := &pgx.Batch{}
	for i := range item.Variants {
		v := &item.Variants[i]
		if !menu.ValidVariant(v.Code) {
			return errors.Errorf("unknown variant %q", v.Code)
		}
		v.ItemID = item.ID
		batch.Queue(upsertVariantSQL, v.ItemID, v.Code, v.Price, v.Stock, v.Active)
	}
	if err := q.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrapf(err, "create variants of %q", item.Name)
	}
	return nil
}

func scanItem(row pgx.CollectableRow) (menu.Item, error) {
	var item menu.Item
	err := scanItemInto(row, &item)
	return item, err
}

func scanItemInto(row pgx.Row, item *menu.Item, extra ...any) error {
	var (
		weekdays []int32
		stock    *int32
		maxPer   int32
	)
	dest := append([]any{&item.ID, &item.Name, &item.Active, &weekdays, &stock, &maxPer}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	item.Weekdays = make([]int, len(weekdays))
	for i, d := range weekdays {
		item.Weekdays[i] = int(d)
	}
	if stock != nil {
		s := int(*stock)
		item.Stock = &s
	}
	item.MaxPerOrder = int(maxPer)
	return nil
}

func scanVariant(row pgx.CollectableRow) (menu.Variant, error) {
	var (
		v     menu.Variant
		stock int32
	)
	err := row.Scan(&v.ItemID, &v.Code, &v.Price, &stock, &v.Active)
	v.Stock = int(stock)
	return v, err
}
