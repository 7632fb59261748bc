package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/romeosyl08-png/resto/internal/domain/promotion"
)

const (
	promotionColumns = `id, code, type, value, min_order_amount, max_discount_amount,
		usage_limit_total, usage_limit_per_user, segment, start_at, end_at, active`

	findPromotionSQL = `SELECT ` + promotionColumns + ` FROM promotions WHERE code = $1`
	lockPromotionSQL = findPromotionSQL + ` FOR UPDATE`

	countAppliedSQL = `SELECT count(*) FROM promotion_redemptions
		WHERE promotion_id = $1 AND status = 'applied'`

	countAppliedByUserSQL = `SELECT count(*) FROM promotion_redemptions
		WHERE promotion_id = $1 AND user_id = $2 AND status = 'applied'`

	cancelAppliedSQL = `UPDATE promotion_redemptions SET status = 'cancelled'
		WHERE order_id = $1 AND status = 'applied'
		RETURNING discount_amount`

	createRedemptionSQL = `INSERT INTO promotion_redemptions
		(id, promotion_id, user_id, order_id, discount_amount, status, redeemed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	upsertPromotionSQL = `INSERT INTO promotions
		(code, type, value, min_order_amount, max_discount_amount,
		 usage_limit_total, usage_limit_per_user, segment, start_at, end_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (code) DO UPDATE SET
			type = EXCLUDED.type,
			value = EXCLUDED.value,
			min_order_amount = EXCLUDED.min_order_amount,
			max_discount_amount = EXCLUDED.max_discount_amount,
			usage_limit_total = EXCLUDED.usage_limit_total,
			usage_limit_per_user = EXCLUDED.usage_limit_per_user,
			segment = EXCLUDED.segment,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			active = EXCLUDED.active`
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// FindByCode looks up a promotion by its normalized code, active or not.
// Returns promotion.ErrNotFound when no promotion has the code.
func (r *PromotionRepository) FindByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	return r.find(ctx, findPromotionSQL, code)
}

// LockByCode is FindByCode holding a row lock on the promotion.
func (r *PromotionRepository) LockByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	return r.find(ctx, lockPromotionSQL, code)
}

func (r *PromotionRepository) find(ctx context.Context, sql, code string) (*promotion.Promotion, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, sql, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find promotion %q", code)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find promotion %q", code)
	}
	return &p, nil
}

// CountApplied returns the number of applied redemptions of a promotion.
func (r *PromotionRepository) CountApplied(ctx context.Context, promotionID string) (int, error) {
	var n int64
	if err := conn(ctx, r.pool).QueryRow(ctx, countAppliedSQL, promotionID).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count redemptions")
	}
	return int(n), nil
}

// CountAppliedByUser returns the number of applied redemptions of a
// promotion by one user.
func (r *PromotionRepository) CountAppliedByUser(ctx context.Context, promotionID, userID string) (int, error) {
	var n int64
	if err := conn(ctx, r.pool).QueryRow(ctx, countAppliedByUserSQL, promotionID, userID).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count user redemptions")
	}
	return int(n), nil
}

// CancelApplied cancels the applied redemptions of an order and returns the
// discount they had granted.
func (r *PromotionRepository) CancelApplied(ctx context.Context, orderID string) (decimal.Decimal, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, cancelAppliedSQL, orderID)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "cancel redemptions of order %q", orderID)
	}
	amounts, err := pgx.CollectRows(rows, pgx.RowTo[decimal.Decimal])
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "cancel redemptions of order %q", orderID)
	}
	return decimal.Sum(decimal.Zero, amounts...), nil
}

// CreateRedemption inserts a redemption record.
func (r *PromotionRepository) CreateRedemption(ctx context.Context, red *promotion.Redemption) error {
	_, err := conn(ctx, r.pool).Exec(ctx, createRedemptionSQL,
		red.ID, red.PromotionID, nullable(red.UserID), red.OrderID,
		red.DiscountAmount, string(red.Status), red.RedeemedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create redemption for order %q", red.OrderID)
	}
	return nil
}

// Upsert inserts promotions or updates the existing ones with the same code.
func (r *PromotionRepository) Upsert(ctx context.Context, promos []promotion.Promotion) error {
	if len(promos) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range promos {
		batch.Queue(upsertPromotionSQL,
			promotion.NormalizeCode(p.Code), string(p.Type), p.Value, p.MinOrderAmount, p.MaxDiscountAmount,
			p.UsageLimitTotal, p.UsageLimitPerUser, string(p.Segment), p.StartAt, p.EndAt, p.Active,
		)
	}
	if err := conn(ctx, r.pool).SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "upsert promotions")
	}
	return nil
}

func scanPromotion(row pgx.CollectableRow) (promotion.Promotion, error) {
	var (
		p            promotion.Promotion
		typ, segment string
		limitTotal   *int32
		limitPerUser *int32
	)
	err := row.Scan(
		&p.ID, &p.Code, &typ, &p.Value, &p.MinOrderAmount, &p.MaxDiscountAmount,
		&limitTotal, &limitPerUser, &segment, &p.StartAt, &p.EndAt, &p.Active,
	)
	p.Type = promotion.Type(typ)
	p.Segment = promotion.Segment(segment)
	p.UsageLimitTotal = intPtr(limitTotal)
	p.UsageLimitPerUser = intPtr(limitPerUser)
	return p, err
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
