package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/romeosyl08-png/resto/internal/domain/loyalty"
)

const (
	ensureAccountSQL = `INSERT INTO loyalty_accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`

	lockAccountSQL = `SELECT user_id, updated_at FROM loyalty_accounts WHERE user_id = $1 FOR UPDATE`

	getAccountSQL = `SELECT user_id, updated_at FROM loyalty_accounts WHERE user_id = $1`

	listCountersSQL = `SELECT tier, count FROM loyalty_counters WHERE user_id = $1`

	touchAccountSQL = `UPDATE loyalty_accounts SET updated_at = $2 WHERE user_id = $1`

	saveCountersSQL = `INSERT INTO loyalty_counters (user_id, tier, count)
		SELECT $1, t, c FROM unnest($2::bigint[], $3::int[]) AS x(t, c)
		ON CONFLICT (user_id, tier) DO UPDATE SET count = EXCLUDED.count`

	voucherColumns = `id, user_id, tier, status, expires_at, created_at, used_order_id`

	createVoucherSQL = `INSERT INTO loyalty_vouchers (` + voucherColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	// Vouchers locked by a concurrent checkout are skipped so the next
	// candidate can still be redeemed.
	lockBestVoucherSQL = `SELECT ` + voucherColumns + ` FROM loyalty_vouchers
		WHERE user_id = $1 AND status = 'available' AND expires_at > $3 AND tier = ANY($2)
		ORDER BY expires_at, id
		LIMIT 1
		FOR UPDATE SKIP LOCKED`

	markVoucherUsedSQL = `UPDATE loyalty_vouchers SET status = 'used', used_order_id = $2
		WHERE id = $1 AND status = 'available'`

	countAvailableSQL = `SELECT count(*) FROM loyalty_vouchers
		WHERE user_id = $1 AND status = 'available' AND expires_at > $2`

	listVouchersSQL = `SELECT ` + voucherColumns + ` FROM loyalty_vouchers
		WHERE user_id = $1 ORDER BY created_at DESC, id LIMIT $2`

	expireVouchersSQL = `UPDATE loyalty_vouchers SET status = 'expired'
		WHERE status = 'available' AND expires_at <= $1`
)

var _ loyalty.Repository = (*LoyaltyRepository)(nil)

// LoyaltyRepository implements loyalty.Repository backed by PostgreSQL.
type LoyaltyRepository struct {
	pool *pgxpool.Pool
}

// NewLoyaltyRepository returns a LoyaltyRepository that uses the given pool.
func NewLoyaltyRepository(pool *pgxpool.Pool) *LoyaltyRepository {
	return &LoyaltyRepository{pool: pool}
}

// LockAccount creates the account when missing and returns it under a row
// lock held until the surrounding transaction ends.
func (r *LoyaltyRepository) LockAccount(ctx context.Context, userID string) (*loyalty.Account, error) {
	q := conn(ctx, r.pool)
	if _, err := q.Exec(ctx, ensureAccountSQL, userID); err != nil {
		return nil, errors.Wrapf(err, "ensure account %q", userID)
	}
	acc := &loyalty.Account{UserID: userID}
	if err := q.QueryRow(ctx, lockAccountSQL, userID).Scan(&acc.UserID, &acc.UpdatedAt); err != nil {
		return nil, errors.Wrapf(err, "lock account %q", userID)
	}
	if err := r.loadCounters(ctx, q, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// GetAccount returns the account of the user, empty when it does not exist.
func (r *LoyaltyRepository) GetAccount(ctx context.Context, userID string) (*loyalty.Account, error) {
	q := conn(ctx, r.pool)
	acc := &loyalty.Account{UserID: userID}
	err := q.QueryRow(ctx, getAccountSQL, userID).Scan(&acc.UserID, &acc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		acc.Counters = map[int64]int{}
		return acc, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get account %q", userID)
	}
	if err := r.loadCounters(ctx, q, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (r *LoyaltyRepository) loadCounters(ctx context.Context, q querier, acc *loyalty.Account) error {
	rows, err := q.Query(ctx, listCountersSQL, acc.UserID)
	if err != nil {
		return errors.Wrapf(err, "list counters of %q", acc.UserID)
	}
	acc.Counters = make(map[int64]int)
	var (
		tier  int64
		count int32
	)
	_, err = pgx.ForEachRow(rows, []any{&tier, &count}, func() error {
		acc.Counters[tier] = int(count)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "list counters of %q", acc.UserID)
	}
	return nil
}

// SaveAccount writes every counter of the account.
func (r *LoyaltyRepository) SaveAccount(ctx context.Context, acc *loyalty.Account) error {
	q := conn(ctx, r.pool)
	if _, err := q.Exec(ctx, touchAccountSQL, acc.UserID, acc.UpdatedAt); err != nil {
		return errors.Wrapf(err, "save account %q", acc.UserID)
	}
	if len(acc.Counters) == 0 {
		return nil
	}
	tiers := make([]int64, 0, len(acc.Counters))
	counts := make([]int32, 0, len(acc.Counters))
	for tier, c := range acc.Counters {
		tiers = append(tiers, tier)
		counts = append(counts, int32(c))
	}
	if _, err := q.Exec(ctx, saveCountersSQL, acc.UserID, tiers, counts); err != nil {
		return errors.Wrapf(err, "save counters of %q", acc.UserID)
	}
	return nil
}

// CreateVoucher inserts a voucher.
func (r *LoyaltyRepository) CreateVoucher(ctx context.Context, v *loyalty.Voucher) error {
	_, err := conn(ctx, r.pool).Exec(ctx, createVoucherSQL,
		v.ID, v.UserID, v.Tier, string(v.Status), v.ExpiresAt, v.CreatedAt, nullable(v.UsedOrderID),
	)
	if err != nil {
		return errors.Wrapf(err, "create voucher for %q", v.UserID)
	}
	return nil
}

// LockBestVoucher locks the matching available voucher expiring soonest.
func (r *LoyaltyRepository) LockBestVoucher(ctx context.Context, userID string, tiers []int64, now time.Time) (*loyalty.Voucher, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, lockBestVoucherSQL, userID, tiers, now)
	if err != nil {
		return nil, errors.Wrapf(err, "lock voucher of %q", userID)
	}
	v, err := pgx.CollectExactlyOneRow(rows, scanVoucher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, loyalty.ErrNotFound
		}
		return nil, errors.Wrapf(err, "lock voucher of %q", userID)
	}
	return &v, nil
}

// MarkUsed links an available voucher to the order that consumed it.
func (r *LoyaltyRepository) MarkUsed(ctx context.Context, voucherID, orderID string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, markVoucherUsedSQL, voucherID, orderID)
	if err != nil {
		return errors.Wrapf(err, "mark voucher %q used", voucherID)
	}
	if tag.RowsAffected() == 0 {
		return loyalty.ErrNotFound
	}
	return nil
}

// CountAvailable counts the redeemable vouchers of a user at now.
func (r *LoyaltyRepository) CountAvailable(ctx context.Context, userID string, now time.Time) (int, error) {
	var n int64
	if err := conn(ctx, r.pool).QueryRow(ctx, countAvailableSQL, userID, now).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "count vouchers of %q", userID)
	}
	return int(n), nil
}

// ListVouchers returns the latest vouchers of a user.
func (r *LoyaltyRepository) ListVouchers(ctx context.Context, userID string, limit int) ([]loyalty.Voucher, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listVouchersSQL, userID, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "list vouchers of %q", userID)
	}
	return pgx.CollectRows(rows, scanVoucher)
}

// ExpireVouchers persists the expired status of vouchers past expiry.
func (r *LoyaltyRepository) ExpireVouchers(ctx context.Context, now time.Time) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, expireVouchersSQL, now)
	if err != nil {
		return 0, errors.Wrap(err, "expire vouchers")
	}
	return tag.RowsAffected(), nil
}

func scanVoucher(row pgx.CollectableRow) (loyalty.Voucher, error) {
	var (
		v      loyalty.Voucher
		status string
		usedBy *string
	)
	err := row.Scan(&v.ID, &v.UserID, &v.Tier, &status, &v.ExpiresAt, &v.CreatedAt, &usedBy)
	v.Status = loyalty.VoucherStatus(status)
	v.UsedOrderID = deref(usedBy)
	return v, err
}
