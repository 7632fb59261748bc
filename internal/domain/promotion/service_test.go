package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romeosyl08-png/resto/internal/domain/pricing"
)

// --- Mock implementations ---

type mockRepo struct {
	promos      map[string]*Promotion
	redemptions []*Redemption
	findErr     error
	locked      []string
}

func newRepo(promos ...*Promotion) *mockRepo {
	m := &mockRepo{promos: make(map[string]*Promotion)}
	for _, p := range promos {
		m.promos[p.Code] = p
	}
	return m
}

func (m *mockRepo) FindByCode(_ context.Context, code string) (*Promotion, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	p, ok := m.promos[code]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) LockByCode(ctx context.Context, code string) (*Promotion, error) {
	m.locked = append(m.locked, code)
	return m.FindByCode(ctx, code)
}

func (m *mockRepo) CountApplied(_ context.Context, promotionID string) (int, error) {
	n := 0
	for _, r := range m.redemptions {
		if r.PromotionID == promotionID && r.Status == RedemptionApplied {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) CountAppliedByUser(_ context.Context, promotionID, userID string) (int, error) {
	n := 0
	for _, r := range m.redemptions {
		if r.PromotionID == promotionID && r.UserID == userID && r.Status == RedemptionApplied {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) CancelApplied(_ context.Context, orderID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, r := range m.redemptions {
		if r.OrderID == orderID && r.Status == RedemptionApplied {
			r.Status = RedemptionCancelled
			sum = sum.Add(r.DiscountAmount)
		}
	}
	return sum, nil
}

func (m *mockRepo) CreateRedemption(_ context.Context, r *Redemption) error {
	m.redemptions = append(m.redemptions, r)
	return nil
}

func (m *mockRepo) applied(orderID string) []*Redemption {
	var out []*Redemption
	for _, r := range m.redemptions {
		if r.OrderID == orderID && r.Status == RedemptionApplied {
			out = append(out, r)
		}
	}
	return out
}

type mockHistory struct {
	count int
	last  time.Time
	calls int
}

func (m *mockHistory) DeliveredOrders(_ context.Context, _ string) (int, time.Time, error) {
	m.calls++
	return m.count, m.last, nil
}

type mockOrders struct {
	totals map[string]pricing.Totals
	codes  map[string]string
}

func newOrders() *mockOrders {
	return &mockOrders{totals: map[string]pricing.Totals{}, codes: map[string]string{}}
}

func (m *mockOrders) UpdateTotals(_ context.Context, orderID string, t pricing.Totals) error {
	m.totals[orderID] = t
	return nil
}

func (m *mockOrders) SetPromoCode(_ context.Context, orderID, code string) error {
	m.codes[orderID] = code
	return nil
}

type directTx struct{ calls int }

func (d *directTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	d.calls++
	return fn(ctx)
}

// --- Helpers ---

var fixedNow = time.Date(2025, 6, 15, 20, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func dp(v string) *decimal.Decimal {
	x := d(v)
	return &x
}

func ip(v int) *int { return &v }

func newService(repo *mockRepo, hist *mockHistory) (*Service, *mockOrders) {
	orders := newOrders()
	s := NewService(repo, hist, orders, &directTx{})
	s.now = func() time.Time { return fixedNow }
	return s, orders
}

// --- Tests ---

func TestService_Estimate(t *testing.T) {
	past := fixedNow.Add(-24 * time.Hour)
	future := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name       string
		promo      *Promotion
		history    mockHistory
		prior      []*Redemption
		user       string
		subtotal   string
		code       string
		wantReason Reason
		wantAmount string
	}{
		{
			name:       "empty code",
			code:       "   ",
			subtotal:   "1000",
			wantReason: ReasonEmptyCode,
		},
		{
			name:       "unknown code",
			code:       "NOPE",
			subtotal:   "1000",
			wantReason: ReasonInvalidOrExpired,
		},
		{
			name:       "inactive promotion",
			promo:      &Promotion{ID: "p", Code: "OFF", Type: TypePercent, Value: d("10"), Segment: SegmentAll},
			code:       "off",
			subtotal:   "1000",
			wantReason: ReasonInvalidOrExpired,
		},
		{
			name:       "ended promotion",
			promo:      &Promotion{ID: "p", Code: "OFF", Type: TypePercent, Value: d("10"), Segment: SegmentAll, Active: true, EndAt: &past},
			code:       "OFF",
			subtotal:   "1000",
			wantReason: ReasonInvalidOrExpired,
		},
		{
			name:       "not started",
			promo:      &Promotion{ID: "p", Code: "OFF", Type: TypePercent, Value: d("10"), Segment: SegmentAll, Active: true, StartAt: &future},
			code:       "OFF",
			subtotal:   "1000",
			wantReason: ReasonInvalidOrExpired,
		},
		{
			name:       "segment requires login",
			promo:      &Promotion{ID: "p", Code: "NEW", Type: TypePercent, Value: d("10"), Segment: SegmentNewCustomers, Active: true},
			code:       "NEW",
			subtotal:   "1000",
			wantReason: ReasonLoginRequired,
		},
		{
			name:       "new customer segment with delivered orders",
			promo:      &Promotion{ID: "p", Code: "NEW", Type: TypePercent, Value: d("10"), Segment: SegmentNewCustomers, Active: true},
			history:    mockHistory{count: 1, last: past},
			user:       "u1",
			code:       "NEW",
			subtotal:   "1000",
			wantReason: ReasonNotEligible,
		},
		{
			name:       "new customer segment without orders",
			promo:      &Promotion{ID: "p", Code: "NEW", Type: TypePercent, Value: d("10"), Segment: SegmentNewCustomers, Active: true},
			user:       "u1",
			code:       "NEW",
			subtotal:   "1000",
			wantAmount: "100",
		},
		{
			name:       "inactive segment with recent delivery",
			promo:      &Promotion{ID: "p", Code: "BACK", Type: TypePercent, Value: d("10"), Segment: SegmentInactive30Days, Active: true},
			history:    mockHistory{count: 3, last: fixedNow.Add(-10 * 24 * time.Hour)},
			user:       "u1",
			code:       "BACK",
			subtotal:   "1000",
			wantReason: ReasonNotEligible,
		},
		{
			name:       "inactive segment with old delivery",
			promo:      &Promotion{ID: "p", Code: "BACK", Type: TypePercent, Value: d("10"), Segment: SegmentInactive30Days, Active: true},
			history:    mockHistory{count: 3, last: fixedNow.Add(-31 * 24 * time.Hour)},
			user:       "u1",
			code:       "BACK",
			subtotal:   "1000",
			wantAmount: "100",
		},
		{
			name:       "inactive segment never delivered",
			promo:      &Promotion{ID: "p", Code: "BACK", Type: TypePercent, Value: d("10"), Segment: SegmentInactive30Days, Active: true},
			user:       "u1",
			code:       "BACK",
			subtotal:   "1000",
			wantAmount: "100",
		},
		{
			name:       "minimum order not met",
			promo:      &Promotion{ID: "p", Code: "MIN", Type: TypeFixedAmount, Value: d("500"), MinOrderAmount: dp("3000"), Segment: SegmentAll, Active: true},
			code:       "MIN",
			subtotal:   "2999.99",
			wantReason: ReasonMinOrderNotMet,
		},
		{
			name:  "total limit reached",
			promo: &Promotion{ID: "p", Code: "CAP", Type: TypeFixedAmount, Value: d("500"), UsageLimitTotal: ip(2), Segment: SegmentAll, Active: true},
			prior: []*Redemption{
				{PromotionID: "p", OrderID: "o1", UserID: "a", Status: RedemptionApplied},
				{PromotionID: "p", OrderID: "o2", UserID: "b", Status: RedemptionApplied},
				{PromotionID: "p", OrderID: "o3", UserID: "c", Status: RedemptionCancelled},
			},
			code:       "CAP",
			subtotal:   "1000",
			wantReason: ReasonPromoLimitReached,
		},
		{
			name:  "cancelled redemptions do not count",
			promo: &Promotion{ID: "p", Code: "CAP", Type: TypeFixedAmount, Value: d("500"), UsageLimitTotal: ip(2), Segment: SegmentAll, Active: true},
			prior: []*Redemption{
				{PromotionID: "p", OrderID: "o1", UserID: "a", Status: RedemptionApplied},
				{PromotionID: "p", OrderID: "o3", UserID: "c", Status: RedemptionCancelled},
			},
			code:       "CAP",
			subtotal:   "1000",
			wantAmount: "500",
		},
		{
			name:  "per user limit reached",
			promo: &Promotion{ID: "p", Code: "ONCE", Type: TypeFixedAmount, Value: d("500"), UsageLimitPerUser: ip(1), Segment: SegmentAll, Active: true},
			prior: []*Redemption{
				{PromotionID: "p", OrderID: "o1", UserID: "u1", Status: RedemptionApplied},
			},
			user:       "u1",
			code:       "ONCE",
			subtotal:   "1000",
			wantReason: ReasonUserLimitReached,
		},
		{
			name:       "percent discount",
			promo:      &Promotion{ID: "p", Code: "TEN", Type: TypePercent, Value: d("10"), Segment: SegmentAll, Active: true},
			code:       "ten ",
			subtotal:   "10000",
			wantAmount: "1000.00",
		},
		{
			name:       "fixed discount clamped to max",
			promo:      &Promotion{ID: "p", Code: "BIG", Type: TypeFixedAmount, Value: d("3000"), MaxDiscountAmount: dp("2000"), Segment: SegmentAll, Active: true},
			code:       "BIG",
			subtotal:   "2500",
			wantAmount: "2000",
		},
		{
			name:       "fixed discount clamped to subtotal",
			promo:      &Promotion{ID: "p", Code: "BIG", Type: TypeFixedAmount, Value: d("3000"), Segment: SegmentAll, Active: true},
			code:       "BIG",
			subtotal:   "1200",
			wantAmount: "1200",
		},
		{
			name:       "zero value gives no discount",
			promo:      &Promotion{ID: "p", Code: "ZERO", Type: TypeFixedAmount, Value: d("0"), Segment: SegmentAll, Active: true},
			code:       "ZERO",
			subtotal:   "1200",
			wantReason: ReasonNoDiscount,
		},
		{
			name:       "empty cart gives no discount",
			promo:      &Promotion{ID: "p", Code: "TEN", Type: TypePercent, Value: d("10"), Segment: SegmentAll, Active: true},
			code:       "TEN",
			subtotal:   "0",
			wantReason: ReasonNoDiscount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepo()
			if tt.promo != nil {
				repo = newRepo(tt.promo)
			}
			repo.redemptions = tt.prior
			hist := tt.history
			svc, _ := newService(repo, &hist)

			got, err := svc.Estimate(context.Background(), tt.user, d(tt.subtotal), tt.code)
			require.NoError(t, err)

			if tt.wantReason != ReasonNone {
				assert.False(t, got.OK)
				assert.Equal(t, tt.wantReason, got.Reason)
				assert.True(t, got.Discount.IsZero())
				return
			}
			assert.True(t, got.OK, "unexpected rejection %s", got.Reason)
			assert.Equal(t, tt.promo.Code, got.Code)
			assert.True(t, d(tt.wantAmount).Equal(got.Discount),
				"expected amount %s, got %s", tt.wantAmount, got.Discount)
		})
	}
}

func TestService_EstimateIsPure(t *testing.T) {
	repo := newRepo(&Promotion{ID: "p", Code: "TEN", Type: TypePercent, Value: d("10"), Segment: SegmentAll, Active: true, UsageLimitTotal: ip(5)})
	svc, orders := newService(repo, &mockHistory{})

	first, err := svc.Estimate(context.Background(), "u1", d("5000"), "TEN")
	require.NoError(t, err)
	second, err := svc.Estimate(context.Background(), "u1", d("5000"), "TEN")
	require.NoError(t, err)

	assert.Equal(t, first.OK, second.OK)
	assert.True(t, first.Discount.Equal(second.Discount))
	assert.Empty(t, repo.redemptions)
	assert.Empty(t, orders.totals)
}

func TestService_EstimateRepoError(t *testing.T) {
	repo := newRepo()
	repo.findErr = errors.New("db down")
	svc, _ := newService(repo, &mockHistory{})

	_, err := svc.Estimate(context.Background(), "", d("100"), "X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup promotion")
}

func TestService_ApplyToOrder(t *testing.T) {
	repo := newRepo(
		&Promotion{ID: "p10", Code: "TEN", Type: TypePercent, Value: d("10"), Segment: SegmentAll, Active: true},
		&Promotion{ID: "p5", Code: "FIVE", Type: TypeFixedAmount, Value: d("500"), Segment: SegmentAll, Active: true},
	)
	svc, orders := newService(repo, &mockHistory{})
	ctx := context.Background()
	totals := pricing.NewTotals(d("10000"))

	res, err := svc.ApplyToOrder(ctx, "u1", "o1", &totals, "ten")
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.True(t, d("1000").Equal(totals.DiscountTotal))
	assert.True(t, d("9000").Equal(totals.Total))
	assert.Equal(t, "TEN", orders.codes["o1"])
	assert.Equal(t, []string{"TEN"}, repo.locked)

	// A second code replaces the first: one cancelled, one applied.
	res, err = svc.ApplyToOrder(ctx, "u1", "o1", &totals, "FIVE")
	require.NoError(t, err)
	require.True(t, res.OK)

	applied := repo.applied("o1")
	require.Len(t, applied, 1)
	assert.Equal(t, "p5", applied[0].PromotionID)
	assert.Len(t, repo.redemptions, 2)
	assert.Equal(t, RedemptionCancelled, repo.redemptions[0].Status)

	assert.True(t, d("500").Equal(totals.DiscountTotal))
	assert.True(t, d("9500").Equal(totals.Total))
	assert.True(t, totals.Consistent())
	assert.Equal(t, totals, orders.totals["o1"])
	assert.Equal(t, "FIVE", orders.codes["o1"])
}

func TestService_ApplyToOrderRejected(t *testing.T) {
	repo := newRepo(&Promotion{ID: "p", Code: "MIN", Type: TypeFixedAmount, Value: d("500"), MinOrderAmount: dp("5000"), Segment: SegmentAll, Active: true})
	svc, orders := newService(repo, &mockHistory{})
	totals := pricing.NewTotals(d("1000"))

	res, err := svc.ApplyToOrder(context.Background(), "", "o1", &totals, "MIN")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonMinOrderNotMet, res.Reason)

	assert.Empty(t, repo.redemptions)
	assert.Empty(t, orders.totals)
	assert.True(t, d("1000").Equal(totals.Total))
}

func TestService_ApplyToOrderGuest(t *testing.T) {
	repo := newRepo(&Promotion{ID: "p", Code: "ALL", Type: TypeFixedAmount, Value: d("300"), UsageLimitPerUser: ip(1), Segment: SegmentAll, Active: true})
	hist := &mockHistory{}
	svc, _ := newService(repo, hist)
	totals := pricing.NewTotals(d("1000"))

	res, err := svc.ApplyToOrder(context.Background(), "", "o1", &totals, "ALL")
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, 0, hist.calls, "guests skip segment history")
	require.Len(t, repo.redemptions, 1)
	assert.Empty(t, repo.redemptions[0].UserID)
}

func TestReason_Message(t *testing.T) {
	assert.Equal(t, "Please enter a code.", ReasonEmptyCode.Message())
	assert.Equal(t, "This code was refused.", Reason("SOMETHING_ELSE").Message())
	for _, r := range []Reason{
		ReasonEmptyCode, ReasonInvalidOrExpired, ReasonLoginRequired, ReasonNotEligible,
		ReasonMinOrderNotMet, ReasonPromoLimitReached, ReasonUserLimitReached, ReasonNoDiscount,
	} {
		assert.NotEqual(t, "This code was refused.", r.Message(), r)
	}
}
