package order

import (
	"context"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/romeosyl08-png/resto/internal/domain/cart"
	"github.com/romeosyl08-png/resto/internal/domain/loyalty"
	"github.com/romeosyl08-png/resto/internal/domain/menu"
	"github.com/romeosyl08-png/resto/internal/domain/pricing"
	"github.com/romeosyl08-png/resto/internal/domain/promotion"
	"github.com/romeosyl08-png/resto/internal/domain/window"
)

// --- Mock implementations ---

type variantKey struct {
	item    int64
	variant string
}

type mockMenu struct {
	items map[int64]*menu.Item
	// stock is the authoritative stock seen under lock.
	stock     map[variantKey]int
	decrErr   map[variantKey]error
	lockOrder []variantKey
}

func newMenu() *mockMenu {
	m := &mockMenu{
		items: map[int64]*menu.Item{
			1: {ID: 1, Name: "Garba", Active: true, Variants: []menu.Variant{
				{ItemID: 1, Code: menu.VariantBasic, Price: 500, Stock: 10, Active: true},
				{ItemID: 1, Code: menu.VariantPremium, Price: 1500, Stock: 10, Active: true},
			}},
			2: {ID: 2, Name: "Alloco", Active: true, Variants: []menu.Variant{
				{ItemID: 2, Code: menu.VariantStandard, Price: 1000, Stock: 10, Active: true},
			}},
		},
		stock:   map[variantKey]int{},
		decrErr: map[variantKey]error{},
	}
	for _, it := range m.items {
		for _, v := range it.Variants {
			m.stock[variantKey{it.ID, v.Code}] = v.Stock
		}
	}
	return m
}

func (m *mockMenu) GetItem(_ context.Context, id int64) (*menu.Item, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, menu.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *mockMenu) GetItems(ctx context.Context, ids []int64) ([]menu.Item, error) {
	var out []menu.Item
	for _, id := range ids {
		if it, err := m.GetItem(ctx, id); err == nil {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (m *mockMenu) ListActive(_ context.Context) ([]menu.Item, error) { return nil, nil }

func (m *mockMenu) LockVariant(_ context.Context, itemID int64, code string) (*menu.Item, *menu.Variant, error) {
	k := variantKey{itemID, code}
	m.lockOrder = append(m.lockOrder, k)
	it, ok := m.items[itemID]
	if !ok {
		return nil, nil, menu.ErrNotFound
	}
	v, ok := it.Variant(code)
	if !ok {
		return nil, nil, menu.ErrNotFound
	}
	locked := *v
	locked.Stock = m.stock[k]
	return it, &locked, nil
}

func (m *mockMenu) DecrementStock(_ context.Context, itemID int64, code string, qty int) error {
	k := variantKey{itemID, code}
	if err := m.decrErr[k]; err != nil {
		return err
	}
	if m.stock[k] < qty {
		return menu.ErrInsufficientStock
	}
	m.stock[k] -= qty
	return nil
}

type mockOrders struct {
	orders map[string]*Order
	report reportStub
}

func newOrders() *mockOrders {
	return &mockOrders{orders: map[string]*Order{}}
}

func cloneOrder(o *Order) *Order {
	cp := *o
	cp.Items = slices.Clone(o.Items)
	return &cp
}

func (m *mockOrders) Create(_ context.Context, o *Order) error {
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *mockOrders) Get(_ context.Context, id string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *mockOrders) Lock(ctx context.Context, id string) (*Order, error) {
	return m.Get(ctx, id)
}

func (m *mockOrders) AddItem(_ context.Context, it *Item) error {
	o := m.orders[it.OrderID]
	o.Items = append(o.Items, *it)
	return nil
}

func (m *mockOrders) DeleteItem(_ context.Context, orderID, itemID string) error {
	o := m.orders[orderID]
	o.Items = slices.DeleteFunc(o.Items, func(it Item) bool { return it.ID == itemID })
	return nil
}

func (m *mockOrders) UpdateTotals(_ context.Context, orderID string, t pricing.Totals) error {
	m.orders[orderID].Totals = t
	return nil
}

func (m *mockOrders) SetPromoCode(_ context.Context, orderID, code string) error {
	m.orders[orderID].PromoCode = code
	return nil
}

func (m *mockOrders) TransitionStatus(_ context.Context, id string, to Status, from []Status, at time.Time) (Status, bool, error) {
	o, ok := m.orders[id]
	if !ok {
		return "", false, ErrNotFound
	}
	prev := o.Status
	if !slices.Contains(from, prev) {
		return prev, false, nil
	}
	o.Status = to
	if to == StatusDelivered {
		o.DeliveredAt = &at
	}
	return prev, true, nil
}

// memTx restores the fakes when fn fails.
type memTx struct {
	menu   *mockMenu
	orders *mockOrders
	calls  int
}

func (tx *memTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx.calls++
	stock := maps.Clone(tx.menu.stock)
	orders := make(map[string]*Order, len(tx.orders.orders))
	for k, o := range tx.orders.orders {
		orders[k] = cloneOrder(o)
	}
	if err := fn(ctx); err != nil {
		tx.menu.stock = stock
		tx.orders.orders = orders
		return err
	}
	return nil
}

// mockPromos and mockLoyalty persist the discounted totals like the real
// services do.
type mockPromos struct {
	orders *mockOrders
	res    promotion.Result
	err    error
	calls  []string
}

func (m *mockPromos) ApplyToOrder(ctx context.Context, _, orderID string, totals *pricing.Totals, code string) (promotion.Result, error) {
	m.calls = append(m.calls, code)
	if m.err != nil {
		return promotion.Result{}, m.err
	}
	if m.res.OK {
		totals.AddDiscount(m.res.Discount)
		if err := m.orders.UpdateTotals(ctx, orderID, *totals); err != nil {
			return promotion.Result{}, err
		}
		if err := m.orders.SetPromoCode(ctx, orderID, m.res.Code); err != nil {
			return promotion.Result{}, err
		}
	}
	return m.res, nil
}

type mockLoyalty struct {
	orders     *mockOrders
	redemption loyalty.Redemption
	delivered  [][]pricing.Line
	issue      int
}

func (m *mockLoyalty) OnOrderDelivered(_ context.Context, userID string, lines []pricing.Line) ([]loyalty.Voucher, error) {
	if userID == "" {
		return nil, nil
	}
	m.delivered = append(m.delivered, lines)
	return make([]loyalty.Voucher, m.issue), nil
}

func (m *mockLoyalty) ApplyBestVoucher(ctx context.Context, _, orderID string, _ []pricing.Line, totals *pricing.Totals) (loyalty.Redemption, error) {
	if m.redemption.Applied {
		totals.AddDiscount(m.redemption.Discount)
		if err := m.orders.UpdateTotals(ctx, orderID, *totals); err != nil {
			return loyalty.Redemption{}, err
		}
	}
	return m.redemption, nil
}

// --- Helpers ---

var (
	openNow   = time.Date(2025, 6, 15, 20, 0, 0, 0, time.UTC)
	closedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc     *Service
	menu    *mockMenu
	orders  *mockOrders
	promos  *mockPromos
	loyalty *mockLoyalty
	tx      *memTx
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	orders := newOrders()
	f := &fixture{
		menu:    newMenu(),
		orders:  orders,
		promos:  &mockPromos{orders: orders},
		loyalty: &mockLoyalty{orders: orders, redemption: loyalty.Redemption{Reason: loyalty.ReasonNoMatchingVoucher}},
	}
	f.tx = &memTx{menu: f.menu, orders: f.orders}
	metrics, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	f.svc = NewService(f.menu, f.orders, f.promos, f.loyalty, f.tx, window.Default(time.UTC), metrics)
	f.svc.now = func() time.Time { return openNow }
	return f
}

func (f *fixture) cart(lines ...cart.Line) *cart.Cart {
	return cart.New(&cart.State{Lines: lines}, f.menu, nil)
}

var validForm = CheckoutForm{Name: "Awa", Phone: "0707070707", Zone: ZoneCampus}

// d converts minor units: d(2000) is 20.00.
func d(v int64) decimal.Decimal { return pricing.FromMinor(v) }

// --- Tests ---

func TestCheckout_Places(t *testing.T) {
	f := newFixture(t)
	c := f.cart(
		cart.Line{ItemID: 2, Variant: menu.VariantStandard, Quantity: 1},
		cart.Line{ItemID: 1, Variant: menu.VariantBasic, Quantity: 2},
	)

	res, err := f.svc.Checkout(context.Background(), CheckoutRequest{Cart: c, UserID: "u1", Form: validForm})
	require.NoError(t, err)

	o := res.Order
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "u1", o.UserID)
	assert.Equal(t, Contact{Name: "Awa", Phone: "0707070707", Address: ZoneCampus}, o.Contact)
	require.Len(t, o.Items, 2)
	assert.True(t, d(2000).Equal(o.Subtotal))
	assert.True(t, d(2000).Equal(o.Total))
	assert.Nil(t, res.Promotion)
	assert.False(t, res.Voucher.Applied)

	assert.Equal(t, []variantKey{{1, menu.VariantBasic}, {2, menu.VariantStandard}}, f.menu.lockOrder)
	assert.Equal(t, 8, f.menu.stock[variantKey{1, menu.VariantBasic}])
	assert.Equal(t, 9, f.menu.stock[variantKey{2, menu.VariantStandard}])
	assert.Contains(t, f.orders.orders, o.ID)
	assert.True(t, c.Empty(), "cart cleared after commit")
}

func TestCheckout_SnapshotsPrices(t *testing.T) {
	f := newFixture(t)
	c := f.cart(cart.Line{ItemID: 1, Variant: menu.VariantPremium, Quantity: 1})

	res, err := f.svc.Checkout(context.Background(), CheckoutRequest{Cart: c, Form: validForm})
	require.NoError(t, err)

	f.menu.items[1].Variants[1].Price = 9999
	stored, err := f.svc.Get(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.True(t, d(1500).Equal(stored.Items[0].UnitPrice))
}

func TestCheckout_Closed(t *testing.T) {
	f := newFixture(t)
	f.svc.now = func() time.Time { return closedNow }
	c := f.cart(cart.Line{ItemID: 1, Variant: menu.VariantBasic, Quantity: 1})

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{Cart: c, Form: validForm})
	require.ErrorIs(t, err, ErrOrderingClosed)
	assert.True(t, c.Empty())
	assert.Zero(t, f.tx.calls)
}

func TestCheckout_StaleCart(t *testing.T) {
	f := newFixture(t)
	f.menu.items[2].Active = false
	c := f.cart(
		cart.Line{ItemID: 1, Variant: menu.VariantBasic, Quantity: 1},
		cart.Line{ItemID: 2, Variant: menu.VariantStandard, Quantity: 1},
	)

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{Cart: c, Form: validForm})
	var stale *StaleCartError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, 1, stale.Purge.Removed)
	assert.True(t, stale.Purge.Has(cart.PurgeInactive))
	assert.Equal(t, 1, c.Len())
	assert.Empty(t, f.orders.orders)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{Cart: f.cart(), Form: validForm})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_Validation(t *testing.T) {
	tests := []struct {
		name   string
		form   CheckoutForm
		fields []string
	}{
		{
			name:   "missing everything",
			form:   CheckoutForm{},
			fields: []string{"address", "customer_name", "phone"},
		},
		{
			name:   "other zone needs detail",
			form:   CheckoutForm{Name: "Awa", Phone: "0707070707", Zone: ZoneOther, AddressDetail: "   "},
			fields: []string{"address_detail"},
		},
		{
			name:   "unknown zone and letters in phone",
			form:   CheckoutForm{Name: "Awa", Phone: "07-07", Zone: "moon"},
			fields: []string{"address", "phone"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.cart(cart.Line{ItemID: 1, Variant: menu.VariantBasic, Quantity: 1})

			_, err := f.svc.Checkout(context.Background(), CheckoutRequest{Cart: c, Form: tt.form})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ElementsMatch(t, tt.fields, slices.Collect(maps.Keys(verr.Fields)))
			assert.Equal(t, 1, c.Len(), "cart kept on invalid form")
		})
	}

	t.Run("other zone with detail", func(t *testing.T) {
		f := newFixture(t)
		c := f.cart(cart.Line{ItemID: 1, Variant: menu.VariantBasic, Quantity: 1})
		form := CheckoutForm{Name: " Awa ", Phone: "0707070707", Zone: ZoneOther, AddressDetail: "Rue 12, porte bleue"}

		res, err := f.svc.Checkout(context.Background(), CheckoutRequest{Cart: c, Form: form})
		require.NoError(t, err)
		assert.Equal(t, "Awa", res.Order.Contact.Name)
		assert.Equal(t, "other: Rue 12, porte bleue", res.Order.Contact.Address)
	})
}

func TestCheckout_StockRaceRollsBack(t *testing.T) {
	f := newFixture(t)
	// The cart still sees 10 in stock but a concurrent sale left 1.
	f.menu.stock[variantKey{2, menu.VariantStandard}] = 1
	c := f.cart(
		cart.Line{ItemID: 1, Variant: menu.VariantBasic, Quantity: 1},
		cart.Line{ItemID: 2, Variant: menu.VariantStandard, Quantity: 2},
	)

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{Cart: c, Form: validForm})
	require.ErrorIs(t, err, ErrInsufficientStock)
	var serr *StockError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, int64(2), serr.ItemID)

	assert.Empty(t, f.orders.orders)
	assert.Equal(t, 10, f.menu.stock[variantKey{1, menu.VariantBasic}])
	assert.Equal(t, 1, f.menu.stock[variantKey{2, menu.VariantStandard}])
	assert.Equal(t, 2, c.Len(), "cart kept for retry")
}

func TestCheckout_DecrementRaceRollsBack(t *testing.T) {
	f := newFixture(t)
	f.menu.decrErr[variantKey{2, menu.VariantStandard}] = menu.ErrInsufficientStock
	c := f.cart(
		cart.Line{ItemID: 1, Variant: menu.VariantBasic, Quantity: 3},
		cart.Line{ItemID: 2, Variant: menu.VariantStandard, Quantity: 1},
	)

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{Cart: c, Form: validForm})
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Empty(t, f.orders.orders)
	assert.Equal(t, 10, f.menu.stock[variantKey{1, menu.VariantBasic}], "first decrement rolled back")
}

func TestCheckout_PromotionAndVoucher(t *testing.T) {
	f := newFixture(t)
	f.promos.res = promotion.Result{OK: true, Code: "TEN", Discount: d(200)}
	f.loyalty.redemption = loyalty.Redemption{Applied: true, Discount: d(500), VoucherID: "v1"}

	c := f.cart(cart.Line{ItemID: 1, Variant: menu.VariantBasic, Quantity: 4})
	c.State().Promo = &cart.PendingPromotion{Code: "TEN", Discount: d(200)}

	res, err := f.svc.Checkout(context.Background(), CheckoutRequest{Cart: c, UserID: "u1", Form: validForm})
	require.NoError(t, err)

	assert.Equal(t, []string{"TEN"}, f.promos.calls)
	require.NotNil(t, res.Promotion)
	assert.True(t, res.Promotion.OK)
	assert.True(t, res.Voucher.Applied)

	o := res.Order
	assert.Equal(t, "TEN", o.PromoCode)
	assert.True(t, d(2000).Equal(o.Subtotal))
	assert.True(t, d(700).Equal(o.DiscountTotal))
	assert.True(t, d(1300).Equal(o.Total))
	assert.True(t, o.Consistent())
	assert.Nil(t, c.Pending())

	stored, err := f.svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "TEN", stored.PromoCode)
	assert.True(t, d(700).Equal(stored.DiscountTotal))
	assert.True(t, d(1300).Equal(stored.Total))
}

func TestCheckout_PromotionRejectedStillPlaces(t *testing.T) {
	f := newFixture(t)
	f.promos.res = promotion.Result{Reason: promotion.ReasonPromoLimitReached}
	c := f.cart(cart.Line{ItemID: 1, Variant: menu.VariantBasic, Quantity: 1})

	res, err := f.svc.Checkout(context.Background(), CheckoutRequest{Cart: c, Form: validForm, PromoCode: "gone"})
	require.NoError(t, err)
	require.NotNil(t, res.Promotion)
	assert.Equal(t, promotion.ReasonPromoLimitReached, res.Promotion.Reason)
	assert.Empty(t, res.Order.PromoCode)
	assert.True(t, d(500).Equal(res.Order.Total))
}

func TestCheckout_PromotionErrorRollsBack(t *testing.T) {
	f := newFixture(t)
	f.promos.err = errors.New("db down")
	c := f.cart(cart.Line{ItemID: 1, Variant: menu.VariantBasic, Quantity: 1})

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{Cart: c, Form: validForm, PromoCode: "TEN"})
	require.Error(t, err)
	assert.Empty(t, f.orders.orders)
	assert.Equal(t, 10, f.menu.stock[variantKey{1, menu.VariantBasic}])
}

func placed(t *testing.T, f *fixture, userID string) *Order {
	t.Helper()
	c := f.cart(cart.Line{ItemID: 1, Variant: menu.VariantBasic, Quantity: 2})
	res, err := f.svc.Checkout(context.Background(), CheckoutRequest{Cart: c, UserID: userID, Form: validForm})
	require.NoError(t, err)
	return res.Order
}

func TestTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("delivery accrues once", func(t *testing.T) {
		f := newFixture(t)
		f.loyalty.issue = 1
		o := placed(t, f, "u1")

		_, err := f.svc.Transition(ctx, o.ID, StatusConfirmed)
		require.NoError(t, err)
		got, err := f.svc.Transition(ctx, o.ID, StatusDelivered)
		require.NoError(t, err)
		assert.Equal(t, StatusDelivered, got.Status)
		require.NotNil(t, got.DeliveredAt)

		// Delivering again is a no-op.
		got, err = f.svc.Transition(ctx, o.ID, StatusDelivered)
		require.NoError(t, err)
		assert.Equal(t, StatusDelivered, got.Status)

		require.Len(t, f.loyalty.delivered, 1)
		assert.Equal(t, []pricing.Line{{UnitPrice: d(500), Quantity: 2}}, f.loyalty.delivered[0])
	})

	t.Run("guest earns nothing", func(t *testing.T) {
		f := newFixture(t)
		o := placed(t, f, "")
		_, err := f.svc.Transition(ctx, o.ID, StatusConfirmed)
		require.NoError(t, err)
		_, err = f.svc.Transition(ctx, o.ID, StatusDelivered)
		require.NoError(t, err)
		assert.Empty(t, f.loyalty.delivered)
	})

	t.Run("invalid transitions", func(t *testing.T) {
		tests := []struct {
			name string
			path []Status
			to   Status
			from Status
		}{
			{name: "pending to delivered", to: StatusDelivered, from: StatusPending},
			{name: "canceled is terminal", path: []Status{StatusCanceled}, to: StatusConfirmed, from: StatusCanceled},
			{name: "delivered is terminal", path: []Status{StatusConfirmed, StatusDelivered}, to: StatusCanceled, from: StatusDelivered},
			{name: "back to pending", path: []Status{StatusConfirmed}, to: StatusPending, from: StatusConfirmed},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				o := placed(t, f, "u1")
				for _, s := range tt.path {
					_, err := f.svc.Transition(ctx, o.ID, s)
					require.NoError(t, err)
				}

				_, err := f.svc.Transition(ctx, o.ID, tt.to)
				var terr *TransitionError
				require.ErrorAs(t, err, &terr)
				assert.Equal(t, tt.from, terr.From)
				assert.Equal(t, tt.to, terr.To)
			})
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		f := newFixture(t)
		o := placed(t, f, "u1")
		_, err := f.svc.Transition(ctx, o.ID, Status("lost"))
		var terr *TransitionError
		require.ErrorAs(t, err, &terr)
	})

	t.Run("missing order", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Transition(ctx, "nope", StatusConfirmed)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestEditItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := placed(t, f, "u1")

	got, err := f.svc.AddItem(ctx, o.ID, 1, menu.VariantPremium, 1)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.True(t, d(2500).Equal(got.Subtotal))
	assert.True(t, d(2500).Equal(got.Total))
	assert.Equal(t, 10, f.menu.stock[variantKey{1, menu.VariantPremium}], "staff edits keep stock")

	got, err = f.svc.RemoveItem(ctx, o.ID, got.Items[0].ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, d(1500).Equal(got.Subtotal))

	stored := f.orders.orders[o.ID]
	assert.True(t, stored.Consistent())
	assert.True(t, d(1500).Equal(stored.Total))

	_, err = f.svc.RemoveItem(ctx, o.ID, "missing")
	require.ErrorIs(t, err, ErrItemNotFound)

	_, err = f.svc.AddItem(ctx, o.ID, 1, menu.VariantBasic, 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.svc.AddItem(ctx, o.ID, 1, menu.VariantStandard, 1)
	require.ErrorIs(t, err, menu.ErrNotFound)

	_, err = f.svc.Transition(ctx, o.ID, StatusCanceled)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, o.ID, 1, menu.VariantBasic, 1)
	require.ErrorIs(t, err, ErrNotEditable)
	_, err = f.svc.RemoveItem(ctx, o.ID, got.Items[0].ID)
	require.ErrorIs(t, err, ErrNotEditable)
}

func TestEditItems_DiscountKeepsTotalNonNegative(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.loyalty.redemption = loyalty.Redemption{Applied: true, Discount: d(500)}
	o := placed(t, f, "u1")
	require.True(t, d(500).Equal(o.Total))

	got, err := f.svc.RemoveItem(ctx, o.ID, o.Items[0].ID)
	require.NoError(t, err)
	assert.True(t, got.Subtotal.IsZero())
	assert.True(t, got.Total.IsZero())
	assert.True(t, d(500).Equal(got.DiscountTotal))
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusPending.Editable())
	assert.True(t, StatusConfirmed.Editable())
	assert.False(t, StatusDelivered.Editable())
	assert.False(t, StatusCanceled.Editable())
	assert.False(t, Status("x").Editable())

	assert.Equal(t, []Status{StatusConfirmed}, Sources(StatusDelivered))
	assert.Equal(t, []Status{StatusPending, StatusConfirmed}, Sources(StatusCanceled))
	assert.Empty(t, Sources(StatusPending))
}
