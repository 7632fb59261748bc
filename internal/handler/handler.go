// Package handler exposes the ordering core over HTTP.
//
// Customers are identified by a session cookie that keys their cart; a
// signed-in customer additionally carries the X-User-ID header set by the
// authenticating proxy in front of the server.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/romeosyl08-png/resto/internal/domain/cart"
	"github.com/romeosyl08-png/resto/internal/domain/loyalty"
	"github.com/romeosyl08-png/resto/internal/domain/menu"
	"github.com/romeosyl08-png/resto/internal/domain/order"
	"github.com/romeosyl08-png/resto/internal/domain/promotion"
	"github.com/romeosyl08-png/resto/internal/domain/window"
	"github.com/romeosyl08-png/resto/pkg/httpmiddleware"
)

// Menu answers what is served today.
type Menu interface {
	Today(ctx context.Context, now time.Time) (*menu.Offering, error)
}

// Orders is the order lifecycle used by the handlers.
type Orders interface {
	Checkout(ctx context.Context, req order.CheckoutRequest) (*order.CheckoutResult, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	Transition(ctx context.Context, id string, to order.Status) (*order.Order, error)
	AddItem(ctx context.Context, orderID string, itemID int64, variant string, qty int) (*order.Order, error)
	RemoveItem(ctx context.Context, orderID, orderItemID string) (*order.Order, error)
	DailyStats(ctx context.Context, day time.Time) (*order.DailyStats, error)
	CustomerHistory(ctx context.Context, userID string) (*order.CustomerHistory, error)
}

// Loyalty reports customer loyalty to staff.
type Loyalty interface {
	Summary(ctx context.Context, userID string) (*loyalty.Summary, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	CookieName   string
	CookieSecure bool
	SessionTTL   time.Duration
	// MaxQty caps cart lines; zero means cart.MaxQty.
	MaxQty int
	Policy window.Policy
}

// Handler serves the storefront and staff API.
type Handler struct {
	cfg     Config
	menu    Menu
	carts   cart.Store
	catalog cart.Catalog
	promos  promotion.Estimator
	orders  Orders
	loyalty Loyalty
	now     func() time.Time
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	m Menu,
	carts cart.Store,
	catalog cart.Catalog,
	promos promotion.Estimator,
	orders Orders,
	l Loyalty,
) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = "resto_session"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	return &Handler{
		cfg:     cfg,
		menu:    m,
		carts:   carts,
		catalog: catalog,
		promos:  promos,
		orders:  orders,
		loyalty: l,
		now:     time.Now,
	}
}

// CookieName returns the name of the session cookie.
func (h *Handler) CookieName() string { return h.cfg.CookieName }

// Register adds the API routes to mux. promoLimit guards promotion code
// attempts and staff guards the staff routes; either may be nil.
func (h *Handler) Register(mux *http.ServeMux, promoLimit, staff httpmiddleware.Middleware) {
	guard := func(m httpmiddleware.Middleware, f http.HandlerFunc) http.Handler {
		if m == nil {
			return f
		}
		return m(f)
	}

	mux.HandleFunc("GET /api/menu/today", h.today)

	mux.HandleFunc("GET /api/cart", h.getCart)
	mux.HandleFunc("POST /api/cart/items", h.addCartItem)
	mux.HandleFunc("PUT /api/cart/items", h.setCartItem)
	mux.HandleFunc("DELETE /api/cart/items/{item}/{variant}", h.removeCartItem)
	mux.Handle("POST /api/cart/promo", guard(promoLimit, h.applyPromo))
	mux.HandleFunc("DELETE /api/cart/promo", h.removePromo)

	mux.HandleFunc("POST /api/checkout", h.checkout)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)

	mux.Handle("POST /api/staff/orders/{id}/status", guard(staff, h.transition))
	mux.Handle("POST /api/staff/orders/{id}/items", guard(staff, h.addOrderItem))
	mux.Handle("DELETE /api/staff/orders/{id}/items/{itemID}", guard(staff, h.removeOrderItem))
	mux.Handle("GET /api/staff/loyalty/{user}", guard(staff, h.loyaltySummary))
	mux.Handle("GET /api/staff/stats", guard(staff, h.dailyStats))
	mux.Handle("GET /api/staff/customers/{user}/orders", guard(staff, h.customerHistory))
}

func (h *Handler) today(w http.ResponseWriter, r *http.Request) {
	o, err := h.menu.Today(r.Context(), h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOffering(e, o) })
}
