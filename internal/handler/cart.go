package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/romeosyl08-png/resto/internal/domain/cart"
	"github.com/romeosyl08-png/resto/internal/domain/order"
	"github.com/romeosyl08-png/resto/internal/domain/promotion"
)

// UserHeader carries the id of the signed-in customer.
const UserHeader = "X-User-ID"

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

// session returns the session id of the request, issuing a cookie for new
// visitors.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(h.cfg.CookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (h *Handler) loadCart(ctx context.Context, sid string) (*cart.Cart, error) {
	st, err := h.carts.Load(ctx, sid)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	opts := []cart.Option{cart.WithClock(h.now)}
	if h.cfg.MaxQty > 0 {
		opts = append(opts, cart.WithMaxQty(h.cfg.MaxQty))
	}
	return cart.New(st, h.catalog, h.promos, opts...), nil
}

// withCart loads the session cart, runs fn and stores the cart again when fn
// succeeds.
func (h *Handler) withCart(w http.ResponseWriter, r *http.Request, fn func(c *cart.Cart) error) (*cart.Cart, bool) {
	ctx := r.Context()
	sid := h.session(w, r)
	c, err := h.loadCart(ctx, sid)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if err := fn(c); err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if err := h.carts.Save(ctx, sid, c.State()); err != nil {
		h.fail(w, r, errors.Wrap(err, "save cart"))
		return nil, false
	}
	return c, true
}

func (h *Handler) renderCart(w http.ResponseWriter, r *http.Request, c *cart.Cart, purge cart.PurgeResult) {
	ctx := r.Context()
	lines, err := c.Lines(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	subtotal, err := c.Subtotal(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	total, err := c.TotalAfterDiscount(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		field(e, "lines").ArrStart()
		for _, l := range lines {
			e.ObjStart()
			field(e, "item").Int64(l.Item.ID)
			field(e, "name").Str(l.Item.Name)
			field(e, "variant").Str(l.Variant.Code)
			field(e, "qty").Int(l.Quantity)
			money(e, "unit_price", l.UnitPrice)
			money(e, "total", l.Total)
			e.ObjEnd()
		}
		e.ArrEnd()
		money(e, "subtotal", subtotal)
		field(e, "promo")
		if p := c.Pending(); p != nil {
			e.ObjStart()
			field(e, "code").Str(p.Code)
			money(e, "discount", p.Discount)
			e.ObjEnd()
		} else {
			e.Null()
		}
		money(e, "total", total)
		encodeNotices(e, purge)
		e.ObjEnd()
	})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	var purge cart.PurgeResult
	c, ok := h.withCart(w, r, func(c *cart.Cart) error {
		var err error
		purge, err = c.PurgeUnavailable(r.Context(), h.cfg.Policy.IsOpen(h.now()))
		return err
	})
	if ok {
		h.renderCart(w, r, c, purge)
	}
}

type lineRequest struct {
	ItemID  int64
	Variant string
	Qty     int
}

func decodeLine(r *http.Request) (lineRequest, error) {
	var req lineRequest
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "item":
			req.ItemID, err = d.Int64()
		case "variant":
			req.Variant, err = d.Str()
		case "qty":
			req.Qty, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return req, err
	}
	if req.ItemID <= 0 || req.Variant == "" {
		return req, errors.Wrap(errBadRequest, "item and variant are required")
	}
	return req, nil
}

func (h *Handler) mutateLine(w http.ResponseWriter, r *http.Request, set bool) {
	req, err := decodeLine(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.cfg.Policy.IsOpen(h.now()) {
		h.fail(w, r, order.ErrOrderingClosed)
		return
	}
	c, ok := h.withCart(w, r, func(c *cart.Cart) error {
		if set {
			return c.Set(r.Context(), req.ItemID, req.Variant, req.Qty)
		}
		qty := req.Qty
		if qty <= 0 {
			qty = 1
		}
		return c.Add(r.Context(), req.ItemID, req.Variant, qty)
	})
	if ok {
		h.renderCart(w, r, c, cart.PurgeResult{})
	}
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) { h.mutateLine(w, r, false) }

func (h *Handler) setCartItem(w http.ResponseWriter, r *http.Request) { h.mutateLine(w, r, true) }

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(r.PathValue("item"), 10, 64)
	if err != nil {
		h.fail(w, r, errors.Wrap(errBadRequest, "invalid item id"))
		return
	}
	variant := r.PathValue("variant")
	c, ok := h.withCart(w, r, func(c *cart.Cart) error {
		c.Remove(itemID, variant)
		return nil
	})
	if ok {
		h.renderCart(w, r, c, cart.PurgeResult{})
	}
}

func (h *Handler) applyPromo(w http.ResponseWriter, r *http.Request) {
	var code string
	if err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "code" {
			return d.Skip()
		}
		var err error
		code, err = d.Str()
		return err
	}); err != nil {
		h.fail(w, r, err)
		return
	}

	var res promotion.Result
	if _, ok := h.withCart(w, r, func(c *cart.Cart) error {
		var err error
		res, err = c.ApplyPromo(r.Context(), userID(r), code)
		return err
	}); !ok {
		return
	}

	status := http.StatusOK
	if !res.OK {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, func(e *jx.Encoder) { encodePromoResult(e, res) })
}

func encodePromoResult(e *jx.Encoder, res promotion.Result) {
	e.ObjStart()
	field(e, "ok").Bool(res.OK)
	if res.OK {
		field(e, "code").Str(res.Code)
		money(e, "discount", res.Discount)
	} else {
		field(e, "reason").Str(string(res.Reason))
	}
	field(e, "message").Str(res.Reason.Message())
	e.ObjEnd()
}

func (h *Handler) removePromo(w http.ResponseWriter, r *http.Request) {
	c, ok := h.withCart(w, r, func(c *cart.Cart) error {
		c.RemovePromo()
		return nil
	})
	if ok {
		h.renderCart(w, r, c, cart.PurgeResult{})
	}
}
