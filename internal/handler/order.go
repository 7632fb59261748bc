package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/romeosyl08-png/resto/internal/domain/order"
)

func decodeCheckout(r *http.Request) (order.CheckoutForm, string, error) {
	var (
		f    order.CheckoutForm
		code string
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "customer_name":
			f.Name, err = d.Str()
		case "phone":
			f.Phone, err = d.Str()
		case "address":
			f.Zone, err = d.Str()
		case "address_detail":
			f.AddressDetail, err = d.Str()
		case "promo_code":
			code, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return f, code, err
}

// checkout places the session cart as an order. The cart is stored again
// whatever the outcome, since a closed window or a purge changes it too.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form, code, err := decodeCheckout(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	sid := h.session(w, r)
	c, err := h.loadCart(ctx, sid)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.orders.Checkout(ctx, order.CheckoutRequest{
		Cart:      c,
		UserID:    userID(r),
		Form:      form,
		PromoCode: code,
	})
	if saveErr := h.carts.Save(ctx, sid, c.State()); saveErr != nil && err == nil {
		err = errors.Wrap(saveErr, "save cart")
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		field(e, "order")
		encodeOrder(e, res.Order)
		if res.Promotion != nil {
			field(e, "promotion")
			encodePromoResult(e, *res.Promotion)
		}
		field(e, "voucher").ObjStart()
		field(e, "applied").Bool(res.Voucher.Applied)
		if res.Voucher.Applied {
			money(e, "discount", res.Voucher.Discount)
		}
		e.ObjEnd()
		e.ObjEnd()
	})
}

// pathID returns the canonical form of the uuid path value name, or notFound
// when it is not a uuid.
func pathID(r *http.Request, name string, notFound error) (string, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return "", notFound
	}
	return id.String(), nil
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", order.ErrNotFound)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	// Customer orders are private to their owner; guest orders are reachable
	// by id only.
	if o.UserID != "" && o.UserID != userID(r) {
		h.fail(w, r, order.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", order.ErrNotFound)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var to order.Status
	if err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		s, err := d.Str()
		to = order.Status(s)
		return err
	}); err != nil {
		h.fail(w, r, err)
		return
	}

	o, err := h.orders.Transition(r.Context(), id, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) addOrderItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", order.ErrNotFound)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := decodeLine(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	o, err := h.orders.AddItem(r.Context(), id, req.ItemID, req.Variant, req.Qty)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) removeOrderItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", order.ErrNotFound)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	itemID, err := pathID(r, "itemID", order.ErrItemNotFound)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	o, err := h.orders.RemoveItem(r.Context(), id, itemID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) loyaltySummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.loyalty.Summary(r.Context(), r.PathValue("user"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	now := h.now()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSummary(e, s, now) })
}

// dailyStats reports on the day given as ?date=YYYY-MM-DD, today by default.
func (h *Handler) dailyStats(w http.ResponseWriter, r *http.Request) {
	loc := h.cfg.Policy.Location
	if loc == nil {
		loc = time.UTC
	}
	day := h.now().In(loc)
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := time.ParseInLocation(time.DateOnly, v, loc)
		if err != nil {
			h.fail(w, r, errors.Wrap(errBadRequest, "date must be YYYY-MM-DD"))
			return
		}
		day = d
	}

	s, err := h.orders.DailyStats(r.Context(), day)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeDailyStats(e, s) })
}

func (h *Handler) customerHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := h.orders.CustomerHistory(r.Context(), r.PathValue("user"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeHistory(e, hist) })
}
