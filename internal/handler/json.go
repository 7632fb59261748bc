package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/romeosyl08-png/resto/internal/domain/loyalty"
	"github.com/romeosyl08-png/resto/internal/domain/menu"
	"github.com/romeosyl08-png/resto/internal/domain/order"
	"github.com/romeosyl08-png/resto/internal/domain/pricing"
)

const maxBody = 64 << 10

var errBadRequest = errors.New("malformed request body")

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// decodeBody reads a JSON object from the request body, calling fn for
// every field.
func decodeBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBody))
	if err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	if err := jx.DecodeBytes(data).Obj(fn); err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	return nil
}

func field(e *jx.Encoder, name string) *jx.Encoder {
	e.FieldStart(name)
	return e
}

func money(e *jx.Encoder, name string, d decimal.Decimal) {
	field(e, name).Str(pricing.Round(d).StringFixed(2))
}

func timestamp(e *jx.Encoder, name string, t time.Time) {
	field(e, name).Str(t.UTC().Format(time.RFC3339))
}

func encodeItem(e *jx.Encoder, item *menu.Item) {
	e.ObjStart()
	field(e, "id").Int64(item.ID)
	field(e, "name").Str(item.Name)
	field(e, "in_stock").Bool(item.InStock())
	field(e, "variants").ArrStart()
	for _, v := range item.Variants {
		if !v.Active {
			continue
		}
		e.ObjStart()
		field(e, "code").Str(v.Code)
		money(e, "price", v.UnitPrice())
		field(e, "stock").Int(v.Stock)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeOffering(e *jx.Encoder, o *menu.Offering) {
	e.ObjStart()
	field(e, "service_day").Str(o.ServiceDay.Format(time.DateOnly))
	field(e, "weekday").Int(o.Weekday)
	field(e, "open").Bool(o.Open)
	field(e, "sold_out").Bool(o.SoldOut)
	timestamp(e, "next_open", o.NextOpen)
	timestamp(e, "next_cutoff", o.NextCutoff)
	field(e, "item")
	if o.Item == nil {
		e.Null()
	} else {
		encodeItem(e, o.Item)
	}
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	field(e, "id").Str(o.ID)
	field(e, "status").Str(string(o.Status))
	field(e, "guest").Bool(o.UserID == "")
	field(e, "customer_name").Str(o.Contact.Name)
	field(e, "phone").Str(o.Contact.Phone)
	field(e, "address").Str(o.Contact.Address)
	money(e, "subtotal", o.Subtotal)
	money(e, "discount_total", o.DiscountTotal)
	money(e, "total", o.Total)
	if o.PromoCode != "" {
		field(e, "promo_code").Str(o.PromoCode)
	}
	timestamp(e, "created_at", o.CreatedAt)
	if o.DeliveredAt != nil {
		timestamp(e, "delivered_at", *o.DeliveredAt)
	}
	field(e, "items").ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		field(e, "id").Str(it.ID)
		field(e, "item").Int64(it.ItemID)
		field(e, "variant").Str(it.Variant)
		field(e, "qty").Int(it.Quantity)
		money(e, "unit_price", it.UnitPrice)
		money(e, "subtotal", it.Subtotal())
		e.ObjEnd()
	}
	e.ArrEnd()
	if o.VoucherIDs != nil {
		field(e, "vouchers").ArrStart()
		for _, id := range o.VoucherIDs {
			e.Str(id)
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}

func encodeDailyStats(e *jx.Encoder, s *order.DailyStats) {
	e.ObjStart()
	field(e, "day").Str(s.Day.Format(time.DateOnly))
	field(e, "orders").Int(s.Orders)
	money(e, "sales", s.Sales)
	field(e, "pending").Int(s.Pending)
	field(e, "top_items").ArrStart()
	for _, it := range s.TopItems {
		e.ObjStart()
		field(e, "item").Int64(it.ItemID)
		field(e, "name").Str(it.Name)
		field(e, "qty").Int(it.Quantity)
		money(e, "revenue", it.Revenue)
		e.ObjEnd()
	}
	e.ArrEnd()
	field(e, "latest").ArrStart()
	for i := range s.Latest {
		encodeOrder(e, &s.Latest[i])
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeHistory(e *jx.Encoder, h *order.CustomerHistory) {
	e.ObjStart()
	field(e, "user_id").Str(h.UserID)
	field(e, "counts").ObjStart()
	for _, st := range []order.Status{order.StatusPending, order.StatusConfirmed, order.StatusDelivered, order.StatusCanceled} {
		field(e, string(st)).Int(h.Counts[st])
	}
	e.ObjEnd()
	money(e, "spent", h.Spent)
	field(e, "orders").ArrStart()
	for i := range h.Orders {
		encodeOrder(e, &h.Orders[i])
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeSummary(e *jx.Encoder, s *loyalty.Summary, now time.Time) {
	e.ObjStart()
	field(e, "user_id").Str(s.UserID)
	field(e, "available").Int(s.Available)
	field(e, "tiers").ArrStart()
	for _, t := range s.Tiers {
		e.ObjStart()
		money(e, "price", pricing.FromMinor(t.Tier))
		field(e, "count").Int(t.Count)
		field(e, "next_free_in").Int(t.Remaining)
		e.ObjEnd()
	}
	e.ArrEnd()
	field(e, "vouchers").ArrStart()
	for _, v := range s.Recent {
		e.ObjStart()
		field(e, "id").Str(v.ID)
		money(e, "value", v.Value())
		field(e, "status").Str(string(v.EffectiveStatus(now)))
		timestamp(e, "expires_at", v.ExpiresAt)
		if v.UsedOrderID != "" {
			field(e, "order_id").Str(v.UsedOrderID)
		}
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
