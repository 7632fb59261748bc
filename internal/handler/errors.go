package handler

import (
	"net/http"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/romeosyl08-png/resto/internal/domain/cart"
	"github.com/romeosyl08-png/resto/internal/domain/menu"
	"github.com/romeosyl08-png/resto/internal/domain/order"
)

// writeError writes {"error": code, "message": msg} plus optional fields.
func writeError(w http.ResponseWriter, status int, code, msg string, extra ...func(e *jx.Encoder)) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		field(e, "error").Str(code)
		field(e, "message").Str(msg)
		for _, fn := range extra {
			fn(e)
		}
		e.ObjEnd()
	})
}

var purgeMessages = map[cart.PurgeReason]string{
	cart.PurgeClosed:   "Ordering is closed; your cart was emptied.",
	cart.PurgeStock:    "Some items are out of stock and were removed from your cart.",
	cart.PurgeInactive: "Some items are no longer available and were removed from your cart.",
}

func encodeNotices(e *jx.Encoder, p cart.PurgeResult) {
	field(e, "notices").ArrStart()
	for _, r := range p.Reasons {
		e.Str(purgeMessages[r])
	}
	e.ArrEnd()
}

// fail maps domain errors to responses. Unknown errors are logged and
// reported as 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		stale      *order.StaleCartError
		stock      *order.StockError
		invalid    *order.ValidationError
		transition *order.TransitionError
	)
	switch {
	case errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, order.ErrOrderingClosed):
		writeError(w, http.StatusConflict, "ordering_closed", "Ordering is closed right now.")
	case errors.As(err, &stale):
		writeError(w, http.StatusConflict, "cart_changed", "Your cart changed, please review it.",
			func(e *jx.Encoder) { encodeNotices(e, stale.Purge) })
	case errors.As(err, &stock):
		writeError(w, http.StatusConflict, "out_of_stock", "An item sold out while you were checking out.",
			func(e *jx.Encoder) {
				field(e, "item").Int64(stock.ItemID)
				field(e, "variant").Str(stock.Variant)
			})
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "empty_cart", "Your cart is empty.")
	case errors.As(err, &invalid):
		writeError(w, http.StatusUnprocessableEntity, "invalid_form", "Please correct the highlighted fields.",
			func(e *jx.Encoder) {
				field(e, "fields").ObjStart()
				names := make([]string, 0, len(invalid.Fields))
				for name := range invalid.Fields {
					names = append(names, name)
				}
				slices.Sort(names)
				for _, name := range names {
					field(e, name).Str(invalid.Fields[name])
				}
				e.ObjEnd()
			})
	case errors.As(err, &transition):
		writeError(w, http.StatusConflict, "invalid_transition", transition.Error())
	case errors.Is(err, order.ErrNotEditable):
		writeError(w, http.StatusConflict, "not_editable", "This order can no longer be edited.")
	case errors.Is(err, order.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, cart.ErrUnavailable):
		writeError(w, http.StatusConflict, "unavailable", "This item is not available.")
	case errors.Is(err, order.ErrNotFound), errors.Is(err, order.ErrItemNotFound), errors.Is(err, menu.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Not found.")
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal", "Internal server error.")
	}
}
