package promotion

// Reason is why a code was rejected. The zero value means accepted.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonEmptyCode         Reason = "EMPTY_CODE"
	ReasonInvalidOrExpired  Reason = "INVALID_OR_EXPIRED"
	ReasonLoginRequired     Reason = "LOGIN_REQUIRED"
	ReasonNotEligible       Reason = "NOT_ELIGIBLE"
	ReasonMinOrderNotMet    Reason = "MIN_ORDER_NOT_MET"
	ReasonPromoLimitReached Reason = "PROMO_LIMIT_REACHED"
	ReasonUserLimitReached  Reason = "USER_LIMIT_REACHED"
	ReasonNoDiscount        Reason = "NO_DISCOUNT"
)

var messages = map[Reason]string{
	ReasonNone:              "Code applied.",
	ReasonEmptyCode:         "Please enter a code.",
	ReasonInvalidOrExpired:  "This code is invalid or has expired.",
	ReasonLoginRequired:     "Please sign in to use this code.",
	ReasonNotEligible:       "You are not eligible for this code.",
	ReasonMinOrderNotMet:    "Your cart does not reach the minimum amount for this code.",
	ReasonPromoLimitReached: "This code has reached its usage limit.",
	ReasonUserLimitReached:  "You have already used this code the maximum number of times.",
	ReasonNoDiscount:        "This code gives no discount on your cart.",
}

// Message returns the customer-facing text for the reason.
func (r Reason) Message() string {
	if m, ok := messages[r]; ok {
		return m
	}
	return "This code was refused."
}
