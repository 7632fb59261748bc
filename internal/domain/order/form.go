package order

import (
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

// Delivery zones offered at checkout.
const (
	ZoneCampus = "IMERTEL"
	// ZoneOther is delivered by a courier service and needs an exact address.
	ZoneOther = "other"
)

// CheckoutForm is the contact data entered at checkout.
type CheckoutForm struct {
	Name          string `json:"customer_name" validate:"required,max=150"`
	Phone         string `json:"phone" validate:"required,numeric,max=20"`
	Zone          string `json:"address" validate:"required,oneof=IMERTEL other"`
	AddressDetail string `json:"address_detail" validate:"required_if=Zone other,max=255"`
}

func (f CheckoutForm) trimmed() CheckoutForm {
	return CheckoutForm{
		Name:          strings.TrimSpace(f.Name),
		Phone:         strings.TrimSpace(f.Phone),
		Zone:          strings.TrimSpace(f.Zone),
		AddressDetail: strings.TrimSpace(f.AddressDetail),
	}
}

// Contact converts a validated form into the order snapshot.
func (f CheckoutForm) Contact() Contact {
	addr := f.Zone
	if f.AddressDetail != "" {
		addr += ": " + f.AddressDetail
	}
	return Contact{Name: f.Name, Phone: f.Phone, Address: addr}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateForm trims f and checks it, returning *ValidationError on bad input.
func validateForm(v *validator.Validate, f CheckoutForm) (CheckoutForm, error) {
	f = f.trimmed()
	err := v.Struct(f)
	if err == nil {
		return f, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return f, errors.Wrap(err, "validate form")
	}
	ve := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		ve.Fields[fe.Field()] = fe.Tag()
	}
	return f, ve
}
