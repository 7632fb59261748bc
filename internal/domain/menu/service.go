package menu

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/romeosyl08-png/resto/internal/domain/window"
)

// Offering is what the storefront shows for the current service day.
type Offering struct {
	// Item is nil when nothing is served on the service day.
	Item       *Item
	ServiceDay time.Time
	Weekday    int
	Open       bool
	SoldOut    bool
	NextOpen   time.Time
	NextCutoff time.Time
}

// Service answers menu questions for customers.
type Service struct {
	items  Repository
	policy window.Policy
}

// NewService creates a menu Service.
func NewService(items Repository, policy window.Policy) *Service {
	return &Service{items: items, policy: policy}
}

// Today picks the newest active item served on the service day of now.
func (s *Service) Today(ctx context.Context, now time.Time) (*Offering, error) {
	items, err := s.items.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list active items")
	}

	day := s.policy.ServiceDay(now)
	o := &Offering{
		ServiceDay: day,
		Weekday:    window.Weekday(day),
		Open:       s.policy.IsOpen(now),
		SoldOut:    true,
		NextOpen:   s.policy.NextOpen(now),
		NextCutoff: s.policy.NextCutoff(now),
	}

	for i := range items {
		if items[i].ServedOn(o.Weekday) {
			o.Item = &items[i]
			break
		}
	}
	if o.Item != nil {
		o.SoldOut = !o.Open || !o.Item.Active || !o.Item.InStock()
	}
	return o, nil
}
