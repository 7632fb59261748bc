// Package window decides when ordering is open and which service day a
// moment belongs to.
//
// Ordering runs overnight: it opens in the evening for the next day's menu
// and closes mid-morning. Everything is evaluated in the policy's location.
package window

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses an "HH:MM" string.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, errors.Wrapf(err, "parse clock %q", s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) minutes() int { return c.Hour*60 + c.Minute }

// Default opening and cutoff times.
var (
	DefaultOpen   = Clock{Hour: 18, Minute: 0}
	DefaultCutoff = Clock{Hour: 9, Minute: 30}
)

// Policy is the ordering time window.
type Policy struct {
	Open     Clock
	Cutoff   Clock
	Location *time.Location
}

// NewPolicy returns a Policy for the given times. A nil location means UTC.
func NewPolicy(open, cutoff Clock, loc *time.Location) Policy {
	if loc == nil {
		loc = time.UTC
	}
	return Policy{Open: open, Cutoff: cutoff, Location: loc}
}

// Default returns the 18:00 to 09:30 policy in the given location.
func Default(loc *time.Location) Policy {
	return NewPolicy(DefaultOpen, DefaultCutoff, loc)
}

func (p Policy) local(t time.Time) time.Time {
	if p.Location == nil {
		return t.UTC()
	}
	return t.In(p.Location)
}

func clockOf(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// IsOpen reports whether ordering is open at t: from Open until midnight and
// from midnight until Cutoff.
func (p Policy) IsOpen(t time.Time) bool {
	m := clockOf(p.local(t))
	return m >= p.Open.minutes() || m < p.Cutoff.minutes()
}

func (p Policy) afterOpen(t time.Time) bool {
	return clockOf(t) >= p.Open.minutes()
}

// ServiceDay returns midnight of the calendar day whose menu is served for
// orders placed at t. At or after Open it is tomorrow, otherwise today.
func (p Policy) ServiceDay(t time.Time) time.Time {
	lt := p.local(t)
	day := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, lt.Location())
	if p.afterOpen(lt) {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// Weekday returns the Monday-based weekday index (0=Monday .. 6=Sunday) of day.
func Weekday(day time.Time) int {
	return (int(day.Weekday()) + 6) % 7
}

func (p Policy) at(day time.Time, c Clock) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

// NextOpen returns the next moment ordering opens, strictly after the last
// opening at or before t.
func (p Policy) NextOpen(t time.Time) time.Time {
	lt := p.local(t)
	if p.afterOpen(lt) {
		return p.at(lt.AddDate(0, 0, 1), p.Open)
	}
	return p.at(lt, p.Open)
}

// NextCutoff returns the cutoff of the service day that orders placed at t
// belong to.
func (p Policy) NextCutoff(t time.Time) time.Time {
	return p.at(p.ServiceDay(t), p.Cutoff)
}
