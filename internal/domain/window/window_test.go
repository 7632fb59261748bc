package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 6, 15, hour, minute, 0, 0, time.UTC) // Sunday
}

func TestPolicy_IsOpen(t *testing.T) {
	p := Default(time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "midnight", now: at(0, 0), want: true},
		{name: "early morning", now: at(7, 45), want: true},
		{name: "one minute before cutoff", now: at(9, 29), want: true},
		{name: "at cutoff", now: at(9, 30), want: false},
		{name: "noon", now: at(12, 0), want: false},
		{name: "one minute before open", now: at(17, 59), want: false},
		{name: "at open", now: at(18, 0), want: true},
		{name: "late evening", now: at(23, 59), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsOpen(tt.now))
		})
	}
}

func TestPolicy_ServiceDay(t *testing.T) {
	p := Default(time.UTC)

	morning := p.ServiceDay(at(8, 0))
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), morning)

	evening := p.ServiceDay(at(18, 0))
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), evening)
	assert.Equal(t, 0, Weekday(evening), "Monday is weekday 0")
	assert.Equal(t, 6, Weekday(morning), "Sunday is weekday 6")
}

func TestPolicy_Location(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	p := Default(loc)

	// 16:30 UTC is 18:30 local: open, and serving tomorrow.
	now := time.Date(2025, 6, 15, 16, 30, 0, 0, time.UTC)
	assert.True(t, p.IsOpen(now))
	assert.Equal(t, 16, p.ServiceDay(now).Day())
}

func TestPolicy_NextOpenAndCutoff(t *testing.T) {
	p := Default(time.UTC)

	assert.Equal(t, at(18, 0), p.NextOpen(at(12, 0)))
	assert.Equal(t, at(18, 0).AddDate(0, 0, 1), p.NextOpen(at(19, 0)))

	assert.Equal(t, at(9, 30), p.NextCutoff(at(6, 0)))
	assert.Equal(t, at(9, 30).AddDate(0, 0, 1), p.NextCutoff(at(20, 0)))
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 9, Minute: 30}, c)
	assert.Equal(t, "09:30", c.String())

	_, err = ParseClock("25:00")
	require.Error(t, err)
}
