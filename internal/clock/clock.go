// Package clock maintains the device's virtual calendar time. In normal
// mode it advances by exactly the tick interval; in edit mode it is
// adjusted field by field from encoder deltas. It is deliberately a
// software clock: drift against wall time is accepted and there is no
// hardware RTC behind it.
package clock

import "time"

// Field identifies which part of the timestamp an encoder delta edits.
// The zero value selects nothing (normal mode); the order matches the
// cursor cycle on the display.
type Field int

const (
	FieldNone Field = iota
	FieldYear
	FieldMonth
	FieldDay
	FieldHour
	FieldMinute
	FieldSecond
)

var fieldNames = [...]string{"none", "year", "month", "day", "hour", "minute", "second"}

func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return "invalid"
	}
	return fieldNames[f]
}

// Calendar range accepted for adjustments. Results outside it are
// discarded, leaving the clock unchanged.
const (
	minYear = 1
	maxYear = 9999
)

// Clock is a virtual timestamp. It is owned exclusively by the clock
// task; other tasks see published copies.
type Clock struct {
	now time.Time
}

// New creates a clock starting at t, truncated to whole seconds since
// sub-second detail is never displayed.
func New(t time.Time) *Clock {
	return &Clock{now: t.Truncate(time.Second)}
}

// Now returns the current virtual time.
func (c *Clock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward by exactly d. Used in normal mode,
// once per tick.
func (c *Clock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// Adjust applies an encoder delta to the selected field and reports
// whether the clock changed. Years and months are approximated as 365
// and 30 days per unit. An adjustment that would land outside the
// supported calendar range is discarded.
func (c *Clock) Adjust(f Field, delta int) bool {
	if delta == 0 {
		return false
	}

	var unit time.Duration
	switch f {
	case FieldYear:
		unit = 365 * 24 * time.Hour
	case FieldMonth:
		unit = 30 * 24 * time.Hour
	case FieldDay:
		unit = 24 * time.Hour
	case FieldHour:
		unit = time.Hour
	case FieldMinute:
		unit = time.Minute
	case FieldSecond:
		unit = time.Second
	default:
		return false
	}

	next := c.now.Add(unit * time.Duration(delta))
	if next.Year() < minYear || next.Year() > maxYear {
		return false
	}
	c.now = next
	return true
}
