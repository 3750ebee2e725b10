// Package caldate handles calendar dates (no time of day) as used for
// admission and discharge dates. A date is represented as a time.Time at
// midnight UTC so that subtraction yields whole days without DST drift.
package caldate

import (
	"fmt"
	"time"
)

const Layout = "2006-01-02"

// Clock yields the current instant and the facility time zone that decides
// which calendar day "today" is.
type Clock struct {
	Now func() time.Time
	Loc *time.Location
}

// SystemClock returns a Clock on time.Now in loc (UTC when nil).
func SystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Now: time.Now, Loc: loc}
}

// Fixed returns a Clock frozen at t, in t's location.
func Fixed(t time.Time) Clock {
	return Clock{Now: func() time.Time { return t }, Loc: t.Location()}
}

// Today returns the facility's current calendar date.
func (c Clock) Today() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Loc
	if loc == nil {
		loc = time.UTC
	}
	return Of(now().In(loc))
}

// Of truncates t to its calendar date, keeping the wall-clock day of t's location.
func Of(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Parse reads a YYYY-MM-DD date.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// DaysBetween returns the number of whole calendar days from a to b.
// It is negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(Of(b).Sub(Of(a)).Hours() / 24)
}

// AddDays shifts a date by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return Of(t).AddDate(0, 0, n)
}

// Format renders a date as YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(Layout)
}
