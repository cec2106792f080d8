package wall

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the layout accepted for explicit date bounds.
const DateLayout = "2006-01-02"

// ErrInvalidDateRange is returned when the lower bound is after the upper bound.
var ErrInvalidDateRange = errors.New("invalid date range")

// DateRange is an inclusive window of calendar days. A zero bound leaves the
// window open in that direction, so the zero DateRange matches every post.
type DateRange struct {
	From time.Time
	To   time.Time
}

// NewDateRange normalizes both bounds to calendar days and validates them.
func NewDateRange(from, to time.Time) (DateRange, error) {
	r := DateRange{}
	if !from.IsZero() {
		r.From = Day(from)
	}
	if !to.IsZero() {
		r.To = Day(to)
	}
	if r.HasFrom() && r.HasTo() && r.From.After(r.To) {
		return DateRange{}, fmt.Errorf("%w: %s is after %s",
			ErrInvalidDateRange, r.From.Format(DateLayout), r.To.Format(DateLayout))
	}
	return r, nil
}

// LastDays returns the window covering the last n days up to and including now.
func LastDays(n int, now time.Time) (DateRange, error) {
	if n < 0 {
		return DateRange{}, fmt.Errorf("%w: negative number of days %d", ErrInvalidDateRange, n)
	}
	return NewDateRange(now.AddDate(0, 0, -n), time.Time{})
}

// ParseDateRange parses optional YYYY-MM-DD bounds in loc.
func ParseDateRange(from, to string, loc *time.Location) (DateRange, error) {
	var f, t time.Time
	var err error
	if from != "" {
		if f, err = time.ParseInLocation(DateLayout, from, loc); err != nil {
			return DateRange{}, fmt.Errorf("parse from date: %w", err)
		}
	}
	if to != "" {
		if t, err = time.ParseInLocation(DateLayout, to, loc); err != nil {
			return DateRange{}, fmt.Errorf("parse to date: %w", err)
		}
	}
	return NewDateRange(f, t)
}

func (r DateRange) HasFrom() bool { return !r.From.IsZero() }
func (r DateRange) HasTo() bool   { return !r.To.IsZero() }

// IsZero reports whether the range is unbounded on both ends.
func (r DateRange) IsZero() bool { return !r.HasFrom() && !r.HasTo() }

// Before reports whether t falls on a day strictly before the lower bound.
// Always false when the lower bound is unset.
func (r DateRange) Before(t time.Time) bool {
	return r.HasFrom() && Day(t).Before(r.From)
}

// After reports whether t falls on a day strictly after the upper bound.
func (r DateRange) After(t time.Time) bool {
	return r.HasTo() && Day(t).After(r.To)
}

// Contains reports whether t falls within the window.
func (r DateRange) Contains(t time.Time) bool {
	return !r.Before(t) && !r.After(t)
}

func (r DateRange) String() string {
	from, to := "-inf", "+inf"
	if r.HasFrom() {
		from = r.From.Format(DateLayout)
	}
	if r.HasTo() {
		to = r.To.Format(DateLayout)
	}
	return "[" + from + ", " + to + "]"
}

// Day truncates t to midnight of its calendar day in t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
