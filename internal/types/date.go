package types

import (
	"time"
)

// StartOfDay truncates t to midnight UTC. Billing dates carry no time component.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current billing date
func Today(now func() time.Time) time.Time {
	if now == nil {
		now = time.Now
	}
	return StartOfDay(now())
}

// DaysBetween returns the number of whole days from `from` to `to`.
// The result is negative when `to` is before `from`.
func DaysBetween(from, to time.Time) int {
	return int(StartOfDay(to).Sub(StartOfDay(from)).Hours() / 24)
}

// AddDays moves a billing date by n days
func AddDays(t time.Time, n int) time.Time {
	return StartOfDay(t).AddDate(0, 0, n)
}

// MaxDate returns the later of two dates
func MaxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// IsLastDayOfMonth reports whether t falls on the final day of its month
func IsLastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Month() != t.Month()
}

// AddClampedMonths adds months to a billing date without overflowing into the
// following month: Jan 31 + 1 month is Feb 28 (or 29). A date that already sits
// on the last day of its month stays on the last day, so Feb 28 + 1 month is
// Mar 31. This keeps consecutive single-period extensions equal to one
// multi-period extension.
func AddClampedMonths(t time.Time, months int) time.Time {
	t = StartOfDay(t)
	y, m, d := t.Date()

	newY := y
	newM := int(m) + months
	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	// day 0 of the next month is the last day of this one
	lastDay := time.Date(newY, time.Month(newM)+1, 0, 0, 0, 0, 0, time.UTC).Day()

	newD := d
	if newD > lastDay || IsLastDayOfMonth(t) {
		newD = lastDay
	}

	return time.Date(newY, time.Month(newM), newD, 0, 0, 0, 0, time.UTC)
}
