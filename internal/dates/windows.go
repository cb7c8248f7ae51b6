// Package dates holds the calendar arithmetic the harvest workflows run on:
// inclusive day windows and day enumeration.
package dates

import (
	"time"

	"github.com/jinzhu/now"
)

const oneDay = 24 * time.Hour

const Layout = "2006-01-02"

// Window represents a span of time, from and until inclusive.
type Window struct {
	From  time.Time
	Until time.Time
}

// Days enumerates every calendar day the window touches, ascending, each
// normalized to the beginning of its day. An inverted window yields nil,
// not an error.
func (w Window) Days() []time.Time {
	if w.From.After(w.Until) {
		return nil
	}
	var days []time.Time
	cur := now.New(w.From).BeginningOfDay()
	end := now.New(w.Until).BeginningOfDay()
	for !cur.After(end) {
		days = append(days, cur)
		cur = now.New(cur.Add(oneDay)).BeginningOfDay()
	}
	return days
}

// Today returns the current day at midnight.
func Today() time.Time {
	return now.BeginningOfDay()
}

// Day normalizes t to the beginning of its day.
func Day(t time.Time) time.Time {
	return now.New(t).BeginningOfDay()
}
