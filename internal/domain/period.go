package domain

import "time"

// Period is the recurrence of a budget window.
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodYearly:
		return true
	}
	return false
}

// Window is a half-open date range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Key is the period identifier used in notification dedup keys. Two
// evaluations of the same budget period always produce the same key.
func (w Window) Key() string {
	return w.Start.Format("2006-01-02")
}

// advance returns the window start shifted by n periods from the anchor.
// Month and year arithmetic goes through AddDate so a budget anchored on
// the 31st behaves like the standard library does, not like a fixed
// 30-day step.
func advance(anchor time.Time, p Period, n int) time.Time {
	switch p {
	case PeriodWeekly:
		return anchor.AddDate(0, 0, 7*n)
	case PeriodMonthly:
		return anchor.AddDate(0, n, 0)
	default:
		return anchor.AddDate(n, 0, 0)
	}
}

// CurrentWindow returns the budget period containing now, anchored at the
// budget's start date. Before the budget starts it returns the first
// window. A bounded budget's final window is clamped at its end date;
// past the end date the (possibly zero-duration) last window is returned
// so that DaysRemaining computes to 0.
func (b Budget) CurrentWindow(now time.Time) Window {
	n := 0
	for {
		start := advance(b.StartDate, b.Period, n)
		end := advance(b.StartDate, b.Period, n+1)
		w := Window{Start: start, End: end}
		if b.EndDate != nil && !b.EndDate.After(w.End) {
			if b.EndDate.Before(w.Start) {
				return Window{Start: *b.EndDate, End: *b.EndDate}
			}
			w.End = *b.EndDate
			return w
		}
		if now.Before(w.End) || n > 10_000 {
			return w
		}
		n++
	}
}

// PreviousWindow returns the period of identical recurrence immediately
// before w.
func (b Budget) PreviousWindow(w Window) Window {
	return Window{
		Start: advance(w.Start, b.Period, -1),
		End:   w.Start,
	}
}

// DaysBetween returns whole days from a to b, negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
