/*
window.go - Named filter tokens to concrete time windows

PURPOSE:
  Dashboard queries select their time range with a named token ("last-week",
  "last-month", ...). This file resolves tokens into concrete [start, end]
  windows and produces the equal-length preceding window used for growth
  comparisons, plus the day/month/year bucket sequences behind trend charts.

TWO VOCABULARIES, NOT INTERCHANGEABLE:
  KPI/dues filters:   today, last-week, last-month, last-6-months, last-year
  Trend granularity:  last-7-days, last-month, last-year
  ("last-month" means a 30-day window in the first and 30 daily buckets in
  the second.)

CONVENTIONS:
  - All arithmetic is in UTC.
  - Windows are closed intervals: [midnight, 23:59:59.999].
  - Unrecognized KPI tokens fall back to last-week. This is load-bearing
    client behavior, not an error.

SEE ALSO:
  - metrics.go: consumes windows and buckets
*/
package ledger

import "time"

// =============================================================================
// WINDOW - Closed time interval
// =============================================================================

// Window is a closed interval [Start, End], End inclusive of its final
// millisecond.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Filter tokens for KPI and dues queries.
const (
	FilterToday     = "today"
	FilterLastWeek  = "last-week"
	FilterLastMonth = "last-month"
	FilterLast6M    = "last-6-months"
	FilterLastYear  = "last-year"
)

// Filter tokens for trend series granularity.
const (
	TrendLast7Days = "last-7-days"
	TrendLastMonth = "last-month"
	TrendLastYear  = "last-year"
)

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999_000_000, time.UTC)
}

func firstOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// RESOLUTION
// =============================================================================

// ResolveWindow converts a filter token into a concrete window relative to
// now. Unknown tokens resolve as last-week.
func ResolveWindow(token string, now time.Time) Window {
	now = now.UTC()
	end := endOfDay(now)

	switch token {
	case FilterToday:
		return Window{Start: startOfDay(now), End: end}
	case FilterLastMonth:
		// 30 days inclusive of today
		return Window{Start: startOfDay(now.AddDate(0, 0, -29)), End: end}
	case FilterLast6M:
		return Window{Start: firstOfMonth(now.AddDate(0, -5, 0)), End: end}
	case FilterLastYear:
		return Window{Start: firstOfMonth(now.AddDate(-1, 0, 0)), End: end}
	case FilterLastWeek:
		fallthrough
	default:
		// 7 days inclusive of today; also the fallback for unknown tokens
		return Window{Start: startOfDay(now.AddDate(0, 0, -6)), End: end}
	}
}

// ResolvePreviousWindow returns the contiguous equal-length window immediately
// before the current one: previous end is current start minus one millisecond,
// previous start follows the token's own rule shifted back one full period.
func ResolvePreviousWindow(token string, now time.Time) Window {
	current := ResolveWindow(token, now)
	prevEnd := current.Start.Add(-time.Millisecond)

	var prevStart time.Time
	switch token {
	case FilterToday:
		prevStart = startOfDay(prevEnd)
	case FilterLastMonth:
		prevStart = startOfDay(prevEnd.AddDate(0, 0, -29))
	case FilterLast6M:
		prevStart = firstOfMonth(prevEnd.AddDate(0, -5, 0))
	case FilterLastYear:
		prevStart = firstOfMonth(prevEnd.AddDate(-1, 0, 0))
	default:
		prevStart = startOfDay(prevEnd.AddDate(0, 0, -6))
	}
	return Window{Start: prevStart, End: prevEnd}
}

// WeekWindow returns the ISO week (Monday 00:00 through Sunday 23:59:59.999)
// containing t. Used by the aging buckets.
func WeekWindow(t time.Time) Window {
	t = t.UTC()
	weekday := int(t.Weekday())
	// time.Sunday is 0; shift so Monday starts the week
	diffToMonday := weekday - 1
	if weekday == 0 {
		diffToMonday = 6
	}
	monday := startOfDay(t.AddDate(0, 0, -diffToMonday))
	return Window{Start: monday, End: endOfDay(monday.AddDate(0, 0, 6))}
}

// PreviousWeekWindow returns the ISO week immediately before the one
// containing t.
func PreviousWeekWindow(t time.Time) Window {
	this := WeekWindow(t)
	prevEnd := this.Start.Add(-time.Millisecond)
	return Window{Start: startOfDay(prevEnd.AddDate(0, 0, -6)), End: prevEnd}
}

// =============================================================================
// BUCKETS - Ordered window sequences for trend series
// =============================================================================

// Bucket is a labeled window inside a trend series.
type Bucket struct {
	Label  string
	Window Window
}

// DayBuckets returns the last n calendar days including today, oldest first.
// Labels are short weekday names ("Mon") when weekdayLabels is set, ISO dates
// ("2006-01-02") otherwise.
func DayBuckets(now time.Time, n int, weekdayLabels bool) []Bucket {
	now = now.UTC()
	buckets := make([]Bucket, 0, n)
	for i := n - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		label := day.Format("2006-01-02")
		if weekdayLabels {
			label = day.Format("Mon")
		}
		buckets = append(buckets, Bucket{
			Label:  label,
			Window: Window{Start: startOfDay(day), End: endOfDay(day)},
		})
	}
	return buckets
}

// MonthBuckets returns the last n calendar months including the current one,
// oldest first, labeled with short month names ("Jan").
func MonthBuckets(now time.Time, n int) []Bucket {
	now = now.UTC()
	buckets := make([]Bucket, 0, n)
	for i := n - 1; i >= 0; i-- {
		first := firstOfMonth(now).AddDate(0, -i, 0)
		last := first.AddDate(0, 1, -1)
		buckets = append(buckets, Bucket{
			Label:  first.Format("Jan"),
			Window: Window{Start: first, End: endOfDay(last)},
		})
	}
	return buckets
}

// YearBuckets returns the last n calendar years including the current one,
// oldest first, labeled with the year number.
func YearBuckets(now time.Time, n int) []Bucket {
	now = now.UTC()
	buckets := make([]Bucket, 0, n)
	for i := n - 1; i >= 0; i-- {
		year := now.Year() - i
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(year, time.December, 31, 23, 59, 59, 999_000_000, time.UTC)
		buckets = append(buckets, Bucket{
			Label:  start.Format("2006"),
			Window: Window{Start: start, End: end},
		})
	}
	return buckets
}

// TrendBuckets maps a trend filter token to its bucket sequence: last-7-days
// gives 7 weekday-labeled days, last-month 30 date-labeled days, last-year 12
// month-labeled months. Unknown tokens fall back to last-7-days.
func TrendBuckets(token string, now time.Time) []Bucket {
	switch token {
	case TrendLastMonth:
		return DayBuckets(now, 30, false)
	case TrendLastYear:
		return MonthBuckets(now, 12)
	case TrendLast7Days:
		fallthrough
	default:
		return DayBuckets(now, 7, true)
	}
}
