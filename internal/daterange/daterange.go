package daterange

import (
	"fmt"
	"strings"
	"time"
)

// Window is a half-open time interval [Start, End) that a report covers.
// Both boundaries sit on local midnight in the resolver's timezone when the
// window was derived from a named range selector.
type Window struct {
	Start time.Time // inclusive
	End   time.Time // exclusive
}

// Contains reports whether t falls within the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// PeriodLabel renders the window as a human-readable report period.
// The end boundary is exclusive, so the label shows the last covered day.
func (w Window) PeriodLabel() string {
	lastDay := w.End.AddDate(0, 0, -1)
	return fmt.Sprintf("Period from %s to %s",
		w.Start.Format("02-01-2006"),
		lastDay.Format("02-01-2006"))
}

// InvalidRangeError indicates a range selector or explicit date pair that
// could not be resolved into a window. It is a user input error and is
// never retried.
type InvalidRangeError struct {
	Selector string
	Reason   string
}

func (e *InvalidRangeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid date range %q: %s", e.Selector, e.Reason)
	}
	return fmt.Sprintf("invalid date range %q", e.Selector)
}

// Resolver turns symbolic range selectors into concrete windows. All date
// arithmetic happens in a single fixed timezone so that window boundaries
// land on local midnight rather than UTC midnight.
type Resolver struct {
	loc *time.Location
}

// NewResolver creates a Resolver that computes boundaries in loc.
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc}
}

// Recognized weekday names for the day1-day2 selector form.
var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Resolve maps a selector to a window relative to ref.
//
// Supported selectors:
//   - "last-week": Monday through Sunday of the most recently completed
//     calendar week.
//   - "this-week": Monday of the current week through the coming Sunday.
//   - "day1-day2" (e.g. "friday-thursday"): the most recently completed
//     interval starting on day1 and ending with day2. If ref itself falls
//     on day2, the window ends with that day.
//
// Anything else returns an InvalidRangeError.
func (r *Resolver) Resolve(selector string, ref time.Time) (Window, error) {
	ref = ref.In(r.loc)
	normalized := strings.ToLower(strings.TrimSpace(selector))

	switch normalized {
	case "":
		return Window{}, &InvalidRangeError{Selector: selector, Reason: "selector is empty"}
	case "last-week":
		monday := r.startOfWeek(ref)
		return Window{Start: monday.AddDate(0, 0, -7), End: monday}, nil
	case "this-week":
		monday := r.startOfWeek(ref)
		return Window{Start: monday, End: monday.AddDate(0, 0, 7)}, nil
	}

	parts := strings.SplitN(normalized, "-", 2)
	if len(parts) != 2 {
		return Window{}, &InvalidRangeError{Selector: selector, Reason: "unrecognized selector"}
	}

	startDay, ok := weekdayNames[parts[0]]
	if !ok {
		return Window{}, &InvalidRangeError{Selector: selector, Reason: fmt.Sprintf("unknown weekday %q", parts[0])}
	}
	endDay, ok := weekdayNames[parts[1]]
	if !ok {
		return Window{}, &InvalidRangeError{Selector: selector, Reason: fmt.Sprintf("unknown weekday %q", parts[1])}
	}

	// Walk back to the most recent occurrence of the end weekday. When ref
	// falls on that weekday, the window ends with ref's own day.
	endDate := r.midnight(ref)
	for endDate.Weekday() != endDay {
		endDate = endDate.AddDate(0, 0, -1)
	}
	end := endDate.AddDate(0, 0, 1) // exclusive boundary closing the end day

	// The start day is the latest occurrence of the start weekday on or
	// before the end day.
	startDate := endDate
	for startDate.Weekday() != startDay {
		startDate = startDate.AddDate(0, 0, -1)
	}

	return Window{Start: startDate, End: end}, nil
}

// ResolveDates builds a window from an explicit YYYY-MM-DD date pair. The end
// date is inclusive at the day level, so the returned window's End boundary
// is the midnight following it.
func (r *Resolver) ResolveDates(fromDate, toDate string) (Window, error) {
	selector := fromDate + ".." + toDate

	from, err := time.ParseInLocation("2006-01-02", fromDate, r.loc)
	if err != nil {
		return Window{}, &InvalidRangeError{Selector: selector, Reason: "from date must be YYYY-MM-DD"}
	}
	to, err := time.ParseInLocation("2006-01-02", toDate, r.loc)
	if err != nil {
		return Window{}, &InvalidRangeError{Selector: selector, Reason: "to date must be YYYY-MM-DD"}
	}
	if to.Before(from) {
		return Window{}, &InvalidRangeError{Selector: selector, Reason: "end date cannot be before start date"}
	}

	return Window{Start: from, End: to.AddDate(0, 0, 1)}, nil
}

// startOfWeek returns midnight of the Monday beginning ref's week.
func (r *Resolver) startOfWeek(ref time.Time) time.Time {
	daysSinceMonday := (int(ref.Weekday()) + 6) % 7
	return r.midnight(ref).AddDate(0, 0, -daysSinceMonday)
}

// midnight truncates t to the start of its day in the resolver's timezone.
func (r *Resolver) midnight(t time.Time) time.Time {
	t = t.In(r.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, r.loc)
}
