package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the wire format for reservation dates.
const DateFormat = "2006-01-02"

// AdvanceNotice is the minimum lead time for a same-day booking.
const AdvanceNotice = 2 * time.Hour

// DurationClass buckets a slot by its span.  Only two classes exist;
// each carries its own per-participant unit price.
type DurationClass string

const (
	ClassShort DurationClass = "SHORT"
	ClassLong  DurationClass = "LONG"
)

// longClassMinutes is the exact span that qualifies as the long class.
const longClassMinutes = 120

// PriceTable maps a duration class to its per-participant unit price
// in rupees.
type PriceTable struct {
	Short int64
	Long  int64
}

// ForClass returns the unit price for the given class.
func (p PriceTable) ForClass(c DurationClass) int64 {
	if c == ClassLong {
		return p.Long
	}
	return p.Short
}

// ParseWindow parses a textual slot window such as "7:00 AM - 8:00 AM"
// into start and end offsets in minutes after midnight.  Operators
// have historically entered windows with dots instead of colons
// ("6.00 PM") and in plain 24-hour form ("06:00 - 07:00"); all three
// shapes are accepted.
func ParseWindow(window string) (startMin, endMin int, err error) {
	parts := strings.SplitN(window, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("window %q: missing '-' separator", window)
	}
	startMin, err = parseClock(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("window %q: %w", window, err)
	}
	endMin, err = parseClock(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("window %q: %w", window, err)
	}
	return startMin, endMin, nil
}

// parseClock parses a single boundary like "7:00 AM", "6.00 pm" or
// "18:30" into minutes after midnight.
func parseClock(s string) (int, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	pm := strings.HasSuffix(s, "PM")
	am := strings.HasSuffix(s, "AM")
	if pm || am {
		s = strings.TrimSpace(s[:len(s)-2])
	}
	s = strings.ReplaceAll(s, ".", ":")
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		mm = "0"
	}
	h, err := strconv.Atoi(strings.TrimSpace(hh))
	if err != nil {
		return 0, fmt.Errorf("bad hour %q", hh)
	}
	m, err := strconv.Atoi(strings.TrimSpace(mm))
	if err != nil {
		return 0, fmt.Errorf("bad minute %q", mm)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	if pm && h < 12 {
		h += 12
	}
	if am && h == 12 {
		h = 0
	}
	return h*60 + m, nil
}

// ClassOf derives the duration class from parsed window offsets.
// Exactly two hours is the long class; everything else, including
// unparseable windows with a non-positive span, is short.
func ClassOf(startMin, endMin int) DurationClass {
	if endMin-startMin == longClassMinutes {
		return ClassLong
	}
	return ClassShort
}

// ClassOfWindow classifies a textual window directly.  Parse failures
// fall back to the short class.
func ClassOfWindow(window string) DurationClass {
	start, end, err := ParseWindow(window)
	if err != nil {
		return ClassShort
	}
	return ClassOf(start, end)
}

// SlotStartAt resolves the wall-clock start instant of a window on a
// given date in loc.  It returns an error when either the date or the
// window cannot be parsed.
func SlotStartAt(date, window string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateFormat, date, loc)
	if err != nil {
		return time.Time{}, err
	}
	start, _, err := ParseWindow(window)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(time.Duration(start) * time.Minute), nil
}

// IsBookable reports whether a slot window on a date is still open
// for new reservations at instant now.  Future dates are always
// bookable, past dates never are, and same-day bookings must start at
// least AdvanceNotice after now.
//
// A window that cannot be parsed fails open (treated as bookable):
// hiding valid slots behind a typo in the catalog is worse than
// letting one through, and the operator sees the raw text either way.
func IsBookable(window, date string, now time.Time) bool {
	day, err := time.ParseInLocation(DateFormat, date, now.Location())
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if day.After(today) {
		return true
	}
	if day.Before(today) {
		return false
	}
	start, _, err := ParseWindow(window)
	if err != nil {
		return true // fail open
	}
	slotStart := day.Add(time.Duration(start) * time.Minute)
	return !slotStart.Before(now.Add(AdvanceNotice))
}

// DateElapsed reports whether the whole calendar date lies in the
// past relative to now.  Unparseable dates are treated as elapsed so
// malformed drafts age out instead of lingering forever.
func DateElapsed(date string, now time.Time) bool {
	day, err := time.ParseInLocation(DateFormat, date, now.Location())
	if err != nil {
		return true
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return day.Before(today)
}
