package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate is returned for date tokens that are not D.M. or D.M.YYYY
var ErrInvalidDate = errors.New("invalid date")

var validityPat = regexp.MustCompile(`(\d{1,2}\.\d{1,2}\.?\d{0,4})\s*[-–—]\s*(\d{1,2}\.\d{1,2}\.?\d{0,4})`)

// ParseGermanDate parses "03.12." or "03.12.2025" as local midnight.
// A missing year falls back to defaultYear (or the current year when zero);
// two digit years are read as 20YY.
func ParseGermanDate(text string, defaultYear int) (time.Time, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(text), ".")
	if trimmed == "" {
		return time.Time{}, ErrInvalidDate
	}

	parts := strings.Split(trimmed, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, text)
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, text)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, text)
	}

	year := defaultYear
	if year == 0 {
		year = time.Now().Year()
	}
	if len(parts) == 3 && parts[2] != "" {
		year, err = strconv.Atoi(parts[2])
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, text)
		}
		if year < 100 {
			year += 2000
		}
	}

	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, text)
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("%w: %q day out of range", ErrInvalidDate, text)
	}
	return t, nil
}

// ParseValidityRange extracts "D.M.[YYYY] - D.M.[YYYY]" from free text.
// Missing years default to the year of now; an end date before the start
// date is moved into the following year.
func ParseValidityRange(text string, now time.Time) (start, end time.Time, ok bool) {
	match := validityPat.FindStringSubmatch(text)
	if match == nil {
		return time.Time{}, time.Time{}, false
	}

	start, err := ParseGermanDate(match[1], now.Year())
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err = ParseGermanDate(match[2], now.Year())
	if err != nil {
		return time.Time{}, time.Time{}, false
	}

	if end.Before(start) {
		end = end.AddDate(1, 0, 0)
	}
	return start, end, true
}

// CalendarWeek returns the ISO-8601 week number of t
func CalendarWeek(t time.Time) int {
	_, week := t.ISOWeek()
	return week
}

// FormatCalendarWeek renders the week label used in flyer references, e.g. "KW49"
func FormatCalendarWeek(t time.Time) string {
	return fmt.Sprintf("KW%d", CalendarWeek(t))
}

// WeekRange returns Monday and Sunday (both at midnight) of the ISO week containing t
func WeekRange(t time.Time) (monday, sunday time.Time) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	monday = day.AddDate(0, 0, -offset)
	sunday = monday.AddDate(0, 0, 6)
	return monday, sunday
}

// IsDealActive reports whether now falls inside [start, end of end's day]
func IsDealActive(start, end, now time.Time) bool {
	return !now.Before(start) && now.Before(endOfDay(end))
}

// IsDealExpired reports whether the validity window ended before now
func IsDealExpired(end, now time.Time) bool {
	return !now.Before(endOfDay(end))
}

// IsDataStale reports whether lastUpdated is missing or older than threshold
func IsDataStale(lastUpdated *time.Time, threshold time.Duration, now time.Time) bool {
	if lastUpdated == nil {
		return true
	}
	return now.Sub(*lastUpdated) > threshold
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}
