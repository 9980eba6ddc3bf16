// Package dates normalizes the heterogeneous date strings found on news
// sites into timestamps.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/itchyny/timefmt-go"
)

// isoLayouts are tried by ParseISO, most specific first.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var urlDatePattern = regexp.MustCompile(`/(\d{4})/(\d{2})/(\d{2})/`)

// Parse tries each format in order against raw and returns the first
// successful parse. ok is false when nothing matches; an unparseable date is
// missing data, not an error.
//
// A format containing '%' is a strftime pattern ("%Y-%m-%d"). The names
// "iso8601" and "rfc3339" select ParseISO. Anything else is a Go reference
// layout ("2006-01-02"). Zoneless results are in UTC.
func Parse(raw string, formats []string) (t time.Time, ok bool) {
	s := normalize(raw)
	if s == "" {
		return time.Time{}, false
	}

	for _, format := range formats {
		if t, ok := parseOne(s, format); ok {
			return t, true
		}
	}

	return time.Time{}, false
}

func parseOne(s, format string) (time.Time, bool) {
	switch {
	case format == "":
		return time.Time{}, false
	case strings.EqualFold(format, "iso8601"), strings.EqualFold(format, "rfc3339"):
		return ParseISO(s)
	case strings.Contains(format, "%"):
		t, err := timefmt.ParseInLocation(s, format, time.UTC)
		return t, err == nil
	default:
		t, err := time.ParseInLocation(format, s, time.UTC)
		return t, err == nil
	}
}

// ParseISO parses the ISO-8601 variants found in meta tags and datetime
// attributes, with or without a zone.
func ParseISO(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FromURL extracts a /YYYY/MM/DD/ date from an article URL path.
func FromURL(rawURL string) (time.Time, bool) {
	m := urlDatePattern.FindStringSubmatch(rawURL)
	if m == nil {
		return time.Time{}, false
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range values; reject them instead.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// InRange reports whether start <= ts <= now. Timestamps after now (clock
// skew, scheduled posts) are out of range.
func InRange(ts, start, now time.Time) bool {
	return !ts.Before(start) && !ts.After(now)
}

// normalize collapses runs of whitespace, including non-breaking spaces.
func normalize(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
