package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Century pivots for two-digit years: a year below the pivot is 20xx,
// otherwise 19xx.
//
// TODO: confirm with product which pivot is intended and merge the two.
const (
	MatchCenturyPivot = 50
	LineCenturyPivot  = 70
)

var (
	isoDate     = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ](\d{1,2}):(\d{2})(?::(\d{2}))?)?`)
	dayFirst    = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4})(?:[ T](\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)
	dayFirstYY  = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2})$`)
	compactDate = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
)

var fallbackLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	"2006/01/02",
	"2006/01/02 15:04:05",
	"02 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Mon Jan 2 2006",
}

// ParseMatchDate parses a line date for scoring and candidate lookup.
func ParseMatchDate(s string) (time.Time, bool) {
	return ParseDate(s, MatchCenturyPivot)
}

// ParseLineDate parses a line date for persistence on import lines.
func ParseLineDate(s string) (time.Time, bool) {
	return ParseDate(s, LineCenturyPivot)
}

// ParseDate parses the date formats found on supplier invoices:
// yyyy-mm-dd with optional time, dd/mm/yyyy, dd-mm-yyyy, dd.mm.yyyy,
// the same with two-digit years, yyyymmdd, and a handful of generic layouts.
// Results are in UTC.
func ParseDate(s string, pivot int) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if m := isoDate.FindStringSubmatch(s); m != nil {
		return build(m[1], m[2], m[3], m[4], m[5], m[6])
	}
	if m := dayFirst.FindStringSubmatch(s); m != nil {
		return build(m[3], m[2], m[1], m[4], m[5], m[6])
	}
	if m := dayFirstYY.FindStringSubmatch(s); m != nil {
		yy, _ := strconv.Atoi(m[3])
		year := 1900 + yy
		if yy < pivot {
			year = 2000 + yy
		}
		return build(strconv.Itoa(year), m[2], m[1], "", "", "")
	}
	if m := compactDate.FindStringSubmatch(s); m != nil {
		return build(m[1], m[2], m[3], "", "", "")
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func build(year, month, day, hour, minute, second string) (time.Time, bool) {
	y, _ := strconv.Atoi(year)
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	h, _ := strconv.Atoi(hour)
	mi, _ := strconv.Atoi(minute)
	sec, _ := strconv.Atoi(second)

	if mo < 1 || mo > 12 || d < 1 || h > 23 || mi > 59 || sec > 59 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, h, mi, sec, 0, time.UTC)
	// reject dates time.Date normalized, such as 31/02
	if t.Day() != d || int(t.Month()) != mo {
		return time.Time{}, false
	}
	return t, true
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the absolute number of calendar days between a and b.
func DaysBetween(a, b time.Time) int {
	hours := Day(b).Sub(Day(a)).Hours()
	return int(math.Abs(math.Round(hours / 24)))
}
