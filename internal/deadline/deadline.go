// Package deadline parses deadline strings and relative-offset tokens.
package deadline

import (
	"regexp"
	"strconv"
	"time"
)

const (
	layoutDateTime = "2006-01-02 15:04"
	layoutDate     = "2006-01-02"
)

var (
	dateTimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}$`)
	dateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	offsetRe   = regexp.MustCompile(`[+-]?\d+[wdhm]`)
	// exactOffsetRe matches a full offset token, used at the config boundary
	// to reject malformed preset definitions up front.
	exactOffsetRe = regexp.MustCompile(`^[+-]?\d+[wdhm]$`)
)

// Parse parses a deadline string in the given location. It accepts exactly
// two formats, "YYYY-MM-DD HH:mm" and "YYYY-MM-DD"; a bare date means
// midnight. Anything else, including inputs that merely resemble these
// formats, returns ok=false.
func Parse(input string, loc *time.Location) (time.Time, bool) {
	var layout string
	switch {
	case dateTimeRe.MatchString(input):
		layout = layoutDateTime
	case dateRe.MatchString(input):
		layout = layoutDate
	default:
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(layout, input, loc)
	if err != nil {
		// Right shape, impossible calendar value (e.g. month 13).
		return time.Time{}, false
	}
	return t, true
}

// ApplyOffset shifts base by the given offset token. The grammar is
// [sign]digits unit, where unit is one of w, d, h, m and a missing sign
// means positive. Only the first match within token is honored. A token
// with no match returns base unchanged: offsets are best-effort and a
// typo must not invalidate the whole reminder.
func ApplyOffset(base time.Time, token string) time.Time {
	m := offsetRe.FindString(token)
	if m == "" {
		return base
	}

	sign := 1
	if m[0] == '+' || m[0] == '-' {
		if m[0] == '-' {
			sign = -1
		}
		m = m[1:]
	}

	n, err := strconv.Atoi(m[:len(m)-1])
	if err != nil {
		return base
	}

	var unit time.Duration
	switch m[len(m)-1] {
	case 'w':
		unit = 7 * 24 * time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'h':
		unit = time.Hour
	case 'm':
		unit = time.Minute
	}

	return base.Add(time.Duration(sign*n) * unit)
}

// ValidOffset reports whether token is a well-formed offset in its entirety.
// Scans tolerate loose tokens (see ApplyOffset); configuration does not.
func ValidOffset(token string) bool {
	return exactOffsetRe.MatchString(token)
}
