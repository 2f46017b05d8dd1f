package oodle

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DatelineLayout is the fixed pattern of the timestamp line that introduces
// every serialized message: zero-padded date and time, then a signed zone
// offset with no colon. The offset is part of the record; timestamps are not
// normalized to UTC.
const DatelineLayout = "2006-01-02 15:04:05-0700"

// FormatDateline renders t in the dateline pattern, appending " (index)"
// when printIndex is set. The document codec requests the index only at jump
// points.
func FormatDateline(t time.Time, index int, printIndex bool) string {
	if printIndex {
		return fmt.Sprintf("%s (%d)", t.Format(DatelineLayout), index)
	}
	return t.Format(DatelineLayout)
}

// ParseDateline splits an optional trailing " (N)" suffix off line and
// parses the remainder as a DatelineLayout timestamp. The bool reports
// whether an explicit index was present.
func ParseDateline(line string) (index int, hasIndex bool, t time.Time, err error) {
	rest := line
	if strings.HasSuffix(rest, ")") {
		cut := strings.LastIndex(rest, " ")
		if cut < 0 {
			return 0, false, time.Time{}, fmt.Errorf("%w: no room for index suffix in %q", ErrMalformedDateline, line)
		}
		suffix := rest[cut+1:]
		rest = rest[:cut]

		inner := strings.TrimSuffix(strings.TrimPrefix(suffix, "("), ")")
		n, convErr := strconv.Atoi(inner)
		if convErr != nil || n < 0 || !strings.HasPrefix(suffix, "(") {
			return 0, false, time.Time{}, fmt.Errorf("%w: bad index %q", ErrMalformedDateline, suffix)
		}
		index = n
		hasIndex = true
	}

	t, parseErr := time.Parse(DatelineLayout, rest)
	if parseErr != nil {
		return 0, false, time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDateline, rest)
	}
	return index, hasIndex, t, nil
}
