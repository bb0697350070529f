package hsi

import "time"

// ParseTimestamp parses an RFC3339 date-time string. A trailing literal 'Z'
// is equivalent to a '+00:00' offset; both forms yield the identical instant.
func ParseTimestamp(s string) (time.Time, error) {
	// Accept RFC3339Nano (trailing zeros optional)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2, nil
		}
		return time.Time{}, err
	}
	return t, nil
}

// FormatTimestamp normalizes to UTC and formats using RFC3339Nano (Go trims
// trailing zeros).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
