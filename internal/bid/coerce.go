package bid

import (
	"strconv"
	"strings"
	"time"
)

// asString reads a string field from a raw record, returning "" for missing
// or non-string values.
func asString(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// asInt64 coerces a raw field into a non-negative integer amount. Upstream
// data mixes numbers, numeric strings, and garbage; anything unparsable
// degrades to 0 rather than failing.
func asInt64(fields map[string]any, key string) int64 {
	v, ok := fields[key]
	if !ok || v == nil {
		return 0
	}
	n := coerceInt64(v)
	if n < 0 {
		return 0
	}
	return n
}

func coerceInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if s == "" {
			return 0
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
	}
	return 0
}

// bidDateFormats covers the datetime shapes the two stores emit: ISO with
// and without an offset, the G2B "2025-03-14 10:30" style, and date-only.
var bidDateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseBidDate parses a source datetime string. The boolean result is the
// only failure signal; callers fall back rather than erroring.
func parseBidDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, format := range bidDateFormats {
		if t, err := time.Parse(format, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseBidDateTime additionally accepts a space where ISO wants a 'T',
// matching how the document store records notice datetimes.
func parseBidDateTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, " ") && !strings.Contains(raw, "T") {
		if t, ok := parseBidDate(strings.Replace(raw, " ", "T", 1)); ok {
			return t, true
		}
	}
	return parseBidDate(raw)
}

// monthStart reconstructs the day-1 fallback date for a year/month pair.
func monthStart(year, month int) time.Time {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}

// formatDateOnly renders a date the way the stores expect it ("YYYY-MM-DD").
func formatDateOnly(t time.Time) string {
	return t.Format("2006-01-02")
}
