package recurrence

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// epochMillisThreshold separates epoch-second values from epoch-millisecond
// values. Anything at or above it is treated as milliseconds; the cutover
// corresponds to the year 5138 in seconds, far outside any plausible due date.
const epochMillisThreshold = 1e11

// dueDateLayouts are tried in order when parsing string input.
var dueDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDueDate normalizes heterogeneous date input into a UTC instant or nil.
//
// This is the single ingress point for dates arriving from request bodies and
// legacy rows. It accepts RFC 3339 strings, date-only strings, epoch seconds
// or milliseconds (as any numeric type or json.Number), and time.Time values.
// Unparseable input maps to nil rather than an error: the surrounding product
// treats "no date" as a legitimate state, so bad input degrades to that
// instead of failing the request.
func ParseDueDate(value any) *time.Time {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return normalize(v)
	case *time.Time:
		if v == nil {
			return nil
		}
		return normalize(*v)
	case string:
		return parseString(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return fromEpoch(f)
		}
		return parseString(v.String())
	case float64:
		return fromEpoch(v)
	case float32:
		return fromEpoch(float64(v))
	case int:
		return fromEpoch(float64(v))
	case int64:
		return fromEpoch(float64(v))
	default:
		return nil
	}
}

func parseString(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return normalize(t)
		}
	}
	// Stringly-typed epoch values show up in legacy exports.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f)
	}
	return nil
}

func fromEpoch(f float64) *time.Time {
	if f != f || f <= 0 { // NaN or nonsense
		return nil
	}
	var t time.Time
	if f >= epochMillisThreshold {
		t = time.UnixMilli(int64(f))
	} else {
		t = time.Unix(int64(f), 0)
	}
	return normalize(t)
}

func normalize(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}
