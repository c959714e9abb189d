package slack

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// ParseTimestamp converts a Slack "ts" value, seconds since epoch with
// fractional precision (e.g. "1609459200.000500"), into a UTC time.
func ParseTimestamp(ts string) (time.Time, error) {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}

	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), nil
}

// ParseOptionalTimestamp is ParseTimestamp for fields that may be absent: an
// empty string yields nil without error.
func ParseOptionalTimestamp(ts string) (*time.Time, error) {
	if ts == "" {
		return nil, nil
	}

	t, err := ParseTimestamp(ts)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
