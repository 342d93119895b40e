package event

import (
	"errors"
	"time"
)

// ErrUnparseableTime is returned when a reported time matches none of the
// accepted layouts. Callers substitute the current time and warn.
var ErrUnparseableTime = errors.New("unparseable event time")

// Accepted layouts for the reported time, most common first. The legacy
// long form is what older collectors still emit.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"Monday, 2 January 2006 3:04:05 PM MST",
}

// ParseTime parses an event's reported time.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, ErrUnparseableTime
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrUnparseableTime
}
