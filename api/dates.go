package api

import (
	"fmt"
	"time"
)

// parseDate accepts a calendar date (2006-01-02), taken in loc, or a full RFC 3339
// timestamp. An empty string yields the zero time.
func parseDate(field, value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, value, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD or RFC 3339, got %q", field, value)
	}
	return t, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}
