package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are tried in order by ParseTimestamp. The space separated
// forms are what the single-file database wrote.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC3339, zone-less ISO forms, "YYYY-MM-DD HH:MM:SS"
// and bare dates. Zone-less values are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", s)
}

// JSONTime is used on request bodies so clients may send any layout that
// ParseTimestamp understands.
type JSONTime time.Time

func (jt *JSONTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("JSONTime.UnmarshalJSON: %w", err)
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return fmt.Errorf("JSONTime.UnmarshalJSON: %w", err)
	}
	*jt = JSONTime(t)
	return nil
}

// MarshalJSON always emits full RFC3339.
func (jt JSONTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(jt).Format(time.RFC3339))
}

// Time returns the wrapped value.
func (jt JSONTime) Time() time.Time { return time.Time(jt) }
