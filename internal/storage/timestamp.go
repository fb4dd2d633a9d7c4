package storage

import (
	"encoding/json"
	"time"
)

// timestamp is stored as RFC3339Nano in UTC.
type timestamp time.Time

func (t timestamp) Time() time.Time { return time.Time(t) }

func (t timestamp) String() string { return time.Time(t).UTC().Format(time.RFC3339Nano) }

func (t timestamp) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := parseTimestamp(s)
	if err != nil {
		return err
	}
	*t = timestamp(parsed)
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
