package subscription

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ReleaseDisabled is the sentinel for "no puzzle-release notification".
// It is distinct from 0, which means midnight.
const ReleaseDisabled = -1

// Subscription is one destination's notification configuration.
type Subscription struct {
	ID          int64
	Endpoint    string
	Destination Destination
	Hours       []int
	SourceURL   string
	JoinCode    string
	ReleaseHour int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Kind is a shortcut for s.Destination.Kind().
func (s Subscription) Kind() Kind {
	if s.Destination == nil {
		return ""
	}
	return s.Destination.Kind()
}

// ReleaseEnabled reports whether puzzle-release notifications are on.
func (s Subscription) ReleaseEnabled() bool {
	return s.ReleaseHour >= 0 && s.ReleaseHour <= 23
}

// WantsUpdateAt reports whether hour is one of the subscription's update hours.
func (s Subscription) WantsUpdateAt(hour int) bool {
	hs := NormalizeHours(s.Hours)
	i := sort.SearchInts(hs, hour)
	return i < len(hs) && hs[i] == hour
}

// WantsReleaseAt reports whether the puzzle-release hour equals hour.
func (s Subscription) WantsReleaseAt(hour int) bool {
	return s.ReleaseEnabled() && s.ReleaseHour == hour
}

// NormalizeHours returns a sorted, deduplicated copy of hours limited to [0,23].
func NormalizeHours(hours []int) []int {
	out := make([]int, 0, len(hours))
	seen := [24]bool{}
	for _, h := range hours {
		if h < 0 || h > 23 || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	sort.Ints(out)
	return out
}

// Validate checks the record invariants enforced at creation time.
func (s Subscription) Validate() error {
	var errs []error
	u, err := url.Parse(strings.TrimSpace(s.Endpoint))
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("endpoint: invalid URL %q", s.Endpoint))
	}
	if s.Destination == nil {
		errs = append(errs, errors.New("destination: required"))
	}
	if len(s.Hours) == 0 {
		errs = append(errs, errors.New("hours: at least one hour is required"))
	}
	seen := map[int]bool{}
	for _, h := range s.Hours {
		if h < 0 || h > 23 {
			errs = append(errs, fmt.Errorf("hours: %d out of range 0..23", h))
		}
		if seen[h] {
			errs = append(errs, fmt.Errorf("hours: %d listed twice", h))
		}
		seen[h] = true
	}
	if s.ReleaseHour != ReleaseDisabled && (s.ReleaseHour < 0 || s.ReleaseHour > 23) {
		errs = append(errs, fmt.Errorf("release_hour: %d out of range 0..23", s.ReleaseHour))
	}
	if strings.TrimSpace(s.SourceURL) == "" {
		errs = append(errs, errors.New("source_url: required"))
	}
	return errors.Join(errs...)
}

// Label is a short identifier for logs.
func (s Subscription) Label() string {
	return fmt.Sprintf("#%d(%s)", s.ID, s.Kind())
}
