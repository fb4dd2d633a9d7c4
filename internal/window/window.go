// Package window resolves wall-clock time into the civil hour/day the
// dispatcher schedules against, and answers the season questions.
package window

import (
	"fmt"
	"time"
)

// Season describes the puzzle-release window: days StartDay..EndDay
// (inclusive) of Month, evaluated in Location.
type Season struct {
	Location *time.Location
	Month    time.Month
	StartDay int
	EndDay   int
	// Force makes both predicates true, for operational testing.
	Force bool
}

// DefaultSeason is December 1..25 in US Eastern time, when puzzles unlock.
func DefaultSeason() Season {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*60*60)
	}
	return Season{Location: loc, Month: time.December, StartDay: 1, EndDay: 25}
}

// Validate checks that the season range is usable.
func (s Season) Validate() error {
	if s.Month < time.January || s.Month > time.December {
		return fmt.Errorf("season month %d out of range", s.Month)
	}
	if s.StartDay < 1 || s.EndDay > 31 || s.StartDay > s.EndDay {
		return fmt.Errorf("season days %d..%d invalid", s.StartDay, s.EndDay)
	}
	return nil
}

// Overrides pin hour and/or day for testing and replay.
// Overriding the day also pins the month to the season month.
type Overrides struct {
	Hour *int
	Day  *int
}

// Window is one resolved tick.
type Window struct {
	Hour  int
	Day   int
	Month time.Month
	Year  int
}

func (w Window) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:00", w.Year, int(w.Month), w.Day, w.Hour)
}

// Resolve converts now into a Window in the season's location and applies ov.
func (s Season) Resolve(now time.Time, ov Overrides) Window {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	w := Window{Hour: local.Hour(), Day: local.Day(), Month: local.Month(), Year: local.Year()}
	if ov.Hour != nil {
		w.Hour = *ov.Hour
	}
	if ov.Day != nil {
		w.Day = *ov.Day
		w.Month = s.Month
	}
	return w
}

// ReleaseSeason reports whether puzzles are released on w's date.
func (s Season) ReleaseSeason(w Window) bool {
	if s.Force {
		return true
	}
	return w.Month == s.Month && w.Day >= s.StartDay && w.Day <= s.EndDay
}

// ExtendedSeason is the release season plus one day, so the standings after
// the last puzzle still get posted.
func (s Season) ExtendedSeason(w Window) bool {
	if s.Force {
		return true
	}
	return w.Month == s.Month && w.Day >= s.StartDay && w.Day <= s.EndDay+1
}
