package window

import (
	"testing"
	"time"
)

func intp(v int) *int { return &v }

func testSeason(t *testing.T) Season {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return Season{Location: loc, Month: time.December, StartDay: 1, EndDay: 25}
}

func TestResolveUsesSeasonLocation(t *testing.T) {
	t.Parallel()
	s := testSeason(t)
	// 05:30 UTC on Dec 1 is 00:30 in New York.
	now := time.Date(2024, time.December, 1, 5, 30, 0, 0, time.UTC)
	w := s.Resolve(now, Overrides{})
	if w.Hour != 0 || w.Day != 1 || w.Month != time.December || w.Year != 2024 {
		t.Fatalf("Resolve = %+v", w)
	}
}

func TestResolveOverrides(t *testing.T) {
	t.Parallel()
	s := testSeason(t)
	now := time.Date(2024, time.July, 14, 15, 0, 0, 0, time.UTC)
	w := s.Resolve(now, Overrides{Hour: intp(18), Day: intp(3)})
	if w.Hour != 18 || w.Day != 3 {
		t.Fatalf("overrides not applied: %+v", w)
	}
	if w.Month != time.December {
		t.Fatalf("day override must pin the season month, got %v", w.Month)
	}
	if !s.ReleaseSeason(w) {
		t.Fatal("overridden day should be in season")
	}

	w = s.Resolve(now, Overrides{Hour: intp(0)})
	if w.Month != time.July {
		t.Fatalf("hour-only override must keep the real month, got %v", w.Month)
	}
}

func TestSeasonPredicates(t *testing.T) {
	t.Parallel()
	s := testSeason(t)
	tests := []struct {
		name     string
		w        Window
		release  bool
		extended bool
	}{
		{name: "first day", w: Window{Month: time.December, Day: 1}, release: true, extended: true},
		{name: "last day", w: Window{Month: time.December, Day: 25}, release: true, extended: true},
		{name: "day after", w: Window{Month: time.December, Day: 26}, release: false, extended: true},
		{name: "two days after", w: Window{Month: time.December, Day: 27}, release: false, extended: false},
		{name: "november", w: Window{Month: time.November, Day: 30}, release: false, extended: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := s.ReleaseSeason(tt.w); got != tt.release {
				t.Fatalf("ReleaseSeason = %v, want %v", got, tt.release)
			}
			if got := s.ExtendedSeason(tt.w); got != tt.extended {
				t.Fatalf("ExtendedSeason = %v, want %v", got, tt.extended)
			}
		})
	}

	forced := s
	forced.Force = true
	off := Window{Month: time.June, Day: 10}
	if !forced.ReleaseSeason(off) || !forced.ExtendedSeason(off) {
		t.Fatal("force must make both predicates true")
	}
}

func TestSeasonValidate(t *testing.T) {
	t.Parallel()
	if err := DefaultSeason().Validate(); err != nil {
		t.Fatalf("default season invalid: %v", err)
	}
	bad := DefaultSeason()
	bad.StartDay, bad.EndDay = 10, 5
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for inverted range")
	}
}
