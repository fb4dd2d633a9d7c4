package subscription

import (
	"reflect"
	"testing"
)

func TestNormalizeHours(t *testing.T) {
	t.Parallel()
	got := NormalizeHours([]int{18, 6, 18, 0, 25, -1, 6})
	want := []int{0, 6, 18}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeHours = %v, want %v", got, want)
	}
}

func TestWantsUpdateAtIgnoresStorageOrder(t *testing.T) {
	t.Parallel()
	a := Subscription{Hours: []int{23, 5, 12}}
	b := Subscription{Hours: []int{5, 12, 23, 12}}
	for h := 0; h < 24; h++ {
		if a.WantsUpdateAt(h) != b.WantsUpdateAt(h) {
			t.Fatalf("hour %d: mismatch between orderings", h)
		}
	}
	if !a.WantsUpdateAt(23) || a.WantsUpdateAt(6) {
		t.Fatalf("unexpected matches for %v", a.Hours)
	}
}

func TestReleaseSentinelIsNotMidnight(t *testing.T) {
	t.Parallel()
	off := Subscription{ReleaseHour: ReleaseDisabled}
	midnight := Subscription{ReleaseHour: 0}
	if off.WantsReleaseAt(0) {
		t.Fatal("disabled release hour must not match midnight")
	}
	if !midnight.WantsReleaseAt(0) {
		t.Fatal("release hour 0 should match midnight")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	ok := Subscription{
		Endpoint:    "https://discord.com/api/webhooks/1/abc",
		Destination: Discord{MentionID: "42"},
		Hours:       []int{9, 18},
		SourceURL:   "https://adventofcode.com/2024/leaderboard/private/view/1?view_key=k",
		ReleaseHour: ReleaseDisabled,
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	tests := []struct {
		name string
		mut  func(*Subscription)
	}{
		{name: "no hours", mut: func(s *Subscription) { s.Hours = nil }},
		{name: "duplicate hour", mut: func(s *Subscription) { s.Hours = []int{9, 9} }},
		{name: "hour out of range", mut: func(s *Subscription) { s.Hours = []int{24} }},
		{name: "release out of range", mut: func(s *Subscription) { s.ReleaseHour = 30 }},
		{name: "bad endpoint", mut: func(s *Subscription) { s.Endpoint = "not a url" }},
		{name: "no destination", mut: func(s *Subscription) { s.Destination = nil }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			s := ok
			s.Hours = append([]int(nil), ok.Hours...)
			tt.mut(&s)
			if err := s.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestPermanentStatus(t *testing.T) {
	t.Parallel()
	if !(Discord{}).PermanentStatus(404) || (Discord{}).PermanentStatus(410) {
		t.Fatal("discord: only 404 is permanent")
	}
	if !(Slack{}).PermanentStatus(404) || !(Slack{}).PermanentStatus(410) {
		t.Fatal("slack: 404 and 410 are permanent")
	}
	if (Slack{}).PermanentStatus(500) {
		t.Fatal("slack: 500 is not permanent")
	}
}

func TestDestinationRoundTrip(t *testing.T) {
	t.Parallel()
	for _, d := range []Destination{Discord{MentionID: "99"}, Slack{PingChannel: true}} {
		k, m, p := Flatten(d)
		got, err := NewDestination(k, m, p)
		if err != nil {
			t.Fatalf("NewDestination: %v", err)
		}
		if got != d {
			t.Fatalf("round trip = %#v, want %#v", got, d)
		}
	}
	if _, err := ParseKind("teams"); err == nil {
		t.Fatal("expected unknown kind error")
	}
}
