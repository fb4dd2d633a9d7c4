package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "leaderbot/pkg/logx"
)

func TestParseSpec(t *testing.T) {
	t.Parallel()
	for _, spec := range []string{"0 * * * *", "@hourly", "*/5 * * * * *", "@every 10s"} {
		if _, err := ParseSpec(spec); err != nil {
			t.Errorf("ParseSpec(%q): %v", spec, err)
		}
	}
	for _, spec := range []string{"", "every hour", "61 * * * *"} {
		if _, err := ParseSpec(spec); err == nil {
			t.Errorf("ParseSpec(%q) should fail", spec)
		}
	}
}

func TestHourlyNextIsTopOfHour(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	sched, err := ParseSpec("0 * * * *")
	if err != nil {
		t.Fatal(err)
	}
	next := sched.Next(time.Date(2024, 12, 1, 17, 42, 0, 0, loc))
	if next.Hour() != 18 || next.Minute() != 0 {
		t.Fatalf("next = %v", next)
	}
}

func TestSchedulerFiresAndSkipsOverlap(t *testing.T) {
	t.Parallel()
	var runs atomic.Int32
	release := make(chan struct{})
	s, err := New(Config{Spec: "@every 1s"}, func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return nil
	}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Next().IsZero() {
		t.Fatal("Next should be set while running")
	}

	time.Sleep(2500 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Fatalf("runs while first pass blocked = %d, want 1", got)
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !s.Next().IsZero() {
		t.Fatal("Next should be zero after Stop")
	}
}

func TestRunNowAppliesTimeout(t *testing.T) {
	t.Parallel()
	var sawDeadline atomic.Bool
	s, err := New(Config{Spec: "@hourly", Timeout: time.Second}, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		sawDeadline.Store(ok)
		return errors.New("logged, not returned")
	}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if !s.RunNow(context.Background()) {
		t.Fatal("RunNow should run when idle")
	}
	if !sawDeadline.Load() {
		t.Fatal("job context should carry the pass timeout")
	}
}

func TestRunNowSkipsWhilePassRunning(t *testing.T) {
	t.Parallel()
	var runs atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	s, err := New(Config{Spec: "@hourly"}, func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			close(started)
			<-release
		}
		return nil
	}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan bool)
	go func() { done <- s.RunNow(context.Background()) }()
	<-started

	if s.RunNow(context.Background()) {
		t.Fatal("second RunNow should be skipped while the first is running")
	}
	s.mu.Lock()
	s.ctx = context.Background()
	s.mu.Unlock()
	s.fire()
	if got := runs.Load(); got != 1 {
		t.Fatalf("runs = %d, want 1", got)
	}

	close(release)
	if !<-done {
		t.Fatal("first RunNow should report it ran")
	}
	if !s.RunNow(context.Background()) || runs.Load() != 2 {
		t.Fatalf("RunNow after release: runs = %d, want 2", runs.Load())
	}
}
