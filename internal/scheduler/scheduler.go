// Package scheduler triggers the dispatcher on a cron cadence in serve mode.
//
// Each trigger runs one complete pass. Overlapping triggers are skipped
// while a pass is still running, and a panicking pass is recovered so the
// next tick still fires.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "leaderbot/pkg/logx"
)

// Job is one scheduled pass.
type Job func(ctx context.Context) error

// Config configures a Scheduler.
type Config struct {
	Spec     string // standard 5-field cron or a descriptor such as "@hourly"
	Location *time.Location
	// Timeout bounds one pass; 0 means no bound.
	Timeout time.Duration
}

// Scheduler wraps a cron instance with a single job.
type Scheduler struct {
	cfg Config
	job Job
	log logx.Logger

	// busy is held for the duration of a pass, whether cron or RunNow started it.
	busy sync.Mutex

	mu     sync.Mutex
	c      *cron.Cron
	entry  cron.EntryID
	ctx    context.Context
	cancel context.CancelFunc
}

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSpec validates a cron expression.
func ParseSpec(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("empty cron spec")
	}
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("cron spec %q: %w", spec, err)
	}
	return sched, nil
}

func New(cfg Config, job Job, log logx.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("scheduler: job is required")
	}
	if _, err := ParseSpec(cfg.Spec); err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{cfg: cfg, job: job, log: log}, nil
}

// Start begins triggering. Jobs receive a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	cl := cronLogger{log: s.log}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(s.cfg.Location),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id, err := c.AddFunc(strings.TrimSpace(s.cfg.Spec), s.fire)
	if err != nil {
		s.cancel()
		return err
	}
	s.c, s.entry = c, id
	c.Start()
	s.log.Info("scheduler started",
		logx.String("spec", s.cfg.Spec),
		logx.String("tz", s.cfg.Location.String()),
		logx.Time("next", s.nextLocked()))
	return nil
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	s.RunNow(ctx)
}

// RunNow executes the job synchronously, outside the cron cadence. It
// reports false without running when another pass is in progress.
func (s *Scheduler) RunNow(ctx context.Context) bool {
	if !s.busy.TryLock() {
		s.log.Info("pass skipped, previous pass still running")
		return false
	}
	defer s.busy.Unlock()
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.log.Error("scheduled pass failed", logx.Err(err), logx.Duration("took", time.Since(start)))
		return true
	}
	s.log.Debug("scheduled pass finished", logx.Duration("took", time.Since(start)))
	return true
}

// Next is the next trigger time, or zero when stopped.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked()
}

func (s *Scheduler) nextLocked() time.Time {
	if s.c == nil {
		return time.Time{}
	}
	return s.c.Entry(s.entry).Next
}

// Stop prevents new triggers and waits for a running job, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	done := c.Stop()
	defer cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
