package config

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "leaderbot/pkg/logx"
)

const (
	watchBackoffMin = 250 * time.Millisecond
	watchBackoffMax = 5 * time.Second
)

// relevantOps are the events that may change the file's content. Editors
// that save by rename show up as Create or Rename on the directory.
const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove | fsnotify.Chmod

// Watch reloads the file after changes settle, until ctx ends. The watcher
// is on the parent directory so atomic replaces are seen. A broken watcher
// is recreated with jittered backoff.
func (m *Manager) Watch(ctx context.Context) error {
	dir, file := filepath.Dir(m.path), filepath.Base(m.path)
	log := m.log.With(logx.String("dir", dir), logx.String("file", file))

	deb := &debouncer{wait: m.debounce, fn: m.reload}
	defer deb.stop()
	bo := newBackoff(watchBackoffMin, watchBackoffMax)

	for ctx.Err() == nil {
		w, err := openWatcher(dir)
		if err != nil {
			log.Warn("config watch init failed", logx.Err(err))
			if !bo.sleep(ctx) {
				return nil
			}
			continue
		}
		bo.reset()
		log.Debug("config watcher started")

		broken := m.consume(ctx, w, file, deb, log)
		_ = w.Close()
		if !broken {
			return nil
		}
		log.Warn("config watcher stopped; restarting")
		if !bo.sleep(ctx) {
			return nil
		}
	}
	return nil
}

func openWatcher(dir string) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

// consume feeds matching events to deb. It reports true when the watcher
// broke and false when ctx ended.
func (m *Manager) consume(ctx context.Context, w *fsnotify.Watcher, file string, deb *debouncer, log logx.Logger) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-w.Events:
			if !ok {
				return true
			}
			if ev.Op&relevantOps != 0 && strings.EqualFold(filepath.Base(ev.Name), file) {
				deb.trigger()
			}
		case err, ok := <-w.Errors:
			switch {
			case !ok || errors.Is(err, fsnotify.ErrClosed):
				return true
			case err == nil:
			case errors.Is(err, fsnotify.ErrEventOverflow):
				log.Warn("config watch overflow; forcing reload", logx.Err(err))
				deb.trigger()
			default:
				log.Warn("config watch error", logx.Err(err))
			}
		}
	}
}

// debouncer runs fn once wait has passed without another trigger.
type debouncer struct {
	wait time.Duration
	fn   func()

	mu    sync.Mutex
	timer *time.Timer
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, d.fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

// backoff doubles from min to max with up to 50% jitter.
type backoff struct {
	min, max, cur time.Duration
	rng           *rand.Rand
}

func newBackoff(lo, hi time.Duration) *backoff {
	return &backoff{min: lo, max: hi, cur: lo, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (b *backoff) reset() { b.cur = b.min }

// sleep waits one step; false means ctx ended first.
func (b *backoff) sleep(ctx context.Context) bool {
	wait := b.cur + time.Duration(b.rng.Int63n(int64(b.cur/2)+1))
	b.cur = min(b.cur*2, b.max)
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
