package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"leaderbot/internal/delivery"
	"leaderbot/internal/format"
	"leaderbot/internal/leaderboard"
	"leaderbot/internal/storage"
	"leaderbot/internal/subscription"
	"leaderbot/internal/window"
	logx "leaderbot/pkg/logx"
)

// DefaultInterval is the pause between consecutive deliveries.
const DefaultInterval = 500 * time.Millisecond

// Boards resolves a source URL to a leaderboard; *leaderboard.Provider
// implements it.
type Boards interface {
	Get(ctx context.Context, sourceURL string) (*leaderboard.Leaderboard, error)
}

// Deliverer posts messages; *delivery.Client implements it.
type Deliverer interface {
	Deliver(ctx context.Context, dest subscription.Destination, endpoint string, msg format.Message) delivery.Outcome
	DeliverTest(ctx context.Context, dest subscription.Destination, endpoint string) delivery.Outcome
}

// Config holds the run-independent settings.
type Config struct {
	Season window.Season
	// Interval paces deliveries; 0 disables pacing.
	Interval time.Duration
}

// Deps bundles the collaborators. Audit may be nil.
type Deps struct {
	Subscriptions storage.Subscriptions
	Audit         storage.Audit
	Boards        Boards
	Deliverer     Deliverer
	Log           logx.Logger
	Now           func() time.Time
}

// Dispatcher executes runs. It holds no state between runs.
type Dispatcher struct {
	cfg  Config
	deps Deps
	log  logx.Logger
	now  func() time.Time
}

func New(cfg Config, deps Deps) (*Dispatcher, error) {
	if deps.Subscriptions == nil {
		return nil, errors.New("dispatch: subscriptions store is required")
	}
	if deps.Boards == nil {
		return nil, errors.New("dispatch: leaderboard provider is required")
	}
	if deps.Deliverer == nil {
		return nil, errors.New("dispatch: deliverer is required")
	}
	if err := cfg.Season.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	if cfg.Interval < 0 {
		cfg.Interval = 0
	}
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{cfg: cfg, deps: deps, log: log, now: now}, nil
}

// RunOptions are the per-run operational overrides.
type RunOptions struct {
	Hour   *int
	Day    *int
	Force  bool
	DryRun bool
	// ID and Endpoint restrict the run to one subscription.
	ID       int64
	Endpoint string
}

// run is the state of one pass through Run.
type run struct {
	d       *Dispatcher
	id      string
	opt     RunOptions
	w       window.Window
	limiter *rate.Limiter
	log     logx.Logger
	sum     *Summary
	// retired holds subscriptions deleted earlier in this run.
	retired map[int64]bool
}

// Run performs one full tick.
func (d *Dispatcher) Run(ctx context.Context, opt RunOptions) (Summary, error) {
	start := d.now()
	season := d.cfg.Season
	season.Force = season.Force || opt.Force
	w := season.Resolve(start, window.Overrides{Hour: opt.Hour, Day: opt.Day})

	r := &run{
		d:       d,
		id:      uuid.NewString(),
		opt:     opt,
		w:       w,
		limiter: newLimiter(d.cfg.Interval),
		retired: map[int64]bool{},
	}
	r.log = d.log.With(logx.String("run", r.id))
	r.sum = &Summary{
		RunID:      r.id,
		Window:     w,
		DryRun:     opt.DryRun,
		InRelease:  season.ReleaseSeason(w),
		InExtended: season.ExtendedSeason(w),
	}
	finish := func() Summary {
		r.sum.Duration = d.now().Sub(start)
		return *r.sum
	}

	r.log.Info("run start",
		logx.String("window", w.String()),
		logx.Bool("release_season", r.sum.InRelease),
		logx.Bool("extended_season", r.sum.InExtended),
		logx.Bool("dry_run", opt.DryRun))

	subs, err := r.load(ctx)
	if err != nil {
		return finish(), err
	}

	if r.sum.InRelease {
		if err := r.releasePass(ctx, subs); err != nil {
			return finish(), err
		}
	}

	var active []subscription.Subscription
	if r.sum.InExtended {
		for _, s := range subs {
			if s.WantsUpdateAt(w.Hour) && !r.retired[s.ID] {
				active = append(active, s)
			}
		}
	}
	if len(active) == 0 && r.sum.Release.Total() == 0 {
		sum := finish()
		r.log.Info("nothing due", logx.Int("subscriptions", len(subs)), logx.Duration("took", sum.Duration))
		return sum, nil
	}
	if err := r.updatePass(ctx, active); err != nil {
		return finish(), err
	}

	sum := finish()
	r.log.Info("run complete",
		logx.Int("release_ok", sum.Release.Success),
		logx.Int("release_errors", sum.Release.Errors),
		logx.Int("release_retired", sum.Release.Retired),
		logx.Int("update_ok", sum.Update.Success),
		logx.Int("update_errors", sum.Update.Errors),
		logx.Int("update_retired", sum.Update.Retired),
		logx.Duration("took", sum.Duration))
	return sum, nil
}

// load returns a value snapshot of the subscriptions this run may touch.
func (r *run) load(ctx context.Context) ([]subscription.Subscription, error) {
	store := r.d.deps.Subscriptions
	var subs []subscription.Subscription
	if r.opt.ID > 0 {
		s, ok, err := store.GetSubscription(ctx, r.opt.ID)
		if err != nil {
			return nil, fmt.Errorf("load subscription %d: %w", r.opt.ID, err)
		}
		if ok {
			subs = []subscription.Subscription{s}
		}
	} else {
		all, err := store.ListSubscriptions(ctx)
		if err != nil {
			return nil, fmt.Errorf("list subscriptions: %w", err)
		}
		subs = all
	}
	if ep := strings.TrimSpace(r.opt.Endpoint); ep != "" {
		kept := subs[:0:0]
		for _, s := range subs {
			if strings.TrimSpace(s.Endpoint) == ep {
				kept = append(kept, s)
			}
		}
		subs = kept
	}
	if (r.opt.ID > 0 || r.opt.Endpoint != "") && len(subs) == 0 {
		r.log.Warn("filter matched no subscription", logx.Int64("id", r.opt.ID), logx.URL("endpoint", r.opt.Endpoint))
	}
	return subs, nil
}

func (r *run) releasePass(ctx context.Context, subs []subscription.Subscription) error {
	for _, s := range subs {
		if !s.WantsReleaseAt(r.w.Hour) {
			continue
		}
		msg := format.PuzzleRelease(format.OptionsFor(s), r.w.Day, r.w.Year)
		if err := r.deliver(ctx, PassRelease, s, msg); err != nil {
			return err
		}
	}
	return nil
}

type group struct {
	source string
	subs   []subscription.Subscription
}

// groupBySource keeps first-seen order so runs are reproducible.
func groupBySource(subs []subscription.Subscription) []group {
	idx := map[string]int{}
	var out []group
	for _, s := range subs {
		key := strings.TrimSpace(s.SourceURL)
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, group{source: key})
		}
		out[i].subs = append(out[i].subs, s)
	}
	return out
}

func (r *run) updatePass(ctx context.Context, active []subscription.Subscription) error {
	for _, g := range groupBySource(active) {
		if err := ctx.Err(); err != nil {
			return err
		}
		lb, err := r.d.deps.Boards.Get(ctx, g.source)
		if err != nil {
			r.log.Warn("leaderboard unavailable", logx.Err(err), logx.Int("subscriptions", len(g.subs)))
			for _, s := range g.subs {
				r.finish(ctx, PassUpdate, s, "", delivery.Outcome{
					Status:  delivery.TransientFailure,
					Message: err.Error(),
					Err:     err,
				})
			}
			continue
		}
		now := r.d.now().In(r.d.location())
		for _, s := range g.subs {
			msg := format.LeaderboardUpdate(format.OptionsFor(s), lb, now)
			if err := r.deliver(ctx, PassUpdate, s, msg); err != nil {
				return err
			}
		}
	}
	return nil
}

// deliver paces, sends and records one message. It only fails when ctx ends.
func (r *run) deliver(ctx context.Context, pass Pass, s subscription.Subscription, msg format.Message) error {
	log := r.log.With(logx.String("pass", string(pass)), logx.Int64("sub", s.ID))
	if r.opt.DryRun {
		log.Info("dry run: would deliver",
			logx.String("kind", string(s.Kind())),
			logx.String("title", msg.Title),
			logx.String("text", msg.Text))
		r.sum.record(Record{Pass: pass, SubscriptionID: s.ID, Title: msg.Title, DryRun: true})
		return nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	out := r.d.deps.Deliverer.Deliver(ctx, s.Destination, s.Endpoint, msg)
	r.finish(ctx, pass, s, msg.Title, out)
	return nil
}

// finish applies the outcome: retire gone destinations, then record.
func (r *run) finish(ctx context.Context, pass Pass, s subscription.Subscription, title string, out delivery.Outcome) {
	rec := Record{Pass: pass, SubscriptionID: s.ID, Title: title, Outcome: out}
	kind, msg := storage.AuditSuccess, "delivered"
	if title != "" {
		msg = "delivered " + title
	}

	switch out.Status {
	case delivery.Success:
	case delivery.PermanentFailure:
		if err := r.d.deps.Subscriptions.DeleteSubscription(ctx, s.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			r.log.Error("retire subscription failed", logx.Int64("sub", s.ID), logx.Err(err))
			kind, msg = storage.AuditError, "destination gone; delete failed: "+err.Error()
		} else {
			rec.Retired = true
			r.retired[s.ID] = true
			r.log.Warn("subscription retired", logx.Int64("sub", s.ID), logx.Int("status", out.Code))
			kind, msg = storage.AuditDestinationRetired, fmt.Sprintf("%s (status %d)", delivery.MsgGone, out.Code)
		}
	default:
		kind, msg = storage.AuditError, out.Message
	}

	r.sum.record(rec)
	r.audit(ctx, pass, s.ID, kind, msg)
}

func (r *run) audit(ctx context.Context, pass Pass, subID int64, kind storage.AuditKind, msg string) {
	a := r.d.deps.Audit
	if a == nil || r.opt.DryRun {
		return
	}
	err := a.AppendAudit(ctx, storage.AuditEntry{
		At:             r.d.now(),
		SubscriptionID: subID,
		Kind:           kind,
		Message:        msg,
		RunID:          r.id,
		Pass:           string(pass),
	})
	if err != nil {
		r.log.Warn("audit append failed", logx.Err(err))
	}
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

func itoa(v int) string { return strconv.Itoa(v) }

func itoa64(v int64) string { return strconv.FormatInt(v, 10) }
