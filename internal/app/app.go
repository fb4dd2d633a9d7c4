// Package app wires configuration, logging, storage and the dispatch
// pipeline for the leaderbot command.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"leaderbot/internal/config"
	"leaderbot/internal/delivery"
	"leaderbot/internal/dispatch"
	"leaderbot/internal/leaderboard"
	"leaderbot/internal/storage"
	"leaderbot/internal/transport/telegram"
	logx "leaderbot/pkg/logx"
)

// Options are the process-level inputs.
type Options struct {
	ConfigPath string
	EnvPath    string
	// EnvRequired fails startup when EnvPath does not exist.
	EnvRequired bool
	// NoCache forces every leaderboard read to go upstream.
	NoCache bool
	// NoStore skips opening storage. Subscriptions, audit and the cache are
	// unavailable; only SendTest is useful.
	NoStore bool
	// HTTPClient is shared by the fetcher and the delivery client.
	HTTPClient *http.Client
}

// App holds the long-lived collaborators of one process.
type App struct {
	opts Options
	mgr  *config.Manager
	logs *logx.Service
	root logx.Logger
	log  logx.Logger

	store      storage.Store
	cacheStore storage.Cache
	closeCache func() error

	mu       sync.RWMutex
	settings *config.Settings
	disp     *dispatch.Dispatcher
}

// New loads configuration and opens the store.
func New(ctx context.Context, opts Options) (*App, error) {
	if err := config.LoadEnv(opts.EnvPath, opts.EnvRequired); err != nil {
		return nil, err
	}
	mgr := config.NewManager(opts.ConfigPath)
	s, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", opts.ConfigPath, err)
	}

	var sender logx.Sender
	if s.Logging.Telegram.Enabled {
		tg, err := telegram.New(telegram.Config{Token: s.Telegram.Token})
		if err != nil {
			return nil, fmt.Errorf("telegram log sink: %w", err)
		}
		sender = tg
	}
	logs, log := logx.New(mapLogging(s), sender)
	mgr.SetLogger(log.Component("config"))

	a := &App{opts: opts, mgr: mgr, logs: logs, root: log, log: log.Component("app")}
	if !opts.NoStore {
		if err := a.open(ctx, s); err != nil {
			_ = logs.Close()
			return nil, err
		}
	}
	a.apply(s)
	return a, nil
}

func (a *App) open(ctx context.Context, s *config.Settings) error {
	st, err := storage.Open(mapStorage(s), a.root.Component("storage"))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.store = st
	a.cacheStore = st
	a.closeCache = func() error { return nil }

	if s.CacheDriver == "redis" {
		rc := leaderboard.NewRedisCache(mapRedis(s))
		if err := rc.Ping(ctx); err != nil {
			_ = rc.Close()
			_ = st.Close()
			return fmt.Errorf("redis cache %s: %w", s.Redis.Addr, err)
		}
		a.cacheStore = rc
		a.closeCache = rc.Close
	}
	a.log.Info("storage ready",
		logx.String("driver", s.StorageDriver),
		logx.String("cache", s.CacheDriver),
		logx.Duration("cache_ttl", s.CacheTTL))
	return nil
}

// apply rebuilds the dispatch pipeline from s. The store and cache backend
// are kept.
func (a *App) apply(s *config.Settings) {
	ttl := s.CacheTTL
	if a.opts.NoCache {
		ttl = 0
	}
	client := a.opts.HTTPClient
	fetcher := leaderboard.NewFetcher(mapFetcher(s), client, a.root.Component("fetcher"))
	provider := leaderboard.NewProvider(fetcher, leaderboard.NewCache(a.cacheStore, ttl), a.root.Component("leaderboard"))
	deliverer := delivery.NewClient(mapDelivery(s), client, a.root.Component("delivery"))

	var (
		subs  storage.Subscriptions = storage.Disabled{}
		audit storage.Audit
	)
	if a.store != nil {
		subs, audit = a.store, a.store
	}
	d, err := dispatch.New(mapDispatch(s), dispatch.Deps{
		Subscriptions: subs,
		Audit:         audit,
		Boards:        provider,
		Deliverer:     deliverer,
		Log:           a.root.Component("dispatch"),
	})
	if err != nil {
		// Resolve already validated the season, so this is a programming error.
		a.log.Error("dispatcher rebuild failed; keeping previous", logx.Err(err))
		return
	}
	a.mu.Lock()
	a.settings = s
	a.disp = d
	a.mu.Unlock()
}

func (a *App) dispatcher() *dispatch.Dispatcher {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.disp
}

// Settings returns the active settings.
func (a *App) Settings() *config.Settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

func (a *App) Logger() logx.Logger { return a.log }

// Store exposes the opened store.
func (a *App) Store() storage.Store { return a.store }

// Run performs one dispatch pass.
func (a *App) Run(ctx context.Context, opt dispatch.RunOptions) (dispatch.Summary, error) {
	d := a.dispatcher()
	if d == nil {
		return dispatch.Summary{}, errors.New("dispatcher not initialized")
	}
	return d.Run(ctx, opt)
}

// SendTest delivers an ad-hoc message without touching the store.
func (a *App) SendTest(ctx context.Context, ts dispatch.TestSend) (delivery.Outcome, error) {
	d := a.dispatcher()
	if d == nil {
		return delivery.Outcome{}, errors.New("dispatcher not initialized")
	}
	return d.SendTest(ctx, ts)
}

// Close releases the store, the cache backend and the log sinks.
func (a *App) Close() error {
	var errs []error
	if a.closeCache != nil {
		errs = append(errs, a.closeCache())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.logs != nil {
		errs = append(errs, a.logs.Close())
	}
	return errors.Join(errs...)
}
