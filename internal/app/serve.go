package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"leaderbot/internal/config"
	"leaderbot/internal/dispatch"
	"leaderbot/internal/runtime/supervisor"
	"leaderbot/internal/scheduler"
	logx "leaderbot/pkg/logx"
)

// passTimeout bounds one scheduled pass.
const passTimeout = 50 * time.Minute

// Serve triggers a full pass on the configured cron cadence until ctx ends.
// It reloads the config file on change and reports readiness to systemd.
func (a *App) Serve(ctx context.Context) error {
	s := a.Settings()
	log := a.root.Component("serve")
	sup := supervisor.New(ctx, supervisor.WithLogger(log), supervisor.WithCancelOnError(true))

	sched, err := scheduler.New(scheduler.Config{
		Spec:     s.Cron,
		Location: s.Location,
		Timeout:  passTimeout,
	}, func(ctx context.Context) error {
		_, err := a.Run(ctx, dispatch.RunOptions{})
		return err
	}, a.root.Component("scheduler"))
	if err != nil {
		return err
	}

	reloads := a.mgr.Subscribe(4)
	sup.GoRestart("config.watch", a.mgr.Watch, supervisor.RestartPolicy{})
	sup.Go("config.apply", func(ctx context.Context) error {
		defer a.mgr.Unsubscribe(reloads)
		for {
			select {
			case <-ctx.Done():
				return nil
			case ns, ok := <-reloads:
				if !ok {
					return nil
				}
				a.reload(ns, log)
			}
		}
	})
	if err := sched.Start(sup.Context()); err != nil {
		sup.Cancel()
		return err
	}
	if s.RunOnStart {
		sup.Go("run.on_start", func(ctx context.Context) error {
			sched.RunNow(ctx)
			return nil
		})
	}
	sup.Go("systemd.watchdog", watchdog)

	notify(log, daemon.SdNotifyReady)
	log.Info("serving", logx.String("cron", s.Cron), logx.Time("next", sched.Next()))

	<-sup.Context().Done()
	notify(log, daemon.SdNotifyStopping)
	log.Info("stopping")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		log.Warn("scheduler stop timed out", logx.Err(err))
	}
	if err := sup.Stop(stopCtx); err != nil {
		return err
	}
	return nil
}

func (a *App) reload(ns *config.Settings, log logx.Logger) {
	old := a.Settings()
	if old != nil && (old.StorageDriver != ns.StorageDriver || old.StoragePath != ns.StoragePath ||
		old.CacheDriver != ns.CacheDriver || old.Redis != ns.Redis) {
		log.Warn("storage or cache backend changed; restart required for that part to take effect")
	}
	if old != nil && (old.Cron != ns.Cron || old.Location.String() != ns.Location.String()) {
		log.Warn("schedule changed; restart required for the new cadence")
	}
	a.logs.Apply(mapLogging(ns))
	a.apply(ns)
	log.Info("settings applied")
}

// watchdog pings systemd at half the configured interval when the unit
// enables WatchdogSec.
func watchdog(ctx context.Context) error {
	every, err := daemon.SdWatchdogEnabled(false)
	if err != nil || every <= 0 {
		return nil
	}
	t := time.NewTicker(every / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}

func notify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("systemd notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("systemd notified", logx.String("state", state))
	}
}
