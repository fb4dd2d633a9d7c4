package app

import (
	"leaderbot/internal/config"
	"leaderbot/internal/delivery"
	"leaderbot/internal/dispatch"
	"leaderbot/internal/httpx"
	"leaderbot/internal/leaderboard"
	"leaderbot/internal/storage"
	"leaderbot/internal/window"
	logx "leaderbot/pkg/logx"
)

func mapLogging(s *config.Settings) logx.Config {
	return logx.Config{
		Level:   s.Logging.Level,
		Console: s.Logging.Console,
		File: logx.FileConfig{
			Enabled: s.Logging.File.Enabled,
			Path:    s.Logging.File.Path,
		},
		Operator: logx.OperatorConfig{
			Enabled:    s.Logging.Telegram.Enabled,
			ChatID:     s.Telegram.ChatID,
			ThreadID:   s.Logging.Telegram.ThreadID,
			MinLevel:   s.Logging.Telegram.MinLevel,
			RatePerSec: s.Logging.Telegram.RatePerSec,
		},
	}
}

func mapStorage(s *config.Settings) storage.Config {
	return storage.Config{Driver: s.StorageDriver, Path: s.StoragePath, BusyTimeout: s.StorageBusyTimeout}
}

func mapRedis(s *config.Settings) leaderboard.RedisConfig {
	return leaderboard.RedisConfig{
		Addr:      s.Redis.Addr,
		Password:  s.Redis.Password,
		DB:        s.Redis.DB,
		Prefix:    s.Redis.Prefix,
		Retention: s.RedisRetention,
	}
}

func mapFetcher(s *config.Settings) leaderboard.FetcherConfig {
	return leaderboard.FetcherConfig{
		BaseURL:   s.BaseURL,
		UserAgent: s.FetchUserAgent,
		Policy: httpx.Policy{
			MaxAttempts: s.FetchAttempts,
			Delay:       s.FetchRetryDelay,
			Timeout:     s.FetchTimeout,
		},
	}
}

func mapDelivery(s *config.Settings) delivery.Config {
	p := httpx.DeliveryPolicy()
	p.Timeout = s.PostTimeout
	return delivery.Config{Policy: p, UserAgent: s.PostUserAgent, StrictHosts: s.StrictHosts}
}

func mapDispatch(s *config.Settings) dispatch.Config {
	return dispatch.Config{
		Season: window.Season{
			Location: s.Location,
			Month:    s.Month,
			StartDay: s.StartDay,
			EndDay:   s.EndDay,
		},
		Interval: s.Interval,
	}
}
