package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultCacheTTL      = 5 * time.Minute
	DefaultInterval      = 500 * time.Millisecond
	DefaultCron          = "0 * * * *"
	DefaultTimezone      = "America/New_York"
	defaultAttempts      = 3
	defaultRetryDelay    = time.Second
	defaultFetchTimeout  = 30 * time.Second
	defaultPostTimeout   = 10 * time.Second
	defaultRedisKeepFor  = 24 * time.Hour
	defaultSQLiteTimeout = 5 * time.Second
)

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Settings is Config with defaults applied and every value parsed.
type Settings struct {
	Logging  LoggingConfig
	Telegram TelegramConfig

	StorageDriver      string
	StoragePath        string
	StorageBusyTimeout time.Duration

	CacheDriver    string // "store" or "redis"
	CacheTTL       time.Duration
	Redis          RedisConfig
	RedisRetention time.Duration

	Location *time.Location
	Month    time.Month
	StartDay int
	EndDay   int

	BaseURL         string
	FetchUserAgent  string
	FetchAttempts   int
	FetchRetryDelay time.Duration
	FetchTimeout    time.Duration

	PostUserAgent string
	PostTimeout   time.Duration
	Interval      time.Duration
	StrictHosts   bool

	Cron       string
	RunOnStart bool
}

// Resolve validates c and applies defaults. All problems are reported
// together.
func (c *Config) Resolve() (*Settings, error) {
	if c == nil {
		return nil, errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	s := &Settings{Logging: c.Logging, Telegram: c.Telegram}

	switch lv := strings.ToLower(strings.TrimSpace(c.Logging.Level)); lv {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		add(fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	if c.Logging.Telegram.Enabled {
		if strings.TrimSpace(c.Telegram.Token) == "" {
			add(errors.New("telegram.token: required when logging.telegram.enabled"))
		}
		if c.Telegram.ChatID == 0 {
			add(errors.New("telegram.chat_id: required when logging.telegram.enabled"))
		}
	}

	s.StorageDriver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	s.StoragePath = strings.TrimSpace(c.Storage.Path)
	switch s.StorageDriver {
	case "sqlite", "sqlite3", "file":
		if s.StoragePath == "" {
			add(errors.New("storage.path: required"))
		}
	case "":
		add(errors.New("storage.driver: required (sqlite or file)"))
	default:
		add(fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	var err error
	s.StorageBusyTimeout, err = ParseDurationOrDefault("storage.busy_timeout", c.Storage.BusyTimeout, defaultSQLiteTimeout)
	add(err)

	s.CacheDriver = strings.ToLower(strings.TrimSpace(c.Cache.Driver))
	if s.CacheDriver == "" {
		s.CacheDriver = "store"
	}
	s.CacheTTL, err = ParseDurationOrDefault("cache.ttl", c.Cache.TTL, DefaultCacheTTL)
	add(err)
	s.Redis = c.Cache.Redis
	s.RedisRetention, err = ParseDurationOrDefault("cache.redis.retention", c.Cache.Redis.Retention, defaultRedisKeepFor)
	add(err)
	switch s.CacheDriver {
	case "store":
	case "redis":
		if strings.TrimSpace(s.Redis.Addr) == "" {
			add(errors.New("cache.redis.addr: required when cache.driver is redis"))
		}
	default:
		add(fmt.Errorf("cache.driver: unknown driver %q", c.Cache.Driver))
	}

	tz := strings.TrimSpace(c.Season.Timezone)
	if tz == "" {
		tz = DefaultTimezone
	}
	if s.Location, err = time.LoadLocation(tz); err != nil {
		add(fmt.Errorf("season.timezone: %w", err))
	}
	s.Month = time.Month(orDefault(c.Season.Month, 12))
	s.StartDay = orDefault(c.Season.StartDay, 1)
	s.EndDay = orDefault(c.Season.EndDay, 25)
	if s.Month < time.January || s.Month > time.December {
		add(fmt.Errorf("season.month: %d out of range 1..12", c.Season.Month))
	}
	if s.StartDay < 1 || s.EndDay > 31 || s.StartDay > s.EndDay {
		add(fmt.Errorf("season: days %d..%d invalid", s.StartDay, s.EndDay))
	}

	s.BaseURL = strings.TrimRight(strings.TrimSpace(c.Provider.BaseURL), "/")
	if s.BaseURL != "" {
		if u, perr := url.Parse(s.BaseURL); perr != nil || u.Scheme == "" || u.Host == "" {
			add(fmt.Errorf("provider.base_url: invalid URL %q", c.Provider.BaseURL))
		}
	}
	s.FetchUserAgent = strings.TrimSpace(c.Provider.UserAgent)
	s.FetchAttempts = orDefault(c.Provider.Attempts, defaultAttempts)
	if s.FetchAttempts < 1 {
		add(errors.New("provider.attempts: must be >= 1"))
	}
	s.FetchRetryDelay, err = ParseDurationOrDefault("provider.retry_delay", c.Provider.RetryDelay, defaultRetryDelay)
	add(err)
	s.FetchTimeout, err = ParseDurationOrDefault("provider.timeout", c.Provider.Timeout, defaultFetchTimeout)
	add(err)

	s.PostUserAgent = strings.TrimSpace(c.Delivery.UserAgent)
	s.PostTimeout, err = ParseDurationOrDefault("delivery.timeout", c.Delivery.Timeout, defaultPostTimeout)
	add(err)
	s.Interval, err = ParseDurationOrDefault("delivery.interval", c.Delivery.Interval, DefaultInterval)
	add(err)
	s.StrictHosts = c.Delivery.StrictHosts

	s.Cron = strings.TrimSpace(c.Schedule.Cron)
	if s.Cron == "" {
		s.Cron = DefaultCron
	}
	if _, perr := cronParser.Parse(s.Cron); perr != nil {
		add(fmt.Errorf("schedule.cron: %w", perr))
	}
	s.RunOnStart = c.Schedule.RunOnStart

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
