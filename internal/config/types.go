package config

// Config is the on-disk configuration (JSON or YAML).
//
// Durations are Go duration strings ("500ms", "10s", "5m"). String values may
// reference environment variables as ${NAME}; an optional .env file is loaded
// first.
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Telegram TelegramConfig `json:"telegram,omitempty"`
	Storage  StorageConfig  `json:"storage"`
	Cache    CacheConfig    `json:"cache,omitempty"`
	Season   SeasonConfig   `json:"season,omitempty"`
	Provider ProviderConfig `json:"provider,omitempty"`
	Delivery DeliveryConfig `json:"delivery,omitempty"`
	Schedule ScheduleConfig `json:"schedule,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram mirrors warnings and errors to an operator chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// TelegramConfig is the operator bot used by the log sink.
type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

// StorageConfig selects the subscription/cache/audit store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./leaderbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

// CacheConfig controls the leaderboard snapshot cache.
// Driver is "store" (default) or "redis".
type CacheConfig struct {
	Driver string      `json:"driver,omitempty"`
	TTL    string      `json:"ttl,omitempty"` // default 5m; "0s" disables
	Redis  RedisConfig `json:"redis,omitempty"`
}

type RedisConfig struct {
	Addr      string `json:"addr"`
	Password  string `json:"password,omitempty"`
	DB        int    `json:"db,omitempty"`
	Prefix    string `json:"prefix,omitempty"`
	Retention string `json:"retention,omitempty"`
}

// SeasonConfig defaults to December 1..25, America/New_York.
type SeasonConfig struct {
	Timezone string `json:"timezone,omitempty"`
	Month    int    `json:"month,omitempty"`
	StartDay int    `json:"start_day,omitempty"`
	EndDay   int    `json:"end_day,omitempty"`
}

// ProviderConfig controls leaderboard fetching.
type ProviderConfig struct {
	BaseURL    string `json:"base_url,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	Attempts   int    `json:"attempts,omitempty"`
	RetryDelay string `json:"retry_delay,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
}

// DeliveryConfig controls webhook posts.
type DeliveryConfig struct {
	UserAgent   string `json:"user_agent,omitempty"`
	Timeout     string `json:"timeout,omitempty"`
	Interval    string `json:"interval,omitempty"` // pause between deliveries, default 500ms
	StrictHosts bool   `json:"strict_hosts,omitempty"`
}

// ScheduleConfig is used by serve mode only.
type ScheduleConfig struct {
	Cron       string `json:"cron,omitempty"` // default "0 * * * *"
	RunOnStart bool   `json:"run_on_start,omitempty"`
}
