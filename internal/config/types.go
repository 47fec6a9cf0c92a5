package config

// Config is the on-disk configuration (JSON, or YAML by file extension).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Bot       BotConfig       `json:"bot"`
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`

	// Notifier defaults to enabled when the section is omitted.
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	// Storage defaults to the in-memory brain when omitted.
	Storage *StorageConfig `json:"storage,omitempty"`
}

// BotConfig controls how users address the bot.
//
// Name defaults to the Telegram bot username. Alias is an optional short
// prefix (e.g. "/") accepted in place of the name.
type BotConfig struct {
	Name           string `json:"name,omitempty"`
	Alias          string `json:"alias,omitempty"`
	CommandTimeout string `json:"command_timeout,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// GroupLog is the chat id receiving Telegram log messages.
	GroupLog    string `json:"group_log"`
	PollTimeout string `json:"poll_timeout"`
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

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// SchedulerConfig controls the standup clock trigger.
//
// Enabled defaults to true when omitted. ClockSpec overrides the weekday tick
// ("1 * * * * 1-5"); Timeout bounds one tick.
type SchedulerConfig struct {
	Enabled   *bool  `json:"enabled,omitempty"`
	ClockSpec string `json:"clock_spec,omitempty"`
	Timeout   string `json:"timeout,omitempty"`
}

// NotifierConfig controls the async outbound message pipeline.
type NotifierConfig struct {
	Enabled       bool   `json:"enabled"`
	Workers       int    `json:"workers"`
	QueueSize     int    `json:"queue_size"`
	RatePerSec    int    `json:"rate_per_sec"`
	RetryMax      int    `json:"retry_max"`
	RetryBase     string `json:"retry_base"`
	RetryMaxDelay string `json:"retry_max_delay"`
	SendTimeout   string `json:"send_timeout,omitempty"`
}

// StorageConfig selects the brain backend.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/brain.db" }
type StorageConfig struct {
	Driver      string       `json:"driver"`
	Path        string       `json:"path,omitempty"`
	BusyTimeout string       `json:"busy_timeout,omitempty"` // sqlite
	Redis       *RedisConfig `json:"redis,omitempty"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
}

// IsEnabled reports whether the scheduler runs; an omitted flag means yes.
func (c SchedulerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}
