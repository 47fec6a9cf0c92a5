package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"standupbot/internal/config"
	"standupbot/internal/notifier"
	"standupbot/internal/scheduler"
	"standupbot/internal/storage"
	"standupbot/pkg/logx"
)

const defaultBotName = "standupbot"

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{Driver: "memory"}, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "", "memory":
		return storage.Config{Driver: "memory"}, nil
	case "file":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=file")
		}
		return storage.Config{Driver: driver, Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	case "redis":
		if sc.Redis == nil || strings.TrimSpace(sc.Redis.Addr) == "" {
			return storage.Config{}, fmt.Errorf("storage.redis.addr is required when storage.driver=redis")
		}
		if sc.Redis.DB < 0 {
			return storage.Config{}, fmt.Errorf("storage.redis.db must be >= 0")
		}
		return storage.Config{Driver: driver, Redis: storage.RedisConfig{
			Addr:     strings.TrimSpace(sc.Redis.Addr),
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
			Prefix:   sc.Redis.Prefix,
		}}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

// mapNotifierConfig enables the notifier with defaults when the section is omitted.
func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	if cfg == nil || cfg.Notifier == nil {
		return notifier.Config{Enabled: true}, nil
	}
	nc := cfg.Notifier
	if nc.Workers < 0 || nc.QueueSize < 0 || nc.RatePerSec < 0 || nc.RetryMax < 0 {
		return notifier.Config{}, fmt.Errorf("notifier: workers, queue_size, rate_per_sec and retry_max must be >= 0")
	}
	base, err := config.ParseDurationField("notifier.retry_base", nc.RetryBase)
	if err != nil {
		return notifier.Config{}, err
	}
	maxDelay, err := config.ParseDurationField("notifier.retry_max_delay", nc.RetryMaxDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	sendTimeout, err := config.ParseDurationField("notifier.send_timeout", nc.SendTimeout)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:       nc.Enabled,
		Workers:       nc.Workers,
		QueueSize:     nc.QueueSize,
		RatePerSec:    nc.RatePerSec,
		RetryMax:      nc.RetryMax,
		RetryBase:     base,
		RetryMaxDelay: maxDelay,
		SendTimeout:   sendTimeout,
	}, nil
}

type clockConfig struct {
	Spec    string
	Timeout time.Duration
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, clockConfig, error) {
	sc := cfg.Scheduler
	timeout, err := config.ParseDurationOrDefault("scheduler.timeout", sc.Timeout, 30*time.Second)
	if err != nil {
		return scheduler.Config{}, clockConfig{}, err
	}
	spec := strings.TrimSpace(sc.ClockSpec)
	if spec != "" {
		if _, err := scheduler.Parser.Parse(spec); err != nil {
			return scheduler.Config{}, clockConfig{}, fmt.Errorf("scheduler.clock_spec: invalid %q: %w", spec, err)
		}
	}
	return scheduler.Config{Enabled: sc.IsEnabled(), DefaultTimeout: timeout}, clockConfig{Spec: spec, Timeout: timeout}, nil
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	lc := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
	if g := strings.TrimSpace(cfg.Telegram.GroupLog); g != "" {
		if chatID, err := strconv.ParseInt(g, 10, 64); err == nil {
			lc.Telegram.ChatID = chatID
		}
	}
	return lc
}

// botIdentity resolves the name users address the bot by.
func botIdentity(cfg *config.Config, username string) (name, alias string) {
	name = strings.TrimSpace(cfg.Bot.Name)
	if name == "" {
		name = strings.TrimSpace(username)
	}
	if name == "" {
		name = defaultBotName
	}
	return name, strings.TrimSpace(cfg.Bot.Alias)
}

// validateConfig rejects configs that cannot be applied, before hot reload commits them.
func validateConfig(ctx context.Context, cfg *config.Config) error {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if g := strings.TrimSpace(cfg.Telegram.GroupLog); g != "" {
		if _, err := strconv.ParseInt(g, 10, 64); err != nil {
			return fmt.Errorf("telegram.group_log: invalid chat id %q", g)
		}
	}
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("bot.command_timeout", cfg.Bot.CommandTimeout); err != nil {
		return err
	}
	if _, _, err := mapSchedulerConfig(cfg); err != nil {
		return err
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	return ctx.Err()
}
