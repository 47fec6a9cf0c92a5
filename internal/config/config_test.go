package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleJSON = `{
  "bot": {"name": "standupbot", "alias": "/"},
  "telegram": {"token": "123:abc", "group_log": "-1001", "poll_timeout": "15s"},
  "logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}, "telegram": {"enabled": false, "thread_id": 0, "min_level": "warn", "rate_per_sec": 1}},
  "scheduler": {"enabled": true, "timeout": "30s"},
  "storage": {"driver": "redis", "redis": {"addr": "127.0.0.1:6379", "db": 2}}
}`

const sampleYAML = `
bot:
  name: standupbot
telegram:
  token: "123:abc"
  group_log: ""
  poll_timeout: 10s
logging:
  level: info
  console: true
scheduler:
  enabled: true
  clock_spec: "1 * * * * 1-5"
notifier:
  enabled: true
  workers: 2
  queue_size: 64
  rate_per_sec: 5
  retry_max: 3
  retry_base: 500ms
  retry_max_delay: 5s
storage:
  driver: sqlite
  path: ./data/brain.db
`

func TestDecodeJSON(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("config.json", []byte(sampleJSON))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Bot.Name != "standupbot" || cfg.Bot.Alias != "/" {
		t.Fatalf("bot = %+v", cfg.Bot)
	}
	if cfg.Storage == nil || cfg.Storage.Redis == nil || cfg.Storage.Redis.DB != 2 {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Notifier != nil {
		t.Fatalf("notifier should stay nil when omitted, got %+v", cfg.Notifier)
	}
}

func TestDecodeYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("config.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Scheduler.ClockSpec != "1 * * * * 1-5" || !cfg.Scheduler.IsEnabled() {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Notifier == nil || cfg.Notifier.QueueSize != 64 || cfg.Notifier.RetryBase != "500ms" {
		t.Fatalf("notifier = %+v", cfg.Notifier)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != "./data/brain.db" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
}

func TestSchedulerEnabledDefaultsOn(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, data string
		want       bool
	}{
		{"section omitted", `{"telegram": {"token": "x"}}`, true},
		{"flag omitted", `{"scheduler": {"timeout": "10s"}}`, true},
		{"explicit true", `{"scheduler": {"enabled": true}}`, true},
		{"explicit false", `{"scheduler": {"enabled": false}}`, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := Decode("c.json", []byte(tt.data))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got := cfg.Scheduler.IsEnabled(); got != tt.want {
				t.Fatalf("IsEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSummarizeSchedulerToggle(t *testing.T) {
	t.Parallel()
	a, _ := Decode("a.json", []byte(`{"scheduler": {"enabled": true}}`))
	b, _ := Decode("b.json", []byte(`{"scheduler": {"enabled": true}}`))
	if sections, _ := SummarizeConfigChange(a, b); len(sections) != 0 {
		t.Fatalf("equal scheduler sections reported as changed: %v", sections)
	}
	c, _ := Decode("c.json", []byte(`{"scheduler": {"enabled": false}}`))
	if sections, _ := SummarizeConfigChange(a, c); strings.Join(sections, ",") != "scheduler" {
		t.Fatalf("sections = %v", sections)
	}
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, file, data string
	}{
		{"unknown field", "c.json", `{"bot": {"name": "x", "nick": "y"}}`},
		{"unknown section", "c.json", `{"plugins": {}}`},
		{"trailing data", "c.json", `{"bot": {}} {"bot": {}}`},
		{"unknown yaml field", "c.yml", "scheduler:\n  enabled: true\n  workers: 4\n"},
		{"bad yaml", "c.yaml", "bot: [unclosed"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode(tt.file, []byte(tt.data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty = %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "", 3*time.Second); err != nil || d != 3*time.Second {
		t.Fatalf("default = %v, %v", d, err)
	}
	if _, err := ParseDurationField("notifier.retry_base", "-1s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
	_, err := ParseDurationField("notifier.retry_base", "soon")
	if err == nil || !strings.Contains(err.Error(), "notifier.retry_base") {
		t.Fatalf("error %v should name the field", err)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	a, _ := Decode("a.json", []byte(sampleJSON))
	b, _ := Decode("b.json", []byte(sampleJSON))
	if sections, _ := SummarizeConfigChange(a, b); len(sections) != 0 {
		t.Fatalf("identical configs changed %v", sections)
	}

	b.Logging.Level = "warn"
	b.Storage.Redis.Addr = "redis:6379"
	b.Telegram.Token = "456:def"
	sections, _ := SummarizeConfigChange(a, b)
	if strings.Join(sections, ",") != "telegram,logging,storage" {
		t.Fatalf("sections = %v", sections)
	}
}

func TestWatchPublishesValidReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(sampleJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	m := NewConfigManager(path)
	m.debounce = 20 * time.Millisecond
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		if cfg.Bot.Name == "" {
			return os.ErrInvalid
		}
		return nil
	})
	sub := m.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()
	time.Sleep(100 * time.Millisecond)

	// Rejected by the validator: nothing published.
	rejected := strings.Replace(sampleJSON, `"name": "standupbot"`, `"name": ""`, 1)
	if err := os.WriteFile(path, []byte(rejected), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-sub:
		t.Fatalf("published rejected config %+v", cfg.Bot)
	case <-time.After(300 * time.Millisecond):
	}

	accepted := strings.Replace(sampleJSON, `"name": "standupbot"`, `"name": "deskbot"`, 1)
	if err := os.WriteFile(path, []byte(accepted), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-sub:
		if cfg.Bot.Name != "deskbot" || m.Get().Bot.Name != "deskbot" {
			t.Fatalf("published %+v, current %+v", cfg.Bot, m.Get().Bot)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reload was not published")
	}
}
