package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"standupbot/internal/config"
	"standupbot/internal/standup"
	"standupbot/internal/transport"
	"standupbot/pkg/logx"
)

type fakeAdapter struct {
	mu   sync.Mutex
	out  chan<- transport.Update
	sent []string
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- transport.Update) error {
	f.mu.Lock()
	f.out = out
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) Stop(ctx context.Context) error { return nil }

func (f *fakeAdapter) Username() string { return "standupbot" }

func (f *fakeAdapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to.Room()+"|"+text)
	return transport.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID}, nil
}

func (f *fakeAdapter) say(room, text string) {
	target, _ := transport.ParseRoom(room)
	f.mu.Lock()
	out := f.out
	f.mu.Unlock()
	out <- transport.Update{Kind: transport.UpdateMessage, Message: &transport.Message{
		Envelope: transport.Envelope{Room: room},
		Chat:     target,
		Text:     text,
		IsGroup:  true,
	}}
}

// waitSent waits until n messages were sent and returns them.
func (f *fakeAdapter) waitSent(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		got := append([]string(nil), f.sent...)
		f.mu.Unlock()
		if len(got) >= n {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t.Fatalf("sent %q, want %d messages", f.sent, n)
	return nil
}

const testConfig = `{
  "telegram": {"token": "123:abc", "group_log": "", "poll_timeout": "1s"},
  "logging": {"level": "error", "console": true, "file": {"enabled": false, "path": ""}, "telegram": {"enabled": false, "thread_id": 0, "min_level": "", "rate_per_sec": 0}},
  "scheduler": {"enabled": false},
  "notifier": {"enabled": true, "workers": 1, "queue_size": 16, "rate_per_sec": 100, "retry_max": 0, "retry_base": "", "retry_max_delay": ""}
}`

func loadTestConfig(t *testing.T, body string) *config.ConfigManager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	m := config.NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m
}

func TestAppStandupFlow(t *testing.T) {
	fa := &fakeAdapter{}
	a, err := newApp(loadTestConfig(t, testConfig), fa)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	fa.say("-100", "standupbot create standup 09:30")
	got := fa.waitSent(t, 1)
	if got[0] != "-100|Ok, from now on I'll remind this room to do a standup every weekday at 09:30" {
		t.Fatalf("reply = %q", got[0])
	}

	// Tick at 09:30 on a Wednesday goes through router and notifier to the adapter.
	wed := time.Date(2026, time.October, 14, 9, 30, 1, 0, time.Local)
	clock := standup.NewClock(a.standups, a.router, logx.Nop(), standup.WithNow(func() time.Time { return wed }))
	if err := clock.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	got = fa.waitSent(t, 2)
	room, text, _ := strings.Cut(got[1], "|")
	if room != "-100" {
		t.Fatalf("reminder went to %q", room)
	}
	found := false
	for _, m := range standup.Messages {
		found = found || m == text
	}
	if !found {
		t.Fatalf("reminder text %q is not a canned message", text)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, StopSignal); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-a.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
}

func TestAppRegistersClock(t *testing.T) {
	t.Parallel()
	a, err := newApp(loadTestConfig(t, testConfig), &fakeAdapter{})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.store.Close()
	snap := a.sched.Snapshot()
	if len(snap.Schedules) != 1 || snap.Schedules[0].Name != standup.ClockSchedule || snap.Schedules[0].Spec != standup.ClockSpec {
		t.Fatalf("schedules = %+v", snap.Schedules)
	}
	if a.router.Name() != "standupbot" {
		t.Fatalf("bot name = %q", a.router.Name())
	}
}

func TestAppMinimalConfigRunsClock(t *testing.T) {
	t.Parallel()
	a, err := newApp(loadTestConfig(t, `{"telegram": {"token": "123:abc"}}`), &fakeAdapter{})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.store.Close()
	if !a.sched.Enabled() {
		t.Fatal("scheduler disabled with a token-only config; reminders would never fire")
	}
	if !a.notif.Enabled() {
		t.Fatal("notifier disabled with a token-only config")
	}
}

func TestAppStartRunsClock(t *testing.T) {
	a, err := newApp(loadTestConfig(t, `{"telegram": {"token": "123:abc"}, "logging": {"level": "error"}}`), &fakeAdapter{})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := a.sched.Snapshot()
	if !snap.Running || len(snap.Schedules) != 1 || snap.Schedules[0].Next.IsZero() {
		t.Fatalf("scheduler snapshot after Start = %+v", snap)
	}
	if wd := snap.Schedules[0].Next.Weekday(); wd == time.Saturday || wd == time.Sunday {
		t.Fatalf("next clock tick on %s", wd)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Stop(stopCtx, StopSignal); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if a.sched.Snapshot().Running {
		t.Fatal("scheduler still running after Stop")
	}
}

func TestMapSchedulerConfig(t *testing.T) {
	t.Parallel()
	off := false
	sc, clock, err := mapSchedulerConfig(&config.Config{})
	if err != nil || !sc.Enabled || sc.DefaultTimeout != 30*time.Second || clock.Spec != "" {
		t.Fatalf("omitted section = %+v, %+v, %v", sc, clock, err)
	}
	sc, _, err = mapSchedulerConfig(&config.Config{Scheduler: config.SchedulerConfig{Enabled: &off}})
	if err != nil || sc.Enabled {
		t.Fatalf("explicit false = %+v, %v", sc, err)
	}
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      *config.StorageConfig
		driver  string
		wantErr bool
	}{
		{"omitted", nil, "memory", false},
		{"memory", &config.StorageConfig{Driver: "memory"}, "memory", false},
		{"file", &config.StorageConfig{Driver: "file", Path: "./brain.json"}, "file", false},
		{"file without path", &config.StorageConfig{Driver: "file"}, "", true},
		{"sqlite", &config.StorageConfig{Driver: "SQLite", Path: "./brain.db", BusyTimeout: "2s"}, "sqlite", false},
		{"sqlite bad timeout", &config.StorageConfig{Driver: "sqlite", Path: "./brain.db", BusyTimeout: "soon"}, "", true},
		{"redis", &config.StorageConfig{Driver: "redis", Redis: &config.RedisConfig{Addr: "localhost:6379"}}, "redis", false},
		{"redis without addr", &config.StorageConfig{Driver: "redis"}, "", true},
		{"unknown", &config.StorageConfig{Driver: "mongo"}, "", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sc, err := mapStorageConfig(&config.Config{Storage: tt.in})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", sc)
				}
				return
			}
			if err != nil || sc.Driver != tt.driver {
				t.Fatalf("mapStorageConfig = %+v, %v", sc, err)
			}
		})
	}
}

func TestMapNotifierConfig(t *testing.T) {
	t.Parallel()
	nc, err := mapNotifierConfig(&config.Config{})
	if err != nil || !nc.Enabled {
		t.Fatalf("omitted section = %+v, %v; want enabled", nc, err)
	}
	nc, err = mapNotifierConfig(&config.Config{Notifier: &config.NotifierConfig{Enabled: true, RetryBase: "250ms", RetryMaxDelay: "4s"}})
	if err != nil || nc.RetryBase != 250*time.Millisecond || nc.RetryMaxDelay != 4*time.Second {
		t.Fatalf("mapNotifierConfig = %+v, %v", nc, err)
	}
	if _, err := mapNotifierConfig(&config.Config{Notifier: &config.NotifierConfig{Workers: -1}}); err == nil {
		t.Fatal("expected error for negative workers")
	}
}

func TestBotIdentity(t *testing.T) {
	t.Parallel()
	tests := []struct {
		cfgName, username, want string
	}{
		{"deskbot", "standup_bot", "deskbot"},
		{"", "standup_bot", "standup_bot"},
		{"", "", defaultBotName},
	}
	for _, tt := range tests {
		name, _ := botIdentity(&config.Config{Bot: config.BotConfig{Name: tt.cfgName}}, tt.username)
		if name != tt.want {
			t.Fatalf("botIdentity(%q, %q) = %q, want %q", tt.cfgName, tt.username, name, tt.want)
		}
	}
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()
	ok := &config.Config{Telegram: config.TelegramConfig{Token: "x"}}
	if err := validateConfig(context.Background(), ok); err != nil {
		t.Fatalf("validateConfig(ok) = %v", err)
	}
	bad := []*config.Config{
		{},
		{Telegram: config.TelegramConfig{Token: "x", GroupLog: "ops"}},
		{Telegram: config.TelegramConfig{Token: "x"}, Scheduler: config.SchedulerConfig{ClockSpec: "every minute"}},
		{Telegram: config.TelegramConfig{Token: "x"}, Storage: &config.StorageConfig{Driver: "mongo"}},
	}
	for i, c := range bad {
		if err := validateConfig(context.Background(), c); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
