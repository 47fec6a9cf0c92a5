// Package app wires configuration, logging, the Telegram adapter, storage,
// notifier, scheduler, router and the standup feature into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"standupbot/internal/config"
	"standupbot/internal/notifier"
	"standupbot/internal/router"
	rtsup "standupbot/internal/runtime/supervisor"
	"standupbot/internal/scheduler"
	"standupbot/internal/standup"
	"standupbot/internal/storage"
	"standupbot/internal/transport"
	telegram "standupbot/internal/transport/telegram/adapter"
	"standupbot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	adapter transport.Adapter

	sched  *scheduler.Service
	notif  *notifier.Service
	router *router.Router

	standups *standup.Store
	clock    *standup.Clock
	clockCfg clockConfig

	updates chan transport.Update
}

// New loads the config at cfgPath and builds the app around a Telegram adapter.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateConfig(context.Background(), cfg); err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}
	return newApp(cfgm, ad)
}

// newApp builds everything except the adapter, which the caller supplies.
func newApp(cfgm *config.ConfigManager, ad transport.Adapter) (*App, error) {
	cfg := cfgm.Get()
	if cfg == nil {
		return nil, errors.New("config not loaded")
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg), ad)
	appLog := log.With(logx.String("comp", "app"))

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	appLog.Info("storage opened", logx.String("driver", sc.Driver))

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	notifSvc := notifier.New(ncfg, ad, log.With(logx.String("comp", "notifier")))

	schedCfg, clockCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	schedSvc := scheduler.New(schedCfg, log.With(logx.String("comp", "scheduler")))

	username := ""
	if id, ok := ad.(transport.Identity); ok {
		username = id.Username()
	}
	name, alias := botIdentity(cfg, username)
	cmdTimeout, _ := config.ParseDurationOrDefault("bot.command_timeout", cfg.Bot.CommandTimeout, 15*time.Second)
	r := router.New(router.Options{Name: name, Alias: alias, Timeout: cmdTimeout}, ad, notifSvc, log.With(logx.String("comp", "router")))

	standups := standup.NewStore(store)
	if err := standup.NewCommands(standups, nil).Register(r); err != nil {
		_ = store.Close()
		return nil, err
	}
	clock := standup.NewClock(standups, r, log.With(logx.String("comp", "standup")))
	if err := clock.Register(schedSvc, clockCfg.Spec, clockCfg.Timeout); err != nil {
		_ = store.Close()
		return nil, err
	}
	appLog.Info("bot identity", logx.String("name", name), logx.String("alias", alias))

	return &App{
		cfgm:     cfgm,
		log:      appLog,
		logs:     logSvc,
		store:    store,
		adapter:  ad,
		sched:    schedSvc,
		notif:    notifSvc,
		router:   r,
		standups: standups,
		clock:    clock,
		clockCfg: clockCfg,
		updates:  make(chan transport.Update, 256),
	}, nil
}

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the app supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validateConfig)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	if a.notif.Enabled() {
		a.notif.Start(a.sup.Context())
	}
	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
		a.logSchedules()
	} else {
		a.log.Warn("scheduler disabled; standup reminders will not fire")
	}

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				newCfg = latest(sub, newCfg)
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// logSchedules reports each registered schedule with its next trigger.
func (a *App) logSchedules() {
	snap := a.sched.Snapshot()
	for _, s := range snap.Schedules {
		a.log.Info("schedule active",
			logx.String("name", s.Name),
			logx.String("spec", s.Spec),
			logx.Time("next", s.Next),
		)
	}
}

// latest drains queued configs and returns the newest.
func latest(sub <-chan *config.Config, cur *config.Config) *config.Config {
	for {
		select {
		case newer, ok := <-sub:
			if !ok {
				return cur
			}
			if newer != nil {
				cur = newer
			}
		default:
			return cur
		}
	}
}

// applyConfig applies what can change live: logging, bot identity, scheduler
// and notifier. Telegram token and storage changes need a restart.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	for _, s := range sections {
		if s == "storage" || (s == "telegram" && oldCfg.Telegram.Token != newCfg.Telegram.Token) {
			a.log.Warn("config section changed; restart required for it to take effect", logx.String("section", s))
		}
	}

	a.logs.Apply(mapLoggingConfig(newCfg))

	username := ""
	if id, ok := a.adapter.(transport.Identity); ok {
		username = id.Username()
	}
	if name, alias := botIdentity(newCfg, username); name != a.router.Name() || newCfg.Bot.Alias != oldCfg.Bot.Alias {
		if err := a.router.SetIdentity(name, alias); err != nil {
			a.log.Warn("invalid bot identity; keeping previous", logx.Err(err))
		}
	}

	a.applyScheduler(ctx, newCfg)
	a.applyNotifier(ctx, newCfg)

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) applyScheduler(ctx context.Context, cfg *config.Config) {
	schedCfg, clockCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
		return
	}
	if clockCfg != a.clockCfg {
		if err := a.clock.Register(a.sched, clockCfg.Spec, clockCfg.Timeout); err != nil {
			a.log.Warn("standup clock not rescheduled", logx.Err(err))
		} else {
			a.clockCfg = clockCfg
		}
	}

	wasEnabled := a.sched.Enabled()
	a.sched.Apply(schedCfg)
	switch {
	case wasEnabled && !schedCfg.Enabled:
		a.log.Info("scheduler disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.sched.Stop(stopCtx)
		cancel()
	case !wasEnabled && schedCfg.Enabled:
		a.log.Info("scheduler enabled via config")
		a.sched.Start(ctx)
		a.logSchedules()
	}
}

func (a *App) applyNotifier(ctx context.Context, cfg *config.Config) {
	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
		return
	}
	wasEnabled := a.notif.Enabled()
	if wasEnabled && !ncfg.Enabled {
		a.log.Info("notifier disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.notif.Stop(stopCtx)
		cancel()
	}
	a.notif.Apply(ncfg)
	if !wasEnabled && ncfg.Enabled {
		a.log.Info("notifier enabled via config")
		a.notif.Start(ctx)
	}
}

// Stop shuts components down in dependency order, each step bounded so one
// component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			max = min(max, time.Until(dl))
		}
		if max <= 0 {
			a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	// Scheduler first so no tick enqueues into a stopping notifier.
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", 1*time.Second, func(c context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}
