package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"standupbot/pkg/logx"
)

func TestWeekdayMinuteSpecNextRuns(t *testing.T) {
	t.Parallel()
	// Friday 23:59:30 local.
	from := time.Date(2026, time.October, 16, 23, 59, 30, 0, time.Local)
	if from.Weekday() != time.Friday {
		t.Fatalf("fixture is %v, want Friday", from.Weekday())
	}

	runs := NextRuns("1 * * * * 1-5", from, 2)
	if len(runs) != 2 {
		t.Fatalf("NextRuns returned %d times", len(runs))
	}
	want := time.Date(2026, time.October, 19, 0, 0, 1, 0, time.Local)
	if !runs[0].Equal(want) {
		t.Fatalf("first run = %v, want %v (weekend must be skipped)", runs[0], want)
	}
	if runs[1].Sub(runs[0]) != time.Minute {
		t.Fatalf("runs are %v apart, want 1m", runs[1].Sub(runs[0]))
	}
	for _, r := range runs {
		if r.Second() != 1 {
			t.Fatalf("run %v does not fire at second 1", r)
		}
	}
}

func TestNextRunsInvalidSpec(t *testing.T) {
	t.Parallel()
	if got := NextRuns("not a spec", time.Now(), 3); got != nil {
		t.Fatalf("NextRuns(invalid) = %v, want nil", got)
	}
}

func TestAddCronValidation(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop())
	noop := func(ctx context.Context) error { return nil }

	if _, err := s.AddCron("", "* * * * *", 0, noop); err == nil {
		t.Fatal("expected error for empty name")
	}
	if _, err := s.AddCron("x", "61 * * * *", 0, noop); err == nil {
		t.Fatal("expected error for invalid spec")
	}
	if _, err := s.AddCron("x", "* * * * *", 0, nil); err == nil {
		t.Fatal("expected error for nil job")
	}
}

func TestAddCronUpsertsByName(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop())
	noop := func(ctx context.Context) error { return nil }

	if _, err := s.AddCron("clock", "1 * * * * 1-5", time.Second, noop); err != nil {
		t.Fatalf("AddCron: %v", err)
	}
	if _, err := s.AddCron("clock", "*/5 * * * *", time.Second, noop); err != nil {
		t.Fatalf("AddCron (replace): %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Schedules) != 1 || snap.Schedules[0].Spec != "*/5 * * * *" {
		t.Fatalf("unexpected schedules after upsert: %+v", snap.Schedules)
	}
	if snap.Running {
		t.Fatal("service should not be running before Start")
	}

	if _, err := s.AddCron("other", "@hourly", 0, noop); err != nil {
		t.Fatalf("AddCron(other): %v", err)
	}
	if snap := s.Snapshot(); len(snap.Schedules) != 2 || snap.Schedules[0].Name != "clock" {
		t.Fatalf("schedules = %+v", snap.Schedules)
	}
}

func TestServiceRunsJobs(t *testing.T) {
	s := New(Config{Enabled: true, DefaultTimeout: time.Second}, logx.Nop())
	var runs atomic.Int32
	var sawDeadline atomic.Bool
	_, err := s.AddCron("tick", "* * * * * *", 0, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			sawDeadline.Store(true)
		}
		runs.Add(1)
		return errors.New("logged, not fatal")
	})
	if err != nil {
		t.Fatalf("AddCron: %v", err)
	}

	s.Start(context.Background())
	snap := s.Snapshot()
	if !snap.Running || snap.Schedules[0].Next.IsZero() {
		t.Fatalf("expected running schedule with next time, got %+v", snap)
	}

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)

	if runs.Load() == 0 {
		t.Fatal("job never ran")
	}
	if !sawDeadline.Load() {
		t.Fatal("job context did not carry the default timeout")
	}
	after := runs.Load()
	time.Sleep(1200 * time.Millisecond)
	if runs.Load() != after {
		t.Fatal("job ran after Stop")
	}
}
