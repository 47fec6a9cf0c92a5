package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a scheduled unit of work. ctx carries the schedule timeout.
type Job func(ctx context.Context) error

type Config struct {
	Enabled        bool
	DefaultTimeout time.Duration // used when a schedule has no timeout; 0 disables
}

type scheduleDef struct {
	name    string
	spec    string
	timeout time.Duration
	job     Job
	entryID cron.EntryID
}

type ScheduleInfo struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Next    time.Time
	Prev    time.Time
}

type Snapshot struct {
	Enabled   bool
	Running   bool
	Schedules []ScheduleInfo
}
