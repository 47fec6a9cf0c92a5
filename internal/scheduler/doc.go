// Package scheduler registers named cron schedules and runs their jobs.
//
// Schedules are robfig/cron specs with an optional leading seconds field.
// Triggers use the server's local wall clock.
package scheduler
