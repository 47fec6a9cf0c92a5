// Package standup keeps per-room weekday standup reminders and fires them.
//
// Reminders live as one JSON array under the "standups" brain key. A cron
// tick at second 1 of every weekday minute compares each reminder's HH:MM with
// the local wall clock and posts a canned message to matching rooms. Chat
// commands create, list and delete reminders.
package standup
