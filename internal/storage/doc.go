// Package storage provides the bot's persistent key-value "brain".
//
// Values are opaque bytes keyed by name. Drivers:
//   - memory: process-local map (lost on restart)
//   - file:   whole-map JSON snapshot, rewritten atomically on every Set
//   - sqlite: single table in a SQLite database file
//   - redis:  one redis string per key, under a configurable prefix
package storage
