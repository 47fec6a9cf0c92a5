package standup

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// BrainKey is the brain entry holding the serialized reminder collection.
const BrainKey = "standups"

// Reminder is one daily weekday reminder for a room. Time is kept exactly as
// typed ("9:30" and "09:30" are different reminders that fire together).
type Reminder struct {
	Time string `json:"time"`
	Room string `json:"room"`
}

// Brain is the key-value store reminders are persisted in.
type Brain interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Store reads and rewrites the whole collection on every operation.
// Duplicates are allowed and kept in insertion order.
type Store struct {
	mu    sync.Mutex
	brain Brain
}

func NewStore(brain Brain) *Store {
	return &Store{brain: brain}
}

// All returns every reminder, or an empty slice when none were ever saved.
func (s *Store) All(ctx context.Context) ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Store) ForRoom(ctx context.Context, room string) ([]Reminder, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	out := []Reminder{}
	for _, r := range all {
		if r.Room == room {
			out = append(out, r)
		}
	}
	return out, nil
}

// Save appends a reminder. The time is not validated here.
func (s *Store) Save(ctx context.Context, room, time string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	return s.storeLocked(ctx, append(all, Reminder{Time: time, Room: room}))
}

// DeleteAllForRoom removes every reminder of room and returns how many were removed.
func (s *Store) DeleteAllForRoom(ctx context.Context, room string) (int, error) {
	return s.deleteWhere(ctx, func(r Reminder) bool { return r.Room == room })
}

// DeleteOne removes every reminder of room at exactly time, duplicates included.
func (s *Store) DeleteOne(ctx context.Context, room, time string) (int, error) {
	return s.deleteWhere(ctx, func(r Reminder) bool { return r.Room == room && r.Time == time })
}

func (s *Store) deleteWhere(ctx context.Context, match func(Reminder) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.loadLocked(ctx)
	if err != nil {
		return 0, err
	}
	keep := make([]Reminder, 0, len(all))
	for _, r := range all {
		if !match(r) {
			keep = append(keep, r)
		}
	}
	removed := len(all) - len(keep)
	if err := s.storeLocked(ctx, keep); err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Store) loadLocked(ctx context.Context) ([]Reminder, error) {
	b, ok, err := s.brain.Get(ctx, BrainKey)
	if err != nil {
		return nil, fmt.Errorf("load standups: %w", err)
	}
	out := []Reminder{}
	if !ok || len(b) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode standups: %w", err)
	}
	if out == nil {
		out = []Reminder{}
	}
	return out, nil
}

// storeLocked rewrites the collection. An empty collection drops the key,
// which reads back as no reminders.
func (s *Store) storeLocked(ctx context.Context, all []Reminder) error {
	if len(all) == 0 {
		if err := s.brain.Delete(ctx, BrainKey); err != nil {
			return fmt.Errorf("save standups: %w", err)
		}
		return nil
	}
	b, err := json.Marshal(all)
	if err != nil {
		return err
	}
	if err := s.brain.Set(ctx, BrainKey, b); err != nil {
		return fmt.Errorf("save standups: %w", err)
	}
	return nil
}
