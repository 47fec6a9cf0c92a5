package standup

import (
	"context"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"standupbot/internal/scheduler"
	"standupbot/pkg/logx"
)

const (
	// ClockSchedule is the scheduler entry name of the reminder tick.
	ClockSchedule = "standup:clock"
	// ClockSpec fires at second 1 of every minute, Monday to Friday.
	ClockSpec = "1 * * * * 1-5"
)

// Messages are the canned reminder texts, one picked at random per firing.
var Messages = []string{
	"Standup time!",
	"Time for standup, you guys.",
	"It's standup time once again!",
	"Get up, stand up (it's time for our standup)",
	"Standup time. Get up, humans",
	"Standup time! Now! Go go go!",
}

// RoomMessenger posts text into an opaque room.
type RoomMessenger interface {
	MessageRoom(ctx context.Context, room, text string) error
}

// Scheduler is the subset of the scheduler service the clock registers with.
type Scheduler interface {
	AddCron(name, spec string, timeout time.Duration, job scheduler.Job) (string, error)
}

type Clock struct {
	store *Store
	out   RoomMessenger
	log   logx.Logger

	now  func() time.Time
	pick func(n int) int
}

type ClockOption func(*Clock)

// WithNow overrides the wall clock.
func WithNow(now func() time.Time) ClockOption {
	return func(c *Clock) { c.now = now }
}

// WithPicker overrides the random message picker; pick(n) must return [0, n).
func WithPicker(pick func(n int) int) ClockOption {
	return func(c *Clock) { c.pick = pick }
}

func NewClock(store *Store, out RoomMessenger, log logx.Logger, opts ...ClockOption) *Clock {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Clock{store: store, out: out, log: log, now: time.Now, pick: rand.IntN}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Register installs the tick on the scheduler. spec defaults to ClockSpec.
func (c *Clock) Register(s Scheduler, spec string, timeout time.Duration) error {
	if strings.TrimSpace(spec) == "" {
		spec = ClockSpec
	}
	_, err := s.AddCron(ClockSchedule, spec, timeout, c.Tick)
	return err
}

// ShouldFire reports whether a reminder at hhmm is due at now. Malformed times never fire.
func ShouldFire(hhmm string, now time.Time) bool {
	parts := strings.Split(hhmm, ":")
	if len(parts) < 2 {
		return false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}
	return h == now.Hour() && m == now.Minute()
}

// Tick fires every reminder due this minute. A load failure skips the whole
// tick; a failed send only skips that reminder.
func (c *Clock) Tick(ctx context.Context) error {
	all, err := c.store.All(ctx)
	if err != nil {
		return err
	}
	now := c.now()
	fired := 0
	for _, r := range all {
		if !ShouldFire(r.Time, now) {
			continue
		}
		msg := Messages[c.pick(len(Messages))]
		if err := c.out.MessageRoom(ctx, r.Room, msg); err != nil {
			c.log.Warn("standup reminder not sent", logx.String("room", r.Room), logx.String("time", r.Time), logx.Err(err))
			continue
		}
		fired++
	}
	if fired > 0 {
		c.log.Info("standups fired", logx.Int("count", fired), logx.String("at", now.Format("15:04")))
	}
	return nil
}
