// Package router matches inbound chat messages against "respond" listeners
// (messages addressed to the bot by name or alias) and runs their handlers.
package router

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"standupbot/internal/notifier"
	"standupbot/internal/transport"
	"standupbot/pkg/logx"
)

type NotifierPort interface {
	Notify(ctx context.Context, n transport.Notification) error
}

// Request is what a listener handler receives for one matching message.
type Request struct {
	Message  transport.Message
	Match    []string // regexp submatches of the listener pattern
	Listener string
	ReqID    string

	Adapter transport.Adapter
	Logger  logx.Logger
}

// Room is the opaque room of the message, empty for direct contexts.
func (r *Request) Room() string {
	if r == nil {
		return ""
	}
	return r.Message.Envelope.Room
}

// Reply sends text back to the chat the message came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Message.Chat, text, &transport.SendOptions{DisablePreview: true})
	return err
}

func (r *Request) logger(def logx.Logger) logx.Logger {
	if r != nil && !r.Logger.IsZero() {
		return r.Logger
	}
	return def
}

type listener struct {
	name    string
	pattern string
	timeout time.Duration
	re      *regexp.Regexp
	handle  HandlerFunc
}

type Options struct {
	Name    string
	Alias   string
	Timeout time.Duration // per-handler default, 0 = none
}

type Router struct {
	mu        sync.RWMutex
	name      string
	alias     string
	timeout   time.Duration
	listeners []*listener

	log      logx.Logger
	adapter  transport.Adapter
	notifier NotifierPort
}

// New builds a router. notif may be nil, in which case MessageRoom sends directly.
func New(opts Options, adapter transport.Adapter, notif NotifierPort, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		name:     strings.TrimSpace(opts.Name),
		alias:    strings.TrimSpace(opts.Alias),
		timeout:  opts.Timeout,
		log:      log,
		adapter:  adapter,
		notifier: notif,
	}
}

func (r *Router) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.name
}

// SetIdentity changes the bot name and alias and recompiles every listener.
func (r *Router) SetIdentity(name, alias string) error {
	name, alias = strings.TrimSpace(name), strings.TrimSpace(alias)
	if name == "" {
		return errors.New("bot name required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	compiled := make([]*regexp.Regexp, len(r.listeners))
	for i, l := range r.listeners {
		re, err := respondPattern(name, alias, l.pattern)
		if err != nil {
			return fmt.Errorf("listener %s: %w", l.name, err)
		}
		compiled[i] = re
	}
	for i, l := range r.listeners {
		l.re = compiled[i]
	}
	r.name, r.alias = name, alias
	return nil
}

// Respond registers a listener for messages addressed to the bot whose text
// (after the name) matches pattern, case-insensitively.
func (r *Router) Respond(name, pattern string, h HandlerFunc) error {
	if h == nil {
		return errors.New("handler required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	re, err := respondPattern(r.name, r.alias, pattern)
	if err != nil {
		return fmt.Errorf("listener %s: %w", name, err)
	}
	r.listeners = append(r.listeners, &listener{
		name:    name,
		pattern: pattern,
		timeout: r.timeout,
		re:      re,
		handle:  h,
	})
	return nil
}

// respondPattern builds ^\s*[@]?(?:alias[:,]?|name[:,]?)\s*(?:pattern), case-insensitive.
func respondPattern(name, alias, pattern string) (*regexp.Regexp, error) {
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, err
	}
	addr := regexp.QuoteMeta(name) + "[:,]?"
	if alias != "" {
		addr = regexp.QuoteMeta(alias) + "[:,]?|" + addr
	}
	return regexp.Compile(`(?i)^\s*[@]?(?:` + addr + `)\s*(?:` + pattern + `)`)
}

// DispatchLoop handles updates one at a time until ctx is done or updates is closed.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan transport.Update) error {
	r.log.Info("dispatcher started", logx.Int("listeners", r.listenerCount()))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("dispatcher stopped", logx.Any("err", ctx.Err()))
			return nil
		case up, ok := <-updates:
			if !ok {
				r.log.Info("dispatcher stopped (updates channel closed)")
				return nil
			}
			r.Route(ctx, up)
		}
	}
}

func (r *Router) listenerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

// Route runs every listener matching the update's message text, in registration order.
func (r *Router) Route(ctx context.Context, up transport.Update) {
	if up.Kind != transport.UpdateMessage || up.Message == nil {
		return
	}
	msg := *up.Message
	text := msg.Text
	if strings.TrimSpace(text) == "" {
		return
	}

	r.mu.RLock()
	ls := append([]*listener(nil), r.listeners...)
	res := make([]*regexp.Regexp, len(ls))
	for i, l := range ls {
		res[i] = l.re
	}
	r.mu.RUnlock()

	for i, l := range ls {
		m := res[i].FindStringSubmatch(text)
		if m == nil {
			continue
		}
		rid := newReqID()
		req := &Request{
			Message:  msg,
			Match:    m,
			Listener: l.name,
			ReqID:    rid,
			Adapter:  r.adapter,
			Logger: r.log.With(
				logx.String("rid", rid),
				logx.Int64("from_id", msg.Envelope.User.ID),
				logx.Bool("group", msg.IsGroup),
			),
		}
		final := Chain(
			l.handle,
			MWPanicRecover(r.log),
			MWRequestLog(r.log),
			MWTimeout(l.timeout),
		)
		_ = final(ctx, req)
	}
}

// MessageRoom posts text to an opaque room through the notifier, or directly
// through the adapter when no notifier is running.
func (r *Router) MessageRoom(ctx context.Context, room, text string) error {
	target, err := transport.ParseRoom(room)
	if err != nil {
		return fmt.Errorf("message room %q: %w", room, err)
	}
	if r.notifier != nil {
		err := r.notifier.Notify(ctx, transport.Notification{
			Channel: "telegram",
			Target:  target,
			Text:    text,
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, notifier.ErrDisabled) && !errors.Is(err, notifier.ErrStopped) {
			return err
		}
	}
	_, err = r.adapter.SendText(ctx, target, text, nil)
	return err
}
