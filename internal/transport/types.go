package transport

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidRoom = errors.New("invalid room")

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

// User is the sender of an inbound message.
//
// ReplyTo is the address a direct reply should go to. Adapters set it for
// contexts that have no room (e.g. private chats).
type User struct {
	ID       int64
	Username string
	ReplyTo  string
}

// Envelope is the routing metadata of an inbound message.
// Room is empty for direct/private contexts.
type Envelope struct {
	Room string
	User User
}

type Message struct {
	ID       int
	Envelope Envelope
	Chat     ChatTarget // where replies to this message go
	Text     string
	IsGroup  bool
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// Room encodes the target as an opaque room identifier: "<chat>" or
// "<chat>/<thread>" for forum topics.
func (t ChatTarget) Room() string {
	if t.ThreadID != 0 {
		return strconv.FormatInt(t.ChatID, 10) + "/" + strconv.Itoa(t.ThreadID)
	}
	return strconv.FormatInt(t.ChatID, 10)
}

// ParseRoom is the inverse of ChatTarget.Room.
func ParseRoom(room string) (ChatTarget, error) {
	room = strings.TrimSpace(room)
	if room == "" {
		return ChatTarget{}, ErrInvalidRoom
	}
	chat, thread, hasThread := strings.Cut(room, "/")
	id, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return ChatTarget{}, errors.Join(ErrInvalidRoom, err)
	}
	t := ChatTarget{ChatID: id}
	if hasThread {
		tid, err := strconv.Atoi(thread)
		if err != nil {
			return ChatTarget{}, errors.Join(ErrInvalidRoom, err)
		}
		t.ThreadID = tid
	}
	return t, nil
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

type Notification struct {
	Channel  string // "telegram" now
	Target   ChatTarget
	Text     string
	Options  *SendOptions
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// Identity is an optional interface for adapters that know the bot's own
// account name on the platform.
type Identity interface {
	Username() string
}
