package standup

import (
	"context"
	"strconv"
	"strings"

	"standupbot/internal/router"
)

// Responder registers listeners for messages addressed to the bot.
type Responder interface {
	Respond(name, pattern string, h router.HandlerFunc) error
	Name() string
}

const timePattern = `([0-5]?[0-9]:[0-5]?[0-9])`

type Commands struct {
	store *Store
	name  func() string
}

// NewCommands builds the chat handlers. name returns the bot name used in help text.
func NewCommands(store *Store, name func() string) *Commands {
	return &Commands{store: store, name: name}
}

// Register adds the listeners to r, using r.Name for help text when none was given.
func (c *Commands) Register(r Responder) error {
	if c.name == nil {
		c.name = r.Name
	}
	listeners := []struct {
		name, pattern string
		h             router.HandlerFunc
	}{
		{"standup.delete_all", `delete all standups`, c.deleteAll},
		{"standup.delete", `delete ` + timePattern + ` standup`, c.deleteOne},
		{"standup.create", `create standup ` + timePattern + `$`, c.create},
		{"standup.list", `list standups$`, c.list},
		{"standup.list_all", `list standups in every room`, c.listAll},
		{"standup.help", `standup help`, c.help},
	}
	for _, l := range listeners {
		if err := r.Respond(l.name, l.pattern, l.h); err != nil {
			return err
		}
	}
	return nil
}

// roomOf is the envelope room, or the sender's reply-to address in direct chats.
func roomOf(req *router.Request) string {
	env := req.Message.Envelope
	if env.Room != "" {
		return env.Room
	}
	return env.User.ReplyTo
}

func (c *Commands) create(ctx context.Context, req *router.Request) error {
	t := req.Match[1]
	if err := c.store.Save(ctx, roomOf(req), t); err != nil {
		return err
	}
	return req.Reply(ctx, "Ok, from now on I'll remind this room to do a standup every weekday at "+t)
}

func (c *Commands) list(ctx context.Context, req *router.Request) error {
	rs, err := c.store.ForRoom(ctx, roomOf(req))
	if err != nil {
		return err
	}
	return req.Reply(ctx, formatRoomList(rs))
}

func (c *Commands) listAll(ctx context.Context, req *router.Request) error {
	rs, err := c.store.All(ctx)
	if err != nil {
		return err
	}
	return req.Reply(ctx, formatEveryRoomList(rs))
}

func (c *Commands) deleteOne(ctx context.Context, req *router.Request) error {
	t := req.Match[1]
	n, err := c.store.DeleteOne(ctx, roomOf(req), t)
	if err != nil {
		return err
	}
	if n == 0 {
		return req.Reply(ctx, "Nice try. You don't even have a standup at "+t)
	}
	return req.Reply(ctx, "Deleted your "+t+" standup.")
}

func (c *Commands) deleteAll(ctx context.Context, req *router.Request) error {
	n, err := c.store.DeleteAllForRoom(ctx, roomOf(req))
	if err != nil {
		return err
	}
	return req.Reply(ctx, deletedAllText(n))
}

func (c *Commands) help(ctx context.Context, req *router.Request) error {
	return req.Reply(ctx, HelpText(c.name()))
}

func formatRoomList(rs []Reminder) string {
	if len(rs) == 0 {
		return "Well this is awkward. You haven't got any standups set :-/"
	}
	lines := []string{"Here's your standups:"}
	for _, r := range rs {
		lines = append(lines, r.Time)
	}
	return strings.Join(lines, "\n")
}

func formatEveryRoomList(rs []Reminder) string {
	if len(rs) == 0 {
		return "No, because there aren't any."
	}
	lines := []string{"Here's the standups for every room:"}
	for _, r := range rs {
		lines = append(lines, "Room: "+r.Room+", Time: "+r.Time)
	}
	return strings.Join(lines, "\n")
}

func deletedAllText(n int) string {
	noun := "standups"
	if n == 1 {
		noun = "standup"
	}
	return "Deleted " + strconv.Itoa(n) + " " + noun + ". No more standups for you."
}

// HelpText is the usage message with name on every example line.
func HelpText(name string) string {
	return strings.Join([]string{
		"I can remind you to do your daily standup!",
		"Use me to create a standup, and then I'll post in this room every weekday at the time you specify. Here's how:",
		"",
		name + " create standup hh:mm - I'll remind you to standup in this room at hh:mm every weekday.",
		name + " list standups - See all standups for this room.",
		name + " list standups in every room - Be nosey and see when other rooms have their standup.",
		name + " delete hh:mm standup - If you have a standup at hh:mm, I'll delete it.",
		name + " delete all standups - Deletes all standups for this room.",
	}, "\n")
}
