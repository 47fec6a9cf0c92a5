package adapter

import (
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()
	if got := splitTelegramText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short text split into %q", got)
	}

	long := strings.Repeat("a", 25)
	got := splitTelegramText(long, 10)
	if len(got) != 3 || got[0] != strings.Repeat("a", 10) || got[2] != "aaaaa" {
		t.Fatalf("split = %q", got)
	}

	lines := "Here's your standups:\n09:30\n10:00\n11:00"
	got = splitTelegramText(lines, 30)
	for _, c := range got {
		if len([]rune(c)) > 30 || strings.HasPrefix(c, "\n") || strings.HasSuffix(c, "\n") {
			t.Fatalf("bad chunk %q in %q", c, got)
		}
	}
	if strings.Join(got, "\n") != lines {
		t.Fatalf("chunks %q do not rejoin to the input", got)
	}
}

func TestToMessage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		in        *tele.Message
		wantRoom  string
		wantReply string
		wantGroup bool
		wantChat  int64
		wantTopic int
	}{
		{
			name:      "group",
			in:        &tele.Message{ID: 5, Text: "hi", Chat: &tele.Chat{ID: -1001, Type: tele.ChatSuperGroup}, Sender: &tele.User{ID: 7, Username: "ann"}},
			wantRoom:  "-1001",
			wantGroup: true,
			wantChat:  -1001,
		},
		{
			name:      "forum topic",
			in:        &tele.Message{ID: 6, Chat: &tele.Chat{ID: -1001, Type: tele.ChatSuperGroup}, ThreadID: 42, TopicMessage: true},
			wantRoom:  "-1001/42",
			wantGroup: true,
			wantChat:  -1001,
			wantTopic: 42,
		},
		{
			name:      "private",
			in:        &tele.Message{ID: 7, Chat: &tele.Chat{ID: 7, Type: tele.ChatPrivate}, Sender: &tele.User{ID: 7}},
			wantReply: "7",
			wantChat:  7,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := toMessage(tt.in)
			if got == nil {
				t.Fatal("toMessage returned nil")
			}
			if got.Envelope.Room != tt.wantRoom || got.Envelope.User.ReplyTo != tt.wantReply {
				t.Fatalf("envelope = %+v", got.Envelope)
			}
			if got.IsGroup != tt.wantGroup || got.Chat.ChatID != tt.wantChat || got.Chat.ThreadID != tt.wantTopic {
				t.Fatalf("message = %+v", got)
			}
		})
	}

	if toMessage(nil) != nil || toMessage(&tele.Message{}) != nil {
		t.Fatal("expected nil for messages without a chat")
	}
}
