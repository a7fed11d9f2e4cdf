package client

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/textinput"

	"github.com/gkactivo/relaychat/internal/config"
	"github.com/gkactivo/relaychat/internal/protocol"
)

func TestCompleteTrigger(t *testing.T) {
	commands := defaultCommands()

	tests := []struct {
		draft string
		want  string
	}{
		{"/j", "/join"},
		{"/c", "/c"},
		{"/ch", "/chat"},
		{"/pi", "/pipe"},
		{"/join", "/join"},
		{"/zzz", "/zzz"},
		{"/", "/"},
	}

	for _, tt := range tests {
		if got := completeTrigger(tt.draft, commands); got != tt.want {
			t.Errorf("completeTrigger(%q) = %q, want %q", tt.draft, got, tt.want)
		}
	}
}

func TestCompleteCommandSkipsArguments(t *testing.T) {
	app := &App{cfg: config.ClientConfig{CommandPrefix: '/'}, commands: defaultCommands(), input: textinput.New()}
	app.input.SetValue("/join lobby")
	app.input.CursorEnd()

	app.completeCommand()

	if got := app.input.Value(); got != "/join lobby" {
		t.Fatalf("completion changed a draft with arguments: %q", got)
	}
}

func TestCompleteCommandExtendsTrigger(t *testing.T) {
	app := &App{cfg: config.ClientConfig{CommandPrefix: '/'}, commands: defaultCommands(), input: textinput.New()}
	app.input.SetValue("/ni")
	app.input.CursorEnd()

	app.completeCommand()

	if got := app.input.Value(); got != "/nick" {
		t.Fatalf("expected completion to /nick, got %q", got)
	}
}

func TestJoinRoomNamesCaseSensitive(t *testing.T) {
	app := &App{
		cfg:          config.ClientConfig{CommandPrefix: '/'},
		session:      &Session{},
		statusOnline: true,
		username:     "alice",
		room:         "general",
		commands:     defaultCommands(),
	}

	// A differently-cased name is a distinct room and must be joined.
	if cmd := app.executeCommand("/join General"); cmd == nil {
		t.Fatal("expected a join command for a differently-cased room")
	}
	if !strings.Contains(app.logLine.body, "Joining room General") {
		t.Fatalf("expected join attempt, got log %q", app.logLine.body)
	}

	app.room = "general"
	if cmd := app.executeCommand("/join general"); cmd != nil {
		t.Fatal("expected no join command for the current room")
	}
	if !strings.Contains(app.logLine.body, "Already in room general") {
		t.Fatalf("expected already-in-room notice, got log %q", app.logLine.body)
	}
}

func TestChatMessageRoomMatchCaseSensitive(t *testing.T) {
	app := &App{room: "general"}

	app.handleChatMessage(protocol.Envelope{
		Type:    protocol.EventTypeMessage,
		Payload: protocol.ChatMessage{ID: 1, Username: "bob", Text: "hi", Room: "General"},
	})
	if len(app.chatHistory) != 0 {
		t.Fatalf("message for a differently-cased room was rendered: %v", app.chatHistory)
	}

	app.handleChatMessage(protocol.Envelope{
		Type:    protocol.EventTypeMessage,
		Payload: protocol.ChatMessage{ID: 2, Username: "bob", Text: "hi", Room: "general"},
	})
	if len(app.chatHistory) != 1 {
		t.Fatalf("expected exactly the matching-room message, got %v", app.chatHistory)
	}
}
