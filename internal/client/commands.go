package client

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/gkactivo/relaychat/internal/protocol"
)

func (a *App) handleSubmit(value string) tea.Cmd {
	if strings.HasPrefix(value, string(a.cfg.CommandPrefix)) {
		return a.executeCommand(value)
	}
	return a.sendChatMessage(value)
}

func (a *App) executeCommand(raw string) tea.Cmd {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}

	cmd := fields[0]
	var cmds []tea.Cmd

	switch cmd {
	case "/chat":
		a.view = viewChat
		a.logf("Switched to CHAT view")
	case "/help":
		a.view = viewHelp
		a.logf("Switched to HELP view")
	case "/pipe":
		if len(fields) > 1 && strings.EqualFold(fields[1], "clear") {
			a.pipeHistory = make([]pipeEntry, 0, pipeHistoryLimit)
			a.logf("Cleared pipe history")
			break
		}
		a.view = viewPipe
		a.logf("Switched to PIPE view")
	case "/connect":
		target := a.serverAddr
		if len(fields) > 1 {
			target = fields[1]
		}
		if target == "" {
			a.logErrorf("Provide a server address to connect")
			break
		}
		if connectCmd := a.connectToServer(target); connectCmd != nil {
			cmds = append(cmds, connectCmd)
		}
	case "/nick":
		if len(fields) < 2 {
			a.logErrorf("Usage: /nick <name>")
			break
		}
		a.username = fields[1]
		a.logf("Username set to %s", a.username)
	case "/join":
		if !a.isConnected() {
			a.logErrorf("Not connected. Use /connect first.")
			break
		}
		if a.username == "" {
			a.logErrorf("Set a username first with /nick <name>")
			break
		}
		room := strings.TrimSpace(a.cfg.Room)
		if len(fields) > 1 {
			room = fields[1]
		}
		// An empty room is fine; the server picks its default. Room
		// names are case-sensitive: "General" and "general" are
		// distinct rooms.
		if room != "" && strings.TrimSpace(room) == strings.TrimSpace(a.room) {
			a.logf("Already in room %s", room)
			break
		}
		if joinCmd := a.sendJoin(room); joinCmd != nil {
			cmds = append(cmds, joinCmd)
		}
	case "/quit":
		a.logf("Exiting client")
		cmds = append(cmds, a.quit())
	default:
		a.logErrorf("Command %s not implemented", cmd)
	}

	a.updateViewportContent()

	switch len(cmds) {
	case 0:
		return nil
	case 1:
		return cmds[0]
	default:
		return tea.Batch(cmds...)
	}
}

func (a *App) connectToServer(target string) tea.Cmd {
	if target == "" {
		return nil
	}
	if a.session != nil {
		_ = a.session.Close()
	}

	cfg := a.cfg
	cfg.ServerAddr = target
	session := NewSession(cfg)
	a.session = session
	a.serverAddr = target
	a.statusOnline = false
	a.room = "-"
	a.typingUsers = nil
	a.logf("Connecting to %s ...", target)

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := session.Connect(ctx)
		return connectResultMsg{
			session: session,
			address: target,
			err:     err,
		}
	}
}

func (a *App) listenForSession() tea.Cmd {
	session := a.session
	if session == nil {
		return nil
	}
	return func() tea.Msg {
		env, ok := <-session.Messages()
		if !ok {
			return sessionClosedMsg{session: session}
		}
		return sessionEnvelopeMsg{session: session, envelope: env}
	}
}

func (a *App) sendJoin(room string) tea.Cmd {
	session := a.session
	if session == nil {
		return nil
	}
	room = strings.TrimSpace(room)
	if room == "" {
		a.logf("Joining the default room as %s ...", a.username)
	} else {
		a.logf("Joining room %s as %s ...", room, a.username)
	}

	env := protocol.Envelope{
		ID:      uuid.NewString(),
		Type:    protocol.EventTypeJoin,
		Payload: protocol.JoinRequest{Username: a.username, Room: room},
	}
	return a.sendEnvelope(session, env, "join request")
}

func (a *App) sendChatMessage(text string) tea.Cmd {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if !a.isConnected() {
		a.logErrorf("Not connected. Use /connect first.")
		return nil
	}
	if !a.hasActiveRoom() {
		a.logErrorf("Join a room before chatting (use /join [room])")
		return nil
	}
	session := a.session
	if session == nil {
		return nil
	}
	if a.view != viewChat && a.view != viewPipe {
		a.view = viewChat
		a.updateViewportContent()
	}

	env := protocol.Envelope{
		ID:      uuid.NewString(),
		Type:    protocol.EventTypeMessage,
		Payload: protocol.MessageSend{Text: text},
	}
	return a.sendEnvelope(session, env, "chat message")
}

func (a *App) sendEnvelope(session *Session, env protocol.Envelope, description string) tea.Cmd {
	if session == nil {
		return nil
	}
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	envCopy := env
	if envCopy.Timestamp.IsZero() {
		envCopy.Timestamp = time.Now().UTC()
	}
	a.appendPipeEntry(pipeDirectionOut, envCopy)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := session.Send(ctx, envCopy)
		return sendResultMsg{
			session:     session,
			description: description,
			err:         err,
		}
	}
}

// completeCommand extends a partial slash command to the longest
// prefix shared by the triggers that match it. Completion only applies
// while the cursor sits at the end of a bare trigger; once arguments
// start, tab does nothing.
func (a *App) completeCommand() {
	draft := a.input.Value()
	if !strings.HasPrefix(draft, string(a.cfg.CommandPrefix)) {
		return
	}
	if strings.ContainsAny(draft, " \t") {
		return
	}
	if a.input.Position() != len([]rune(draft)) {
		return
	}

	completed := completeTrigger(draft, a.commands)
	if completed == draft {
		return
	}
	a.input.SetValue(completed)
	a.input.CursorEnd()
}

// completeTrigger folds the matching triggers into their shared prefix
// in a single pass. A draft that matches nothing comes back unchanged.
func completeTrigger(draft string, commands []commandSpec) string {
	shared := ""
	for _, c := range commands {
		if !strings.HasPrefix(c.trigger, draft) {
			continue
		}
		if shared == "" {
			shared = c.trigger
			continue
		}
		n := 0
		for n < len(shared) && n < len(c.trigger) && shared[n] == c.trigger[n] {
			n++
		}
		shared = shared[:n]
	}
	if shared == "" {
		return draft
	}
	return shared
}

func defaultCommands() []commandSpec {
	return []commandSpec{
		{trigger: "/connect", usage: "/connect [addr]", description: "Connect to the server"},
		{trigger: "/nick", usage: "/nick <name>", description: "Set your display name"},
		{trigger: "/join", usage: "/join [room]", description: "Join a room (default room when omitted)"},
		{trigger: "/chat", usage: "/chat", description: "Switch to chat view"},
		{trigger: "/pipe", usage: "/pipe [clear]", description: "Inspect transport JSON frames"},
		{trigger: "/help", usage: "/help", description: "Show command help"},
		{trigger: "/quit", usage: "/quit", description: "Exit the client"},
	}
}
