package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gkactivo/relaychat/internal/config"
	"github.com/gkactivo/relaychat/internal/protocol"
)

// App implements tea.Model for the relay terminal client.
type App struct {
	cfg      config.ClientConfig
	session  *Session
	input    textinput.Model
	viewport viewport.Model
	helper   help.Model
	styles   styleSet
	commands []commandSpec

	view        clientView
	width       int
	height      int
	serverAddr  string
	username    string
	room        string
	statusOnline bool

	chatHistory []string
	pipeHistory []pipeEntry
	typingUsers []string
	draftTyping bool

	logLine    logEntry
	showHelp   bool
	helpView   string
	helpHeight int
}

type clientView int

const (
	viewChat clientView = iota
	viewPipe
	viewHelp
)

func (v clientView) String() string {
	switch v {
	case viewChat:
		return "chat"
	case viewPipe:
		return "pipe"
	case viewHelp:
		return "help"
	default:
		return "unknown"
	}
}

type commandSpec struct {
	trigger     string
	usage       string
	description string
}

type logLevel int

const (
	logLevelInfo logLevel = iota
	logLevelError
)

type logEntry struct {
	label string
	body  string
	level logLevel
}

type pipeDirection string

const (
	pipeDirectionIn  pipeDirection = "IN"
	pipeDirectionOut pipeDirection = "OUT"
)

type pipeEntry struct {
	direction   pipeDirection
	messageType string
	timestamp   time.Time
	body        string
}

const pipeHistoryLimit = 50

type styleSet struct {
	title         lipgloss.Style
	view          lipgloss.Style
	statusOnline  lipgloss.Style
	statusOffline lipgloss.Style
	label         lipgloss.Style
	value         lipgloss.Style
	presence      lipgloss.Style
	typing        lipgloss.Style
	logLabel      lipgloss.Style
	logBody       lipgloss.Style
	logLabelError lipgloss.Style
	logBodyError  lipgloss.Style
	help          lipgloss.Style
}

// NewApp returns a Bubble Tea model pre-populated with defaults.
func NewApp(cfg config.ClientConfig) tea.Model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "type a message, or / for commands"
	input.Focus()

	app := &App{
		cfg:        cfg,
		input:      input,
		viewport:   viewport.New(0, 0),
		helper:     help.New(),
		styles:     buildStyles(),
		commands:   defaultCommands(),
		view:       viewChat,
		serverAddr: cfg.ServerAddr,
		username:   strings.TrimSpace(cfg.Username),
		room:       "-",
	}
	app.logf("Welcome. Use %sconnect to reach the server.", string(cfg.CommandPrefix))
	app.updateViewportContent()
	return app
}

// Init is part of the tea.Model interface.
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles user input and session events.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = m.Width
		a.height = m.Height
		a.updateViewportSize()
		a.updateInputWidth()
		a.updateViewportContent()
		return a, nil
	case tea.KeyMsg:
		return a.handleKey(m)
	case connectResultMsg:
		return a.handleConnectResult(m)
	case sessionEnvelopeMsg:
		return a.handleSessionEnvelopeMsg(m)
	case sessionClosedMsg:
		return a.handleSessionClosed(m)
	case sendResultMsg:
		return a.handleSendResult(m)
	default:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(m)
		return a, cmd
	}
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, a.quit()
	case "tab":
		a.completeCommand()
		a.updateHelp()
		a.updateViewportSize()
		return a, nil
	case "enter":
		value := a.input.Value()
		a.input.SetValue("")
		a.updateHelp()
		a.updateViewportSize()
		cmds := []tea.Cmd{a.handleSubmit(value)}
		if cmd := a.stopDraftTyping(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return a, tea.Batch(cmds...)
	case "pgup":
		a.viewport.LineUp(a.viewport.Height)
		return a, nil
	case "pgdown":
		a.viewport.LineDown(a.viewport.Height)
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	a.updateHelp()
	a.updateViewportSize()
	a.updateViewportContent()

	cmds := []tea.Cmd{cmd}
	if typingCmd := a.updateDraftTyping(); typingCmd != nil {
		cmds = append(cmds, typingCmd)
	}
	return a, tea.Batch(cmds...)
}

// updateDraftTyping emits the typing flag on draft transitions: true
// when the first rune of a message appears, false when the draft
// empties again. Commands never count as a draft.
func (a *App) updateDraftTyping() tea.Cmd {
	value := a.input.Value()
	isDraft := value != "" && !strings.HasPrefix(value, string(a.cfg.CommandPrefix))

	switch {
	case isDraft && !a.draftTyping:
		a.draftTyping = true
		return a.sendTyping(true)
	case !isDraft && a.draftTyping:
		a.draftTyping = false
		return a.sendTyping(false)
	}
	return nil
}

func (a *App) stopDraftTyping() tea.Cmd {
	if !a.draftTyping {
		return nil
	}
	a.draftTyping = false
	return a.sendTyping(false)
}

func (a *App) sendTyping(isTyping bool) tea.Cmd {
	if !a.isConnected() || !a.hasActiveRoom() {
		return nil
	}
	env := protocol.Envelope{
		Type:    protocol.EventTypeTyping,
		Payload: protocol.TypingRequest{IsTyping: isTyping},
	}
	return a.sendEnvelope(a.session, env, "typing update")
}

func (a *App) handleConnectResult(msg connectResultMsg) (tea.Model, tea.Cmd) {
	if msg.session != a.session {
		return a, nil
	}
	if msg.err != nil {
		a.session = nil
		a.logErrorf("Connection failed: %v", msg.err)
		return a, nil
	}
	a.statusOnline = true
	a.serverAddr = msg.address
	a.logf("Connected to %s", msg.address)

	cmds := []tea.Cmd{a.listenForSession()}
	if a.username != "" && strings.TrimSpace(a.cfg.Room) != "" {
		if joinCmd := a.sendJoin(a.cfg.Room); joinCmd != nil {
			cmds = append(cmds, joinCmd)
		}
	}
	return a, tea.Batch(cmds...)
}

func (a *App) handleSessionEnvelopeMsg(msg sessionEnvelopeMsg) (tea.Model, tea.Cmd) {
	if msg.session != a.session || a.session == nil {
		return a, nil
	}
	a.handleSessionEnvelope(msg.envelope)
	return a, a.listenForSession()
}

func (a *App) handleSessionClosed(msg sessionClosedMsg) (tea.Model, tea.Cmd) {
	if msg.session != a.session || a.session == nil {
		return a, nil
	}
	a.session = nil
	a.statusOnline = false
	a.room = "-"
	a.typingUsers = nil
	a.draftTyping = false
	a.logErrorf("Connection closed")
	a.updateViewportContent()
	return a, nil
}

func (a *App) handleSendResult(msg sendResultMsg) (tea.Model, tea.Cmd) {
	if msg.session != a.session {
		return a, nil
	}
	if msg.err != nil {
		a.logErrorf("Failed to send %s: %v", msg.description, msg.err)
	}
	return a, nil
}

func (a *App) quit() tea.Cmd {
	if a.session != nil {
		_ = a.session.Close()
		a.session = nil
	}
	a.statusOnline = false
	return tea.Quit
}

func (a *App) logf(format string, args ...interface{}) {
	a.logLine = logEntry{label: "INFO", body: fmt.Sprintf(format, args...), level: logLevelInfo}
}

func (a *App) logErrorf(format string, args ...interface{}) {
	a.logLine = logEntry{label: "ERROR", body: fmt.Sprintf(format, args...), level: logLevelError}
}

type connectResultMsg struct {
	session *Session
	address string
	err     error
}

type sessionEnvelopeMsg struct {
	session  *Session
	envelope protocol.Envelope
}

type sessionClosedMsg struct {
	session *Session
}

type sendResultMsg struct {
	session     *Session
	description string
	err         error
}
