package client

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gkactivo/relaychat/internal/protocol"
)

func (a *App) handleSessionEnvelope(env protocol.Envelope) {
	a.appendPipeEntry(pipeDirectionIn, env)
	switch env.Type {
	case protocol.EventTypeHistory:
		a.handleHistory(env)
	case protocol.EventTypeMessage:
		a.handleChatMessage(env)
	case protocol.EventTypeUserJoined:
		a.handlePresence(env, true)
	case protocol.EventTypeUserLeft:
		a.handlePresence(env, false)
	case protocol.EventTypeTyping:
		a.handleTypingNotice(env)
	default:
		a.logErrorf("Received unhandled %s event", string(env.Type))
	}
}

func (a *App) handleHistory(env protocol.Envelope) {
	history, err := decodeHistoryPayload(env.Payload)
	if err != nil {
		a.logErrorf("Failed to decode history: %v", err)
		return
	}
	room := strings.TrimSpace(history.Room)
	if room == "" {
		a.logErrorf("Received history without room")
		return
	}
	a.room = room
	a.typingUsers = nil
	a.chatHistory = make([]string, 0, len(history.Messages))
	for _, msg := range history.Messages {
		a.chatHistory = append(a.chatHistory, formatChatMessage(msg))
	}
	a.updateViewportContent()
	if a.view == viewChat {
		a.viewport.GotoBottom()
	}
	a.logf("Joined %s (%d recent messages)", room, len(history.Messages))
}

func (a *App) handleChatMessage(env protocol.Envelope) {
	msg, err := decodeChatMessage(env.Payload)
	if err != nil {
		a.logErrorf("Failed to decode chat message: %v", err)
		return
	}
	// Room names are case-sensitive; only an exact match belongs to
	// the current room.
	room := strings.TrimSpace(msg.Room)
	if room == "" || room != strings.TrimSpace(a.room) {
		return
	}
	// A message from someone supersedes their typing indicator.
	a.clearTypingUser(msg.Username)
	a.appendChatLine(formatChatMessage(msg))
}

func (a *App) handlePresence(env protocol.Envelope, joined bool) {
	presence, err := decodePresencePayload(env.Payload)
	if err != nil {
		a.logErrorf("Failed to decode presence notice: %v", err)
		return
	}
	if !joined {
		a.clearTypingUser(presence.Username)
	}
	text := strings.TrimSpace(presence.Message)
	if text == "" {
		if joined {
			text = fmt.Sprintf("%s joined", presence.Username)
		} else {
			text = fmt.Sprintf("%s left", presence.Username)
		}
	}
	a.appendChatLine(a.styles.presence.Render("» " + text))
}

func (a *App) handleTypingNotice(env protocol.Envelope) {
	notice, err := decodeTypingNotice(env.Payload)
	if err != nil {
		a.logErrorf("Failed to decode typing notice: %v", err)
		return
	}
	if notice.Username == "" {
		return
	}
	if notice.IsTyping {
		a.addTypingUser(notice.Username)
	} else {
		a.clearTypingUser(notice.Username)
	}
}

func (a *App) addTypingUser(username string) {
	for _, existing := range a.typingUsers {
		if existing == username {
			return
		}
	}
	a.typingUsers = append(a.typingUsers, username)
}

func (a *App) clearTypingUser(username string) {
	for i, existing := range a.typingUsers {
		if existing == username {
			a.typingUsers = append(a.typingUsers[:i], a.typingUsers[i+1:]...)
			return
		}
	}
}

func (a *App) isConnected() bool {
	return a.session != nil && a.statusOnline
}

func (a *App) hasActiveRoom() bool {
	room := strings.TrimSpace(a.room)
	return room != "" && room != "-"
}

func (a *App) appendChatLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	a.chatHistory = append(a.chatHistory, line)
	if a.view == viewChat {
		a.updateViewportContent()
		a.viewport.GotoBottom()
	}
}

func (a *App) appendPipeEntry(direction pipeDirection, env protocol.Envelope) {
	if a.pipeHistory == nil {
		a.pipeHistory = make([]pipeEntry, 0, pipeHistoryLimit)
	}
	bodyBytes, err := json.MarshalIndent(env, "", "  ")
	entry := pipeEntry{
		direction:   direction,
		messageType: string(env.Type),
		timestamp:   time.Now(),
		body:        string(bodyBytes),
	}
	if err != nil {
		entry.body = fmt.Sprintf(`{"marshal_error":%q}`, err.Error())
	}
	if len(a.pipeHistory) >= pipeHistoryLimit {
		a.pipeHistory = append(a.pipeHistory[1:], entry)
	} else {
		a.pipeHistory = append(a.pipeHistory, entry)
	}
	if a.view == viewPipe {
		a.updateViewportContent()
	}
}

func formatChatMessage(msg protocol.ChatMessage) string {
	username := strings.TrimSpace(msg.Username)
	if username == "" {
		username = "unknown"
	}
	text := msg.Text
	if strings.TrimSpace(text) == "" {
		text = "(empty)"
	}
	if !msg.Timestamp.IsZero() {
		return fmt.Sprintf("[#%d] [%s] %s: %s", msg.ID, msg.Timestamp.Local().Format("15:04:05"), username, text)
	}
	return fmt.Sprintf("[#%d] %s: %s", msg.ID, username, text)
}
