package chat

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gkactivo/relaychat/internal/protocol"
)

// DefaultHistoryLimit is the number of messages a room retains for
// late-joiner replay.
const DefaultHistoryLimit = 50

// Session binds a live connection to a username and room. At most one
// Session exists per connection; a connection without one cannot send
// messages or typing events.
type Session struct {
	ConnID   string
	Username string
	Room     string
}

// room exists exactly while it has members. Its history dies with it.
type room struct {
	members map[string]struct{}
	history *historyBuffer
}

// Hub owns all room state for the process: the session registry, the
// room directory, per-room history, and event fan-out. The registry
// and directory are two views of the same membership fact; every
// mutation keeps them in step under one lock.
//
// All operations are silent no-ops on malformed input (empty username,
// message before join). Delivery to an unresponsive sink fails soft:
// the drop is logged and the fan-out continues.
type Hub struct {
	mu            sync.Mutex
	defaultRoom   string
	historyLimit  int
	nextMessageID uint64
	sessions      map[string]Session
	sinks         map[string]EventSink
	rooms         map[string]*room
}

// NewHub initializes an empty hub. An empty defaultRoom falls back to
// "general"; a historyLimit of zero or less falls back to
// DefaultHistoryLimit.
func NewHub(defaultRoom string, historyLimit int) *Hub {
	if defaultRoom == "" {
		defaultRoom = "general"
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Hub{
		defaultRoom:  defaultRoom,
		historyLimit: historyLimit,
		sessions:     make(map[string]Session),
		sinks:        make(map[string]EventSink),
		rooms:        make(map[string]*room),
	}
}

// Connect registers the outbound sink for a new connection. The
// connection has no session until it joins.
func (h *Hub) Connect(connID string, sink EventSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks[connID] = sink
}

// Join installs a session for the connection and adds it to the room's
// member set. If the connection already holds a session for another
// room, that membership is retracted first without a user-left notice:
// a room switch is not a disconnect. The joiner receives the room's
// history; the rest of the room receives a user-joined notice.
//
// An empty username drops the event. An empty room selects the default
// room. The whole sequence runs under the hub lock, so no concurrent
// message or typing event can observe the connection between rooms.
func (h *Hub) Join(connID, username, roomName string) {
	if username == "" {
		log.Printf("join dropped: empty username conn=%s", connID)
		return
	}
	if roomName == "" {
		roomName = h.defaultRoom
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.sessions[connID]; ok {
		h.retractLocked(prev)
	}

	h.sessions[connID] = Session{ConnID: connID, Username: username, Room: roomName}

	r, ok := h.rooms[roomName]
	if !ok {
		r = &room{
			members: make(map[string]struct{}),
			history: newHistoryBuffer(h.historyLimit),
		}
		h.rooms[roomName] = r
	}
	r.members[connID] = struct{}{}

	h.deliverLocked(connID, outboundEnvelope(protocol.EventTypeHistory, protocol.HistoryPayload{
		Room:     roomName,
		Messages: r.history.snapshot(),
	}))

	h.broadcastLocked(roomName, outboundEnvelope(protocol.EventTypeUserJoined, protocol.PresencePayload{
		Username: username,
		Message:  fmt.Sprintf("%s joined", username),
	}), connID)

	log.Printf("join user=%s room=%s conn=%s", username, roomName, connID)
}

// Message constructs a server-assigned message from the sender's
// session, appends it to the room's history, and broadcasts it to the
// whole room, sender included, so every client renders the canonical
// id and timestamp. Events from connections without a session are
// dropped.
func (h *Hub) Message(connID, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, ok := h.sessions[connID]
	if !ok {
		return
	}
	r, ok := h.rooms[session.Room]
	if !ok {
		return
	}

	h.nextMessageID++
	msg := protocol.ChatMessage{
		ID:        h.nextMessageID,
		Username:  session.Username,
		Text:      text,
		Timestamp: time.Now().UTC(),
		Room:      session.Room,
	}
	r.history.append(msg)

	h.broadcastLocked(session.Room, outboundEnvelope(protocol.EventTypeMessage, msg), "")
}

// SetTyping relays the sender's typing state to the rest of its room.
// Nothing is buffered: a member joining a moment later sees no
// retroactive typing status.
func (h *Hub) SetTyping(connID string, isTyping bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, ok := h.sessions[connID]
	if !ok {
		return
	}

	h.broadcastLocked(session.Room, outboundEnvelope(protocol.EventTypeTyping, protocol.TypingNotice{
		Username: session.Username,
		IsTyping: isTyping,
	}), connID)
}

// Disconnect removes the connection's session, membership, and sink,
// and announces the departure to the remaining room members. Safe to
// call for a connection that never joined or was already removed; a
// duplicate call emits nothing.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.sinks, connID)

	session, ok := h.sessions[connID]
	if !ok {
		return
	}
	delete(h.sessions, connID)
	h.retractLocked(session)

	h.broadcastLocked(session.Room, outboundEnvelope(protocol.EventTypeUserLeft, protocol.PresencePayload{
		Username: session.Username,
		Message:  fmt.Sprintf("%s left", session.Username),
	}), connID)

	log.Printf("leave user=%s room=%s conn=%s", session.Username, session.Room, connID)
}

// Lookup returns the connection's session, if any.
func (h *Hub) Lookup(connID string) (Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	session, ok := h.sessions[connID]
	return session, ok
}

// MembersOf returns a snapshot of the room's member connection ids.
// A room with no members (or that never existed) yields nil.
func (h *Hub) MembersOf(roomName string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[roomName]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(r.members))
	for connID := range r.members {
		out = append(out, connID)
	}
	return out
}

// retractLocked removes the session's room membership. The room, and
// with it the history buffer, is discarded once its last member is
// gone; a recreated room starts empty.
func (h *Hub) retractLocked(session Session) {
	r, ok := h.rooms[session.Room]
	if !ok {
		return
	}
	delete(r.members, session.ConnID)
	if len(r.members) == 0 {
		delete(h.rooms, session.Room)
	}
}

// broadcastLocked fans the envelope out to every member of the room
// except the excluded connection. Per-connection ordering is inherited
// from the hub lock: envelopes reach each sink in generation order.
func (h *Hub) broadcastLocked(roomName string, env protocol.Envelope, excluding string) {
	r, ok := h.rooms[roomName]
	if !ok {
		return
	}
	for connID := range r.members {
		if connID == excluding {
			continue
		}
		h.deliverLocked(connID, env)
	}
}

func (h *Hub) deliverLocked(connID string, env protocol.Envelope) {
	sink, ok := h.sinks[connID]
	if !ok {
		return
	}
	if err := sink.Send(env); err != nil {
		log.Printf("drop %s event for conn=%s: %v", env.Type, connID, err)
	}
}

func outboundEnvelope(eventType protocol.EventType, payload interface{}) protocol.Envelope {
	return protocol.Envelope{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
