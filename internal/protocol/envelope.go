package protocol

import "time"

// EventType enumerates the events exchanged between client and server.
// The type alone selects the payload shape; there is no secondary
// metadata dispatch.
type EventType string

const (
	// EventTypeJoin binds a connection to a username and room (client to server).
	EventTypeJoin EventType = "join"
	// EventTypeHistory replays the room's recent messages to a joiner (server to client).
	EventTypeHistory EventType = "history"
	// EventTypeMessage carries a chat message in either direction.
	EventTypeMessage EventType = "message"
	// EventTypeUserJoined announces a new room member (server to client).
	EventTypeUserJoined EventType = "user-joined"
	// EventTypeUserLeft announces a departed room member (server to client).
	EventTypeUserLeft EventType = "user-left"
	// EventTypeTyping relays a transient typing indicator in either direction.
	EventTypeTyping EventType = "typing"
)

// Envelope wraps every payload sent over the wire.
type Envelope struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// JoinRequest asks the server to bind this connection to a room.
// An empty room selects the server's default room.
type JoinRequest struct {
	Username string `json:"username"`
	Room     string `json:"room,omitempty"`
}

// ChatMessage is a server-assigned, immutable chat message.
type ChatMessage struct {
	ID        uint64    `json:"id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Room      string    `json:"room"`
}

// MessageSend carries user-authored text; the sender's identity and
// room are resolved from the connection's session on the server.
type MessageSend struct {
	Text string `json:"text"`
}

// HistoryPayload replays recent messages, oldest first. It is sent
// exactly once per join and only to the joining connection.
type HistoryPayload struct {
	Room     string        `json:"room"`
	Messages []ChatMessage `json:"messages"`
}

// PresencePayload announces a membership change.
type PresencePayload struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// TypingRequest is the client-side typing flag.
type TypingRequest struct {
	IsTyping bool `json:"isTyping"`
}

// TypingNotice relays a member's typing state to the rest of the room.
type TypingNotice struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}
