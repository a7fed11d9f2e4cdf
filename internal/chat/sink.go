package chat

import "github.com/gkactivo/relaychat/internal/protocol"

// EventSink is the outbound half of a connection's event channel.
// Implementations must not block: delivery to a slow or closed peer
// returns an error and the caller moves on.
type EventSink interface {
	Send(env protocol.Envelope) error
}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(env protocol.Envelope) error

// Send calls f.
func (f SinkFunc) Send(env protocol.Envelope) error {
	return f(env)
}
