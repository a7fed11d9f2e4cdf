package chat

import "github.com/gkactivo/relaychat/internal/protocol"

// historyBuffer keeps the most recent messages of one room in
// insertion order. Eviction is strictly by age; nothing ever reads an
// entry back into freshness.
type historyBuffer struct {
	limit   int
	entries []protocol.ChatMessage
}

func newHistoryBuffer(limit int) *historyBuffer {
	return &historyBuffer{limit: limit}
}

// append pushes a message, evicting the oldest entry once the buffer
// exceeds its limit.
func (h *historyBuffer) append(msg protocol.ChatMessage) {
	h.entries = append(h.entries, msg)
	if h.limit > 0 && len(h.entries) > h.limit {
		overflow := len(h.entries) - h.limit
		h.entries = append(h.entries[:0], h.entries[overflow:]...)
	}
}

// snapshot returns a copy of the buffer, oldest first. The copy keeps
// callers isolated from later appends.
func (h *historyBuffer) snapshot() []protocol.ChatMessage {
	out := make([]protocol.ChatMessage, len(h.entries))
	copy(out, h.entries)
	return out
}
