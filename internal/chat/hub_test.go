package chat

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/gkactivo/relaychat/internal/protocol"
)

// captureSink records every envelope delivered to one connection, in
// delivery order.
type captureSink struct {
	mu   sync.Mutex
	fail bool
	envs []protocol.Envelope
}

func (c *captureSink) Send(env protocol.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("sink unavailable")
	}
	c.envs = append(c.envs, env)
	return nil
}

func (c *captureSink) events() []protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Envelope, len(c.envs))
	copy(out, c.envs)
	return out
}

func (c *captureSink) byType(t protocol.EventType) []protocol.Envelope {
	var out []protocol.Envelope
	for _, env := range c.events() {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

func connect(h *Hub, connID string) *captureSink {
	sink := &captureSink{}
	h.Connect(connID, sink)
	return sink
}

func TestJoinReplaysHistoryToJoinerOnly(t *testing.T) {
	h := NewHub("general", 50)
	a := connect(h, "a")
	h.Join("a", "alice", "general")
	h.Message("a", "hi there")

	b := connect(h, "b")
	h.Join("b", "bob", "general")

	histories := b.byType(protocol.EventTypeHistory)
	if len(histories) != 1 {
		t.Fatalf("expected 1 history event for joiner, got %d", len(histories))
	}
	payload, ok := histories[0].Payload.(protocol.HistoryPayload)
	if !ok {
		t.Fatalf("unexpected history payload type %T", histories[0].Payload)
	}
	if payload.Room != "general" {
		t.Fatalf("expected history for general, got %s", payload.Room)
	}
	if len(payload.Messages) != 1 || payload.Messages[0].Text != "hi there" {
		t.Fatalf("unexpected history contents: %+v", payload.Messages)
	}

	// The existing member must not see a second replay.
	if got := len(a.byType(protocol.EventTypeHistory)); got != 1 {
		t.Fatalf("expected alice to keep exactly her own replay, got %d", got)
	}
}

func TestMembershipMatchesSessions(t *testing.T) {
	h := NewHub("general", 50)
	members := map[string]string{
		"a": "r1",
		"b": "r1",
		"c": "r2",
	}
	for connID, room := range members {
		connect(h, connID)
		h.Join(connID, "user-"+connID, room)
	}

	for _, room := range []string{"r1", "r2"} {
		var want []string
		for connID, r := range members {
			if r == room {
				want = append(want, connID)
			}
		}
		got := h.MembersOf(room)
		sort.Strings(want)
		sort.Strings(got)
		if len(got) != len(want) {
			t.Fatalf("room %s: expected members %v, got %v", room, want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("room %s: expected members %v, got %v", room, want, got)
			}
		}
		for _, connID := range got {
			session, ok := h.Lookup(connID)
			if !ok || session.Room != room {
				t.Fatalf("member %s of %s has session %+v", connID, room, session)
			}
		}
	}
}

func TestRoomSwitchRetractsWithoutLeftNotice(t *testing.T) {
	h := NewHub("general", 50)
	connect(h, "a")
	other := connect(h, "b")
	h.Join("a", "alice", "r1")
	h.Join("b", "bob", "r1")

	h.Join("a", "alice", "r2")

	if members := h.MembersOf("r1"); len(members) != 1 || members[0] != "b" {
		t.Fatalf("expected r1 to contain only b, got %v", members)
	}
	found := false
	for _, connID := range h.MembersOf("r2") {
		if connID == "a" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected r2 to contain a, got %v", h.MembersOf("r2"))
	}

	if left := other.byType(protocol.EventTypeUserLeft); len(left) != 0 {
		t.Fatalf("room switch produced %d user-left notices, want 0", len(left))
	}
}

func TestJoinDefaultsRoomAndDropsEmptyUsername(t *testing.T) {
	h := NewHub("general", 50)
	connect(h, "a")
	h.Join("a", "alice", "")

	session, ok := h.Lookup("a")
	if !ok || session.Room != "general" {
		t.Fatalf("expected session in default room, got %+v ok=%t", session, ok)
	}

	connect(h, "b")
	h.Join("b", "", "general")
	if _, ok := h.Lookup("b"); ok {
		t.Fatal("join with empty username must not install a session")
	}
	if members := h.MembersOf("general"); len(members) != 1 {
		t.Fatalf("expected 1 member in general, got %v", members)
	}
}

func TestMessageBeforeJoinIsDropped(t *testing.T) {
	h := NewHub("general", 50)
	connect(h, "a")
	h.Join("a", "alice", "general")
	observer := connect(h, "ghost")

	h.Message("ghost", "should vanish")
	h.SetTyping("ghost", true)

	if got := len(observer.events()); got != 0 {
		t.Fatalf("ghost received %d events, want 0", got)
	}

	late := connect(h, "b")
	h.Join("b", "bob", "general")
	payload := late.byType(protocol.EventTypeHistory)[0].Payload.(protocol.HistoryPayload)
	if len(payload.Messages) != 0 {
		t.Fatalf("dropped message mutated history: %+v", payload.Messages)
	}
}

func TestMessageFanOutIncludesSender(t *testing.T) {
	h := NewHub("general", 50)
	a := connect(h, "a")
	b := connect(h, "b")
	h.Join("a", "alice", "general")
	h.Join("b", "bob", "general")

	h.Message("a", "hello")

	for name, sink := range map[string]*captureSink{"alice": a, "bob": b} {
		messages := sink.byType(protocol.EventTypeMessage)
		if len(messages) != 1 {
			t.Fatalf("%s received %d messages, want 1", name, len(messages))
		}
		msg := messages[0].Payload.(protocol.ChatMessage)
		if msg.Username != "alice" || msg.Text != "hello" || msg.Room != "general" {
			t.Fatalf("%s received unexpected message %+v", name, msg)
		}
		if msg.ID == 0 {
			t.Fatalf("%s received message without id", name)
		}
	}
}

func TestMessageIDsMonotonic(t *testing.T) {
	h := NewHub("general", 50)
	a := connect(h, "a")
	connect(h, "b")
	h.Join("a", "alice", "r1")
	h.Join("b", "bob", "r2")

	h.Message("a", "one")
	h.Message("b", "two")
	h.Message("a", "three")

	messages := a.byType(protocol.EventTypeMessage)
	if len(messages) != 2 {
		t.Fatalf("alice received %d messages, want 2", len(messages))
	}
	first := messages[0].Payload.(protocol.ChatMessage).ID
	second := messages[1].Payload.(protocol.ChatMessage).ID
	// Ids are process-wide: bob's message claimed an id in between.
	if second <= first {
		t.Fatalf("ids not increasing: %d then %d", first, second)
	}
}

func TestTypingExcludesSender(t *testing.T) {
	h := NewHub("general", 50)
	a := connect(h, "a")
	b := connect(h, "b")
	h.Join("a", "alice", "general")
	h.Join("b", "bob", "general")

	h.SetTyping("a", true)

	notices := b.byType(protocol.EventTypeTyping)
	if len(notices) != 1 {
		t.Fatalf("bob received %d typing notices, want 1", len(notices))
	}
	notice := notices[0].Payload.(protocol.TypingNotice)
	if notice.Username != "alice" || !notice.IsTyping {
		t.Fatalf("unexpected typing notice %+v", notice)
	}
	if got := len(a.byType(protocol.EventTypeTyping)); got != 0 {
		t.Fatalf("alice received %d of her own typing notices, want 0", got)
	}
}

func TestDisconnectAnnouncesOnce(t *testing.T) {
	h := NewHub("general", 50)
	a := connect(h, "a")
	connect(h, "b")
	h.Join("a", "alice", "general")
	h.Join("b", "bob", "general")

	h.Disconnect("b")
	h.Disconnect("b")

	left := a.byType(protocol.EventTypeUserLeft)
	if len(left) != 1 {
		t.Fatalf("expected exactly one user-left notice, got %d", len(left))
	}
	payload := left[0].Payload.(protocol.PresencePayload)
	if payload.Username != "bob" {
		t.Fatalf("unexpected user-left payload %+v", payload)
	}
	if members := h.MembersOf("general"); len(members) != 1 || members[0] != "a" {
		t.Fatalf("expected general to contain only a, got %v", members)
	}
}

func TestFailSoftFanOut(t *testing.T) {
	h := NewHub("general", 50)
	a := connect(h, "a")
	broken := &captureSink{fail: true}
	h.Connect("b", broken)
	c := connect(h, "c")
	h.Join("a", "alice", "general")
	h.Join("b", "bob", "general")
	h.Join("c", "carol", "general")

	h.Message("a", "still delivered")

	for name, sink := range map[string]*captureSink{"alice": a, "carol": c} {
		if got := len(sink.byType(protocol.EventTypeMessage)); got != 1 {
			t.Fatalf("%s received %d messages despite fail-soft fan-out, want 1", name, got)
		}
	}
	// The broken member is still a member; only delivery failed.
	if members := h.MembersOf("general"); len(members) != 3 {
		t.Fatalf("expected 3 members after failed delivery, got %v", members)
	}
}

func TestPerConnectionOrderingPreserved(t *testing.T) {
	h := NewHub("general", 50)
	connect(h, "a")
	b := connect(h, "b")
	h.Join("a", "alice", "general")
	h.Join("b", "bob", "general")

	h.Message("a", "first")
	h.SetTyping("a", true)
	h.Message("a", "second")

	var sequence []protocol.EventType
	for _, env := range b.events() {
		if env.Type == protocol.EventTypeMessage || env.Type == protocol.EventTypeTyping {
			sequence = append(sequence, env.Type)
		}
	}
	want := []protocol.EventType{protocol.EventTypeMessage, protocol.EventTypeTyping, protocol.EventTypeMessage}
	if len(sequence) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), sequence)
	}
	for i := range want {
		if sequence[i] != want[i] {
			t.Fatalf("events reordered: got %v, want %v", sequence, want)
		}
	}
}

func TestEmptyRoomDiscardsHistory(t *testing.T) {
	h := NewHub("general", 50)
	connect(h, "a")
	h.Join("a", "alice", "general")
	h.Message("a", "doomed")
	h.Disconnect("a")

	if members := h.MembersOf("general"); members != nil {
		t.Fatalf("expected empty room to be gone, got members %v", members)
	}

	rejoined := connect(h, "b")
	h.Join("b", "bob", "general")
	payload := rejoined.byType(protocol.EventTypeHistory)[0].Payload.(protocol.HistoryPayload)
	if len(payload.Messages) != 0 {
		t.Fatalf("recreated room must start with empty history, got %+v", payload.Messages)
	}
}

func TestTwoClientScenario(t *testing.T) {
	h := NewHub("general", 50)

	a := connect(h, "conn-a")
	h.Join("conn-a", "A", "general")
	if payload := a.byType(protocol.EventTypeHistory)[0].Payload.(protocol.HistoryPayload); len(payload.Messages) != 0 {
		t.Fatalf("A expected empty history, got %+v", payload.Messages)
	}

	b := connect(h, "conn-b")
	h.Join("conn-b", "B", "general")
	joined := a.byType(protocol.EventTypeUserJoined)
	if len(joined) != 1 || joined[0].Payload.(protocol.PresencePayload).Username != "B" {
		t.Fatalf("A expected user-joined for B, got %+v", joined)
	}
	if payload := b.byType(protocol.EventTypeHistory)[0].Payload.(protocol.HistoryPayload); len(payload.Messages) != 0 {
		t.Fatalf("B expected empty history, got %+v", payload.Messages)
	}

	h.Message("conn-a", "hi")
	for name, sink := range map[string]*captureSink{"A": a, "B": b} {
		messages := sink.byType(protocol.EventTypeMessage)
		if len(messages) != 1 {
			t.Fatalf("%s expected the message, got %d", name, len(messages))
		}
		msg := messages[0].Payload.(protocol.ChatMessage)
		if msg.Username != "A" || msg.Text != "hi" || msg.Room != "general" || msg.ID == 0 {
			t.Fatalf("%s received unexpected message %+v", name, msg)
		}
	}

	h.Disconnect("conn-b")
	left := a.byType(protocol.EventTypeUserLeft)
	if len(left) != 1 || left[0].Payload.(protocol.PresencePayload).Username != "B" {
		t.Fatalf("A expected user-left for B, got %+v", left)
	}
	if members := h.MembersOf("general"); len(members) != 1 || members[0] != "conn-a" {
		t.Fatalf("expected general to contain only conn-a, got %v", members)
	}
}

func TestHistoryBoundThroughHub(t *testing.T) {
	h := NewHub("general", 50)
	connect(h, "a")
	h.Join("a", "alice", "general")

	for i := 0; i < 51; i++ {
		h.Message("a", fmt.Sprintf("msg-%d", i))
	}

	late := connect(h, "b")
	h.Join("b", "bob", "general")
	payload := late.byType(protocol.EventTypeHistory)[0].Payload.(protocol.HistoryPayload)
	if len(payload.Messages) != 50 {
		t.Fatalf("expected 50 replayed messages, got %d", len(payload.Messages))
	}
	if payload.Messages[0].Text != "msg-1" {
		t.Fatalf("expected oldest message to be msg-1, got %s", payload.Messages[0].Text)
	}
	for i, msg := range payload.Messages {
		if want := fmt.Sprintf("msg-%d", i+1); msg.Text != want {
			t.Fatalf("history out of order at %d: got %s, want %s", i, msg.Text, want)
		}
	}
}
