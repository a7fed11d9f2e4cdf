package protocol

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestCodecRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	sent := Envelope{
		ID:        "env-1",
		Type:      EventTypeJoin,
		Timestamp: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
		Payload:   JoinRequest{Username: "alice", Room: "general"},
	}

	if err := NewEncoder(&buf).Encode(context.Background(), sent); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	got, err := NewDecoder(&buf, 0).Decode(context.Background())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.ID != sent.ID || got.Type != sent.Type {
		t.Fatalf("round trip lost identity: %+v", got)
	}
	if !got.Timestamp.Equal(sent.Timestamp) {
		t.Fatalf("round trip lost timestamp: %v", got.Timestamp)
	}
	payload, ok := got.Payload.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected payload type %T", got.Payload)
	}
	if payload["username"] != "alice" || payload["room"] != "general" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestCodecMultipleFramesInSequence(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, id := range []string{"first", "second", "third"} {
		if err := enc.Encode(context.Background(), Envelope{ID: id, Type: EventTypeMessage}); err != nil {
			t.Fatalf("encode %s failed: %v", id, err)
		}
	}

	dec := NewDecoder(&buf, 0)
	for _, want := range []string{"first", "second", "third"} {
		env, err := dec.Decode(context.Background())
		if err != nil {
			t.Fatalf("decode %s failed: %v", want, err)
		}
		if env.ID != want {
			t.Fatalf("frames reordered: got %s, want %s", env.ID, want)
		}
	}
	if _, err := dec.Decode(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after last frame, got %v", err)
	}
}

func TestDecoderRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	env := Envelope{
		ID:      "big",
		Type:    EventTypeMessage,
		Payload: MessageSend{Text: strings.Repeat("x", 256)},
	}
	if err := NewEncoder(&buf).Encode(context.Background(), env); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	_, err := NewDecoder(&buf, 64).Decode(context.Background())
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestDecoderRejectsZeroLengthFrame(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0})
	if _, err := NewDecoder(buf, 0).Decode(context.Background()); err == nil {
		t.Fatal("expected error for zero-length frame")
	}
}

func TestDecoderFailsOnTruncatedFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(context.Background(), Envelope{ID: "cut", Type: EventTypeTyping}); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-5]

	if _, err := NewDecoder(bytes.NewReader(truncated), 0).Decode(context.Background()); err == nil {
		t.Fatal("expected error for truncated frame")
	}
}

func TestDecodeHonorsCanceledContext(t *testing.T) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(context.Background(), Envelope{ID: "late", Type: EventTypeMessage}); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewDecoder(&buf, 0).Decode(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
