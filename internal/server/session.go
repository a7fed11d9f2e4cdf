package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gkactivo/relaychat/internal/protocol"
)

var errSendBufferFull = errors.New("send buffer full")

// clientSession owns one connection's outbound queue. Everything the
// hub generates for this connection lands in sendCh and a single write
// loop drains it, so events reach the peer in generation order.
type clientSession struct {
	id        string
	conn      net.Conn
	sendCh    chan protocol.Envelope
	closeOnce sync.Once
}

func newClientSession(conn net.Conn, buffer int) *clientSession {
	if buffer <= 0 {
		buffer = 64
	}
	return &clientSession{
		id:     uuid.NewString(),
		conn:   conn,
		sendCh: make(chan protocol.Envelope, buffer),
	}
}

// Send queues an envelope for delivery. It never blocks: a full buffer
// means the peer is not draining and the event is dropped with an
// error for the caller to log.
func (s *clientSession) Send(env protocol.Envelope) error {
	select {
	case s.sendCh <- env:
		return nil
	default:
		return errSendBufferFull
	}
}

func (s *clientSession) writeLoop(ctx context.Context, encoder *protocol.Encoder, writeTimeout time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-s.sendCh:
			if !ok {
				return nil
			}
			if writeTimeout > 0 {
				if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
					return err
				}
			}
			if err := encoder.Encode(ctx, env); err != nil {
				return err
			}
		}
	}
}

func (s *clientSession) remoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// close releases the outbound queue. Callers must detach the session
// from the hub first so nothing sends on the closed channel.
func (s *clientSession) close() {
	s.closeOnce.Do(func() {
		close(s.sendCh)
	})
}
