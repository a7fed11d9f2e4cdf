package client

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/gkactivo/relaychat/internal/config"
	"github.com/gkactivo/relaychat/internal/protocol"
)

// Session manages the client side of one relay connection.
type Session struct {
	cfg      config.ClientConfig
	conn     net.Conn
	encoder  *protocol.Encoder
	decoder  *protocol.Decoder
	messages chan protocol.Envelope
	cancelFn context.CancelFunc
}

// NewSession initializes a session with configuration.
func NewSession(cfg config.ClientConfig) *Session {
	return &Session{
		cfg:      cfg,
		messages: make(chan protocol.Envelope, 32),
	}
}

// Connect dials the server and starts the read loop. Inbound envelopes
// arrive on Messages; the channel closes when the connection dies.
func (s *Session) Connect(ctx context.Context) error {
	if s.cfg.ServerAddr == "" {
		return net.ErrClosed
	}
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.ServerAddr)
	if err != nil {
		return err
	}
	s.conn = conn
	s.encoder = protocol.NewEncoder(conn)
	s.decoder = protocol.NewDecoder(conn, 0)
	readCtx, cancel := context.WithCancel(context.Background())
	s.cancelFn = cancel
	go s.readLoop(readCtx)
	return nil
}

// Close terminates the session.
func (s *Session) Close() error {
	if s.cancelFn != nil {
		s.cancelFn()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Send dispatches an envelope to the server, stamping id and timestamp
// when the caller left them unset.
func (s *Session) Send(ctx context.Context, env protocol.Envelope) error {
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	return s.encoder.Encode(ctx, env)
}

// Messages exposes the inbound envelope stream.
func (s *Session) Messages() <-chan protocol.Envelope {
	return s.messages
}

func (s *Session) readLoop(ctx context.Context) {
	defer close(s.messages)
	for {
		env, err := s.decoder.Decode(ctx)
		if err != nil {
			return
		}
		select {
		case s.messages <- env:
		case <-ctx.Done():
			return
		}
	}
}
