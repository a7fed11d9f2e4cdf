package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gkactivo/relaychat/internal/chat"
	"github.com/gkactivo/relaychat/internal/config"
	"github.com/gkactivo/relaychat/internal/protocol"
)

// App coordinates the network listener, connection lifecycle, and the
// chat hub that owns all room state.
type App struct {
	cfg       config.ServerConfig
	hub       *chat.Hub
	listener  net.Listener
	closeOnce sync.Once
}

// NewApp constructs a server instance from configuration.
func NewApp(cfg config.ServerConfig) *App {
	return &App{
		cfg: cfg,
		hub: chat.NewHub(cfg.DefaultRoom, cfg.HistoryLimit),
	}
}

// Hub exposes the chat state container, mainly for tests.
func (a *App) Hub() *chat.Hub {
	return a.hub
}

// Run starts accepting connections until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	a.listener = listener
	log.Printf("listening on %s", listener.Addr())

	errCh := make(chan error, 1)

	go func() {
		<-ctx.Done()
		a.closeOnce.Do(func() {
			_ = a.listener.Close()
		})
	}()

	go func() {
		for {
			conn, err := a.listener.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					errCh <- nil
					return
				}
				errCh <- err
				return
			}
			go a.handleConnection(ctx, conn)
		}
	}()

	return <-errCh
}

func (a *App) handleConnection(parentCtx context.Context, conn net.Conn) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	session := newClientSession(conn, a.cfg.SendBuffer)
	a.hub.Connect(session.id, session)
	log.Printf("connected conn=%s remote=%s", session.id, session.remoteAddr())

	defer func() {
		// Detach from the hub before releasing the queue: after
		// Disconnect returns, no broadcast can target this session.
		a.hub.Disconnect(session.id)
		session.close()
		log.Printf("disconnected conn=%s remote=%s", session.id, session.remoteAddr())
	}()

	decoder := protocol.NewDecoder(conn, a.cfg.MaxFrameBytes)
	encoder := protocol.NewEncoder(conn)

	go func() {
		if err := session.writeLoop(ctx, encoder, a.cfg.WriteTimeout); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("write loop conn=%s: %v", session.id, err)
		}
		cancel()
	}()

	// Events are handled inline so each connection's inbound stream is
	// processed in arrival order.
	for {
		if a.cfg.ReadTimeout > 0 {
			if deadlineErr := conn.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout)); deadlineErr != nil {
				log.Printf("set read deadline: %v", deadlineErr)
				return
			}
		}
		env, err := decoder.Decode(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			log.Printf("decode conn=%s: %v", session.id, err)
			return
		}

		a.routeEnvelope(session, env)
	}
}

// routeEnvelope decodes the payload for the envelope's event type and
// hands it to the hub. Malformed payloads are dropped with a log line;
// the relay never answers with an error event.
func (a *App) routeEnvelope(session *clientSession, env protocol.Envelope) {
	switch env.Type {
	case protocol.EventTypeJoin:
		req, err := decodeJoinRequest(env.Payload)
		if err != nil {
			log.Printf("invalid join payload conn=%s: %v", session.id, err)
			return
		}
		a.hub.Join(session.id, strings.TrimSpace(req.Username), strings.TrimSpace(req.Room))
	case protocol.EventTypeMessage:
		req, err := decodeMessageSend(env.Payload)
		if err != nil {
			log.Printf("invalid message payload conn=%s: %v", session.id, err)
			return
		}
		a.hub.Message(session.id, req.Text)
	case protocol.EventTypeTyping:
		req, err := decodeTypingRequest(env.Payload)
		if err != nil {
			log.Printf("invalid typing payload conn=%s: %v", session.id, err)
			return
		}
		a.hub.SetTyping(session.id, req.IsTyping)
	default:
		log.Printf("unhandled event type %q conn=%s", env.Type, session.id)
	}
}
