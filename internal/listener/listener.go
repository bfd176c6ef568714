package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/gorilla/websocket"
)

// SocketOpener mints a fresh Socket Mode websocket URL. Implemented by
// services.SlackService.
type SocketOpener interface {
	OpenSocketModeConnection(ctx context.Context, appToken string) (string, error)
}

// envelope is the Socket Mode frame wrapper. Every non-hello frame must be
// acknowledged by echoing its envelope id.
type envelope struct {
	EnvelopeID string          `json:"envelope_id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
}

type acknowledgement struct {
	EnvelopeID string `json:"envelope_id"`
}

// Listener maintains a Socket Mode connection and feeds interactive payloads
// to the registry, reconnecting with backoff when the socket drops.
type Listener struct {
	opener   SocketOpener
	appToken string
	registry *Registry
	dialer   *websocket.Dialer
	logger   *log.Logger
}

// New creates a listener. A nil logger falls back to the package default.
func New(opener SocketOpener, appToken string, registry *Registry, logger *log.Logger) (*Listener, error) {
	if appToken == "" {
		return nil, fmt.Errorf("%w: slack app token", shared.ErrMissingCredentials)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Listener{
		opener:   opener,
		appToken: appToken,
		registry: registry,
		dialer:   websocket.DefaultDialer,
		logger:   logger,
	}, nil
}

// Run connects and serves until the context is cancelled. Connection drops
// and open failures back off exponentially, capped at a minute.
func (l *Listener) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		socketURL, err := l.opener.OpenSocketModeConnection(ctx, l.appToken)
		if err != nil {
			l.logger.Error("failed to open socket mode connection", "error", err)
			if !l.wait(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, time.Minute)
			continue
		}

		conn, _, err := l.dialer.DialContext(ctx, socketURL, nil)
		if err != nil {
			l.logger.Error("failed to dial socket", "error", err)
			if !l.wait(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, time.Minute)
			continue
		}

		backoff = time.Second
		l.serve(ctx, conn)
		conn.Close()
	}
}

func (l *Listener) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// serve reads frames until the connection errors, the server asks for a
// refresh, or the context is cancelled. Acks are sent before handlers run so
// Slack does not redeliver while a handler is working.
func (l *Listener) serve(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() == nil {
				l.logger.Warn("socket read failed, reconnecting", "error", err)
			}
			return
		}

		switch env.Type {
		case "hello":
			l.logger.Info("socket mode connected")

		case "disconnect":
			l.logger.Info("server requested reconnect")
			return

		case "interactive":
			if env.EnvelopeID != "" {
				if err := conn.WriteJSON(acknowledgement{EnvelopeID: env.EnvelopeID}); err != nil {
					l.logger.Warn("failed to ack envelope", "error", err)
					return
				}
			}
			go func(payload json.RawMessage) {
				if err := l.registry.Dispatch(ctx, payload); err != nil {
					l.logger.Error("interactive handler failed", "error", err)
				}
			}(env.Payload)

		default:
			if env.EnvelopeID != "" {
				if err := conn.WriteJSON(acknowledgement{EnvelopeID: env.EnvelopeID}); err != nil {
					l.logger.Warn("failed to ack envelope", "error", err)
					return
				}
			}
		}
	}
}
