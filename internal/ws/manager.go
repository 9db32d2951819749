package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"parley/internal/models"

	"github.com/gorilla/websocket"
)

// State is the connection lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	}
	return "disconnected"
}

type tokenSource interface {
	Token() string
}

// Manager owns the one persistent connection to the server. It dials
// with the session credential, republishes every recorded room join
// after each (re)connect, decodes inbound events onto Events, and
// writes outbound intents enqueued with Send. Transport errors are
// never fatal: the manager backs off exponentially and redials until
// its context is cancelled.
type Manager struct {
	url    string
	tokens tokenSource
	rooms  *Membership
	dialer *websocket.Dialer

	events   chan models.ServerEvent
	outbound chan models.ClientEvent

	base time.Duration
	max  time.Duration

	mu    sync.RWMutex
	state State
}

func NewManager(serverURL string, tokens tokenSource, rooms *Membership, base, max time.Duration) *Manager {
	return &Manager{
		url:      wsURL(serverURL),
		tokens:   tokens,
		rooms:    rooms,
		dialer:   websocket.DefaultDialer,
		events:   make(chan models.ServerEvent, 64),
		outbound: make(chan models.ClientEvent, 64),
		base:     base,
		max:      max,
	}
}

func wsURL(serverURL string) string {
	u, err := url.Parse(serverURL)
	if err != nil {
		return serverURL
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/chat"
	return u.String()
}

// Events is the typed stream of inbound events. Closed when Run
// returns.
func (m *Manager) Events() <-chan models.ServerEvent {
	return m.events
}

// Send enqueues an outbound intent. When the connection is down the
// intent is still enqueued and flushed after the next connect; if the
// queue is full the intent is dropped and logged, never blocking the
// caller.
func (m *Manager) Send(ev models.ClientEvent) {
	select {
	case m.outbound <- ev:
	default:
		slog.Warn("outbound queue full, dropping intent", "type", ev.Type, "chat_id", ev.ConversationID)
	}
}

// JoinRoom records the room for replay and issues a join intent.
// Joining is idempotent server-side, so re-issuing after Record
// returned false is harmless but skipped anyway.
func (m *Manager) JoinRoom(conversationID string) {
	if !m.rooms.Record(conversationID) {
		return
	}
	if m.State() == Connected {
		m.Send(models.ClientEvent{Type: models.ClientEventTypeJoin, ConversationID: conversationID})
	}
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Run dials and serves the connection until ctx is cancelled,
// reconnecting with exponential backoff on every failure.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.events)
	defer m.setState(Disconnected)

	delay := m.base
	first := true

	for {
		if first {
			m.setState(Connecting)
		} else {
			m.setState(Reconnecting)
		}

		conn, err := m.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("connect failed", "error", err, "retry_in", delay)
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			delay = min(delay*2, m.max)
			continue
		}

		delay = m.base
		first = false
		m.setState(Connected)
		slog.Info("connected", "rooms", len(m.rooms.All()))

		err = m.serve(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("connection lost", "error", err)
	}
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("token", m.tokens.Token())
	conn, resp, err := m.dialer.DialContext(ctx, m.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// serve replays room joins, then pumps the connection in both
// directions until either side fails.
func (m *Manager) serve(ctx context.Context, conn *websocket.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Rejoin before the write pump starts: reconnection is not a reset
	// of conversation context.
	for _, id := range m.rooms.All() {
		ev := models.ClientEvent{Type: models.ClientEventTypeJoin, ConversationID: id}
		if err := conn.WriteJSON(ev); err != nil {
			_ = conn.Close()
			return err
		}
	}

	errorCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Go(func() {
		errorCh <- m.readPump(ctx, conn)
		cancel()
	})

	wg.Go(func() {
		errorCh <- m.writePump(ctx, conn)
		cancel()
	})

	var err error
	select {
	case err = <-errorCh:
	case <-ctx.Done():
	}
	_ = conn.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (m *Manager) readPump(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var ev models.ServerEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			// Malformed inbound payloads are discarded, not fatal:
			// one bad event must not stop event delivery.
			slog.Warn("discarding malformed event", "error", err)
			continue
		}
		if ev.Type == "" {
			slog.Warn("discarding event without type")
			continue
		}

		select {
		case m.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) writePump(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case ev := <-m.outbound:
			if err := conn.WriteJSON(ev); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
