// Package client is the conversation synchronization engine: it owns
// the single event loop that keeps the local view of conversations
// consistent while inbound events interleave with sends, conversation
// switches, and reconnects.
package client

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"parley/internal/api"
	"parley/internal/config"
	"parley/internal/content"
	"parley/internal/models"
	"parley/internal/presence"
	"parley/internal/reconcile"
	"parley/internal/roster"
	"parley/internal/session"
	"parley/internal/storage"
	"parley/internal/typing"
	"parley/internal/ws"

	"golang.org/x/sync/errgroup"
)

// UpdateKind tells a display layer what changed.
type UpdateKind int

const (
	UpdateRoster UpdateKind = iota
	UpdateMessages
	UpdatePresence
	UpdateTyping
	UpdateAuthExpired
)

type Update struct {
	Kind UpdateKind
}

type historyResult struct {
	conversationID string
	messages       []models.Message
	err            error
}

// Engine wires the transport, the reconciler, the roster, and the
// presence and typing trackers together. All state mutation happens on
// one goroutine (the loop started by Run); public mutators schedule
// work onto it, public readers take locked snapshots from the
// components.
type Engine struct {
	cfg      *config.Config
	sessions *session.Store
	api      *api.Client
	cache    *storage.BboltStorage

	conn     *ws.Manager
	rooms    *ws.Membership
	roster   *roster.Roster
	list     *reconcile.List
	presence *presence.Tracker
	typing   *typing.Signal
	active   ActiveRef

	tasks   chan func()
	history chan historyResult
	updates chan Update

	runCtx      context.Context
	searchTimer *time.Timer

	startOnce sync.Once
}

// NewEngine builds the engine. ctx bounds the engine lifetime,
// including background maintenance (typing-state expiry); it is fixed
// here, before any caller goroutine can observe it. Run still needs to
// be called.
func NewEngine(ctx context.Context, cfg *config.Config, sessions *session.Store, apiClient *api.Client, cache *storage.BboltStorage) *Engine {
	rooms := ws.NewMembership()
	conn := ws.NewManager(cfg.ServerURL, sessions, rooms, cfg.ReconnectBase, cfg.ReconnectMax)
	return &Engine{
		cfg:      cfg,
		sessions: sessions,
		api:      apiClient,
		cache:    cache,
		conn:     conn,
		rooms:    rooms,
		roster:   roster.New(),
		list:     reconcile.NewList(),
		presence: presence.NewTracker(),
		typing:   typing.NewSignal(ctx, conn, cfg.TypingTTL),
		tasks:    make(chan func(), 64),
		history:  make(chan historyResult, 8),
		updates:  make(chan Update, 64),
		runCtx:   ctx,
	}
}

// Updates is the coalescible change stream for a display layer.
func (e *Engine) Updates() <-chan Update {
	return e.updates
}

// Run starts the connection and the event loop and blocks until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) error {
	var started bool
	e.startOnce.Do(func() { started = true })
	if !started {
		return errors.New("engine already started")
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.conn.Run(gCtx)
	})

	g.Go(func() error {
		e.loop(gCtx)
		return nil
	})

	e.do(e.bootstrap)

	return g.Wait()
}

// loop is the single logical thread of the engine: inbound events,
// scheduled intents, and fetch continuations are interleaved here in
// arrival order, so no handler ever runs concurrently with another.
func (e *Engine) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-e.conn.Events():
			if !ok {
				return
			}
			e.handleEvent(ev)
		case task := <-e.tasks:
			task()
		case res := <-e.history:
			e.applyHistory(res)
		}
	}
}

// do schedules fn onto the event loop.
func (e *Engine) do(fn func()) {
	select {
	case e.tasks <- fn:
	case <-e.done():
	}
}

func (e *Engine) done() <-chan struct{} {
	return e.runCtx.Done()
}

// fetchCtx bounds one background fetch.
func (e *Engine) fetchCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(e.runCtx, e.cfg.FetchTimeout)
}

func (e *Engine) notify(kind UpdateKind) {
	select {
	case e.updates <- Update{Kind: kind}:
	default:
	}
}

// bootstrap seeds the roster from the local cache, then refreshes it
// from the server and joins every known room.
func (e *Engine) bootstrap() {
	if cached, err := e.cache.ListConversations(); err == nil && len(cached) > 0 {
		e.roster.ReplaceAll(fromDBConversations(cached))
		e.notify(UpdateRoster)
	}
	e.refreshRoster(nil)
}

// refreshRoster fetches the conversation list in the background and
// applies it on the loop. then, if non-nil, runs afterwards on the
// loop regardless of outcome.
func (e *Engine) refreshRoster(then func()) {
	go func() {
		ctx, cancel := e.fetchCtx()
		defer cancel()

		conversations, err := e.api.Conversations(ctx)
		e.do(func() {
			if err != nil {
				e.fetchFailed("roster fetch failed", err)
			} else {
				e.roster.ReplaceAll(conversations)
				for _, c := range conversations {
					e.conn.JoinRoom(c.ID)
				}
				e.persistRoster()
				e.notify(UpdateRoster)
			}
			if then != nil {
				then()
			}
		})
	}()
}

// fetchFailed implements the Fetch error class: log, surface nothing
// fatal. Auth failures alone tear down the session.
func (e *Engine) fetchFailed(msg string, err error) {
	if errors.Is(err, api.ErrUnauthorized) {
		e.expireSession()
		return
	}
	slog.Error(msg, "error", err)
}

func (e *Engine) expireSession() {
	slog.Warn("credential rejected, ending session")
	if err := e.sessions.Clear(); err != nil {
		slog.Error("failed to clear session", "error", err)
	}
	e.notify(UpdateAuthExpired)
}

func (e *Engine) persistRoster() {
	records := toDBConversations(e.roster.List())
	go func() {
		if err := e.cache.SaveConversations(records); err != nil {
			slog.Error("failed to persist roster cache", "error", err)
		}
	}()
}

// handleEvent dispatches one inbound event. The active conversation is
// read here, at dispatch time, never captured earlier.
func (e *Engine) handleEvent(ev models.ServerEvent) {
	switch ev.Type {
	case models.ServerEventTypeMessage:
		if ev.Message == nil {
			slog.Warn("message event without payload")
			return
		}
		msg := sanitized(*ev.Message)
		if e.list.ApplyInbound(msg) {
			e.notify(UpdateMessages)
		}
		if e.roster.ApplyMessage(msg) {
			e.persistRoster()
			e.notify(UpdateRoster)
		}

	case models.ServerEventTypeMessageSent:
		if ev.Message == nil {
			slog.Warn("messageSent event without payload")
			return
		}
		msg := sanitized(*ev.Message)
		if e.list.ApplyEcho(msg) {
			e.notify(UpdateMessages)
		}
		if e.roster.ApplyMessage(msg) {
			e.persistRoster()
			e.notify(UpdateRoster)
		}

	case models.ServerEventTypeTyping:
		conversationID := ev.ConversationID
		if conversationID == "" {
			// Scoped to whatever conversation is open right now.
			conversationID = e.active.ID()
		}
		if conversationID == "" || ev.UserID == "" {
			return
		}
		e.typing.Remote(conversationID, ev.UserID, ev.IsTyping)
		e.notify(UpdateTyping)

	case models.ServerEventTypeOnline:
		e.presence.Online(ev.UserID)
		e.notify(UpdatePresence)

	case models.ServerEventTypeOffline:
		e.presence.Offline(ev.UserID)
		e.notify(UpdatePresence)

	case models.ServerEventTypeError:
		slog.Error("server error event", "message", ev.Error)

	default:
		// Unknown event types are discarded, not fatal.
		slog.Warn("discarding unknown event", "type", ev.Type)
	}
}

func sanitized(msg models.Message) models.Message {
	msg.Content = content.SanitizeMessage(msg.Content)
	msg.SenderName = content.SanitizeName(msg.SenderName)
	return msg.Tagged()
}

// Open switches the active conversation: roster lookup (with one
// roster refetch for unknown ids, then a provisional entry), room
// join, and a history fetch tagged with the conversation id.
func (e *Engine) Open(conversationID string) {
	e.do(func() { e.open(conversationID, true) })
}

func (e *Engine) open(conversationID string, allowRefetch bool) {
	conv, ok := e.roster.Get(conversationID)
	if !ok {
		if allowRefetch {
			// Deep link to an id the roster has not seen yet: refetch
			// once before falling back to a provisional entry.
			e.refreshRoster(func() { e.open(conversationID, false) })
			return
		}
		conv = models.Conversation{ID: conversationID, Provisional: true, UpdatedAt: time.Now()}
		e.roster.Upsert(conv)
	}

	e.active.Set(conv)
	// Empty the list under the new conversation id right away so
	// broadcasts arriving before the history land in the right place.
	e.list.LoadHistory(conversationID, nil)
	e.conn.JoinRoom(conversationID)
	e.fetchHistory(conversationID)
	e.notify(UpdateMessages)
}

// fetchHistory issues the tagged history fetch. The result is dropped
// on arrival if the active conversation has changed since: staleness
// is handled by discarding, not by aborting the request.
func (e *Engine) fetchHistory(conversationID string) {
	go func() {
		ctx, cancel := e.fetchCtx()
		defer cancel()

		messages, err := e.api.Messages(ctx, conversationID)
		select {
		case e.history <- historyResult{conversationID: conversationID, messages: messages, err: err}:
		case <-e.done():
		}
	}()
}

func (e *Engine) applyHistory(res historyResult) {
	if res.conversationID != e.active.ID() {
		slog.Debug("discarding stale history", "chat_id", res.conversationID)
		return
	}
	if res.err != nil {
		e.fetchFailed("history fetch failed", res.err)
		return
	}

	for i := range res.messages {
		res.messages[i] = sanitized(res.messages[i])
	}
	e.list.LoadHistory(res.conversationID, res.messages)
	e.notify(UpdateMessages)
}

// CloseConversation discards the active message list; the roster entry
// is retained.
func (e *Engine) CloseConversation() {
	e.do(func() {
		e.active.Clear()
		e.list.Clear()
		e.notify(UpdateMessages)
	})
}

// Send issues an optimistic send in the active conversation. The
// Pending entry shows immediately; the messageSent echo later confirms
// it in place.
func (e *Engine) Send(text string) {
	e.do(func() {
		conv, ok := e.active.Get()
		if !ok {
			return
		}
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return
		}
		self, ok := e.sessions.Current()
		if !ok {
			return
		}

		e.conn.JoinRoom(conv.ID)

		msg, created := e.list.SendOptimistic(trimmed, self.User.ID, conv.ID, time.Now())
		if !created {
			// An identical send is still unresolved; don't double it.
			return
		}

		e.conn.Send(models.ClientEvent{
			Type:           models.ClientEventTypeSend,
			ConversationID: conv.ID,
			Content:        msg.Content,
			Sender:         msg.Sender,
			LocalID:        msg.LocalID,
		})
		e.typing.ClearLocal(conv.ID)
		e.notify(UpdateMessages)
	})
}

// Typing is called on every keystroke in the composer.
func (e *Engine) Typing() {
	e.do(func() {
		if id := e.active.ID(); id != "" {
			e.typing.Local(id)
		}
	})
}

// Search looks up users by name or email, debounced so only the last
// query within the debounce window reaches the server. deliver runs
// off-loop.
func (e *Engine) Search(query string, deliver func([]models.User, error)) {
	e.do(func() {
		if e.searchTimer != nil {
			e.searchTimer.Stop()
		}
		e.searchTimer = time.AfterFunc(e.cfg.SearchDebounce, func() {
			ctx, cancel := e.fetchCtx()
			defer cancel()
			users, err := e.api.SearchUsers(ctx, query)
			if errors.Is(err, api.ErrUnauthorized) {
				e.do(e.expireSession)
			}
			deliver(users, err)
		})
	})
}

// Rewrite restyles a draft message through the server before it is
// sent. deliver runs off-loop.
func (e *Engine) Rewrite(message, style string, deliver func(string, error)) {
	go func() {
		ctx, cancel := e.fetchCtx()
		defer cancel()

		rewritten, err := e.api.Rewrite(ctx, message, style)
		if errors.Is(err, api.ErrUnauthorized) {
			e.do(e.expireSession)
		}
		deliver(rewritten, err)
	}()
}

// StartDirect creates (or finds) the direct conversation with userID
// and opens it.
func (e *Engine) StartDirect(userID string) {
	go func() {
		ctx, cancel := e.fetchCtx()
		defer cancel()

		conv, err := e.api.CreateDirect(ctx, userID)
		e.do(func() {
			if err != nil {
				e.fetchFailed("create conversation failed", err)
				return
			}
			e.roster.Upsert(conv)
			e.notify(UpdateRoster)
			e.open(conv.ID, false)
		})
	}()
}

// StartGroup creates a group conversation and opens it.
func (e *Engine) StartGroup(name string, memberIDs []string) {
	go func() {
		ctx, cancel := e.fetchCtx()
		defer cancel()

		conv, err := e.api.CreateGroup(ctx, name, memberIDs)
		e.do(func() {
			if err != nil {
				e.fetchFailed("create group failed", err)
				return
			}
			e.roster.Upsert(conv)
			e.notify(UpdateRoster)
			e.open(conv.ID, false)
		})
	}()
}

// Logout clears the session and every piece of in-memory conversation
// state. The caller shuts the engine down afterwards.
func (e *Engine) Logout() {
	done := make(chan struct{})
	e.do(func() {
		defer close(done)
		e.active.Clear()
		e.list.Clear()
		e.roster.Reset()
		e.presence.Reset()
		e.typing.Reset()
		e.rooms.Reset()
		if err := e.sessions.Clear(); err != nil {
			slog.Error("failed to clear session", "error", err)
		}
	})
	select {
	case <-done:
	case <-e.done():
	}
}

// Read-only snapshots for a display layer.

func (e *Engine) Conversations() []models.Conversation {
	return e.roster.List()
}

func (e *Engine) ActiveConversation() (models.Conversation, bool) {
	return e.active.Get()
}

func (e *Engine) Messages() []models.Message {
	return e.list.Messages()
}

func (e *Engine) IsOnline(userID string) bool {
	return e.presence.IsOnline(userID)
}

// PeerTyping reports whether the typing indicator should show for the
// active direct conversation.
func (e *Engine) PeerTyping() bool {
	conv, ok := e.active.Get()
	if !ok {
		return false
	}
	self, ok := e.sessions.Current()
	if !ok {
		return false
	}
	return e.typing.PeerTyping(&conv, self.User.ID)
}

// MemberTyping reports whether a specific member is typing in a
// conversation, for group indicators.
func (e *Engine) MemberTyping(conversationID, userID string) bool {
	return e.typing.IsTyping(conversationID, userID)
}

// ConnectionState exposes the transport lifecycle state.
func (e *Engine) ConnectionState() ws.State {
	return e.conn.State()
}
