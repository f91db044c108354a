// Package session binds one conversation to a transport connection and a
// message store, and drives the view state machine:
//
//	idle -> loading_history -> connecting -> live -> (disconnected | error)
//
// Input is only accepted in the live state. Deselecting always releases the
// transport. All failures are recovered here; nothing is fatal.
package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MalooBell/App-Intervention-ENEO/internal/cache"
	"github.com/MalooBell/App-Intervention-ENEO/internal/domain"
	"github.com/MalooBell/App-Intervention-ENEO/internal/protocol"
	"github.com/MalooBell/App-Intervention-ENEO/internal/store"
)

// Transport is the connection the controller drives. *conn.Manager
// implements it.
type Transport interface {
	Open(ctx context.Context, sessionID string) error
	Close()
	Send(ev *protocol.ChatEvent) error
	Status() domain.ConnStatus
}

// HistoryFetcher fetches the ordered message history for a session.
// *backend.Client implements it.
type HistoryFetcher interface {
	History(ctx context.Context, sessionID string) ([]domain.Message, error)
}

// RESTSender is the request/response send path used by the admin surface in
// place of a transport push. *backend.Client implements it (via Send).
type RESTSender interface {
	SendChat(ctx context.Context, msg domain.Message) error
}

// Options configures a Controller.
type Options struct {
	Transport Transport
	History   HistoryFetcher
	// RESTSend, when set, replaces the transport push for outgoing messages.
	RESTSend RESTSender
	// Cache, when set, persists fetched and sent messages locally.
	Cache *cache.Cache
	// Sender is the party this surface writes as.
	Sender domain.Sender

	// OnState is notified on every state change.
	OnState func(state domain.SessionState)
	// OnMessage is notified when a message is appended to the active store.
	OnMessage func(msg domain.Message)
}

// Controller owns the view state for one conversation at a time.
type Controller struct {
	opts Options

	mu    sync.Mutex
	state domain.SessionState
	store *store.Store
}

// New creates a Controller in the idle state.
func New(opts Options) *Controller {
	if opts.Sender == "" {
		opts.Sender = domain.SenderClient
	}
	return &Controller{opts: opts, state: domain.SessionIdle}
}

// SetTransport wires the transport after construction, for the usual
// pattern where the transport's callbacks point back at the controller.
func (c *Controller) SetTransport(t Transport) {
	c.opts.Transport = t
}

// State returns the current view state.
func (c *Controller) State() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Store returns the active message store, or nil when idle.
func (c *Controller) Store() *store.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

// Select activates a session: fetch history, hydrate the store, then
// connect the transport. A failed history fetch does not block the
// connection attempt; the user just sees an empty history until retried.
// Selecting while another session is active closes it first.
func (c *Controller) Select(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("select: session id is required")
	}

	c.Deselect()

	c.mu.Lock()
	c.store = store.New(sessionID)
	c.mu.Unlock()
	c.setState(domain.SessionLoadingHistory)

	if c.opts.History != nil {
		history, err := c.opts.History.History(ctx, sessionID)
		if err != nil {
			log.Printf("History fetch failed for session %s: %v", sessionID, err)
		} else {
			c.mu.Lock()
			c.store.ReplaceAll(history)
			c.mu.Unlock()
			c.persist(ctx, history...)
		}
	}

	c.setState(domain.SessionConnecting)
	if err := c.opts.Transport.Open(ctx, sessionID); err != nil {
		c.setState(domain.SessionError)
		return fmt.Errorf("connect session %s: %w", sessionID, err)
	}

	c.setState(domain.SessionLive)
	return nil
}

// Reconnect re-triggers the transport for the active session after a drop.
func (c *Controller) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	st := c.store
	c.mu.Unlock()
	if st == nil {
		return fmt.Errorf("reconnect: no active session")
	}

	c.setState(domain.SessionConnecting)
	if err := c.opts.Transport.Open(ctx, st.SessionID()); err != nil {
		c.setState(domain.SessionError)
		return fmt.Errorf("reconnect session %s: %w", st.SessionID(), err)
	}
	c.setState(domain.SessionLive)
	return nil
}

// Send posts a message on the active session. It is guarded: the view must
// be live and the content non-empty after trimming. The message is appended
// optimistically (status pending) before the transport acknowledges; a
// rejected send marks it failed and returns the error, it never retracts.
func (c *Controller) Send(ctx context.Context, content string) (domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, fmt.Errorf("send: empty message")
	}

	c.mu.Lock()
	if c.state != domain.SessionLive || c.store == nil {
		state := c.state
		c.mu.Unlock()
		return domain.Message{}, fmt.Errorf("send: session is %s, not live", state)
	}
	st := c.store
	c.mu.Unlock()

	msg := domain.Message{
		ID:        uuid.New().String(),
		SessionID: st.SessionID(),
		Content:   content,
		Sender:    c.opts.Sender,
		Timestamp: time.Now(),
		Status:    domain.MessagePending,
	}
	st.Append(msg)
	c.notify(msg)
	c.persist(ctx, msg)

	var err error
	if c.opts.RESTSend != nil {
		err = c.opts.RESTSend.SendChat(ctx, msg)
	} else {
		err = c.opts.Transport.Send(protocol.FromMessage(msg))
	}
	if err != nil {
		st.MarkFailed(msg.ID)
		c.persist(ctx, domain.Message{ID: msg.ID, SessionID: msg.SessionID,
			Content: msg.Content, Sender: msg.Sender, Timestamp: msg.Timestamp,
			Status: domain.MessageFailed})
		return msg, fmt.Errorf("send message %s: %w", msg.ID, err)
	}
	return msg, nil
}

// Deselect leaves the conversation, always releasing the transport.
func (c *Controller) Deselect() {
	c.mu.Lock()
	had := c.store != nil
	c.store = nil
	c.mu.Unlock()

	if c.opts.Transport != nil {
		c.opts.Transport.Close()
	}
	if had || c.State() != domain.SessionIdle {
		c.setState(domain.SessionIdle)
	}
}

// HandleMessage routes an inbound transport message into the active store.
// Messages for another session are discarded here; a server echo of an
// optimistic send confirms it instead of duplicating it.
func (c *Controller) HandleMessage(msg domain.Message) {
	c.mu.Lock()
	st := c.store
	c.mu.Unlock()
	if st == nil || (msg.SessionID != "" && msg.SessionID != st.SessionID()) {
		return
	}
	if st.Append(msg) {
		c.notify(msg)
	}
	c.persist(context.Background(), msg)
}

// HandleStatus reflects transport status changes into the view state.
func (c *Controller) HandleStatus(status domain.ConnStatus) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch status {
	case domain.ConnError:
		if state == domain.SessionConnecting || state == domain.SessionLive {
			c.setState(domain.SessionError)
		}
	case domain.ConnDisconnected:
		if state == domain.SessionLive {
			c.setState(domain.SessionDisconnected)
		}
	case domain.ConnConnecting:
		// A background redial after a drop; mirror it so the view shows
		// progress instead of a stale error.
		if state == domain.SessionError || state == domain.SessionDisconnected {
			c.setState(domain.SessionConnecting)
		}
	case domain.ConnConnected:
		// Covers both the initial dial and a transport-level reconnect
		// restoring a dropped session.
		if state == domain.SessionConnecting || state == domain.SessionError ||
			state == domain.SessionDisconnected {
			c.setState(domain.SessionLive)
		}
	}
}

func (c *Controller) setState(state domain.SessionState) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()

	if changed && c.opts.OnState != nil {
		c.opts.OnState(state)
	}
}

func (c *Controller) notify(msg domain.Message) {
	if c.opts.OnMessage != nil {
		c.opts.OnMessage(msg)
	}
}

func (c *Controller) persist(ctx context.Context, messages ...domain.Message) {
	if c.opts.Cache == nil {
		return
	}
	for _, msg := range messages {
		if _, err := c.opts.Cache.GetOrCreateSession(ctx, msg.SessionID); err != nil {
			log.Printf("WARN: cache session %s: %v", msg.SessionID, err)
			continue
		}
		if err := c.opts.Cache.SaveMessage(ctx, msg); err != nil {
			log.Printf("WARN: cache message %s: %v", msg.ID, err)
		}
	}
}
