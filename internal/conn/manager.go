// Package conn manages the per-session transport connection used by every
// chat surface. One Manager owns at most one live WebSocket connection at a
// time; opening a new session always releases the previous connection first.
package conn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MalooBell/App-Intervention-ENEO/internal/domain"
	"github.com/MalooBell/App-Intervention-ENEO/internal/protocol"
)

// ErrInvalidSession is returned by Open when the session id is empty. No
// connection attempt is made in that case.
var ErrInvalidSession = errors.New("invalid session id")

// ErrNotConnected is returned by Send when no connection is live.
var ErrNotConnected = errors.New("not connected")

// Handler receives inbound chat messages. It is invoked from the read loop;
// malformed frames never reach it.
type Handler func(msg domain.Message)

// StatusListener is notified on every connection status change.
type StatusListener func(status domain.ConnStatus)

// Reconnect configures optional automatic reconnection with bounded
// exponential backoff. Disabled by default: the observed contract is a
// user-triggered reconnect.
type Reconnect struct {
	Enabled     bool
	MaxAttempts int
	BaseWait    time.Duration
	MaxWait     time.Duration
}

// Options configures a Manager.
type Options struct {
	// BaseURL is the transport base, e.g. "ws://host:8082/ws/chat". The
	// session id is appended as the final path segment.
	BaseURL string

	DialTimeout time.Duration
	Reconnect   Reconnect

	OnMessage Handler
	OnStatus  StatusListener
}

// Manager maintains exactly one live transport connection per active
// session id.
type Manager struct {
	opts   Options
	dialer *websocket.Dialer

	mu        sync.Mutex
	ws        *websocket.Conn
	sessionID string
	status    domain.ConnStatus
	done      chan struct{}
	gen       int // bumped on every Open/Close so stale read loops cannot flip status
}

// NewManager creates a Manager. Connections are established with Open.
func NewManager(opts Options) *Manager {
	dialer := *websocket.DefaultDialer
	if opts.DialTimeout > 0 {
		dialer.HandshakeTimeout = opts.DialTimeout
	}
	return &Manager{
		opts:   opts,
		dialer: &dialer,
		status: domain.ConnDisconnected,
	}
}

// Status returns the current connection status.
func (m *Manager) Status() domain.ConnStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// SessionID returns the session the manager is bound to, if any.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Open connects the transport for the given session. Any previous connection
// is closed first, so at most one connection is ever live. An empty session
// id fails with ErrInvalidSession without dialing.
func (m *Manager) Open(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidSession
	}

	// Release the prior connection before dialing the next session.
	m.Close()

	m.setStatus(domain.ConnConnecting)

	url := m.opts.BaseURL + "/" + sessionID
	ws, _, err := m.dialer.DialContext(ctx, url, nil)
	if err != nil {
		m.setStatus(domain.ConnError)
		return fmt.Errorf("dial %s: %w", url, err)
	}

	m.mu.Lock()
	m.ws = ws
	m.sessionID = sessionID
	m.done = make(chan struct{})
	m.gen++
	gen := m.gen
	done := m.done
	m.mu.Unlock()

	m.setStatus(domain.ConnConnected)

	go m.readLoop(ws, done, gen, sessionID)
	return nil
}

// Send writes a chat event on the live connection.
func (m *Manager) Send(ev *protocol.ChatEvent) error {
	m.mu.Lock()
	ws := m.ws
	m.mu.Unlock()

	if ws == nil {
		return ErrNotConnected
	}
	if err := ws.WriteJSON(ev); err != nil {
		return fmt.Errorf("write chat event: %w", err)
	}
	return nil
}

// Close releases the transport. It is idempotent and always leaves the
// manager disconnected, whatever the prior state.
func (m *Manager) Close() {
	m.mu.Lock()
	ws := m.ws
	done := m.done
	m.ws = nil
	m.done = nil
	m.sessionID = ""
	m.gen++
	m.mu.Unlock()

	if done != nil {
		close(done)
	}
	if ws != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = ws.Close()
	}
	m.setStatus(domain.ConnDisconnected)
}

func (m *Manager) readLoop(ws *websocket.Conn, done chan struct{}, gen int, sessionID string) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			select {
			case <-done:
				// Closed locally; Close already set the status.
				return
			default:
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Printf("Read error on session %s: %v", sessionID, err)
			}
			m.dropConn(ws, gen)
			if m.opts.Reconnect.Enabled {
				go m.reconnect(sessionID, gen)
			}
			return
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			// Malformed payloads are dropped; they change neither the
			// message list nor the connection status.
			log.Printf("Dropping malformed payload on session %s: %v", sessionID, err)
			continue
		}

		if m.opts.OnMessage != nil {
			m.opts.OnMessage(ev.ToMessage())
		}
	}
}

// dropConn transitions to error after a mid-session failure, unless a newer
// connection has already replaced this one.
func (m *Manager) dropConn(ws *websocket.Conn, gen int) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.ws = nil
	done := m.done
	m.done = nil
	m.mu.Unlock()

	_ = ws.Close()
	if done != nil {
		close(done)
	}
	m.setStatus(domain.ConnError)
}

// reconnect redials with bounded exponential backoff. It gives up after
// MaxAttempts and leaves the manager in the error state for a manual retry.
func (m *Manager) reconnect(sessionID string, gen int) {
	wait := m.opts.Reconnect.BaseWait
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}
	attempts := m.opts.Reconnect.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	dialTimeout := m.dialer.HandshakeTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		time.Sleep(wait)

		m.mu.Lock()
		stale := m.gen != gen
		m.mu.Unlock()
		if stale {
			// Something else opened or closed in the meantime.
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		err := m.Open(ctx, sessionID)
		cancel()
		if err == nil {
			log.Printf("Reconnected session %s after %d attempt(s)", sessionID, attempt)
			return
		}
		log.Printf("Reconnect attempt %d/%d for session %s failed: %v", attempt, attempts, sessionID, err)

		m.mu.Lock()
		gen = m.gen
		m.mu.Unlock()

		wait *= 2
		if m.opts.Reconnect.MaxWait > 0 && wait > m.opts.Reconnect.MaxWait {
			wait = m.opts.Reconnect.MaxWait
		}
	}
}

func (m *Manager) setStatus(status domain.ConnStatus) {
	m.mu.Lock()
	changed := m.status != status
	m.status = status
	m.mu.Unlock()

	if changed && m.opts.OnStatus != nil {
		m.opts.OnStatus(status)
	}
}
