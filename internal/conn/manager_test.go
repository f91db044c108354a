package conn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"github.com/MalooBell/App-Intervention-ENEO/internal/domain"
	"github.com/MalooBell/App-Intervention-ENEO/internal/protocol"
)

// testServer upgrades /ws/chat/<session> connections and pushes whatever
// frames the test queues. It counts concurrently live connections.
type testServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn
	live  int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := ts.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		atomic.AddInt64(&ts.live, 1)
		ts.mu.Lock()
		ts.conns = append(ts.conns, ws)
		ts.mu.Unlock()

		// Drain until the client goes away.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}
		atomic.AddInt64(&ts.live, -1)
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws/chat"
}

func (ts *testServer) push(t *testing.T, data []byte) {
	t.Helper()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.conns) == 0 {
		t.Fatalf("no server-side connection to push on")
	}
	ws := ts.conns[len(ts.conns)-1]
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("server push: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOpenRejectsEmptySession(t *testing.T) {
	m := NewManager(Options{BaseURL: "ws://localhost:0/ws/chat"})
	err := m.Open(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidSession)
	assert.Equal(t, domain.ConnDisconnected, m.Status())
}

func TestOpenConnectsAndCloseDisconnects(t *testing.T) {
	ts := newTestServer(t)

	var statuses []domain.ConnStatus
	var mu sync.Mutex
	m := NewManager(Options{
		BaseURL: ts.wsURL(),
		OnStatus: func(s domain.ConnStatus) {
			mu.Lock()
			statuses = append(statuses, s)
			mu.Unlock()
		},
	})

	if err := m.Open(context.Background(), "s1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	assert.Equal(t, domain.ConnConnected, m.Status())
	assert.Equal(t, "s1", m.SessionID())

	m.Close()
	assert.Equal(t, domain.ConnDisconnected, m.Status())
	assert.Equal(t, "", m.SessionID())

	// Close is idempotent.
	m.Close()
	assert.Equal(t, domain.ConnDisconnected, m.Status())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.ConnStatus{domain.ConnConnecting, domain.ConnConnected, domain.ConnDisconnected}, statuses)
}

func TestOpenFailureSetsError(t *testing.T) {
	m := NewManager(Options{
		BaseURL:     "ws://127.0.0.1:1/ws/chat",
		DialTimeout: 200 * time.Millisecond,
	})
	err := m.Open(context.Background(), "s1")
	if err == nil {
		t.Fatalf("expected dial failure")
	}
	assert.Equal(t, domain.ConnError, m.Status())
}

func TestAtMostOneLiveConnection(t *testing.T) {
	ts := newTestServer(t)
	m := NewManager(Options{BaseURL: ts.wsURL()})
	defer m.Close()

	for _, id := range []string{"s1", "s2", "s3"} {
		if err := m.Open(context.Background(), id); err != nil {
			t.Fatalf("open %s: %v", id, err)
		}
		// The previous socket is released before the next dial; the server
		// must settle back to a single live connection every time.
		waitFor(t, func() bool { return atomic.LoadInt64(&ts.live) == 1 })
		assert.Equal(t, id, m.SessionID())
	}
}

func TestMalformedPayloadIsDropped(t *testing.T) {
	ts := newTestServer(t)

	var mu sync.Mutex
	var received []domain.Message
	m := NewManager(Options{
		BaseURL: ts.wsURL(),
		OnMessage: func(msg domain.Message) {
			mu.Lock()
			received = append(received, msg)
			mu.Unlock()
		},
	})
	defer m.Close()

	if err := m.Open(context.Background(), "s1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	ts.push(t, []byte("this is not json"))
	ts.push(t, []byte(`{"session_id":"s1","message_id":"m1","message":"hello","sender":"admin","timestamp":"2026-08-28T10:00:00Z"}`))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "m1", received[0].ID)
	assert.Equal(t, "hello", received[0].Content)
	// The garbage frame changed nothing.
	assert.Equal(t, domain.ConnConnected, m.Status())
}

func TestSendRequiresConnection(t *testing.T) {
	m := NewManager(Options{BaseURL: "ws://localhost:0/ws/chat"})
	err := m.Send(&protocol.ChatEvent{Message: "hello"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestServerDropTransitionsToError(t *testing.T) {
	ts := newTestServer(t)
	m := NewManager(Options{BaseURL: ts.wsURL()})
	defer m.Close()

	if err := m.Open(context.Background(), "s1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	ts.mu.Lock()
	ws := ts.conns[len(ts.conns)-1]
	ts.mu.Unlock()
	_ = ws.Close()

	waitFor(t, func() bool { return m.Status() == domain.ConnError })
}
