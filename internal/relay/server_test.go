package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"github.com/MalooBell/App-Intervention-ENEO/internal/config"
	"github.com/MalooBell/App-Intervention-ENEO/internal/domain"
	"github.com/MalooBell/App-Intervention-ENEO/internal/protocol"
)

func testConfig() *config.Config {
	return &config.Config{
		PingInterval:   10 * time.Second,
		WriteTimeout:   2 * time.Second,
		ReadTimeout:    10 * time.Second,
		MaxMessageSize: 65536,
	}
}

func startRelay(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(testConfig()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func dialSession(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/" + sessionID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) *protocol.ChatEvent {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	ev, err := protocol.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return ev
}

func TestFrameIsEchoedToTheRoom(t *testing.T) {
	srv := startRelay(t)

	sender := dialSession(t, srv, "s1")
	watcher := dialSession(t, srv, "s1")
	stranger := dialSession(t, srv, "s2")

	out := &protocol.ChatEvent{
		MessageID: "m1",
		Message:   "hello",
		Sender:    "client",
	}
	if err := sender.WriteJSON(out); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Both room members get the frame, sender included.
	for _, ws := range []*websocket.Conn{sender, watcher} {
		ev := readEvent(t, ws)
		assert.Equal(t, "s1", ev.SessionID)
		assert.Equal(t, "m1", ev.MessageID)
		assert.Equal(t, "hello", ev.Message)
		assert.NotEmpty(t, ev.Timestamp)
	}

	// The other room hears nothing.
	_ = stranger.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := stranger.ReadMessage(); err == nil {
		t.Fatalf("message leaked into another session")
	}
}

func TestMalformedFrameIsDropped(t *testing.T) {
	srv := startRelay(t)
	ws := dialSession(t, srv, "s1")

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ws.WriteJSON(&protocol.ChatEvent{MessageID: "m1", Message: "still alive", Sender: "client"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The garbage frame neither killed the connection nor got relayed.
	ev := readEvent(t, ws)
	assert.Equal(t, "still alive", ev.Message)
}

func TestRESTSendReachesRoomAndHistory(t *testing.T) {
	srv := startRelay(t)
	ws := dialSession(t, srv, "s1")

	body := strings.NewReader(`{"session_id":"s1","content":"admin here"}`)
	resp, err := http.Post(srv.URL+"/api/v1/chat/message", "application/json", body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ev := readEvent(t, ws)
	assert.Equal(t, "admin here", ev.Message)
	assert.Equal(t, string(domain.SenderAdmin), ev.Sender)

	histResp, err := http.Get(srv.URL + "/api/v1/chat/s1/messages")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	defer histResp.Body.Close()

	var messages []domain.Message
	if err := json.NewDecoder(histResp.Body).Decode(&messages); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	assert.Len(t, messages, 1)
	assert.Equal(t, "admin here", messages[0].Content)
}

func TestSendValidation(t *testing.T) {
	srv := startRelay(t)

	resp, err := http.Post(srv.URL+"/api/v1/chat/message", "application/json",
		strings.NewReader(`{"content":"no session"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := startRelay(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
