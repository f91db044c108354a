package relay

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/MalooBell/App-Intervention-ENEO/internal/config"
	"github.com/MalooBell/App-Intervention-ENEO/internal/domain"
	"github.com/MalooBell/App-Intervention-ENEO/internal/protocol"
)

// Server exposes the relay's WebSocket and REST surface.
type Server struct {
	cfg      *config.Config
	echo     *echo.Echo
	hub      *Hub
	upgrader websocket.Upgrader

	hubOnce sync.Once

	mu            sync.Mutex
	history       map[string][]domain.Message
	interventions map[int64]*Intervention
	nextID        int64
}

// Intervention is the relay's in-memory record of an open complaint.
type Intervention struct {
	ID          int64  `json:"id"`
	SessionID   string `json:"session_id"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

// NewServer creates a relay server.
func NewServer(cfg *config.Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{
		cfg:  cfg,
		echo: e,
		hub:  NewHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Development relay, any origin is fine.
				return true
			},
		},
		history:       make(map[string][]domain.Message),
		interventions: make(map[int64]*Intervention),
		nextID:        1,
	}

	e.GET("/health", s.handleHealth)
	e.GET("/ws/chat/:session_id", s.handleWebSocket)
	e.GET("/api/v1/chat/:session_id/messages", s.handleHistory)
	e.POST("/api/v1/chat/message", s.handleSend)
	e.POST("/api/v1/chat/complaint", s.handleComplaint)
	e.GET("/api/v1/agents/:agent_id/interventions", s.handleInterventions)
	e.POST("/api/v1/interventions/:id/resolve", s.handleResolve)

	return s
}

// Start runs the hub loop and serves on addr.
func (s *Server) Start(addr string) error {
	s.hubOnce.Do(func() { go s.hub.Run() })
	return s.echo.Start(addr)
}

// Handler returns the HTTP handler with the hub loop running, for tests.
func (s *Server) Handler() http.Handler {
	s.hubOnce.Do(func() { go s.hub.Run() })
	return s.echo
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func errBody(code, msg string) map[string]string {
	return map[string]string{"error": msg, "code": code}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"connections": s.hub.ConnectionCount(),
		"sessions":    s.hub.SessionCount(),
	})
}

func (s *Server) handleWebSocket(c echo.Context) error {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, errBody(protocol.ErrorCodeSessionRequired, "session_id is required"))
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws, sessionID)
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

func (s *Server) readPump(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, data, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			log.Printf("Dropping malformed frame on session %s: %v", conn.SessionID, err)
			continue
		}
		ev.SessionID = conn.SessionID
		if ev.Timestamp == "" {
			ev.Timestamp = time.Now().Format(time.RFC3339)
		}

		s.record(ev.ToMessage())
		if err := s.hub.BroadcastJSON(conn.SessionID, ev); err != nil {
			log.Printf("Failed to broadcast on session %s: %v", conn.SessionID, err)
		}
	}
}

func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleHistory(c echo.Context) error {
	sessionID := c.Param("session_id")

	s.mu.Lock()
	messages := make([]domain.Message, len(s.history[sessionID]))
	copy(messages, s.history[sessionID])
	s.mu.Unlock()

	return c.JSON(http.StatusOK, messages)
}

type sendRequest struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
	Sender    string `json:"sender"`
	MessageID string `json:"message_id"`
}

func (s *Server) handleSend(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody(protocol.ErrorCodeInvalidMessage, "invalid request body"))
	}
	if req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, errBody(protocol.ErrorCodeSessionRequired, "session_id is required"))
	}
	if req.Content == "" {
		return c.JSON(http.StatusBadRequest, errBody(protocol.ErrorCodeInvalidMessage, "content is required"))
	}

	sender := req.Sender
	if sender == "" {
		sender = string(domain.SenderAdmin)
	}
	// Keep the caller's message id when provided so its optimistic copy is
	// confirmed by the echo instead of duplicated.
	messageID := req.MessageID
	if messageID == "" {
		messageID = uuid.New().String()
	}
	ev := &protocol.ChatEvent{
		SessionID: req.SessionID,
		MessageID: messageID,
		Message:   req.Content,
		Sender:    sender,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	s.record(ev.ToMessage())
	if err := s.hub.BroadcastJSON(req.SessionID, ev); err != nil {
		return c.JSON(http.StatusInternalServerError, errBody(protocol.ErrorCodeInternalError, "failed to broadcast"))
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

type complaintRequest struct {
	SessionID   string `json:"session_id"`
	Description string `json:"description"`
}

func (s *Server) handleComplaint(c echo.Context) error {
	var req complaintRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody(protocol.ErrorCodeInvalidMessage, "invalid request body"))
	}
	if req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, errBody(protocol.ErrorCodeSessionRequired, "session_id is required"))
	}

	s.mu.Lock()
	iv := &Intervention{
		ID:          s.nextID,
		SessionID:   req.SessionID,
		Description: req.Description,
		Status:      "pending",
		CreatedAt:   time.Now().Format(time.RFC3339),
	}
	s.nextID++
	s.interventions[iv.ID] = iv
	s.mu.Unlock()

	return c.JSON(http.StatusCreated, iv)
}

func (s *Server) handleInterventions(c echo.Context) error {
	s.mu.Lock()
	out := make([]*Intervention, 0, len(s.interventions))
	for _, iv := range s.interventions {
		out = append(out, iv)
	}
	s.mu.Unlock()
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleResolve(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errBody(protocol.ErrorCodeInvalidMessage, "invalid intervention id"))
	}

	s.mu.Lock()
	iv, ok := s.interventions[id]
	if ok {
		iv.Status = "resolved"
	}
	s.mu.Unlock()

	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "intervention not found"})
	}
	return c.JSON(http.StatusOK, iv)
}

func (s *Server) record(msg domain.Message) {
	s.mu.Lock()
	s.history[msg.SessionID] = append(s.history[msg.SessionID], msg)
	s.mu.Unlock()
}
