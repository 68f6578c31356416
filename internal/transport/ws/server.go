package ws

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/events"
	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/internal/security"
)

type TokenVerifier interface {
	Verify(token string) (domain.UserID, error)
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	verifier TokenVerifier

	pingEvery time.Duration
	queueSize int
}

func NewServer(hub *Hub, verifier TokenVerifier) *Server {
	return &Server{
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
		queueSize: 64,
	}
}

// HandleWS: GET /ws/chat/{userId}?access_token=...
// Канал только на выдачу: сообщения отправляются через HTTP.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("access_token")
	if token == "" {
		token = security.BearerToken(r.Header.Get("Authorization"))
	}
	actor, err := s.verifier.Verify(token)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	other := domain.UserID(chi.URLParam(r, "userId"))
	if other == "" {
		http.Error(w, "missing user id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		slog.Warn("ws upgrade failed", slog.Any("err", err))
		return
	}

	c := newWsConn(conn, domain.Between(actor, other).Key(), actor, s.queueSize)
	s.hub.Add(c)
	metrics.WSConns.Inc()
	defer func() {
		s.hub.Remove(c)
		metrics.WSConns.Dec()
		if err := c.Close(); err != nil {
			slog.Debug("ws close failed", slog.String("user", string(actor)), slog.Any("err", err))
		}
	}()

	go s.writeLoop(c)
	s.readLoop(c)
}

// readLoop только держит соединение и ловит pong/close.
func (s *Server) readLoop(c *wsConn) {
	c.conn.SetReadLimit(4 << 10)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws read error", slog.String("user", string(c.userID)), slog.Any("err", err))
			}
			return
		}
	}
}

func (s *Server) writeLoop(c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case ev := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteJSON(ev); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

type wsConn struct {
	conn         *websocket.Conn
	conversation string
	userID       domain.UserID

	out       chan events.Event
	closed    chan struct{}
	closeOnce sync.Once
}

func newWsConn(c *websocket.Conn, conversation string, userID domain.UserID, queue int) *wsConn {
	return &wsConn{
		conn:         c,
		conversation: conversation,
		userID:       userID,
		out:          make(chan events.Event, queue),
		closed:       make(chan struct{}),
	}
}

func (c *wsConn) Send(ev events.Event) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.out <- ev:
		return true
	default:
		return false
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) UserID() string       { return string(c.userID) }
func (c *wsConn) Conversation() string { return c.conversation }
