package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/baajur/flodgatt/internal/timeline"
)

const (
	sessionBufferSize = 256
	writeTimeout      = 5 * time.Second
)

// Session is one connected streaming client.
type Session struct {
	ID uuid.UUID

	channel  string
	timeline timeline.Timeline

	conn *websocket.Conn
	out  chan []byte
	done chan struct{}

	closeOnce sync.Once
}

// NewSession wraps an upgraded WebSocket connection.
func NewSession(conn *websocket.Conn) *Session {
	return &Session{
		ID:   uuid.New(),
		conn: conn,
		out:  make(chan []byte, sessionBufferSize),
		done: make(chan struct{}),
	}
}

// deliver queues a payload for the client without blocking. It reports
// false when the session's buffer is full and the payload was dropped.
func (s *Session) deliver(payload []byte) bool {
	select {
	case s.out <- payload:
		return true
	case <-s.done:
		return true
	default:
		return false
	}
}

// Run writes queued payloads to the client until the session closes or
// a write fails, then closes the connection.
func (s *Session) Run() {
	defer s.conn.Close()

	// Detect client-initiated close without consuming anything else.
	go s.readLoop()

	for {
		select {
		case <-s.done:
			s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			return
		case payload := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.Close()
				return
			}
		}
	}
}

// readLoop discards inbound frames; clients only listen. An error means
// the client went away.
func (s *Session) readLoop() {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.Close()
			return
		}
	}
}

// Close marks the session finished. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Done is closed when the session has finished.
func (s *Session) Done() <-chan struct{} { return s.done }
