package hub

import (
	"time"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------

const (
	// sendBufferSize is the per-session outbound queue. A session that falls
	// this far behind starts losing events instead of stalling ingestion.
	sendBufferSize = 64

	writeTimeout = 10 * time.Second
)

// -----------------------------------------------------------------------------

// Session is one connected viewer: a websocket connection plus a buffered
// outbound queue drained by a dedicated writer goroutine.
type Session struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// -----------------------------------------------------------------------------

func newSession(conn *websocket.Conn) *Session {
	return &Session{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// trySend queues a message without ever blocking. Returns false when the
// session is closed or its buffer is full; the caller just moves on.
func (s *Session) trySend(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------

// writeLoop drains the outbound queue onto the wire. A write error ends the
// session; the hub notices through the returned close.
func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case data, ok := <-s.send:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------

// readLoop consumes (and discards) inbound frames so websocket control
// messages are processed. It returns when the peer goes away.
func (s *Session) readLoop() {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// -----------------------------------------------------------------------------

// close is idempotent through the done channel.
func (s *Session) close() {
	select {
	case <-s.done:
		return
	default:
		close(s.done)
		_ = s.conn.Close()
	}
}
