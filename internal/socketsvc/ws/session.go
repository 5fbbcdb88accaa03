package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/avvvet/opsboard-services/internal/comm"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type State int

const (
	Connecting State = iota
	Authenticated
	Joined
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticated:
		return "authenticated"
	case Joined:
		return "joined"
	default:
		return "disconnected"
	}
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Session is one websocket client. Frames go out through a bounded queue
// drained by writePump; a full queue gets the client disconnected.
type Session struct {
	ID    string
	Email string

	conn *websocket.Conn
	send chan []byte

	mu          sync.Mutex
	state       State
	boardID     string
	displayName string

	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id, email string, conn *websocket.Conn, queueSize int) *Session {
	return &Session{
		ID:    id,
		Email: email,
		conn:  conn,
		send:  make(chan []byte, queueSize),
		state: Connecting,
		done:  make(chan struct{}),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) BoardID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boardID
}

func (s *Session) setState(st State, boardID, displayName string) {
	s.mu.Lock()
	s.state = st
	s.boardID = boardID
	s.displayName = displayName
	s.mu.Unlock()
}

// enqueue never blocks. It reports false when the session is gone or its
// queue is full.
func (s *Session) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

func (s *Session) sendMessage(msg *comm.WSMessage) bool {
	frame, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("marshal %s for socket %s: %v", msg.Type, s.ID, err)
		return false
	}
	return s.enqueue(frame)
}

// terminate flushes what is queued, then closes the connection. A nil frame
// is the close marker for writePump. Frames read before the close lands find
// the session Disconnected.
func (s *Session) terminate() {
	if !s.enqueue(nil) {
		s.kill()
	}
	s.setState(Disconnected, "", "")
}

// kill drops the connection right away; the read loop then runs the cleanup.
func (s *Session) kill() {
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *Session) markClosed() {
	s.closeOnce.Do(func() {
		s.setState(Disconnected, "", "")
		close(s.done)
	})
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if frame == nil {
				s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session terminated"))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warnf("write to socket %s failed: %v", s.ID, err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
