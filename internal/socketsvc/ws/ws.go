package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/avvvet/opsboard-services/internal/apperr"
	"github.com/avvvet/opsboard-services/internal/comm"
	"github.com/avvvet/opsboard-services/internal/socketsvc/engine"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const DefaultQueueSize = 64

// Ws is the session coordinator: connections, board rooms and presence.
type Ws struct {
	connMap sync.Map // socketId -> *Session

	roomMu sync.RWMutex
	rooms  map[string]map[string]*Session // boardId -> socketId -> session

	Engine *engine.Engine

	auth        engine.Authorizer
	queueSize   int
	authTimeout time.Duration
}

func NewWs(auth engine.Authorizer, persister engine.Persister, maxPayload, queueSize int) *Ws {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	s := &Ws{
		rooms:       make(map[string]map[string]*Session),
		auth:        auth,
		queueSize:   queueSize,
		authTimeout: 15 * time.Second,
	}
	s.Engine = engine.New(auth, s, persister, maxPayload)
	return s
}

// Register adopts a connection whose identity was verified at the handshake.
func (s *Ws) Register(socketId, email string, conn *websocket.Conn) *Session {
	sess := newSession(socketId, email, conn, s.queueSize)
	sess.setState(Authenticated, "", "")
	s.connMap.Store(socketId, sess)
	if conn != nil {
		go sess.writePump()
	}
	return sess
}

func (s *Ws) GetSession(socketId string) (*Session, bool) {
	sess, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return sess.(*Session), true
}

// handle socket message from web clients
func (s *Ws) SocketMessage(sess *Session, message *comm.WSMessage) {
	if sess.State() == Disconnected {
		return
	}
	switch message.Type {
	case comm.EventJoin:
		s.handleJoin(sess, message)
	case comm.EventUpdate:
		s.handleUpdate(sess, message)
	case comm.EventLeave:
		if boardID := sess.BoardID(); boardID != "" {
			s.leaveRoom(sess, boardID)
			sess.setState(Authenticated, "", "")
		}
	default:
		log.Warnf("unknown event received: %s", message.Type)
		s.SendError(sess, apperr.ErrBadRequest)
	}
}

// handleJoin fails closed: any authorization or store error ends the session
// without it ever entering the room.
func (s *Ws) handleJoin(sess *Session, msg *comm.WSMessage) {
	var req comm.JoinRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.BoardId == "" {
		log.Errorf("Error: invalid join payload from socket %s", sess.ID)
		s.SendError(sess, apperr.ErrBadRequest)
		s.terminate(sess)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.authTimeout)
	defer cancel()

	fields := log.Fields{"socket": sess.ID, "board": req.BoardId, "email": sess.Email}
	if err := s.auth.AuthorizeView(ctx, sess.Email, req.BoardId); err != nil {
		log.WithFields(fields).Warnf("join denied: %v", err)
		s.SendError(sess, err)
		s.terminate(sess)
		return
	}

	if current := sess.BoardID(); current != "" && current != req.BoardId {
		s.leaveRoom(sess, current)
	}
	if !s.joinRoom(sess, req) {
		return
	}
	log.WithFields(fields).Info("joined board")
}

func (s *Ws) joinRoom(sess *Session, req comm.JoinRequest) bool {
	s.roomMu.Lock()
	defer s.roomMu.Unlock()

	if sess.State() == Disconnected {
		return false
	}

	room, ok := s.rooms[req.BoardId]
	if !ok {
		room = make(map[string]*Session)
		s.rooms[req.BoardId] = room
	}
	room[sess.ID] = sess
	sess.setState(Joined, req.BoardId, req.DisplayName)

	name := req.DisplayName
	if name == "" {
		name = sess.Email
	}
	msg, err := comm.Envelope(comm.EventPresence, "", comm.Presence{User: name, Action: "joined", OnlineCount: len(room)})
	if err != nil {
		log.Errorf("presence envelope: %v", err)
		return true
	}
	s.fanoutLocked(room, "", msg)
	return true
}

func (s *Ws) leaveRoom(sess *Session, boardID string) {
	s.roomMu.Lock()
	defer s.roomMu.Unlock()

	room, ok := s.rooms[boardID]
	if !ok {
		return
	}
	if _, member := room[sess.ID]; !member {
		return
	}
	delete(room, sess.ID)
	if len(room) == 0 {
		delete(s.rooms, boardID)
		return
	}

	msg, err := comm.Envelope(comm.EventPresenceLeft, "", comm.PresenceLeft{SocketId: sess.ID, OnlineCount: len(room)})
	if err != nil {
		log.Errorf("presence-left envelope: %v", err)
		return
	}
	s.fanoutLocked(room, "", msg)
}

// terminate takes the session out of its room before closing it.
func (s *Ws) terminate(sess *Session) {
	if boardID := sess.BoardID(); boardID != "" {
		s.leaveRoom(sess, boardID)
	}
	sess.terminate()
}

func (s *Ws) handleUpdate(sess *Session, msg *comm.WSMessage) {
	var req comm.UpdateRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.BoardId == "" {
		s.SendError(sess, apperr.ErrBadRequest)
		return
	}
	if sess.State() != Joined || sess.BoardID() != req.BoardId {
		s.SendError(sess, apperr.ErrUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.authTimeout)
	defer cancel()

	res, err := s.Engine.ApplyUpdate(ctx, engine.Update{
		BoardID:           req.BoardId,
		Data:              req.Data,
		ClientBaseVersion: req.ClientBaseVersion,
		Email:             sess.Email,
		SocketID:          sess.ID,
	})
	if err != nil {
		log.WithFields(log.Fields{"socket": sess.ID, "board": req.BoardId, "email": sess.Email}).Warnf("update rejected: %v", err)
		s.SendError(sess, err)
		return
	}

	if res.Outcome == engine.Resync {
		out, err := comm.Envelope(comm.EventResync, sess.ID, comm.BoardDocument{BoardId: req.BoardId, Version: res.Version, Data: res.Data})
		if err != nil {
			log.Errorf("resync envelope: %v", err)
			return
		}
		if !sess.sendMessage(out) {
			sess.kill()
		}
	}
}

// Broadcast implements engine.Fanout.
func (s *Ws) Broadcast(boardID, exceptSocket string, msg *comm.WSMessage) {
	s.roomMu.RLock()
	defer s.roomMu.RUnlock()

	if room, ok := s.rooms[boardID]; ok {
		s.fanoutLocked(room, exceptSocket, msg)
	}
}

// fanoutLocked must run under roomMu. Slow clients are cut off, not waited on.
func (s *Ws) fanoutLocked(room map[string]*Session, exceptSocket string, msg *comm.WSMessage) {
	frame, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("marshal %s: %v", msg.Type, err)
		return
	}
	for id, member := range room {
		if id == exceptSocket {
			continue
		}
		if !member.enqueue(frame) {
			log.Warnf("socket %s is not keeping up, disconnecting", id)
			member.kill()
		}
	}
}

func (s *Ws) OnlineCount(boardID string) int {
	s.roomMu.RLock()
	defer s.roomMu.RUnlock()
	return len(s.rooms[boardID])
}

// HandleDisconnect cleans up after the read loop of a socket ended.
func (s *Ws) HandleDisconnect(socketId string) {
	sess, ok := s.GetSession(socketId)
	if !ok {
		return
	}
	boardID := sess.BoardID()
	sess.markClosed()
	s.connMap.Delete(socketId)
	if boardID != "" {
		s.leaveRoom(sess, boardID)
	}
	log.WithFields(log.Fields{"socket": socketId, "board": boardID}).Info("session closed")
}

func (s *Ws) SendError(sess *Session, err error) {
	msg, envErr := comm.Envelope(comm.EventError, sess.ID, ErrorMessage(err))
	if envErr != nil {
		return
	}
	if !sess.sendMessage(msg) {
		sess.kill()
	}
}

// ErrorMessage turns an error into the frame sent to the client. Internal
// details stay in the log.
func ErrorMessage(err error) comm.ErrorMessage {
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		return comm.ErrorMessage{Message: "not authenticated", Code: "unauthenticated"}
	case errors.Is(err, apperr.ErrUnauthorized):
		return comm.ErrorMessage{Message: "access denied", Code: "unauthorized"}
	case errors.Is(err, apperr.ErrPayloadTooLarge):
		return comm.ErrorMessage{Message: "payload too large", Code: "payload_too_large"}
	case errors.Is(err, apperr.ErrNotFound):
		return comm.ErrorMessage{Message: "board not found", Code: "not_found"}
	case errors.Is(err, apperr.ErrStoreUnavailable):
		return comm.ErrorMessage{Message: "store unavailable, try again later", Code: "store_unavailable"}
	case errors.Is(err, apperr.ErrBadRequest):
		return comm.ErrorMessage{Message: "malformed message", Code: "bad_request"}
	default:
		return comm.ErrorMessage{Message: "request failed", Code: "internal"}
	}
}
