package comm

import (
	"encoding/json"
	"time"
)

// Realtime events, client to server.
const (
	EventJoin   = "join"
	EventLeave  = "leave"
	EventUpdate = "update"
)

// Realtime events, server to client.
const (
	EventPresence     = "presence"
	EventPresenceLeft = "presence-left"
	EventUpdated      = "updated"
	EventResync       = "resync"
	EventError        = "error"
)

// NATS subjects.
const (
	SubjectPersist = "board.persist" // socketsvc -> boardsvc durable write
	SubjectEvents  = "board.events"  // accepted versions, for observers
	SubjectControl = "ctl.service"   // controller heartbeats and run reports
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "join", "update"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid"`
}

type JoinRequest struct {
	BoardId     string `json:"boardId"`
	DisplayName string `json:"displayName"`
}

type Presence struct {
	User        string `json:"user"`
	Action      string `json:"action"` // joined
	OnlineCount int    `json:"onlineCount"`
}

type PresenceLeft struct {
	SocketId    string `json:"socketId"`
	OnlineCount int    `json:"onlineCount"`
}

type UpdateRequest struct {
	BoardId           string          `json:"boardId"`
	Data              json.RawMessage `json:"data"`
	ClientBaseVersion int             `json:"clientBaseVersion"`
}

// BoardDocument is the payload of updated and resync.
type BoardDocument struct {
	BoardId string          `json:"boardId"`
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// PersistRequest carries an accepted board version to the durable writer.
type PersistRequest struct {
	BoardId string          `json:"boardId"`
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
	Editor  string          `json:"editor"`
}

// BoardEvent is published for every accepted version.
type BoardEvent struct {
	BoardId   string    `json:"boardId"`
	Version   int       `json:"version"`
	Editor    string    `json:"editor"`
	Timestamp time.Time `json:"timestamp"`
}

type ServiceHeartbeat struct {
	ID        string    `json:"id"` // service id
	Timestamp time.Time `json:"timestamp"`
	Generated int       `json:"generated"`
}

// Envelope wraps a payload into a WSMessage.
func Envelope(msgType string, socketId string, payload interface{}) (*WSMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &WSMessage{Type: msgType, Data: data, SocketId: socketId}, nil
}
