package boardclient

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
	"github.com/avvvet/opsboard-services/internal/comm"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Conn is the websocket transport to the realtime service.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex // gorilla allows one concurrent writer
}

// Dial opens an authenticated connection; token is the identity provider JWT.
func Dial(ctx context.Context, url, token string) (*Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return &Conn{ws: ws}, nil
}

func (c *Conn) send(msgType string, payload interface{}) error {
	msg, err := comm.Envelope(msgType, "", payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteJSON(msg)
}

func (c *Conn) Join(boardID, displayName string) error {
	return c.send(comm.EventJoin, comm.JoinRequest{BoardId: boardID, DisplayName: displayName})
}

// EmitUpdate implements Emitter.
func (c *Conn) EmitUpdate(boardID string, doc *models.Board, baseVersion int) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return c.send(comm.EventUpdate, comm.UpdateRequest{BoardId: boardID, Data: data, ClientBaseVersion: baseVersion})
}

// Run feeds server frames into s until the connection ends or ctx is done.
func (c *Conn) Run(ctx context.Context, s *State) error {
	go func() {
		<-ctx.Done()
		c.ws.Close()
	}()

	for {
		msg := &comm.WSMessage{}
		if err := c.ws.ReadJSON(msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := s.Handle(msg); err != nil {
			log.Warnf("board %s: bad %s frame: %v", s.BoardID(), msg.Type, err)
		}
	}
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.ws.Close()
}
