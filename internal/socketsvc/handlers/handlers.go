package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/avvvet/opsboard-services/internal/apperr"
	"github.com/avvvet/opsboard-services/internal/comm"
	"github.com/avvvet/opsboard-services/internal/socketsvc/ws"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	frameOverhead = 64 * 1024 // envelope around the board document
	pongWait      = 60 * time.Second
)

type Handler struct {
	upgrader  websocket.Upgrader
	ws        *ws.Ws
	readLimit int64
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func NewHandler(s *ws.Ws, origins []string, maxPayload int) *Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	h := &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
		ws: s,
		// oversized boards must still reach the engine to get a proper error back
		readLimit: int64(2*maxPayload + frameOverhead),
	}
	return h
}

// HandleWebSocket runs behind the jwt verifier, so the identity is settled
// before the upgrade.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	_, claims, err := jwtauth.FromContext(r.Context())
	email, _ := claims["email"].(string)
	if err != nil || email == "" {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}
	conn.SetReadLimit(h.readLimit)

	socketId := uuid.New().String()
	sess := h.ws.Register(socketId, email, conn)

	log.WithFields(log.Fields{"socket": socketId, "email": email}).Info("New WebSocket connection established")

	// Handle WebSocket connection
	go h.handleConnection(conn, sess)
}

func (h *Handler) handleConnection(conn *websocket.Conn, sess *ws.Session) {
	// Ensure cleanup happens when connection closes
	defer func() {
		conn.Close()
		h.ws.HandleDisconnect(sess.ID)
	}()

	conn.SetReadDeadline(readDeadline())
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(readDeadline())
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			// Check if it's a normal close or unexpected error
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("WebSocket unexpected close for socket %s: %v", sess.ID, err)
			} else {
				log.Infof("WebSocket connection closed for socket: %s", sess.ID)
			}
			break
		}
		conn.SetReadDeadline(readDeadline())

		// Parse the message
		message := &comm.WSMessage{}
		if err := json.Unmarshal(raw, message); err != nil {
			log.Errorf("Failed to unmarshal message from socket %s: %v", sess.ID, err)
			h.ws.SendError(sess, apperr.ErrBadRequest)
			continue // Don't break, just skip this message
		}

		log.Debugf("Received message from socket %s: type=%s", sess.ID, message.Type)

		h.ws.SocketMessage(sess, message)
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "socket service is running at port " + os.Getenv("SOCKET_SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode health response: %v", err)
	}
}

func readDeadline() time.Time {
	return time.Now().Add(pongWait)
}
