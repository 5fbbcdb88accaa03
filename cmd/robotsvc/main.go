// cmd/robotsvc/main.go
package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"time"

	config "github.com/avvvet/opsboard-services/configs"
	"github.com/avvvet/opsboard-services/internal/boardclient"
	boardcfg "github.com/avvvet/opsboard-services/internal/boardsvc/config"
	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
	"github.com/avvvet/opsboard-services/internal/comm"
	natscli "github.com/avvvet/opsboard-services/internal/nats"
	"github.com/go-chi/jwtauth"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "robot"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

// Robot collaborators keep a board busy on staging: each one joins over the
// socket service like a browser tab and moves cards around.
type robot struct {
	email string
	state *boardclient.State
	conn  *boardclient.Conn
}

func main() {
	log.Printf("Starting Robot Service...")

	emails := boardcfg.SplitList(os.Getenv("ROBOT_EMAILS"))
	boardID := os.Getenv("ROBOT_BOARD_ID")
	if len(emails) == 0 || boardID == "" {
		log.Fatalf("ROBOT_EMAILS and ROBOT_BOARD_ID are required")
	}
	interval, err := time.ParseDuration(os.Getenv("ROBOT_INTERVAL"))
	if err != nil || interval <= 0 {
		interval = 5 * time.Second
	}
	apiURL := os.Getenv("BOARD_API_URL")     // http://localhost:8081
	socketURL := os.Getenv("SOCKET_WS_URL") // ws://localhost:8082/v1/ws
	tokenAuth := jwtauth.New("HS256", []byte(os.Getenv("JWT_SECRET_KEY")), nil)

	// Connect to NATS to watch accepted versions
	nc, err := natscli.Connect(SERVICE_NAME + "_service_" + instanceId)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer nc.Conn.Close()
	log.Infof("NATS connected at %s", nc.Url)

	sub, err := nc.Conn.Subscribe(comm.SubjectEvents, handleBoardEvent)
	if err != nil {
		log.Fatalf("Failed to subscribe to %s: %v", comm.SubjectEvents, err)
	}
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, email := range emails {
		r, err := connectRobot(ctx, tokenAuth, apiURL, socketURL, boardID, email)
		if err != nil {
			log.Errorf("robot %s: %v", email, err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work(ctx, interval)
		}()
	}

	log.Printf("Robot Service fully operational!")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	cancel()
	wg.Wait()
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}

func connectRobot(ctx context.Context, tokenAuth *jwtauth.JWTAuth, apiURL, socketURL, boardID, email string) (*robot, error) {
	_, token, err := tokenAuth.Encode(map[string]interface{}{
		"email": email,
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
	})
	if err != nil {
		return nil, err
	}

	api := boardclient.NewAPI(apiURL, token)
	b, err := api.FetchBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}

	conn, err := boardclient.Dial(ctx, socketURL, token)
	if err != nil {
		return nil, err
	}

	state := boardclient.New(boardID, conn, api)
	state.Load(b)
	if err := conn.Join(boardID, "robot "+email); err != nil {
		conn.Close()
		return nil, err
	}
	log.Infof("robot %s joined board %s at v%d", email, boardID, b.Version)
	return &robot{email: email, state: state, conn: conn}, nil
}

func (r *robot) work(ctx context.Context, interval time.Duration) {
	go func() {
		if err := r.conn.Run(ctx, r.state); err != nil && ctx.Err() == nil {
			log.Warnf("robot %s connection ended: %v", r.email, err)
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.conn.Close()
			return
		case <-ticker.C:
			if e := r.state.LastError(); e != nil && e.Code == "unauthorized" {
				log.Warnf("robot %s lost access to board %s", r.email, r.state.BoardID())
				r.conn.Close()
				return
			}
			r.act()
		}
	}
}

// act moves a random card one column to the right, or adds a card when the
// board is empty.
func (r *robot) act() {
	b := r.state.Board()
	if len(b.Cards) == 0 {
		if _, err := r.state.AddCard(b.Columns[0].ID, "Robot task", r.email); err != nil {
			log.Warnf("robot %s add card: %v", r.email, err)
		}
		return
	}

	card := b.Cards[rand.Intn(len(b.Cards))]
	if err := r.state.MoveCard(card.ID, nextColumn(b, card.ColumnID)); err != nil {
		log.Warnf("robot %s move card %s: %v", r.email, card.ID, err)
		return
	}
	log.Debugf("robot %s moved card %s at v%d", r.email, card.ID, r.state.Version())
}

func nextColumn(b *models.Board, current string) string {
	for i, c := range b.Columns {
		if c.ID == current && i+1 < len(b.Columns) {
			return b.Columns[i+1].ID
		}
	}
	return b.Columns[0].ID
}

func handleBoardEvent(m *nats.Msg) {
	var ev comm.BoardEvent
	if err := json.Unmarshal(m.Data, &ev); err != nil {
		log.Errorf("Failed to unmarshal BoardEvent: %v", err)
		return
	}
	log.Infof("board %s accepted v%d from %s", ev.BoardId, ev.Version, ev.Editor)
}
