package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/opsboard-services/configs"
	boardcfg "github.com/avvvet/opsboard-services/internal/boardsvc/config"
	"github.com/avvvet/opsboard-services/internal/boardsvc/service"
	"github.com/avvvet/opsboard-services/internal/boardsvc/store"
	"github.com/avvvet/opsboard-services/internal/comm"
	natscli "github.com/avvvet/opsboard-services/internal/nats"
)

const SERVICE_NAME = "ctl"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg := boardcfg.Load()

	st, closeStore, err := store.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer closeStore()

	rosterService := service.NewRosterService(st, cfg.RootFolderName, cfg.SuperAdmins)
	boardService := service.NewBoardService(st, rosterService, cfg.MaxPayloadBytes)

	// Connect to NATS
	n, err := natscli.Connect(SERVICE_NAME + "_service_" + instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	ticker := time.NewTicker(cfg.AutogenInterval)
	defer ticker.Stop()

	// first pass right away so a fresh month does not wait a full interval
	runGeneration(boardService, n)
	for {
		select {
		case <-ticker.C:
			runGeneration(boardService, n)
		case <-stop:
			log.Infof("%s service gracefully stopped", SERVICE_NAME)
			return
		}
	}
}

// runGeneration creates the missing monthly boards of every location.
func runGeneration(boards *service.BoardService, n *natscli.Nats) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	generated, err := boards.Generate(ctx, nil)
	if err != nil {
		log.Errorf("monthly board generation: %v", err)
	}
	PublishHeartbeat(n, generated)
}

func PublishHeartbeat(n *natscli.Nats, generated int) {
	msg, err := comm.Envelope("heartbeat", "", comm.ServiceHeartbeat{
		ID:        instanceId,
		Timestamp: time.Now().UTC(),
		Generated: generated,
	})
	if err != nil {
		log.Errorf("error [PublishHeartbeat] envelope: %v", err)
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("error [PublishHeartbeat] marshaling WSMessage: %v", err)
		return
	}

	if err := n.Conn.Publish(comm.SubjectControl, payload); err != nil {
		log.Errorf("error publishing heartbeat: %v", err)
	}
}
