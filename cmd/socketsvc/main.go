package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/avvvet/opsboard-services/internal/nats"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/opsboard-services/configs"

	boardcfg "github.com/avvvet/opsboard-services/internal/boardsvc/config"
	"github.com/avvvet/opsboard-services/internal/boardsvc/service"
	"github.com/avvvet/opsboard-services/internal/boardsvc/store"
	"github.com/avvvet/opsboard-services/internal/socketsvc/broker"
	"github.com/avvvet/opsboard-services/internal/socketsvc/handlers"
	"github.com/avvvet/opsboard-services/internal/socketsvc/routes"
	"github.com/avvvet/opsboard-services/internal/socketsvc/ws"
)

const SERVICE_NAME = "socket"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg := boardcfg.Load()

	// the socket service reads the roster and board metadata itself to
	// authorize joins and updates; writes go through the board service
	st, closeStore, err := store.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer closeStore()

	rosterService := service.NewRosterService(st, cfg.RootFolderName, cfg.SuperAdmins)
	boardService := service.NewBoardService(st, rosterService, cfg.MaxPayloadBytes)

	// Connect to NATS
	n, err := nats.Connect(SERVICE_NAME + "_service_" + instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}

	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimit, err := strconv.Atoi(os.Getenv("RATE_LIMIT"))
	if err != nil {
		log.Fatalf("Invalid RATE_LIMIT value: %v", err)
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Initialize websocket handler, accepted versions go to the board service
	b := broker.NewBroker(n.Conn)
	s := ws.NewWs(boardService, b, cfg.MaxPayloadBytes, ws.DefaultQueueSize)

	// Initialize routes
	tokenAuth := jwtauth.New("HS256", []byte(os.Getenv("JWT_SECRET_KEY")), nil)
	h := handlers.NewHandler(s, config.Origins(), cfg.MaxPayloadBytes)
	routes.SetRoutes(r, h, tokenAuth)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + os.Getenv("SOCKET_SERVICE_PORT"),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	// push buffered persist messages out before the connection closes
	if err := n.Conn.Flush(); err != nil {
		log.Warnf("NATS flush: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
