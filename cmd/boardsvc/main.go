package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/avvvet/opsboard-services/configs"
	"github.com/avvvet/opsboard-services/internal/boardsvc/broker"
	boardcfg "github.com/avvvet/opsboard-services/internal/boardsvc/config"
	handlers "github.com/avvvet/opsboard-services/internal/boardsvc/handlers"
	"github.com/avvvet/opsboard-services/internal/boardsvc/service"
	"github.com/avvvet/opsboard-services/internal/boardsvc/store"
	"github.com/avvvet/opsboard-services/internal/comm"
	nats "github.com/avvvet/opsboard-services/internal/nats"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "board"

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

	// bootstrap the root folder and the roster before serving
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := rosterService.Load(ctx); err != nil {
		cancel()
		log.Fatalf("Failed to load roster: %v", err)
	}
	cancel()

	// Connect to NATS
	n, err := nats.Connect(SERVICE_NAME + "_service_" + instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// durable writes of versions accepted by the socket service
	b := broker.NewBroker(n.Conn, boardService)
	sub, err := b.SubscribePersist(comm.SubjectPersist, SERVICE_NAME+"svc")
	if err != nil {
		log.Errorf("Error: unable to subscribe to queue %v", err)
		os.Exit(1)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimit, err := strconv.Atoi(os.Getenv("RATE_LIMIT"))
	if err != nil {
		log.Fatalf("Invalid RATE_LIMIT value: %v", err)
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Init handlers and routes
	tokenAuth := handlers.NewTokenAuth(os.Getenv("JWT_SECRET_KEY"))
	if email := os.Getenv("DEBUG_TOKEN_EMAIL"); email != "" {
		handlers.DebugToken(tokenAuth, email)
	}
	h := handlers.NewHandler(tokenAuth, boardService)
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + os.Getenv("BOARD_SERVICE_PORT"),
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

	// let in-flight persist messages finish before the store closes
	if err := sub.Drain(); err != nil {
		log.Warnf("drain %s: %v", comm.SubjectPersist, err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
