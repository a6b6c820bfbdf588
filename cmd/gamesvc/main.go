package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/avvvet/dice-services/configs"
	"github.com/avvvet/dice-services/internal/comm"
	"github.com/avvvet/dice-services/internal/gamesvc/broker"
	gamecfg "github.com/avvvet/dice-services/internal/gamesvc/config"
	"github.com/avvvet/dice-services/internal/gamesvc/db"
	handlers "github.com/avvvet/dice-services/internal/gamesvc/handlers"
	"github.com/avvvet/dice-services/internal/gamesvc/service"
	"github.com/avvvet/dice-services/internal/gamesvc/store"
	nats "github.com/avvvet/dice-services/internal/nats"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "game"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	var cfg gamecfg.Game
	if err := config.ParseEnv(&cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// pg connection
	dbpool, err := db.Connect(cfg.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	roundStore := store.NewRoundStore(dbpool)
	wagerStore := store.NewWagerStore(dbpool)
	playerStore := store.NewPlayerStore(dbpool)
	groupStore := store.NewGroupStore(dbpool)
	catalogStore := store.NewCatalogStore(dbpool)

	wagerService := service.NewWagerService(roundStore, playerStore, groupStore, catalogStore, wagerStore)
	ledgerService := service.NewLedgerService(store.NewLedgerStore(dbpool))

	// Connect to NATS
	n, err := nats.Connect(SERVICE_NAME+"_"+instanceId, cfg.NatsURL, cfg.NatsToken)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}

	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// init peer message broker
	broker := broker.NewBroker(n.Conn, wagerService)
	roundService := service.NewRoundService(roundStore, wagerStore, playerStore, catalogStore, broker)

	// wager text forwarded by the chat transport
	sub, err := broker.QueueSubscribeWagers(comm.TopicWagerRequests, SERVICE_NAME)
	if err != nil {
		log.Errorf("Error: unable to subscribe to queue %v", err)
		os.Exit(1)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS(cfg.CORSOrigins)

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(wagerService, roundService, ledgerService, cfg.Port)
	h.InitAuth(cfg.JWTSecret)
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.Port,
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
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
