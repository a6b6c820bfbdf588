package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/dice-services/configs"
	"github.com/avvvet/dice-services/internal/cache"
	"github.com/avvvet/dice-services/internal/dice"
	"github.com/avvvet/dice-services/internal/gamesvc/broker"
	gamecfg "github.com/avvvet/dice-services/internal/gamesvc/config"
	"github.com/avvvet/dice-services/internal/gamesvc/db"
	"github.com/avvvet/dice-services/internal/gamesvc/scheduler"
	"github.com/avvvet/dice-services/internal/gamesvc/service"
	"github.com/avvvet/dice-services/internal/gamesvc/store"
	natscli "github.com/avvvet/dice-services/internal/nats"
)

const SERVICE_NAME = "round"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	var cfg gamecfg.Round
	if err := config.ParseEnv(&cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// pg connection
	dbpool, err := db.Connect(cfg.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	// Connect to NATS
	n, err := natscli.Connect(SERVICE_NAME+"_"+instanceId, cfg.NatsURL, cfg.NatsToken)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		log.Warnf("redis unavailable, entitlement checks go to postgres: %v", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	roller, err := dice.NewGenerator()
	if err != nil {
		log.Fatalf("Failed to seed dice generator: %v", err)
	}

	roundStore := store.NewRoundStore(dbpool)
	wagerStore := store.NewWagerStore(dbpool)
	groupStore := store.NewGroupStore(dbpool)

	// rounds are published without a wager placer
	events := broker.NewBroker(n.Conn, nil)

	s := scheduler.New(cfg.Scheduler(), scheduler.Deps{
		Rounds:       roundStore,
		Schedules:    groupStore,
		Entitlements: cache.NewEntitlements(rdb, groupStore, cfg.EntitlementCacheTTL),
		Settler:      service.NewSettler(wagerStore),
		Winners:      wagerStore,
		Roller:       roller,
		Events:       events,
	})

	log.Infof("%s service started, tick every %s", SERVICE_NAME, cfg.Scheduler().TickInterval)
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("scheduler stopped: %v", err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
