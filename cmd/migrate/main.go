package main

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/dice-services/configs"
	"github.com/avvvet/dice-services/internal/dice"
	gamecfg "github.com/avvvet/dice-services/internal/gamesvc/config"
	"github.com/avvvet/dice-services/internal/gamesvc/db"
	"github.com/avvvet/dice-services/internal/gamesvc/store"
)

const SERVICE_NAME = "migrate"

func init() {
	config.Logging(SERVICE_NAME)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	var cfg gamecfg.Shared
	if err := config.ParseEnv(&cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	dbpool, err := db.Connect(cfg.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := store.Migrate(ctx, dbpool); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	catalog, err := dice.DefaultCatalog()
	if err != nil {
		log.Fatalf("load catalog: %v", err)
	}
	if err := store.NewCatalogStore(dbpool).SeedCatalog(ctx, catalog); err != nil {
		log.Fatalf("seed catalog: %v", err)
	}
	log.Infof("schema migrated and %d wager types seeded", len(catalog))
}
