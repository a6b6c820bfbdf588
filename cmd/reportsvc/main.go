package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/dice-services/configs"
	"github.com/avvvet/dice-services/internal/comm"
	"github.com/avvvet/dice-services/internal/db"
	gamecfg "github.com/avvvet/dice-services/internal/gamesvc/config"
	natscli "github.com/avvvet/dice-services/internal/nats"
	"github.com/avvvet/dice-services/internal/report"
)

const SERVICE_NAME = "report"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	var cfg gamecfg.Report
	if err := config.ParseEnv(&cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()
	mdb, err := db.ConnectToDB(ctx, cfg.MongoURI, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mdb.Client().Disconnect(context.Background())

	if err := db.CreateTTLIndexForCollection(ctx, mdb, cfg.Collection); err != nil {
		log.Fatalf("Failed to prepare %s: %v", cfg.Collection, err)
	}
	archiver := report.NewArchiver(mdb.Collection(cfg.Collection), cfg.Retention)

	// Connect to NATS
	n, err := natscli.Connect(SERVICE_NAME+"_"+instanceId, cfg.NatsURL, cfg.NatsToken)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	sub, err := n.Conn.QueueSubscribe(comm.TopicRoundEvents, SERVICE_NAME, func(msg *nats.Msg) {
		ev, err := comm.DecodeRoundEvent(msg.Data)
		if err != nil {
			log.Errorf("error decoding round event: %v", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := archiver.HandleRoundEvent(ctx, ev); err != nil {
			log.Errorf("error archiving round %d: %v", ev.RoundID, err)
		}
	})
	if err != nil {
		log.Errorf("Error: unable to subscribe to %s %v", comm.TopicRoundEvents, err)
		os.Exit(1)
	}
	log.Infof("%s service archiving settled rounds into %s.%s", SERVICE_NAME, cfg.Database, cfg.Collection)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	sub.Unsubscribe()
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
