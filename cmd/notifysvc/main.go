package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/dice-services/configs"
	"github.com/avvvet/dice-services/internal/comm"
	gamecfg "github.com/avvvet/dice-services/internal/gamesvc/config"
	natscli "github.com/avvvet/dice-services/internal/nats"
	"github.com/avvvet/dice-services/internal/notify"
)

const SERVICE_NAME = "notify"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	var cfg gamecfg.Notify
	if err := config.ParseEnv(&cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	sender, err := notify.NewTelegramSender(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("Failed to init telegram bot: %v", err)
	}
	notifier := notify.NewNotifier(sender)

	// Connect to NATS
	n, err := natscli.Connect(SERVICE_NAME+"_"+instanceId, cfg.NatsURL, cfg.NatsToken)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// one replica answers each event
	sub, err := n.Conn.QueueSubscribe(comm.TopicRoundEvents, SERVICE_NAME, func(msg *nats.Msg) {
		ev, err := comm.DecodeRoundEvent(msg.Data)
		if err != nil {
			log.Errorf("error decoding round event: %v", err)
			return
		}
		notifier.HandleRoundEvent(ev)
	})
	if err != nil {
		log.Errorf("Error: unable to subscribe to %s %v", comm.TopicRoundEvents, err)
		os.Exit(1)
	}
	log.Infof("%s service listening on %s", SERVICE_NAME, comm.TopicRoundEvents)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	sub.Unsubscribe()
	notifier.Close()
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
