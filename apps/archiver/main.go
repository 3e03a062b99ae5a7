package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/mahaj/dupahar-dm/pkg/config"
	"github.com/mahaj/dupahar-dm/pkg/db"
	"github.com/mahaj/dupahar-dm/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.New("archiver", cfg.LogLevel)

	brokers := cfg.KafkaBrokerList()
	if len(brokers) == 0 {
		log.Fatal().Msg("KAFKA_BROKERS must be set for the archiver")
	}

	session, err := db.NewSession(cfg.ScyllaHostList(), cfg.Keyspace, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to ScyllaDB")
	}
	defer session.Close()

	consumer := NewConsumer(brokers, cfg.KafkaTopic, cfg.KafkaGroupID, session, log)
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("topic", cfg.KafkaTopic).Str("group", cfg.KafkaGroupID).Msg("archiver starting")
	consumer.Consume(ctx)
}
