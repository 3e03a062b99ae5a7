package main

import (
	"os"

	"github.com/mahaj/dupahar-dm/pkg/config"
	"github.com/mahaj/dupahar-dm/pkg/db"
	"github.com/mahaj/dupahar-dm/pkg/logging"
)

func main() {
	os.Setenv("JWT_SECRET", "unused")
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.New("drop-dm-tables", cfg.LogLevel)

	session, err := db.NewSession(cfg.ScyllaHostList(), cfg.Keyspace, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to ScyllaDB")
	}
	defer session.Close()

	for _, table := range []string{"dm_messages", "dm_message_index", "dm_users", "dm_events"} {
		log.Info().Str("table", table).Msg("dropping")
		if err := session.Query("DROP TABLE IF EXISTS " + table).Exec(); err != nil {
			log.Fatal().Err(err).Str("table", table).Msg("failed to drop table")
		}
	}
	log.Info().Msg("DM tables dropped")
}
