package main

import (
	"os"

	"github.com/mahaj/dupahar-dm/pkg/config"
	"github.com/mahaj/dupahar-dm/pkg/db"
	"github.com/mahaj/dupahar-dm/pkg/logging"
)

func main() {
	os.Setenv("JWT_SECRET", "unused") // config requires it, scripts don't
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.New("create-dm-tables", cfg.LogLevel)

	sysSession, err := db.NewSession(cfg.ScyllaHostList(), "system", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to ScyllaDB system keyspace")
	}
	err = sysSession.Query(`CREATE KEYSPACE IF NOT EXISTS ` + cfg.Keyspace +
		` WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`).Exec()
	sysSession.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create keyspace")
	}

	session, err := db.NewSession(cfg.ScyllaHostList(), cfg.Keyspace, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to ScyllaDB")
	}
	defer session.Close()

	tables := []string{
		`CREATE TABLE IF NOT EXISTS dm_messages (
			conversation_id text,
			id bigint,
			sender_id text,
			receiver_id text,
			text text,
			images list<text>,
			deleted boolean,
			created_at timestamp,
			PRIMARY KEY (conversation_id, id)
		) WITH CLUSTERING ORDER BY (id ASC)`,
		`CREATE TABLE IF NOT EXISTS dm_message_index (
			id bigint PRIMARY KEY,
			conversation_id text
		)`,
		`CREATE TABLE IF NOT EXISTS dm_users (
			id text PRIMARY KEY,
			username text
		)`,
		`CREATE TABLE IF NOT EXISTS dm_events (
			kind text,
			event_id bigint,
			payload text,
			at timestamp,
			PRIMARY KEY (kind, event_id)
		)`,
	}

	for _, q := range tables {
		if err := session.Query(q).Exec(); err != nil {
			log.Fatal().Err(err).Msg("failed to create table")
		}
	}

	log.Info().Msg("DM tables created")
}
