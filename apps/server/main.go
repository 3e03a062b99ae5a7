package main

import (
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/mahaj/dupahar-dm/pkg/auth"
	"github.com/mahaj/dupahar-dm/pkg/chat"
	"github.com/mahaj/dupahar-dm/pkg/config"
	"github.com/mahaj/dupahar-dm/pkg/db"
	"github.com/mahaj/dupahar-dm/pkg/events"
	"github.com/mahaj/dupahar-dm/pkg/logging"
	"github.com/mahaj/dupahar-dm/pkg/presence"
	"github.com/mahaj/dupahar-dm/pkg/router"
	"github.com/mahaj/dupahar-dm/pkg/snowflake"
	"github.com/mahaj/dupahar-dm/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.New("server", cfg.LogLevel)

	// Storage backend.
	var (
		messages store.MessageStore
		users    store.UserDirectory
	)
	switch cfg.StoreBackend {
	case "memory":
		mem := store.NewMemory()
		messages, users = mem, mem
		log.Warn().Msg("using in-memory store, nothing will survive a restart")
	default:
		session, err := db.NewSession(cfg.ScyllaHostList(), cfg.Keyspace, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to ScyllaDB")
		}
		defer session.Close()
		messages = store.NewScylla(session)
		users = store.NewScyllaUsers(session)
	}

	// Presence: the single in-memory registry, mirrored to Redis when
	// configured.
	registry := presence.NewRegistry()
	var mirror *presence.Mirror
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		mirror = presence.NewMirror(rdb, log)
	}

	hub := NewHub(registry, log)
	rt := router.New(registry, hub, log)

	registry.OnChange(func(online []string) {
		rt.PresenceChanged(online)
		if mirror != nil {
			mirror.Sync(online)
		}
	})

	producer := events.NewProducer(cfg.KafkaBrokerList(), cfg.KafkaTopic, log)
	defer producer.Close()

	ids, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid snowflake node")
	}

	svc := chat.NewService(messages, users, rt, producer, ids, log)
	hub.onTyping = svc.Typing

	manager := auth.NewManager(cfg.JWTSecret)
	srv := &Server{
		svc:      svc,
		users:    users,
		auth:     manager,
		registry: registry,
		mirror:   mirror,
		log:      log,
	}

	r := newRouter(srv, hub)

	log.Info().Str("addr", cfg.HTTPAddr).Msg("server starting")
	if err := http.ListenAndServe(cfg.HTTPAddr, corsMiddleware(r)); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
