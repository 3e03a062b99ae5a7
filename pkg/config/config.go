// Package config loads app config from env and an optional .env file.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything the server, archiver and scripts read from the
// environment.
type Config struct {
	// HTTPAddr is the address the combined API/gateway listens on.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// ScyllaHosts is a comma-separated list of ScyllaDB hosts.
	ScyllaHosts string `mapstructure:"SCYLLA_HOSTS"`
	// Keyspace is the ScyllaDB keyspace holding the DM tables.
	Keyspace string `mapstructure:"SCYLLA_KEYSPACE"`
	// RedisAddr is the Redis address for the online-set mirror. Empty
	// disables the mirror.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// KafkaBrokers is a comma-separated broker list for the domain-event
	// stream. Empty disables event publishing.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// KafkaTopic is the domain-event topic.
	KafkaTopic string `mapstructure:"KAFKA_TOPIC"`
	// KafkaGroupID is the archiver's consumer group.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// JWTSecret signs and verifies HS256 tokens.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// SnowflakeNode is this instance's id-generator node number (0..1023).
	SnowflakeNode int64 `mapstructure:"SNOWFLAKE_NODE"`
	// StoreBackend selects the message store: "scylla" or "memory".
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	// LogLevel is the zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// Load reads .env if present, then the environment. Env vars win over .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("SCYLLA_HOSTS", "localhost:9042")
	v.SetDefault("SCYLLA_KEYSPACE", "dm")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "dm-events")
	v.SetDefault("KAFKA_GROUP_ID", "dm-archiver")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("SNOWFLAKE_NODE", 1)
	v.SetDefault("STORE_BACKEND", "scylla")
	v.SetDefault("LOG_LEVEL", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("config: JWT_SECRET must be set")
	}
	if cfg.StoreBackend != "scylla" && cfg.StoreBackend != "memory" {
		return nil, errors.New("config: STORE_BACKEND must be scylla or memory")
	}

	return &cfg, nil
}

// ScyllaHostList splits the comma-separated host config.
func (c *Config) ScyllaHostList() []string {
	return splitList(c.ScyllaHosts)
}

// KafkaBrokerList splits the comma-separated broker config. An empty list
// means the event stream is disabled.
func (c *Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
