package presence

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const onlineSetKey = "dm:online_users"

// Mirror keeps a Redis set in step with the in-memory registry so the REST
// side can answer "who is online" without touching the registry. Mirror
// writes are best-effort: Redis being down degrades the endpoint, never the
// routing.
type Mirror struct {
	rdb *redis.Client
	log zerolog.Logger
}

func NewMirror(rdb *redis.Client, log zerolog.Logger) *Mirror {
	return &Mirror{rdb: rdb, log: log}
}

// Sync replaces the mirrored set with the given snapshot. Implemented as a
// full rewrite rather than deltas so the mirror self-heals after missed
// updates, same as the presence broadcast.
func (m *Mirror) Sync(online []string) {
	ctx := context.Background()

	pipe := m.rdb.TxPipeline()
	pipe.Del(ctx, onlineSetKey)
	if len(online) > 0 {
		members := make([]interface{}, len(online))
		for i, u := range online {
			members[i] = u
		}
		pipe.SAdd(ctx, onlineSetKey, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		m.log.Warn().Err(err).Msg("failed to sync online set to redis")
	}
}

// Online reads the mirrored set.
func (m *Mirror) Online(ctx context.Context) ([]string, error) {
	return m.rdb.SMembers(ctx, onlineSetKey).Result()
}
