package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/mahaj/dupahar-dm/pkg/db"
	"github.com/mahaj/dupahar-dm/pkg/events"
)

// Consumer drains the domain-event stream into the append-only dm_events
// audit table. The stream replays at-least-once; writes are keyed by event
// id so replays overwrite themselves.
type Consumer struct {
	reader *kafka.Reader
	db     *db.Session
	log    zerolog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, session *db.Session, log zerolog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{reader: r, db: session, log: log}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn().Err(err).Msg("read failed, retrying in 1s")
			time.Sleep(1 * time.Second)
			continue
		}

		var env events.Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			c.log.Warn().Err(err).Msg("undecodable event dropped")
			continue
		}

		var eventID int64
		switch {
		case env.Message != nil:
			eventID = env.Message.ID
		case env.Revocation != nil:
			eventID = env.Revocation.MessageID
		default:
			c.log.Warn().Str("kind", env.Kind).Msg("event without subject dropped")
			continue
		}

		q := `INSERT INTO dm_events (kind, event_id, payload, at) VALUES (?, ?, ?, ?)`
		if err := c.db.Query(q, env.Kind, eventID, string(m.Value), env.At).WithContext(ctx).Exec(); err != nil {
			c.log.Error().Err(err).Str("kind", env.Kind).Int64("event_id", eventID).Msg("archive write failed")
			continue
		}
		c.log.Debug().Str("kind", env.Kind).Int64("event_id", eventID).Msg("event archived")
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
