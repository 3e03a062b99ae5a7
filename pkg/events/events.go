// Package events publishes domain events to Kafka for the archiver. The
// stream is an audit trail, not the delivery path: publishing is best-effort
// and never fails the operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/mahaj/dupahar-dm/pkg/model"
)

const (
	KindMessageCreated = "message.created"
	KindMessageRevoked = "message.revoked"
)

// Envelope is the wire form of one domain event.
type Envelope struct {
	Kind       string            `json:"kind"`
	At         time.Time         `json:"at"`
	Message    *model.Message    `json:"message,omitempty"`
	Revocation *model.Revocation `json:"revocation,omitempty"`
}

// Producer writes envelopes to the configured topic. A nil Producer is valid
// and drops everything, so callers never branch on whether the stream is
// enabled.
type Producer struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

func NewProducer(brokers []string, topic string, log zerolog.Logger) *Producer {
	if len(brokers) == 0 {
		return nil
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		log: log,
	}
}

// MessageCreated publishes a message.created event.
func (p *Producer) MessageCreated(ctx context.Context, msg *model.Message) {
	p.publish(ctx, Envelope{Kind: KindMessageCreated, At: time.Now(), Message: msg})
}

// MessageRevoked publishes a message.revoked event.
func (p *Producer) MessageRevoked(ctx context.Context, rev model.Revocation) {
	p.publish(ctx, Envelope{Kind: KindMessageRevoked, At: time.Now(), Revocation: &rev})
}

func (p *Producer) publish(ctx context.Context, env Envelope) {
	if p == nil {
		return
	}
	value, err := json.Marshal(env)
	if err != nil {
		p.log.Error().Err(err).Str("kind", env.Kind).Msg("marshal domain event")
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.Kind),
		Value: value,
		Time:  env.At,
	})
	if err != nil {
		p.log.Warn().Err(err).Str("kind", env.Kind).Msg("publish domain event failed")
	}
}

func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
