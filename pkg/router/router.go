// Package router turns domain events into best-effort push notifications.
package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/presence"
)

var (
	pushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dm_notifications_pushed_total",
		Help: "Push notifications handed to the transport, by event.",
	}, []string{"event"})
	skipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_notifications_skipped_total",
		Help: "Creation notifications skipped because the receiver was offline.",
	})
)

// Pusher is the transport-side sink the router writes into. Implemented by
// the gateway hub.
type Pusher interface {
	// Push delivers a payload to one connection.
	Push(connID string, payload []byte) error
	// Broadcast delivers a payload to every open connection.
	Broadcast(payload []byte) error
}

// Router decides which live connections, if any, receive a notification for
// a domain event. Push failures are logged and swallowed: the persisted
// store is the source of truth, the push leg is an enhancement.
type Router struct {
	registry *presence.Registry
	pusher   Pusher
	log      zerolog.Logger
}

func New(registry *presence.Registry, pusher Pusher, log zerolog.Logger) *Router {
	return &Router{registry: registry, pusher: pusher, log: log}
}

// MessageCreated pushes the full record to the receiver's connection, if the
// receiver is online. Offline receivers get nothing; they will see the
// message on their next snapshot fetch.
func (r *Router) MessageCreated(msg *model.Message) {
	connID, ok := r.registry.Lookup(msg.ReceiverID)
	if !ok {
		skipped.Inc()
		return
	}

	payload, err := model.NewMessageEvent(msg)
	if err != nil {
		r.log.Error().Err(err).Int64("message_id", msg.ID).Msg("encode newMessage event")
		return
	}
	if err := r.pusher.Push(connID, payload); err != nil {
		r.log.Warn().Err(err).Str("conn_id", connID).Msg("push newMessage failed")
		return
	}
	pushed.WithLabelValues(string(model.EventNewMessage)).Inc()
}

// MessageRevoked broadcasts the revocation to every connection, not only the
// participants: any client still rendering a cached copy must see the
// tombstone.
func (r *Router) MessageRevoked(rev model.Revocation) {
	payload, err := model.MessageRevokedEvent(rev)
	if err != nil {
		r.log.Error().Err(err).Int64("message_id", rev.MessageID).Msg("encode messageRevoked event")
		return
	}
	if err := r.pusher.Broadcast(payload); err != nil {
		r.log.Warn().Err(err).Msg("broadcast messageRevoked failed")
		return
	}
	pushed.WithLabelValues(string(model.EventMessageRevoked)).Inc()
}

// PresenceChanged broadcasts the full online set. Full-state on purpose:
// delta ordering cannot be guaranteed across concurrent connect/disconnect
// races, a snapshot self-heals.
func (r *Router) PresenceChanged(online []string) {
	payload, err := model.OnlineUsersEvent(online)
	if err != nil {
		r.log.Error().Err(err).Msg("encode getOnlineUsers event")
		return
	}
	if err := r.pusher.Broadcast(payload); err != nil {
		r.log.Warn().Err(err).Msg("broadcast getOnlineUsers failed")
		return
	}
	pushed.WithLabelValues(string(model.EventGetOnlineUsers)).Inc()
}

// TypingStarted relays a typing signal to the peer, if online.
func (r *Router) TypingStarted(from, to string) {
	connID, ok := r.registry.Lookup(to)
	if !ok {
		return
	}
	payload, err := model.TypingEvent(from)
	if err != nil {
		r.log.Error().Err(err).Msg("encode typing event")
		return
	}
	if err := r.pusher.Push(connID, payload); err != nil {
		r.log.Warn().Err(err).Str("conn_id", connID).Msg("push typing failed")
		return
	}
	pushed.WithLabelValues(string(model.EventTyping)).Inc()
}
