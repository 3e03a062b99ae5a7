package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mahaj/dupahar-dm/pkg/presence"
)

// Hub owns the open websocket connections and implements router.Pusher on
// top of them. Each client has a buffered send channel drained by its own
// write pump, so pushes to one connection are delivered in completion order
// and never block the caller.
type Hub struct {
	registry *presence.Registry
	log      zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*Client // connection id -> client

	// onTyping is invoked for client typing frames; wired to the lifecycle
	// service in main.
	onTyping func(from, to string)
}

func NewHub(registry *presence.Registry, log zerolog.Logger) *Hub {
	return &Hub{
		registry: registry,
		log:      log,
		clients:  make(map[string]*Client),
	}
}

// register makes the connection pushable, then enters it into the presence
// registry. Map first: the presence broadcast the registration fires must be
// able to reach the new connection.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	h.registry.Register(c.UserID, c.ID)
	h.log.Info().Str("user", c.UserID).Str("conn_id", c.ID).Msg("client connected")
}

// unregister drops the connection. The registry ignores the call if this
// connection was already superseded by a reconnect.
func (h *Hub) unregister(c *Client) {
	h.registry.Unregister(c.ID)

	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.send)
	}
	h.mu.Unlock()

	h.log.Info().Str("user", c.UserID).Str("conn_id", c.ID).Msg("client disconnected")
}

// Push delivers a payload to one connection. A full send buffer counts as a
// delivery failure; the connection keeps running and the store remains the
// source of truth.
//
// The read lock is held across the send: unregister closes the channel only
// under the write lock, so a payload can never hit a closed channel.
func (h *Hub) Push(connID string, payload []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[connID]
	if !ok {
		return fmt.Errorf("connection %s is not open", connID)
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// Broadcast delivers a payload to every open connection, skipping the ones
// whose buffers are full.
func (h *Hub) Broadcast(payload []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.log.Warn().Str("conn_id", c.ID).Msg("broadcast dropped for slow connection")
		}
	}
	return nil
}
