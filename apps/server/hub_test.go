package main

import (
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahaj/dupahar-dm/pkg/presence"
)

func newHubClient(hub *Hub, userID, connID string) *Client {
	return &Client{
		hub:    hub,
		send:   make(chan []byte, 4),
		ID:     connID,
		UserID: userID,
	}
}

func TestPushToUnknownConnectionFails(t *testing.T) {
	hub := NewHub(presence.NewRegistry(), zerolog.New(io.Discard))

	err := hub.Push("no-such-conn", []byte("x"))
	assert.Error(t, err)
}

func TestPushAfterUnregisterFails(t *testing.T) {
	hub := NewHub(presence.NewRegistry(), zerolog.New(io.Discard))
	c := newHubClient(hub, "u1", "c1")

	hub.register(c)
	require.NoError(t, hub.Push("c1", []byte("x")))

	hub.unregister(c)
	assert.Error(t, hub.Push("c1", []byte("y")))
}

// Pushes racing the recipient's disconnect must fail cleanly, never send on
// the closed channel. Run with -race.
func TestPushDuringUnregisterIsSafe(t *testing.T) {
	for i := 0; i < 500; i++ {
		hub := NewHub(presence.NewRegistry(), zerolog.New(io.Discard))
		c := newHubClient(hub, "u1", fmt.Sprintf("c%d", i))
		hub.register(c)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				hub.Push(c.ID, []byte("payload")) // error once unregistered is fine
			}
		}()
		go func() {
			defer wg.Done()
			hub.unregister(c)
		}()
		wg.Wait()
	}
}

// Same interleaving through the typing relay path, which runs on a read pump
// goroutine with nothing above it to recover a panic.
func TestBroadcastDuringUnregisterIsSafe(t *testing.T) {
	for i := 0; i < 500; i++ {
		hub := NewHub(presence.NewRegistry(), zerolog.New(io.Discard))
		clients := make([]*Client, 4)
		for j := range clients {
			clients[j] = newHubClient(hub, fmt.Sprintf("u%d", j), fmt.Sprintf("c%d-%d", i, j))
			hub.register(clients[j])
		}

		var wg sync.WaitGroup
		wg.Add(1 + len(clients))
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				hub.Broadcast([]byte("payload"))
			}
		}()
		for _, c := range clients {
			go func(c *Client) {
				defer wg.Done()
				hub.unregister(c)
			}(c)
		}
		wg.Wait()
	}
}
