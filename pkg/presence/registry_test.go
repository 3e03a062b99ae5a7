package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Lookup("u1")
	assert.False(t, ok)

	r.Register("u1", "c1")

	conn, ok := r.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "c1", conn)
}

func TestRegisterLastWins(t *testing.T) {
	r := NewRegistry()

	r.Register("u1", "c1")
	r.Register("u1", "c2")

	conn, ok := r.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "c2", conn)
	assert.Equal(t, []string{"u1"}, r.Online())
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()

	r.Register("u1", "c1")
	r.Unregister("c1")

	_, ok := r.Lookup("u1")
	assert.False(t, ok)
	assert.Empty(t, r.Online())
}

func TestUnregisterUnknownConnIsNoop(t *testing.T) {
	r := NewRegistry()

	r.Register("u1", "c1")
	r.Unregister("c-unknown")

	conn, ok := r.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "c1", conn)
}

// A disconnect for a superseded connection must not evict the entry the
// reconnect just registered.
func TestStaleDisconnectAfterReconnect(t *testing.T) {
	r := NewRegistry()

	r.Register("u1", "c1")
	r.Register("u1", "c2") // rapid reconnect
	r.Unregister("c1")     // late disconnect of the old connection

	conn, ok := r.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "c2", conn)
}

func TestOnlineSnapshot(t *testing.T) {
	r := NewRegistry()

	r.Register("u2", "c2")
	r.Register("u1", "c1")
	r.Register("u3", "c3")
	r.Unregister("c2")

	assert.Equal(t, []string{"u1", "u3"}, r.Online())
}

func TestOnChangeFiresWithSnapshot(t *testing.T) {
	r := NewRegistry()

	var snapshots [][]string
	r.OnChange(func(online []string) {
		snapshots = append(snapshots, online)
	})

	r.Register("u1", "c1")
	r.Register("u2", "c2")
	r.Unregister("c1")
	r.Unregister("c-unknown") // no change, no callback

	require.Len(t, snapshots, 3)
	assert.Equal(t, []string{"u1"}, snapshots[0])
	assert.Equal(t, []string{"u1", "u2"}, snapshots[1])
	assert.Equal(t, []string{"u2"}, snapshots[2])
}

func TestConcurrentChurn(t *testing.T) {
	r := NewRegistry()
	r.OnChange(func([]string) {})

	const users = 16
	const rounds = 200

	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			userID := fmt.Sprintf("u%d", u)
			for i := 0; i < rounds; i++ {
				connID := fmt.Sprintf("c%d-%d", u, i)
				r.Register(userID, connID)
				if i%3 == 0 {
					r.Unregister(connID)
				}
			}
		}(u)
	}
	wg.Wait()

	// Each user's entry, if present, must point at one of its own
	// connections; unrelated users must never clobber each other.
	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("u%d", u)
		if conn, ok := r.Lookup(userID); ok {
			assert.Contains(t, conn, fmt.Sprintf("c%d-", u))
		}
	}
}

// Full-state snapshots only heal clients if the final delivery matches the
// final state. Two mutations racing through the hook must never deliver the
// older snapshot last.
func TestLastDeliveredSnapshotMatchesFinalState(t *testing.T) {
	for iter := 0; iter < 200; iter++ {
		r := NewRegistry()

		var mu sync.Mutex
		var last []string
		r.OnChange(func(online []string) {
			mu.Lock()
			last = online
			mu.Unlock()
		})

		const users = 8
		var wg sync.WaitGroup
		for u := 0; u < users; u++ {
			wg.Add(1)
			go func(u int) {
				defer wg.Done()
				userID := fmt.Sprintf("u%d", u)
				for i := 0; i < 20; i++ {
					connID := fmt.Sprintf("c%d-%d", u, i)
					r.Register(userID, connID)
					if u%2 == 0 {
						r.Unregister(connID)
					}
				}
			}(u)
		}
		wg.Wait()

		mu.Lock()
		got := last
		mu.Unlock()
		require.Equal(t, r.Online(), got)
	}
}

// A delivery that lost the race to a newer snapshot is dropped rather than
// delivered out of order.
func TestStaleSnapshotIsNotDelivered(t *testing.T) {
	r := NewRegistry()

	var snapshots [][]string
	r.OnChange(func(online []string) {
		snapshots = append(snapshots, online)
	})

	r.Register("u1", "c1")
	r.Register("u2", "c2")

	// Replay the first mutation's delivery as if its goroutine had stalled
	// past the second one.
	r.notify(1, []string{"u1"})

	require.Len(t, snapshots, 2)
	assert.Equal(t, []string{"u1", "u2"}, snapshots[1])
}
