// Package presence tracks which users currently hold a live connection.
package presence

import (
	"sort"
	"sync"
)

// ChangeFunc receives the full online snapshot after every registry mutation
// that changed it. Presence updates are full-state on purpose: a client that
// missed one heals on the next.
type ChangeFunc func(online []string)

// Registry maps a user identity to its single active connection. The last
// registration for a user wins; an unregister only removes the entry that
// still belongs to the given connection, so a stale disconnect arriving after
// a reconnect cannot evict the newer entry.
//
// Safe for concurrent use from independent connection lifecycles.
type Registry struct {
	mu       sync.RWMutex
	byUser   map[string]string // user id -> connection id
	byConn   map[string]string // connection id -> user id
	version  uint64            // bumped under mu on every mutation
	onChange ChangeFunc

	// notifyMu serializes hook deliveries; delivered is the highest version
	// handed to the hook so far.
	notifyMu  sync.Mutex
	delivered uint64
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// OnChange installs the presence-changed hook. Must be called before the
// registry receives traffic; the hook runs outside the registry lock.
func (r *Registry) OnChange(fn ChangeFunc) {
	r.onChange = fn
}

// Register inserts or overwrites the entry for userID. Always succeeds.
func (r *Registry) Register(userID, connID string) {
	r.mu.Lock()
	if old, ok := r.byUser[userID]; ok {
		delete(r.byConn, old)
	}
	r.byUser[userID] = connID
	r.byConn[connID] = userID
	r.version++
	version := r.version
	online := r.onlineLocked()
	r.mu.Unlock()

	r.notify(version, online)
}

// Unregister removes the entry registered under connID, if it is still
// current. Removing by the connection captured at registration time, not by
// user, is what makes reconnect races safe.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	userID, ok := r.byConn[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.byConn, connID)
	delete(r.byUser, userID)
	r.version++
	version := r.version
	online := r.onlineLocked()
	r.mu.Unlock()

	r.notify(version, online)
}

// Lookup returns the connection currently registered for userID.
func (r *Registry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byUser[userID]
	return connID, ok
}

// Online returns a sorted snapshot of all online user identities.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onlineLocked()
}

func (r *Registry) onlineLocked() []string {
	online := make([]string, 0, len(r.byUser))
	for userID := range r.byUser {
		online = append(online, userID)
	}
	sort.Strings(online)
	return online
}

// notify hands the snapshot to the hook outside the registry lock. Deliveries
// are serialized and stamped with the mutation version, and a snapshot older
// than one already delivered is dropped, so the last delivery always carries
// the newest state even when mutations race.
func (r *Registry) notify(version uint64, online []string) {
	if r.onChange == nil {
		return
	}
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	if version <= r.delivered {
		return
	}
	r.delivered = version
	r.onChange(online)
}
