// Package client holds the synchronization agent that keeps a local
// conversation view consistent with server truth, combining snapshot fetches
// with live push events.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mahaj/dupahar-dm/pkg/model"
)

// Remote is the server surface the agent needs: a snapshot fetch and the
// revoke call. Implemented by *API.
type Remote interface {
	ListConversation(ctx context.Context, peerID string) ([]*model.Message, error)
	Revoke(ctx context.Context, messageID int64) error
}

// revokeState is the per-message revocation state machine:
// pristine -> pendingRevoke -> revoked, with pendingRevoke rolling back to
// pristine when the remote call fails.
type revokeState int

const (
	statePristine revokeState = iota
	statePendingRevoke
	stateRevoked
)

// Agent reconciles one open conversation. All methods are safe for
// concurrent use; push events and user actions arrive from different
// goroutines.
type Agent struct {
	remote Remote
	self   string
	log    zerolog.Logger

	mu       sync.Mutex
	peer     string
	messages []*model.Message
	states   map[int64]revokeState
	priors   map[int64]model.Message // pre-revoke copies for rollback
	online   []string
	sub      func() // release of the current event subscription
}

func NewAgent(remote Remote, self string, log zerolog.Logger) *Agent {
	return &Agent{
		remote: remote,
		self:   self,
		log:    log,
		states: make(map[int64]revokeState),
		priors: make(map[int64]model.Message),
	}
}

// Open switches the agent to the conversation with peer and replaces local
// state with a full server snapshot.
func (a *Agent) Open(ctx context.Context, peer string) error {
	msgs, err := a.remote.ListConversation(ctx, peer)
	if err != nil {
		return fmt.Errorf("open conversation: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.peer = peer
	a.messages = msgs
	a.states = make(map[int64]revokeState)
	a.priors = make(map[int64]model.Message)
	for _, m := range msgs {
		if m.Deleted {
			a.states[m.ID] = stateRevoked
		}
	}
	return nil
}

// Peer returns the currently open conversation peer, if any.
func (a *Agent) Peer() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.peer
}

// Messages returns a copy of the local conversation view.
func (a *Agent) Messages() []*model.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*model.Message, len(a.messages))
	for i, m := range a.messages {
		cp := *m
		out[i] = &cp
	}
	return out
}

// Online returns the last presence snapshot received.
func (a *Agent) Online() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.online...)
}

// Append adds a locally created message (the REST response of a send) to the
// open view.
func (a *Agent) Append(msg *model.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.appendLocked(msg)
}

// ApplyEvent feeds one push event into the local state. Unknown and
// irrelevant events are ignored; revocations apply idempotently.
func (a *Agent) ApplyEvent(ev model.Event) {
	switch ev.Type {
	case model.EventNewMessage:
		var msg model.Message
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			a.log.Warn().Err(err).Msg("bad newMessage payload")
			return
		}
		a.applyNewMessage(&msg)

	case model.EventMessageRevoked:
		var rev model.Revocation
		if err := json.Unmarshal(ev.Data, &rev); err != nil {
			a.log.Warn().Err(err).Msg("bad messageRevoked payload")
			return
		}
		a.applyRevocation(rev.MessageID)

	case model.EventGetOnlineUsers:
		var online []string
		if err := json.Unmarshal(ev.Data, &online); err != nil {
			a.log.Warn().Err(err).Msg("bad getOnlineUsers payload")
			return
		}
		a.mu.Lock()
		a.online = online
		a.mu.Unlock()
	}
}

func (a *Agent) applyNewMessage(msg *model.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Only the open conversation renders pushes; everything else waits for
	// its own snapshot fetch.
	if a.peer == "" || !msg.InConversation(a.self, a.peer) {
		return
	}
	a.appendLocked(msg)
}

func (a *Agent) appendLocked(msg *model.Message) {
	for _, m := range a.messages {
		if m.ID == msg.ID {
			return // duplicate delivery
		}
	}
	cp := *msg
	a.messages = append(a.messages, &cp)
	if cp.Deleted {
		a.states[cp.ID] = stateRevoked
	}
}

func (a *Agent) applyRevocation(id int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.states[id] == stateRevoked {
		return // duplicate or out-of-order event, already tombstoned
	}
	for _, m := range a.messages {
		if m.ID == id {
			m.Tombstone()
			a.states[id] = stateRevoked
			delete(a.priors, id)
			return
		}
	}
}

// Revoke optimistically tombstones the message locally, then issues the
// remote revoke. A remote failure restores the exact prior message, original
// text and images included.
func (a *Agent) Revoke(ctx context.Context, id int64) error {
	a.mu.Lock()
	var target *model.Message
	for _, m := range a.messages {
		if m.ID == id {
			target = m
			break
		}
	}
	if target == nil {
		a.mu.Unlock()
		return fmt.Errorf("revoke: message %d not in local view", id)
	}
	if a.states[id] == stateRevoked || a.states[id] == statePendingRevoke {
		a.mu.Unlock()
		return nil
	}
	a.priors[id] = *target
	a.states[id] = statePendingRevoke
	target.Tombstone()
	a.mu.Unlock()

	if err := a.remote.Revoke(ctx, id); err != nil {
		a.mu.Lock()
		// Roll back unless a server-side revocation landed in the meantime.
		if a.states[id] == statePendingRevoke {
			if prior, ok := a.priors[id]; ok {
				for i, m := range a.messages {
					if m.ID == id {
						restored := prior
						a.messages[i] = &restored
						break
					}
				}
			}
			a.states[id] = statePristine
			delete(a.priors, id)
		}
		a.mu.Unlock()
		return fmt.Errorf("revoke: %w", err)
	}

	a.mu.Lock()
	a.states[id] = stateRevoked
	delete(a.priors, id)
	a.mu.Unlock()
	return nil
}
