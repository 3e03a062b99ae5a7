package client

import "github.com/mahaj/dupahar-dm/pkg/model"

// EventSource is anything that can feed push events to a handler and take
// the registration back. Implemented by *Socket.
type EventSource interface {
	// Subscribe registers fn and returns its release. Events delivered
	// after release must not reach fn.
	Subscribe(fn func(model.Event)) (release func())
}

// Subscribe attaches the agent to src. Any previous subscription is released
// first, so switching connections or conversations never stacks handlers and
// multiplies event application.
func (a *Agent) Subscribe(src EventSource) {
	a.mu.Lock()
	prev := a.sub
	a.mu.Unlock()

	if prev != nil {
		prev()
	}

	release := src.Subscribe(a.ApplyEvent)

	a.mu.Lock()
	a.sub = release
	a.mu.Unlock()
}

// Unsubscribe detaches the agent from its current event source.
func (a *Agent) Unsubscribe() {
	a.mu.Lock()
	release := a.sub
	a.sub = nil
	a.mu.Unlock()

	if release != nil {
		release()
	}
}
