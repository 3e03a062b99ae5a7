package router

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/presence"
)

// fakePusher records what the router hands to the transport.
type fakePusher struct {
	pushes     map[string][][]byte
	broadcasts [][]byte
	err        error
}

func newFakePusher() *fakePusher {
	return &fakePusher{pushes: make(map[string][][]byte)}
}

func (p *fakePusher) Push(connID string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.pushes[connID] = append(p.pushes[connID], payload)
	return nil
}

func (p *fakePusher) Broadcast(payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.broadcasts = append(p.broadcasts, payload)
	return nil
}

func decodeEvent(t *testing.T, payload []byte) model.Event {
	t.Helper()
	var ev model.Event
	require.NoError(t, json.Unmarshal(payload, &ev))
	return ev
}

func newTestRouter(reg *presence.Registry, p Pusher) *Router {
	return New(reg, p, zerolog.New(io.Discard))
}

func TestMessageCreatedTargetsReceiverOnly(t *testing.T) {
	reg := presence.NewRegistry()
	reg.Register("u1", "c1")
	reg.Register("u2", "c2")

	p := newFakePusher()
	r := newTestRouter(reg, p)

	r.MessageCreated(&model.Message{ID: 1, SenderID: "u1", ReceiverID: "u2", Text: "hi"})

	require.Len(t, p.pushes["c2"], 1)
	assert.Empty(t, p.pushes["c1"])
	assert.Empty(t, p.broadcasts)

	ev := decodeEvent(t, p.pushes["c2"][0])
	assert.Equal(t, model.EventNewMessage, ev.Type)

	var msg model.Message
	require.NoError(t, json.Unmarshal(ev.Data, &msg))
	assert.Equal(t, "hi", msg.Text)
}

func TestMessageCreatedOfflineReceiverIsSilent(t *testing.T) {
	reg := presence.NewRegistry()
	reg.Register("u1", "c1")

	p := newFakePusher()
	r := newTestRouter(reg, p)

	r.MessageCreated(&model.Message{ID: 1, SenderID: "u1", ReceiverID: "u2"})

	assert.Empty(t, p.pushes)
	assert.Empty(t, p.broadcasts)
}

func TestMessageRevokedBroadcastsToAll(t *testing.T) {
	reg := presence.NewRegistry()
	p := newFakePusher()
	r := newTestRouter(reg, p)

	rev := model.Revocation{MessageID: 7, SenderID: "u1", ReceiverID: "u2", Timestamp: time.Now()}
	r.MessageRevoked(rev)

	require.Len(t, p.broadcasts, 1)
	ev := decodeEvent(t, p.broadcasts[0])
	assert.Equal(t, model.EventMessageRevoked, ev.Type)

	var got model.Revocation
	require.NoError(t, json.Unmarshal(ev.Data, &got))
	assert.Equal(t, int64(7), got.MessageID)
}

func TestPresenceChangedBroadcastsSnapshot(t *testing.T) {
	p := newFakePusher()
	r := newTestRouter(presence.NewRegistry(), p)

	r.PresenceChanged([]string{"u1", "u2"})
	r.PresenceChanged(nil) // empty set still broadcast as []

	require.Len(t, p.broadcasts, 2)

	ev := decodeEvent(t, p.broadcasts[0])
	assert.Equal(t, model.EventGetOnlineUsers, ev.Type)
	var online []string
	require.NoError(t, json.Unmarshal(ev.Data, &online))
	assert.Equal(t, []string{"u1", "u2"}, online)

	ev = decodeEvent(t, p.broadcasts[1])
	require.NoError(t, json.Unmarshal(ev.Data, &online))
	assert.Empty(t, online)
}

func TestTypingRelayTargetsPeer(t *testing.T) {
	reg := presence.NewRegistry()
	reg.Register("u2", "c2")

	p := newFakePusher()
	r := newTestRouter(reg, p)

	r.TypingStarted("u1", "u2")
	r.TypingStarted("u1", "u-offline")

	require.Len(t, p.pushes["c2"], 1)
	ev := decodeEvent(t, p.pushes["c2"][0])
	assert.Equal(t, model.EventTyping, ev.Type)
}

// Transport failures are swallowed; the router never panics or propagates.
func TestPushFailuresAreSwallowed(t *testing.T) {
	reg := presence.NewRegistry()
	reg.Register("u2", "c2")

	p := newFakePusher()
	p.err = errors.New("connection gone")
	r := newTestRouter(reg, p)

	r.MessageCreated(&model.Message{ID: 1, SenderID: "u1", ReceiverID: "u2"})
	r.MessageRevoked(model.Revocation{MessageID: 1})
	r.PresenceChanged([]string{"u2"})
}
