package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahaj/dupahar-dm/pkg/model"
)

func dialWS(t *testing.T, s *testServer, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/ws"
	header := http.Header{}
	header.Add("Authorization", "Bearer "+token)

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) model.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev model.Event
	require.NoError(t, json.Unmarshal(payload, &ev))
	return ev
}

// waitEvent reads frames until one of the wanted type arrives.
func waitEvent(t *testing.T, conn *websocket.Conn, typ model.EventType) model.Event {
	t.Helper()
	for i := 0; i < 10; i++ {
		ev := readEvent(t, conn)
		if ev.Type == typ {
			return ev
		}
	}
	t.Fatalf("no %s event received", typ)
	return model.Event{}
}

func TestHandshakeRequiresToken(t *testing.T) {
	s := newTestServer(t)

	url := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConnectBroadcastsPresence(t *testing.T) {
	s := newTestServer(t)
	tokenA := s.login(t, "u1")

	conn := dialWS(t, s, tokenA)

	ev := waitEvent(t, conn, model.EventGetOnlineUsers)
	var online []string
	require.NoError(t, json.Unmarshal(ev.Data, &online))
	assert.Equal(t, []string{"u1"}, online)

	// A second user connecting reaches the first through the broadcast.
	tokenB := s.login(t, "u2")
	dialWS(t, s, tokenB)

	ev = waitEvent(t, conn, model.EventGetOnlineUsers)
	require.NoError(t, json.Unmarshal(ev.Data, &online))
	assert.Equal(t, []string{"u1", "u2"}, online)
}

func TestSendPushesToConnectedReceiver(t *testing.T) {
	s := newTestServer(t)
	s.login(t, "u1")
	tokenB := s.login(t, "u2")

	conn := dialWS(t, s, tokenB)
	waitEvent(t, conn, model.EventGetOnlineUsers)

	msg, err := s.svc.Send(context.Background(), "u1", "u2", "hi", nil)
	require.NoError(t, err)

	ev := waitEvent(t, conn, model.EventNewMessage)
	var pushed model.Message
	require.NoError(t, json.Unmarshal(ev.Data, &pushed))
	assert.Equal(t, msg.ID, pushed.ID)
	assert.Equal(t, "hi", pushed.Text)
}

func TestRevokeReachesAllConnections(t *testing.T) {
	s := newTestServer(t)
	s.login(t, "u1")
	tokenB := s.login(t, "u2")
	tokenC := s.login(t, "u3")

	connB := dialWS(t, s, tokenB)
	connC := dialWS(t, s, tokenC) // bystander
	waitEvent(t, connB, model.EventGetOnlineUsers)
	waitEvent(t, connC, model.EventGetOnlineUsers)

	msg, err := s.svc.Send(context.Background(), "u1", "u2", "hi", nil)
	require.NoError(t, err)

	_, err = s.svc.Revoke(context.Background(), msg.ID, "u1")
	require.NoError(t, err)

	for _, conn := range []*websocket.Conn{connB, connC} {
		ev := waitEvent(t, conn, model.EventMessageRevoked)
		var rev model.Revocation
		require.NoError(t, json.Unmarshal(ev.Data, &rev))
		assert.Equal(t, msg.ID, rev.MessageID)
	}
}

func TestTypingRelay(t *testing.T) {
	s := newTestServer(t)
	tokenA := s.login(t, "u1")
	tokenB := s.login(t, "u2")

	connA := dialWS(t, s, tokenA)
	connB := dialWS(t, s, tokenB)
	waitEvent(t, connB, model.EventGetOnlineUsers)

	frame, err := json.Marshal(model.TypingData{To: "u2"})
	require.NoError(t, err)
	require.NoError(t, connA.WriteMessage(websocket.TextMessage, frame))

	ev := waitEvent(t, connB, model.EventTyping)
	var typing model.TypingData
	require.NoError(t, json.Unmarshal(ev.Data, &typing))
	assert.Equal(t, "u1", typing.From)
}

func TestDisconnectUpdatesPresence(t *testing.T) {
	s := newTestServer(t)
	tokenA := s.login(t, "u1")
	tokenB := s.login(t, "u2")

	connA := dialWS(t, s, tokenA)
	dialWS(t, s, tokenB)

	connA.Close()

	// The registry eventually drops u1.
	require.Eventually(t, func() bool {
		_, ok := s.registry.Lookup("u1")
		return !ok
	}, 2*time.Second, 20*time.Millisecond)

	_, ok := s.registry.Lookup("u2")
	assert.True(t, ok)
}
