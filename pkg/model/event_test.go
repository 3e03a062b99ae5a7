package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTombstoneClearsContent(t *testing.T) {
	m := Message{ID: 1, Text: "hi", Images: []string{"url1"}}
	m.Tombstone()
	m.Tombstone() // idempotent

	assert.True(t, m.Deleted)
	assert.Empty(t, m.Text)
	assert.Nil(t, m.Images)
}

func TestInConversation(t *testing.T) {
	m := Message{SenderID: "u1", ReceiverID: "u2"}

	assert.True(t, m.InConversation("u1", "u2"))
	assert.True(t, m.InConversation("u2", "u1"))
	assert.False(t, m.InConversation("u1", "u3"))
}

func TestOnlineUsersEventNeverNull(t *testing.T) {
	payload, err := OnlineUsersEvent(nil)
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, EventGetOnlineUsers, ev.Type)
	assert.JSONEq(t, "[]", string(ev.Data))
}
