package model

import "encoding/json"

type EventType string

const (
	// Server to client.
	EventNewMessage     EventType = "newMessage"
	EventMessageRevoked EventType = "messageRevoked"
	EventGetOnlineUsers EventType = "getOnlineUsers"
	EventTyping         EventType = "typing"
)

// Event is the tagged envelope every websocket frame carries.
type Event struct {
	Type EventType       `json:"event"`
	Data json.RawMessage `json:"data"`
}

// TypingData is the payload of a client-sent typing event ("to") and of the
// relayed server copy ("from").
type TypingData struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

func newEvent(t EventType, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: t, Data: data})
}

// NewMessageEvent encodes a newMessage frame carrying the full record.
func NewMessageEvent(m *Message) ([]byte, error) {
	return newEvent(EventNewMessage, m)
}

// MessageRevokedEvent encodes a messageRevoked frame.
func MessageRevokedEvent(rev Revocation) ([]byte, error) {
	return newEvent(EventMessageRevoked, rev)
}

// OnlineUsersEvent encodes a getOnlineUsers frame with the full online set.
func OnlineUsersEvent(online []string) ([]byte, error) {
	if online == nil {
		online = []string{}
	}
	return newEvent(EventGetOnlineUsers, online)
}

// TypingEvent encodes a typing relay frame.
func TypingEvent(from string) ([]byte, error) {
	return newEvent(EventTyping, TypingData{From: from})
}
