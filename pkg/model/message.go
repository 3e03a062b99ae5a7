package model

import "time"

// Message is one unit of communication between exactly two users. It is
// created once on send and mutated exactly once, on revoke, when it becomes
// a tombstone. Messages are never physically removed so stale client copies
// always resolve to something.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Text       string    `json:"text"`
	Images     []string  `json:"images"`
	Deleted    bool      `json:"deleted"`
	CreatedAt  time.Time `json:"created_at"`
}

// Tombstone marks the message deleted and erases its content. Idempotent.
func (m *Message) Tombstone() {
	m.Deleted = true
	m.Text = ""
	m.Images = nil
}

// Empty reports whether the message carries no content at all.
func (m *Message) Empty() bool {
	return m.Text == "" && len(m.Images) == 0
}

// InConversation reports whether the message belongs to the conversation
// between a and b, in either direction.
func (m *Message) InConversation(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) ||
		(m.SenderID == b && m.ReceiverID == a)
}

// Revocation is the ephemeral notification derived from a message turning
// into a tombstone. It is not persisted on its own; delivery is at-least-once
// and consumers must apply it idempotently.
type Revocation struct {
	MessageID  int64     `json:"message_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// User is a directory entry, as exposed to the sidebar listing.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
