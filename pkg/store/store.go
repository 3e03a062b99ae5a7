// Package store defines the persistence contracts the messaging core depends
// on, and provides the ScyllaDB and in-memory implementations.
package store

import (
	"context"
	"errors"

	"github.com/mahaj/dupahar-dm/pkg/model"
)

var (
	// ErrNotFound means the referenced message or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the caller is not allowed to perform the mutation.
	ErrForbidden = errors.New("forbidden")
)

// MessageStore is the durable, append-only message log. Messages arrive with
// their server-assigned id already set and are never physically removed;
// revocation turns them into tombstones.
type MessageStore interface {
	// Insert persists a new message.
	Insert(ctx context.Context, msg *model.Message) error

	// FindByID returns the message with the given id, or ErrNotFound.
	FindByID(ctx context.Context, id int64) (*model.Message, error)

	// FindConversation returns all messages between the pair, tombstones
	// included, in insertion order.
	FindConversation(ctx context.Context, userA, userB string) ([]*model.Message, error)

	// MarkDeleted tombstones the message in one conditional update: it
	// applies only if requester is the sender, with no observable gap
	// between the permission check and the mutation. Returns the tombstone
	// on success (including when the sender revokes twice), ErrForbidden
	// when requester is not the sender, ErrNotFound when the id is absent.
	MarkDeleted(ctx context.Context, id int64, requester string) (*model.Message, error)
}

// UserDirectory is the read side of the externally-owned user records,
// just enough to fill the sidebar.
type UserDirectory interface {
	// ListOthers returns every known user except userID.
	ListOthers(ctx context.Context, userID string) ([]model.User, error)

	// Put inserts or overwrites a directory entry.
	Put(ctx context.Context, user model.User) error
}

// ConversationKey builds the canonical partition key for a user pair,
// direction-independent.
func ConversationKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return "dm:" + userA + ":" + userB
}
