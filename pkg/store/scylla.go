package store

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"

	"github.com/mahaj/dupahar-dm/pkg/db"
	"github.com/mahaj/dupahar-dm/pkg/model"
)

// Scylla persists messages partitioned by conversation, with an id index
// table so a revoke addressed by message id alone can find its partition.
type Scylla struct {
	db *db.Session
}

func NewScylla(session *db.Session) *Scylla {
	return &Scylla{db: session}
}

func (s *Scylla) Insert(ctx context.Context, msg *model.Message) error {
	conv := ConversationKey(msg.SenderID, msg.ReceiverID)

	q := `INSERT INTO dm_messages (conversation_id, id, sender_id, receiver_id, text, images, deleted, created_at)
	      VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if err := s.db.Query(q, conv, msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, msg.Images, msg.Deleted, msg.CreatedAt).
		WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("insert message %d: %w", msg.ID, err)
	}

	qi := `INSERT INTO dm_message_index (id, conversation_id) VALUES (?, ?)`
	if err := s.db.Query(qi, msg.ID, conv).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("index message %d: %w", msg.ID, err)
	}
	return nil
}

func (s *Scylla) FindByID(ctx context.Context, id int64) (*model.Message, error) {
	conv, err := s.conversationFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.findInConversation(ctx, conv, id)
}

func (s *Scylla) FindConversation(ctx context.Context, userA, userB string) ([]*model.Message, error) {
	conv := ConversationKey(userA, userB)

	q := `SELECT id, sender_id, receiver_id, text, images, deleted, created_at
	      FROM dm_messages WHERE conversation_id = ?`
	iter := s.db.Query(q, conv).WithContext(ctx).Iter()

	var messages []*model.Message
	var m model.Message
	for iter.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Images, &m.Deleted, &m.CreatedAt) {
		cp := m
		messages = append(messages, &cp)
		m = model.Message{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list conversation %s: %w", conv, err)
	}
	return messages, nil
}

// MarkDeleted tombstones the message with a single lightweight transaction
// conditioned on the sender, so the permission check and the mutation cannot
// be separated by a concurrent write. Re-applying the tombstone for the same
// sender is harmless, which is what makes a double revoke idempotent.
func (s *Scylla) MarkDeleted(ctx context.Context, id int64, requester string) (*model.Message, error) {
	conv, err := s.conversationFor(ctx, id)
	if err != nil {
		return nil, err
	}

	q := `UPDATE dm_messages SET deleted = true, text = '', images = null
	      WHERE conversation_id = ? AND id = ? IF sender_id = ?`
	var prevSender string
	applied, err := s.db.Query(q, conv, id, requester).WithContext(ctx).ScanCAS(&prevSender)
	if err != nil {
		return nil, fmt.Errorf("revoke message %d: %w", id, err)
	}
	if !applied {
		if prevSender == "" {
			// The index pointed at a row that no longer exists.
			return nil, ErrNotFound
		}
		return nil, ErrForbidden
	}

	return s.findInConversation(ctx, conv, id)
}

func (s *Scylla) conversationFor(ctx context.Context, id int64) (string, error) {
	var conv string
	q := `SELECT conversation_id FROM dm_message_index WHERE id = ?`
	if err := s.db.Query(q, id).WithContext(ctx).Scan(&conv); err != nil {
		if err == gocql.ErrNotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("index lookup %d: %w", id, err)
	}
	return conv, nil
}

func (s *Scylla) findInConversation(ctx context.Context, conv string, id int64) (*model.Message, error) {
	q := `SELECT id, sender_id, receiver_id, text, images, deleted, created_at
	      FROM dm_messages WHERE conversation_id = ? AND id = ?`

	var m model.Message
	err := s.db.Query(q, conv, id).WithContext(ctx).
		Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Images, &m.Deleted, &m.CreatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find message %d: %w", id, err)
	}
	return &m, nil
}

// ScyllaUsers is the directory read side backed by the dm_users table.
type ScyllaUsers struct {
	db *db.Session
}

func NewScyllaUsers(session *db.Session) *ScyllaUsers {
	return &ScyllaUsers{db: session}
}

func (s *ScyllaUsers) ListOthers(ctx context.Context, userID string) ([]model.User, error) {
	iter := s.db.Query(`SELECT id, username FROM dm_users`).WithContext(ctx).Iter()

	var users []model.User
	var u model.User
	for iter.Scan(&u.ID, &u.Username) {
		if u.ID != userID {
			users = append(users, u)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *ScyllaUsers) Put(ctx context.Context, user model.User) error {
	q := `INSERT INTO dm_users (id, username) VALUES (?, ?)`
	if err := s.db.Query(q, user.ID, user.Username).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("put user %s: %w", user.ID, err)
	}
	return nil
}
