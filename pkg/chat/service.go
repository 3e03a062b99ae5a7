// Package chat orchestrates the message lifecycle: validated sends, atomic
// revocation, and conversation listing. A message moves Created -> Revoked
// and Revoked is terminal.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/mahaj/dupahar-dm/pkg/events"
	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/router"
	"github.com/mahaj/dupahar-dm/pkg/snowflake"
	"github.com/mahaj/dupahar-dm/pkg/store"
)

var (
	// ErrEmptyMessage rejects a send carrying neither text nor images.
	ErrEmptyMessage = errors.New("message has no content")
	// ErrSelfSend rejects a send addressed to the sender.
	ErrSelfSend = errors.New("cannot send a message to yourself")
)

var (
	messagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_messages_sent_total",
		Help: "Messages persisted through Send.",
	})
	messagesRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_messages_revoked_total",
		Help: "Messages tombstoned through Revoke.",
	})
)

// Service is the message lifecycle service. Persistence failures abort the
// operation; push and event-stream failures do not, persisted truth and live
// notification are decoupled.
type Service struct {
	store    store.MessageStore
	users    store.UserDirectory
	router   *router.Router
	producer *events.Producer
	ids      *snowflake.Node
	log      zerolog.Logger
}

func NewService(
	messages store.MessageStore,
	users store.UserDirectory,
	r *router.Router,
	producer *events.Producer,
	ids *snowflake.Node,
	log zerolog.Logger,
) *Service {
	return &Service{
		store:    messages,
		users:    users,
		router:   r,
		producer: producer,
		ids:      ids,
		log:      log,
	}
}

// Send validates, persists and routes a new message, returning the persisted
// record.
func (s *Service) Send(ctx context.Context, sender, receiver, text string, images []string) (*model.Message, error) {
	if sender == receiver {
		return nil, ErrSelfSend
	}

	msg := &model.Message{
		ID:         s.ids.Generate(),
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       text,
		Images:     images,
		CreatedAt:  time.Now().UTC(),
	}
	if msg.Empty() {
		return nil, ErrEmptyMessage
	}

	if err := s.store.Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	messagesSent.Inc()
	s.log.Debug().Int64("message_id", msg.ID).Str("sender", sender).Str("receiver", receiver).Msg("message sent")

	// Everything past the insert is best-effort.
	s.router.MessageCreated(msg)
	s.producer.MessageCreated(ctx, msg)

	return msg, nil
}

// Revoke tombstones a message. The permission check and the mutation happen
// in the store's single conditional update, so there is no window in which a
// concurrent write could invalidate the check.
func (s *Service) Revoke(ctx context.Context, id int64, requester string) (*model.Message, error) {
	msg, err := s.store.MarkDeleted(ctx, id, requester)
	if err != nil {
		return nil, fmt.Errorf("revoke: %w", err)
	}
	messagesRevoked.Inc()
	s.log.Debug().Int64("message_id", id).Str("requester", requester).Msg("message revoked")

	rev := model.Revocation{
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Timestamp:  time.Now().UTC(),
	}
	s.router.MessageRevoked(rev)
	s.producer.MessageRevoked(ctx, rev)

	return msg, nil
}

// ListConversation returns the conversation between the pair in creation
// order, tombstones included, so client timelines stay stable.
func (s *Service) ListConversation(ctx context.Context, userA, userB string) ([]*model.Message, error) {
	msgs, err := s.store.FindConversation(ctx, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	if msgs == nil {
		msgs = []*model.Message{}
	}
	return msgs, nil
}

// ListUsers returns every other user for the sidebar.
func (s *Service) ListUsers(ctx context.Context, userID string) ([]model.User, error) {
	users, err := s.users.ListOthers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// Typing relays a typing signal from sender to peer.
func (s *Service) Typing(sender, peer string) {
	s.router.TypingStarted(sender, peer)
}
