package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mahaj/dupahar-dm/pkg/model"
)

// Memory is a mutex-guarded in-memory implementation of MessageStore and
// UserDirectory, used by tests and the memory store backend.
type Memory struct {
	mu       sync.RWMutex
	messages map[int64]*model.Message
	users    map[string]model.User
}

func NewMemory() *Memory {
	return &Memory{
		messages: make(map[int64]*model.Message),
		users:    make(map[string]model.User),
	}
}

func (s *Memory) Insert(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.messages[msg.ID] = &cp
	return nil
}

func (s *Memory) FindByID(_ context.Context, id int64) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (s *Memory) FindConversation(_ context.Context, userA, userB string) ([]*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Message
	for _, msg := range s.messages {
		if msg.InConversation(userA, userB) {
			cp := *msg
			out = append(out, &cp)
		}
	}
	// Snowflake ids are time-ordered, so id order is insertion order.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Memory) MarkDeleted(_ context.Context, id int64, requester string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	if msg.SenderID != requester {
		return nil, ErrForbidden
	}
	msg.Tombstone()
	cp := *msg
	return &cp, nil
}

func (s *Memory) ListOthers(_ context.Context, userID string) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		if u.ID != userID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Memory) Put(_ context.Context, user model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}
