package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mikey/inbox-intel/internal/core"
)

// MemoryStore is an in-memory implementation of the RecordStore interface,
// used by the CLI and by tests
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*core.User
	messages map[string][]*core.Message
	trees    map[string]*core.KnowledgeTree
}

// NewMemoryStore creates a new in-memory record store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*core.User),
		messages: make(map[string][]*core.Message),
		trees:    make(map[string]*core.KnowledgeTree),
	}
}

// AddUser registers a user and returns it
func (s *MemoryStore) AddUser(email, name string) *core.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := &core.User{
		ID:    uuid.New().String(),
		Email: email,
		Name:  name,
	}
	s.users[email] = user
	return user
}

// GetUser resolves a user by email, returning nil when unknown
func (s *MemoryStore) GetUser(ctx context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[email]
	if !ok {
		return nil, nil
	}
	return user, nil
}

// GetMessages returns messages for a user matching the filter, most recent
// first
func (s *MemoryStore) GetMessages(ctx context.Context, userID string, filter core.MessageFilter) ([]*core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Message
	for _, msg := range s.messages[userID] {
		if filter.OutboundOnly && !msg.Outbound {
			continue
		}
		if filter.InboundOnly && msg.Outbound {
			continue
		}
		if filter.UnprocessedOnly && msg.Processed() {
			continue
		}
		if !filter.Since.IsZero() && msg.SentAt.Before(filter.Since) {
			continue
		}
		out = append(out, msg)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SentAt.After(out[j].SentAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// SaveMessage persists a new message and returns its id
func (s *MemoryStore) SaveMessage(ctx context.Context, userID string, msg *core.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	s.messages[userID] = append(s.messages[userID], msg)
	return msg.ID, nil
}

// MarkProcessed records assignment output on a message
func (s *MemoryStore) MarkProcessed(ctx context.Context, messageID string, res *core.AssignmentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msgs := range s.messages {
		for _, msg := range msgs {
			if msg.ID == messageID {
				msg.Assignment = res
				return nil
			}
		}
	}
	return nil
}

// GetTree returns the current tree for a user, or nil if none exists
func (s *MemoryStore) GetTree(ctx context.Context, userID string) (*core.KnowledgeTree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, ok := s.trees[userID]
	if !ok {
		return nil, nil
	}
	return tree, nil
}

// SaveTree atomically replaces the stored tree for a user
func (s *MemoryStore) SaveTree(ctx context.Context, userID string, tree *core.KnowledgeTree) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trees[userID] = tree
	return nil
}
