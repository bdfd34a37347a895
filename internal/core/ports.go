package core

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is the sole hard failure the core surfaces to callers of
// the synthesis entry point
var ErrUserNotFound = errors.New("user not found")

// LLMClient defines the interface for the external text-completion service
type LLMClient interface {
	// Complete sends a prompt and returns the raw response text
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// MessageFilter narrows a record-store message query
type MessageFilter struct {
	Since           time.Time
	Limit           int
	OutboundOnly    bool
	InboundOnly     bool
	UnprocessedOnly bool
}

// RecordStore defines the persistence operations the core consumes
type RecordStore interface {
	// GetUser resolves a user by email address
	GetUser(ctx context.Context, email string) (*User, error)

	// GetMessages returns messages for a user matching the filter
	GetMessages(ctx context.Context, userID string, filter MessageFilter) ([]*Message, error)

	// SaveMessage persists a new message and returns its id
	SaveMessage(ctx context.Context, userID string, msg *Message) (string, error)

	// MarkProcessed records assignment output on a message
	MarkProcessed(ctx context.Context, messageID string, res *AssignmentResult) error

	// GetTree returns the current knowledge tree for a user, or nil if none
	GetTree(ctx context.Context, userID string) (*KnowledgeTree, error)

	// SaveTree atomically replaces the stored tree for a user
	SaveTree(ctx context.Context, userID string, tree *KnowledgeTree) error
}

// MailboxProvider defines the interface to the external mailbox integration
type MailboxProvider interface {
	// ListRecent returns handles to messages received since the given time
	ListRecent(ctx context.Context, user *User, since time.Time, limit int) ([]MessageRef, error)

	// FetchFull retrieves the decoded message for a handle
	FetchFull(ctx context.Context, ref MessageRef) (*Message, error)
}

// IntelligenceCache defines the interface for caching synthesis results
type IntelligenceCache interface {
	// Get retrieves a cached result for a user; an expired entry is a miss
	Get(ctx context.Context, userEmail string) (*IntelligenceResult, bool)

	// Set stores a result with the given TTL, replacing any prior entry
	Set(ctx context.Context, userEmail string, result *IntelligenceResult, ttl time.Duration)

	// Invalidate removes a user's entry, reporting whether one existed
	Invalidate(ctx context.Context, userEmail string) bool

	// CleanupExpired removes expired entries and returns how many were dropped
	CleanupExpired(ctx context.Context) int
}

// TierProvider is the read surface of the contact tier store; triage and any
// UI-facing tier queries must consult the same instance
type TierProvider interface {
	// Lookup returns the contact record for a sender, if known
	Lookup(ctx context.Context, userID, senderEmail string) (*Contact, bool)
}
