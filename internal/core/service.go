package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// MessageClassifier is the triage decision tree
type MessageClassifier interface {
	// Classify yields exactly one processing decision per message and never
	// panics outward
	Classify(ctx context.Context, userID string, msg *Message) ProcessingDecision
}

// TreeManager maintains the per-user knowledge tree
type TreeManager interface {
	GetOrBuild(ctx context.Context, user *User) (*KnowledgeTree, error)
	Refine(ctx context.Context, user *User, batch []*Message) (*KnowledgeTree, error)
	Assign(ctx context.Context, msg *Message, tree *KnowledgeTree) (*AssignmentResult, error)
	AssignBatch(ctx context.Context, batch []*Message, tree *KnowledgeTree) int
}

// SynthesisRunner executes the five-stage strategic synthesis
type SynthesisRunner interface {
	Run(ctx context.Context, user *User) *IntelligenceResult
}

// IntelligenceService is the exposed surface consumed by the presentation
// layer. It owns the cache-then-pipeline flow; the only hard failure it
// recognizes is an unresolvable user.
type IntelligenceService struct {
	store        RecordStore
	classifier   MessageClassifier
	trees        TreeManager
	pipeline     SynthesisRunner
	cache        IntelligenceCache
	cacheEnabled bool
	cacheTTL     time.Duration
	logger       *zap.Logger
}

// NewIntelligenceService creates a new intelligence service
func NewIntelligenceService(
	store RecordStore,
	classifier MessageClassifier,
	trees TreeManager,
	pipeline SynthesisRunner,
	cache IntelligenceCache,
	cacheEnabled bool,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *IntelligenceService {
	return &IntelligenceService{
		store:        store,
		classifier:   classifier,
		trees:        trees,
		pipeline:     pipeline,
		cache:        cache,
		cacheEnabled: cacheEnabled,
		cacheTTL:     cacheTTL,
		logger:       logger,
	}
}

// Classify runs triage for a single message
func (s *IntelligenceService) Classify(ctx context.Context, userID string, msg *Message) ProcessingDecision {
	return s.classifier.Classify(ctx, userID, msg)
}

// GetOrBuildTree returns the user's knowledge tree, building it on first use
func (s *IntelligenceService) GetOrBuildTree(ctx context.Context, email string) (*KnowledgeTree, error) {
	user, err := s.resolveUser(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.trees.GetOrBuild(ctx, user)
}

// RefineTree folds a batch of new messages into the user's tree
func (s *IntelligenceService) RefineTree(ctx context.Context, email string, batch []*Message) (*KnowledgeTree, error) {
	user, err := s.resolveUser(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.trees.Refine(ctx, user, batch)
}

// Assign classifies one message against the user's current tree
func (s *IntelligenceService) Assign(ctx context.Context, msg *Message, tree *KnowledgeTree) (*AssignmentResult, error) {
	return s.trees.Assign(ctx, msg, tree)
}

// GenerateStrategicIntelligence produces the full intelligence result for a
// user, from cache when a fresh entry exists and forceRefresh is false.
// Apart from user resolution every failure degrades to empty sub-lists in a
// success envelope.
func (s *IntelligenceService) GenerateStrategicIntelligence(ctx context.Context, email string, forceRefresh bool) (*IntelligenceResult, error) {
	user, err := s.resolveUser(ctx, email)
	if err != nil {
		return nil, err
	}

	if s.cacheEnabled && !forceRefresh {
		if cached, ok := s.cache.Get(ctx, user.Email); ok {
			s.logger.Debug("Intelligence cache hit", zap.String("user", user.Email))
			// Flag a copy; the stored value is shared with concurrent hits
			// for the same user and must stay untouched.
			hit := *cached
			hit.FromCache = true
			return &hit, nil
		}
	}

	// Keep the tree current before synthesis: build on first use, then
	// assign any unprocessed messages so they drop out of the next refine
	// selection.
	if tree, err := s.trees.GetOrBuild(ctx, user); err != nil {
		s.logger.Warn("Tree unavailable for synthesis, continuing without it",
			zap.String("user", user.Email),
			zap.Error(err))
	} else if tree != nil {
		unprocessed, err := s.store.GetMessages(ctx, user.ID, MessageFilter{UnprocessedOnly: true})
		if err != nil {
			s.logger.Warn("Could not load unprocessed batch", zap.Error(err))
		} else if len(unprocessed) > 0 {
			s.trees.AssignBatch(ctx, unprocessed, tree)
		}
	}

	result := s.pipeline.Run(ctx, user)

	if s.cacheEnabled {
		s.cache.Set(ctx, user.Email, result, s.cacheTTL)
	}

	return result, nil
}

// InvalidateCache drops the cached result for a user
func (s *IntelligenceService) InvalidateCache(ctx context.Context, email string) bool {
	return s.cache.Invalidate(ctx, email)
}

func (s *IntelligenceService) resolveUser(ctx context.Context, email string) (*User, error) {
	user, err := s.store.GetUser(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user %s: %w", email, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
