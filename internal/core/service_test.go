package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	users       map[string]*User
	unprocessed []*Message
	getUserErr  error
}

func (f *fakeStore) GetUser(ctx context.Context, email string) (*User, error) {
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	return f.users[email], nil
}

func (f *fakeStore) GetMessages(ctx context.Context, userID string, filter MessageFilter) ([]*Message, error) {
	if filter.UnprocessedOnly {
		return f.unprocessed, nil
	}
	return nil, nil
}

func (f *fakeStore) SaveMessage(ctx context.Context, userID string, msg *Message) (string, error) {
	return msg.ID, nil
}

func (f *fakeStore) MarkProcessed(ctx context.Context, messageID string, res *AssignmentResult) error {
	return nil
}

func (f *fakeStore) GetTree(ctx context.Context, userID string) (*KnowledgeTree, error) {
	return nil, nil
}

func (f *fakeStore) SaveTree(ctx context.Context, userID string, tree *KnowledgeTree) error {
	return nil
}

type fakeTrees struct {
	tree        *KnowledgeTree
	assignCalls int
}

func (f *fakeTrees) GetOrBuild(ctx context.Context, user *User) (*KnowledgeTree, error) {
	return f.tree, nil
}

func (f *fakeTrees) Refine(ctx context.Context, user *User, batch []*Message) (*KnowledgeTree, error) {
	return f.tree, nil
}

func (f *fakeTrees) Assign(ctx context.Context, msg *Message, tree *KnowledgeTree) (*AssignmentResult, error) {
	return &AssignmentResult{}, nil
}

func (f *fakeTrees) AssignBatch(ctx context.Context, batch []*Message, tree *KnowledgeTree) int {
	f.assignCalls++
	return len(batch)
}

type fakePipeline struct {
	runs int
}

func (f *fakePipeline) Run(ctx context.Context, user *User) *IntelligenceResult {
	f.runs++
	return &IntelligenceResult{UserEmail: user.Email, GeneratedAt: time.Now()}
}

type fakeCache struct {
	entries map[string]*IntelligenceResult
	sets    int
}

func (f *fakeCache) Get(ctx context.Context, userEmail string) (*IntelligenceResult, bool) {
	r, ok := f.entries[userEmail]
	return r, ok
}

func (f *fakeCache) Set(ctx context.Context, userEmail string, result *IntelligenceResult, ttl time.Duration) {
	if f.entries == nil {
		f.entries = make(map[string]*IntelligenceResult)
	}
	f.entries[userEmail] = result
	f.sets++
}

func (f *fakeCache) Invalidate(ctx context.Context, userEmail string) bool {
	_, ok := f.entries[userEmail]
	delete(f.entries, userEmail)
	return ok
}

func (f *fakeCache) CleanupExpired(ctx context.Context) int { return 0 }

type fakeClassifier struct{}

func (f *fakeClassifier) Classify(ctx context.Context, userID string, msg *Message) ProcessingDecision {
	return ProcessingDecision{Action: ActionSkip}
}

func newTestService(store *fakeStore, trees *fakeTrees, pipeline *fakePipeline, cache *fakeCache) *IntelligenceService {
	return NewIntelligenceService(store, &fakeClassifier{}, trees, pipeline, cache, true, 30*time.Minute, zap.NewNop())
}

func TestGenerateStrategicIntelligenceUnknownUser(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeTrees{}, &fakePipeline{}, &fakeCache{})

	_, err := svc.GenerateStrategicIntelligence(context.Background(), "ghost@example.com", false)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGenerateStrategicIntelligenceStoreFailure(t *testing.T) {
	store := &fakeStore{getUserErr: errors.New("connection refused")}
	svc := newTestService(store, &fakeTrees{}, &fakePipeline{}, &fakeCache{})

	_, err := svc.GenerateStrategicIntelligence(context.Background(), "a@example.com", false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestGenerateStrategicIntelligenceCacheHit(t *testing.T) {
	user := &User{ID: "u1", Email: "a@example.com"}
	store := &fakeStore{users: map[string]*User{user.Email: user}}
	pipeline := &fakePipeline{}
	cache := &fakeCache{entries: map[string]*IntelligenceResult{
		user.Email: {UserEmail: user.Email},
	}}
	svc := newTestService(store, &fakeTrees{}, pipeline, cache)

	result, err := svc.GenerateStrategicIntelligence(context.Background(), user.Email, false)
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Zero(t, pipeline.runs)
}

func TestGenerateStrategicIntelligenceCacheHitReturnsCopy(t *testing.T) {
	user := &User{ID: "u1", Email: "a@example.com"}
	store := &fakeStore{users: map[string]*User{user.Email: user}}
	stored := &IntelligenceResult{UserEmail: user.Email}
	cache := &fakeCache{entries: map[string]*IntelligenceResult{user.Email: stored}}
	svc := newTestService(store, &fakeTrees{}, &fakePipeline{}, cache)

	// Concurrent hits for the same user all read the one stored entry; the
	// FromCache flag must land on per-caller copies only.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				result, err := svc.GenerateStrategicIntelligence(context.Background(), user.Email, false)
				if err != nil || !result.FromCache {
					t.Errorf("unexpected hit result: %v fromCache=%v", err, result.FromCache)
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.False(t, stored.FromCache)
}

func TestGenerateStrategicIntelligenceForceRefresh(t *testing.T) {
	user := &User{ID: "u1", Email: "a@example.com"}
	store := &fakeStore{users: map[string]*User{user.Email: user}}
	pipeline := &fakePipeline{}
	cache := &fakeCache{entries: map[string]*IntelligenceResult{
		user.Email: {UserEmail: user.Email},
	}}
	svc := newTestService(store, &fakeTrees{}, pipeline, cache)

	result, err := svc.GenerateStrategicIntelligence(context.Background(), user.Email, true)
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, 1, pipeline.runs)
	assert.Equal(t, 1, cache.sets) // refreshed result replaces the cached one
}

func TestGenerateStrategicIntelligenceAssignsBeforeSynthesis(t *testing.T) {
	user := &User{ID: "u1", Email: "a@example.com"}
	store := &fakeStore{
		users:       map[string]*User{user.Email: user},
		unprocessed: []*Message{{ID: "m1"}, {ID: "m2"}},
	}
	trees := &fakeTrees{tree: &KnowledgeTree{Version: 1}}
	pipeline := &fakePipeline{}
	svc := newTestService(store, trees, pipeline, &fakeCache{})

	_, err := svc.GenerateStrategicIntelligence(context.Background(), user.Email, false)
	require.NoError(t, err)
	assert.Equal(t, 1, trees.assignCalls)
	assert.Equal(t, 1, pipeline.runs)
}

func TestGenerateStrategicIntelligenceNoTreeStillRuns(t *testing.T) {
	user := &User{ID: "u1", Email: "a@example.com"}
	store := &fakeStore{users: map[string]*User{user.Email: user}}
	trees := &fakeTrees{} // GetOrBuild yields no tree
	pipeline := &fakePipeline{}
	svc := newTestService(store, trees, pipeline, &fakeCache{})

	result, err := svc.GenerateStrategicIntelligence(context.Background(), user.Email, false)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Zero(t, trees.assignCalls)
}

func TestInvalidateCache(t *testing.T) {
	user := &User{ID: "u1", Email: "a@example.com"}
	store := &fakeStore{users: map[string]*User{user.Email: user}}
	cache := &fakeCache{entries: map[string]*IntelligenceResult{
		user.Email: {UserEmail: user.Email},
	}}
	svc := newTestService(store, &fakeTrees{}, &fakePipeline{}, cache)

	assert.True(t, svc.InvalidateCache(context.Background(), user.Email))
	assert.False(t, svc.InvalidateCache(context.Background(), user.Email))
}
