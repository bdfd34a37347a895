package tree

import (
	"context"
	"fmt"
	"testing"

	"github.com/mikey/inbox-intel/internal/adapters/store"
	"github.com/mikey/inbox-intel/internal/config"
	"github.com/mikey/inbox-intel/internal/core"
	"github.com/mikey/inbox-intel/internal/parse"
	"github.com/mikey/inbox-intel/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeLLM returns queued responses in order and records the prompts it saw
type fakeLLM struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	idx := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return "", fmt.Errorf("no response queued for call %d", idx)
}

const validTreeJSON = `{
	"topics": [{"name": "sales", "description": "pipeline work", "importance": "high"}],
	"people": [{"email": "alice@acme.com", "name": "Alice"}],
	"projects": [{"name": "pilot", "status": "active"}],
	"relationships": []
}`

func testTreeConfig() config.TreeConfig {
	cfg := config.NewFromViper(config.NewEmptyViper())
	return cfg.GetTree()
}

func newTestBuilder(llm core.LLMClient, cfg config.TreeConfig) (*Builder, *store.MemoryStore, *core.User) {
	memStore := store.NewMemoryStore()
	user := memStore.AddUser("owner@example.com", "Owner")
	logger := zap.NewNop()
	b := NewBuilder(llm, memStore, parse.NewParser(logger), utils.NewTextProcessor(logger), cfg, logger)
	return b, memStore, user
}

func seedMessages(t *testing.T, memStore *store.MemoryStore, user *core.User, n int) []*core.Message {
	t.Helper()
	msgs := make([]*core.Message, 0, n)
	for i := 0; i < n; i++ {
		msg := &core.Message{
			From:    fmt.Sprintf("sender%d@acme.com", i),
			To:      []string{user.Email},
			Subject: fmt.Sprintf("Update %d", i),
			Body:    "Some project discussion.",
		}
		_, err := memStore.SaveMessage(context.Background(), user.ID, msg)
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestGetOrBuildNothingToBuildFrom(t *testing.T) {
	llm := &fakeLLM{}
	b, _, user := newTestBuilder(llm, testTreeConfig())

	tree, err := b.GetOrBuild(context.Background(), user)
	require.NoError(t, err)
	assert.Nil(t, tree)
	assert.Zero(t, llm.calls)
}

func TestGetOrBuildBuildsOnce(t *testing.T) {
	llm := &fakeLLM{responses: []string{validTreeJSON}}
	b, memStore, user := newTestBuilder(llm, testTreeConfig())
	seedMessages(t, memStore, user, 3)
	ctx := context.Background()

	built, err := b.GetOrBuild(ctx, user)
	require.NoError(t, err)
	require.NotNil(t, built)
	assert.Equal(t, 1, built.Version)
	assert.Len(t, built.Topics, 1)

	// The second call serves the stored tree without another model call.
	again, err := b.GetOrBuild(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, built.Topics, again.Topics)
	assert.Equal(t, 1, llm.calls)
}

func TestGetOrBuildUnparseableResponseStaysTreeless(t *testing.T) {
	llm := &fakeLLM{responses: []string{"I'm sorry, I can't produce JSON today."}}
	b, memStore, user := newTestBuilder(llm, testTreeConfig())
	seedMessages(t, memStore, user, 2)
	ctx := context.Background()

	_, err := b.GetOrBuild(ctx, user)
	assert.Error(t, err)

	stored, err := memStore.GetTree(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestRefineWithoutTree(t *testing.T) {
	b, memStore, user := newTestBuilder(&fakeLLM{}, testTreeConfig())
	msgs := seedMessages(t, memStore, user, 1)

	_, err := b.Refine(context.Background(), user, msgs)
	assert.Error(t, err)
}

func TestRefineReplacesTreeAtomically(t *testing.T) {
	refined := `{
		"topics": [{"name": "sales"}, {"name": "hiring"}],
		"people": [{"email": "alice@acme.com"}],
		"projects": [],
		"relationships": []
	}`
	llm := &fakeLLM{responses: []string{validTreeJSON, refined}}
	b, memStore, user := newTestBuilder(llm, testTreeConfig())
	seedMessages(t, memStore, user, 2)
	ctx := context.Background()

	_, err := b.GetOrBuild(ctx, user)
	require.NoError(t, err)

	batch := seedMessages(t, memStore, user, 2)
	updated, err := b.Refine(ctx, user, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Len(t, updated.Topics, 2)

	stored, err := memStore.GetTree(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Version, stored.Version)
}

func TestRefineFailureRetainsPriorTree(t *testing.T) {
	llm := &fakeLLM{responses: []string{validTreeJSON, "garbage, not a tree"}}
	b, memStore, user := newTestBuilder(llm, testTreeConfig())
	seedMessages(t, memStore, user, 2)
	ctx := context.Background()

	built, err := b.GetOrBuild(ctx, user)
	require.NoError(t, err)

	batch := seedMessages(t, memStore, user, 2)
	_, err = b.Refine(ctx, user, batch)
	assert.Error(t, err)

	stored, err := memStore.GetTree(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, built.Version, stored.Version)
	assert.Equal(t, built.Topics, stored.Topics)
}

func TestRefineShardsOversizedBatches(t *testing.T) {
	cfg := testTreeConfig()
	cfg.MaxRefineBatch = 2

	// One build call plus three refine shards for a batch of five.
	llm := &fakeLLM{responses: []string{validTreeJSON, validTreeJSON, validTreeJSON, validTreeJSON}}
	b, memStore, user := newTestBuilder(llm, cfg)
	seedMessages(t, memStore, user, 2)
	ctx := context.Background()

	_, err := b.GetOrBuild(ctx, user)
	require.NoError(t, err)

	batch := seedMessages(t, memStore, user, 5)
	updated, err := b.Refine(ctx, user, batch)
	require.NoError(t, err)

	assert.Equal(t, 4, llm.calls)
	assert.Equal(t, 4, updated.Version) // one increment per shard
}

func TestRefineEmptyBatchIsNoop(t *testing.T) {
	llm := &fakeLLM{responses: []string{validTreeJSON}}
	b, memStore, user := newTestBuilder(llm, testTreeConfig())
	seedMessages(t, memStore, user, 1)
	ctx := context.Background()

	built, err := b.GetOrBuild(ctx, user)
	require.NoError(t, err)

	same, err := b.Refine(ctx, user, nil)
	require.NoError(t, err)
	assert.Equal(t, built.Version, same.Version)
	assert.Equal(t, 1, llm.calls)
}

func TestAssignBatchIsolatesFailures(t *testing.T) {
	assignment := `{"primary_topic": "sales", "importance_score": 0.7, "sentiment_score": 0.1, "summary": "ok"}`
	llm := &fakeLLM{
		responses: []string{assignment, "", assignment},
		errs:      []error{nil, fmt.Errorf("model timeout"), nil},
	}
	cfg := testTreeConfig()
	b, memStore, user := newTestBuilder(llm, cfg)
	msgs := seedMessages(t, memStore, user, 3)
	ctx := context.Background()

	tree := &core.KnowledgeTree{Topics: []core.Topic{{Name: "sales"}}, Version: 1}
	require.NoError(t, memStore.SaveTree(ctx, user.ID, tree))

	assigned := b.AssignBatch(ctx, msgs, tree)
	assert.Equal(t, 2, assigned)

	// The failed message stays unprocessed and eligible for a later pass.
	unprocessed, err := memStore.GetMessages(ctx, user.ID, core.MessageFilter{UnprocessedOnly: true})
	require.NoError(t, err)
	assert.Len(t, unprocessed, 1)

	// Already-processed messages are skipped on a second pass; only the
	// failed one is retried.
	assert.Equal(t, 0, b.AssignBatch(ctx, msgs, tree))
	assert.Equal(t, 4, llm.calls)
}
