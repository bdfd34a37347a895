package tree

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/inbox-intel/internal/config"
	"github.com/mikey/inbox-intel/internal/core"
	"github.com/mikey/inbox-intel/internal/parse"
	"github.com/mikey/inbox-intel/internal/utils"
	"go.uber.org/zap"
)

const buildPromptFormat = `You are a communication analyst. Build a structured knowledge tree from the following batch of email messages.
Respond with a single JSON object containing:
- topics: array of {name, description, importance, subtopics, frequency}
- people: array of {email, name, role, company, relationship_strength, primary_topics}
- projects: array of {name, status, stakeholders}
- relationships: array of {from, to, type}

Names must be unique within each array.

Messages:
%s

Respond only with the JSON object and nothing else.`

const refinePromptFormat = `You are a communication analyst maintaining a knowledge tree built from email history.
Here is the current tree:
%s

Here is a batch of new messages not yet reflected in the tree:
%s

Return the complete updated tree as a single JSON object with the same shape (topics, people, projects, relationships). Return the full tree, not a diff. Names must be unique within each array.

Respond only with the JSON object and nothing else.`

// Builder maintains one knowledge tree per user: built once from a message
// batch, then incrementally refined as new batches arrive. History is never
// fully reprocessed.
type Builder struct {
	llm    core.LLMClient
	store  core.RecordStore
	parser *parse.Parser
	text   *utils.TextProcessor
	cfg    config.TreeConfig
	logger *zap.Logger
}

// NewBuilder creates a new knowledge tree builder
func NewBuilder(
	llm core.LLMClient,
	store core.RecordStore,
	parser *parse.Parser,
	text *utils.TextProcessor,
	cfg config.TreeConfig,
	logger *zap.Logger,
) *Builder {
	return &Builder{
		llm:    llm,
		store:  store,
		parser: parser,
		text:   text,
		cfg:    cfg,
		logger: logger,
	}
}

// GetOrBuild returns the stored tree, building one from recent unprocessed
// messages when none exists yet. Returns nil without error when there is
// neither a tree nor material to build one from. Repeated calls without an
// intervening refine return identical tree content.
func (b *Builder) GetOrBuild(ctx context.Context, user *core.User) (*core.KnowledgeTree, error) {
	existing, err := b.store.GetTree(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tree: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	batch, err := b.store.GetMessages(ctx, user.ID, core.MessageFilter{
		UnprocessedOnly: true,
		Limit:           b.cfg.BuildBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load build batch: %w", err)
	}
	if len(batch) == 0 {
		return nil, nil
	}

	prompt := fmt.Sprintf(buildPromptFormat, b.formatBatch(batch))
	raw, err := b.llm.Complete(ctx, prompt, b.cfg.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("tree build call failed: %w", err)
	}

	built, err := b.parser.ParseTree(raw)
	if err != nil {
		// Remain in the no-tree state; keep the raw response around for
		// diagnosis.
		b.logger.Error("Tree build response unparseable",
			zap.String("user_id", user.ID),
			zap.String("raw_response", raw),
			zap.Error(err))
		return nil, fmt.Errorf("tree build unparseable: %w", err)
	}

	built.Version = 1
	built.BuiltAt = time.Now()
	if err := b.store.SaveTree(ctx, user.ID, built); err != nil {
		return nil, fmt.Errorf("failed to persist built tree: %w", err)
	}

	b.logger.Info("Built knowledge tree",
		zap.String("user_id", user.ID),
		zap.Int("messages", len(batch)),
		zap.Int("topics", len(built.Topics)),
		zap.Int("people", len(built.People)))

	return built, nil
}

// Refine folds a batch of new messages into the existing tree. The model
// returns a full replacement tree; the stored tree is replaced atomically
// only when the response parses, so a bad response leaves the prior tree
// untouched. Oversized batches are sharded into sequential refine calls,
// each shard folding into the result of the previous one.
func (b *Builder) Refine(ctx context.Context, user *core.User, batch []*core.Message) (*core.KnowledgeTree, error) {
	current, err := b.store.GetTree(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tree: %w", err)
	}
	if current == nil {
		return nil, fmt.Errorf("no tree to refine")
	}
	if len(batch) == 0 {
		return current, nil
	}

	working := current
	for start := 0; start < len(batch); start += b.cfg.MaxRefineBatch {
		end := start + b.cfg.MaxRefineBatch
		if end > len(batch) {
			end = len(batch)
		}
		shard := batch[start:end]

		refined, err := b.refineShard(ctx, working, shard)
		if err != nil {
			// The prior persisted tree is retained unchanged; no partial
			// overwrite.
			b.logger.Error("Refine shard failed, tree retained",
				zap.String("user_id", user.ID),
				zap.Int("shard_start", start),
				zap.Int("shard_size", len(shard)),
				zap.Error(err))
			return nil, err
		}

		refined.Version = working.Version + 1
		refined.BuiltAt = time.Now()
		if err := b.store.SaveTree(ctx, user.ID, refined); err != nil {
			return nil, fmt.Errorf("failed to persist refined tree: %w", err)
		}
		working = refined
	}

	b.logger.Info("Refined knowledge tree",
		zap.String("user_id", user.ID),
		zap.Int("messages", len(batch)),
		zap.Int("version", working.Version))

	return working, nil
}

func (b *Builder) refineShard(ctx context.Context, current *core.KnowledgeTree, shard []*core.Message) (*core.KnowledgeTree, error) {
	treeJSON, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize current tree: %w", err)
	}

	prompt := fmt.Sprintf(refinePromptFormat, string(treeJSON), b.formatBatch(shard))
	raw, err := b.llm.Complete(ctx, prompt, b.cfg.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("tree refine call failed: %w", err)
	}

	refined, err := b.parser.ParseTree(raw)
	if err != nil {
		b.logger.Debug("Unparseable refine response",
			zap.String("raw_response", raw))
		return nil, fmt.Errorf("tree refine unparseable: %w", err)
	}
	return refined, nil
}

// formatBatch renders messages into the prompt digest, with bodies truncated
// per message so a batch stays within the provider's limits
func (b *Builder) formatBatch(batch []*core.Message) string {
	perMessage := 0
	if len(batch) > 0 {
		// Rough per-message byte budget derived from the token ceiling.
		perMessage = (b.cfg.MaxTokens * 3) / len(batch)
	}

	var sb strings.Builder
	for i, msg := range batch {
		fmt.Fprintf(&sb, "--- Message %d ---\n", i+1)
		fmt.Fprintf(&sb, "From: %s\n", msg.From)
		fmt.Fprintf(&sb, "To: %s\n", strings.Join(msg.To, ", "))
		fmt.Fprintf(&sb, "Date: %s\n", msg.SentAt.Format(time.RFC1123Z))
		fmt.Fprintf(&sb, "Subject: %s\n", msg.Subject)
		fmt.Fprintf(&sb, "%s\n\n", b.text.ProcessText(msg.Body, perMessage))
	}
	return sb.String()
}
