package tree

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mikey/inbox-intel/internal/core"
	"go.uber.org/zap"
)

const assignPromptFormat = `You are a communication analyst. Classify one email message against an existing knowledge tree. Do not modify the tree.

Known topics: %s

Message:
From: %s
Subject: %s
Body:
%s

Respond with a JSON object containing:
- primary_topic: the best-matching topic name from the list (or "other")
- importance_score: number between 0 and 1
- sentiment_score: number between -1 and 1
- summary: one-sentence summary

Respond only with the JSON object and nothing else.`

// Assign classifies a single message against the current tree and returns
// message-level metadata. Tree structure is never mutated by assignment.
func (b *Builder) Assign(ctx context.Context, msg *core.Message, t *core.KnowledgeTree) (*core.AssignmentResult, error) {
	topicNames := make([]string, 0, len(t.Topics))
	for _, topic := range t.Topics {
		topicNames = append(topicNames, topic.Name)
	}
	topicsJSON, err := json.Marshal(topicNames)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize topic list: %w", err)
	}

	prompt := fmt.Sprintf(assignPromptFormat,
		string(topicsJSON),
		msg.From,
		msg.Subject,
		b.text.ProcessText(msg.Body, b.cfg.AssignMaxTokens*3))

	raw, err := b.llm.Complete(ctx, prompt, b.cfg.AssignMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("assignment call failed: %w", err)
	}

	res, err := b.parser.ParseAssignment(raw)
	if err != nil {
		b.logger.Debug("Unparseable assignment response",
			zap.String("message_id", msg.ID),
			zap.String("raw_response", raw))
		return nil, err
	}
	res.AssignedAt = time.Now()
	return res, nil
}

// AssignBatch assigns each message in the batch and marks successes as
// processed. Failures are per-message: one bad message never aborts the
// rest, and processed messages drop out of the next refine cycle's
// unprocessed selection.
func (b *Builder) AssignBatch(ctx context.Context, batch []*core.Message, t *core.KnowledgeTree) int {
	assigned := 0
	for _, msg := range batch {
		if msg.Processed() {
			continue
		}
		res, err := b.Assign(ctx, msg, t)
		if err != nil {
			b.logger.Warn("Assignment failed for message",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			continue
		}
		if err := b.store.MarkProcessed(ctx, msg.ID, res); err != nil {
			b.logger.Warn("Failed to mark message processed",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			continue
		}
		msg.Assignment = res
		assigned++
	}

	b.logger.Debug("Assigned message batch",
		zap.Int("batch_size", len(batch)),
		zap.Int("assigned", assigned))

	return assigned
}
