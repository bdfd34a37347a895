package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/inbox-intel/internal/config"
	"github.com/mikey/inbox-intel/internal/core"
	"github.com/mikey/inbox-intel/internal/engagement"
	"github.com/mikey/inbox-intel/internal/keywords"
	"github.com/mikey/inbox-intel/internal/parse"
	"github.com/mikey/inbox-intel/internal/triage"
	"github.com/mikey/inbox-intel/internal/utils"
	"go.uber.org/zap"
)

const contextsPromptFormat = `You are a business intelligence analyst. From the communication summary below, synthesize the distinct business contexts it implies. A context is one coherent business situation spanning multiple messages.

%s

Respond with a JSON array of objects, each containing:
- name, description
- type: one of "opportunity", "relationship", "project", "challenge"
- key_people: array of names or addresses
- status, impact
- priority_score: number between 0 and 1
- confidence_level: number between 0 and 1

Respond only with the JSON array and nothing else.`

const insightsPromptFormat = `You are a business intelligence analyst. Given these business contexts, identify the strategic patterns that cut across them.

Contexts:
%s

Respond with a JSON array of objects, each containing:
- title, description
- type: one of "trend", "opportunity", "risk", "connection"
- evidence: array of short attributions
- implications, response
- confidence_level: number between 0 and 1

Respond only with the JSON array and nothing else.`

const recommendationsPromptFormat = `You are a business intelligence analyst. Given these contexts and insights, produce concrete strategic recommendations.

Contexts:
%s

Insights:
%s

Respond with a JSON array of objects, each containing:
- title, description, rationale, impact_analysis
- urgency: one of "critical", "high", "medium", "low"
- estimated_impact: one of "high", "medium", "low"
- time_sensitivity
- related_contexts: array of context names
- actions: array of suggested actions
- success_metrics: array of strings
- confidence_score: number between 0 and 1

Respond only with the JSON array and nothing else.`

// Pipeline is the five-stage strategic synthesis: ingest, synthesize
// contexts, analyze patterns, generate recommendations, compile brief. Each
// stage is pure with respect to its inputs and tolerates empty input from
// the previous stage; a stage failure yields an empty output list for that
// stage, never an aborted run.
type Pipeline struct {
	llm        core.LLMClient
	classifier *triage.Classifier
	tiers      *engagement.TierStore
	store      core.RecordStore
	parser     *parse.Parser
	text       *utils.TextProcessor
	cfg        config.SynthesisConfig
	logger     *zap.Logger
}

// NewPipeline creates a new synthesis pipeline
func NewPipeline(
	llm core.LLMClient,
	classifier *triage.Classifier,
	tiers *engagement.TierStore,
	store core.RecordStore,
	parser *parse.Parser,
	text *utils.TextProcessor,
	cfg config.SynthesisConfig,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		llm:        llm,
		classifier: classifier,
		tiers:      tiers,
		store:      store,
		parser:     parser,
		text:       text,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes all five stages and returns a populated success envelope.
// Sub-lists may be empty; the stage statuses say why.
func (p *Pipeline) Run(ctx context.Context, user *core.User) *core.IntelligenceResult {
	result := &core.IntelligenceResult{
		UserEmail:   user.Email,
		GeneratedAt: time.Now(),
	}

	summary, st := p.ingest(ctx, user)
	result.Stages = append(result.Stages, st)

	contexts, st := p.synthesizeContexts(ctx, summary)
	result.Contexts = contexts
	result.Stages = append(result.Stages, st)

	insights, st := p.analyzePatterns(ctx, contexts)
	result.Insights = insights
	result.Stages = append(result.Stages, st)

	recommendations, st := p.generateRecommendations(ctx, contexts, insights)
	result.Recommendations = recommendations
	result.Stages = append(result.Stages, st)

	result.Brief = CompileBrief(contexts, insights, recommendations, p.cfg.TopN, result.GeneratedAt)
	result.Stages = append(result.Stages, core.StageStatus{Stage: "compile", State: core.StageOK})

	return result
}

// ingest builds the content summary the later stages consume, restricted to
// triage-approved messages and tier-qualifying contacts. If the engagement
// subsystem fails the stage degrades to an unfiltered summary at smaller
// limits rather than failing the pipeline.
func (p *Pipeline) ingest(ctx context.Context, user *core.User) (core.ContentSummary, core.StageStatus) {
	messages, err := p.store.GetMessages(ctx, user.ID, core.MessageFilter{
		InboundOnly: true,
		Limit:       p.cfg.MaxMessages,
	})
	if err != nil {
		p.logger.Warn("Ingest could not load messages", zap.Error(err))
		return core.ContentSummary{Degraded: true},
			core.StageStatus{Stage: "ingest", State: core.StageFailed, Reason: err.Error()}
	}

	contacts, err := p.tiers.Contacts(ctx, user.ID)
	if err != nil {
		// Engagement subsystem down: fall back to an unfiltered summary
		// capped at the degraded limit.
		p.logger.Warn("Engagement unavailable, degraded ingest", zap.Error(err))
		capped := messages
		if len(capped) > p.cfg.DegradedMaxMessages {
			capped = capped[:p.cfg.DegradedMaxMessages]
		}
		summary := core.ContentSummary{
			MessageCount:    len(capped),
			TotalCount:      len(messages),
			EfficiencyRatio: ratio(len(capped), len(messages)),
			Highlights:      p.highlights(capped),
			Degraded:        true,
		}
		return summary, core.StageStatus{Stage: "ingest", State: core.StageOK, Reason: "degraded: engagement unavailable"}
	}

	var filtered []*core.Message
	for _, msg := range messages {
		decision := p.classifier.Classify(ctx, user.ID, msg)
		if decision.Action == core.ActionAnalyzeWithAI || decision.Action == core.ActionConditionalAnalyze {
			filtered = append(filtered, msg)
		}
	}

	topContacts := contacts
	for i, c := range topContacts {
		if c.Tier == core.TierLast {
			topContacts = topContacts[:i]
			break
		}
	}
	if len(topContacts) > p.cfg.TopN {
		topContacts = topContacts[:p.cfg.TopN]
	}

	summary := core.ContentSummary{
		MessageCount:    len(filtered),
		TotalCount:      len(messages),
		EfficiencyRatio: ratio(len(filtered), len(messages)),
		TopContacts:     topContacts,
		Highlights:      p.highlights(filtered),
	}

	p.logger.Debug("Ingest summary",
		zap.Int("filtered", summary.MessageCount),
		zap.Int("total", summary.TotalCount),
		zap.Float64("efficiency_ratio", summary.EfficiencyRatio))

	state := core.StageOK
	if summary.MessageCount == 0 {
		state = core.StageEmpty
	}
	return summary, core.StageStatus{Stage: "ingest", State: state}
}

func (p *Pipeline) synthesizeContexts(ctx context.Context, summary core.ContentSummary) ([]core.BusinessContext, core.StageStatus) {
	if summary.MessageCount == 0 {
		return nil, core.StageStatus{Stage: "contexts", State: core.StageEmpty, Reason: "no approved content"}
	}

	prompt := fmt.Sprintf(contextsPromptFormat, p.renderSummary(summary))
	raw, err := p.llm.Complete(ctx, prompt, p.cfg.MaxTokens)
	if err != nil {
		p.logger.Warn("Context synthesis call failed", zap.Error(err))
		return nil, core.StageStatus{Stage: "contexts", State: core.StageFailed, Reason: err.Error()}
	}

	contexts := p.parser.ParseContexts(raw)
	if len(contexts) == 0 {
		// Zero contexts is a valid outcome, not an error.
		return nil, core.StageStatus{Stage: "contexts", State: core.StageEmpty}
	}
	return contexts, core.StageStatus{Stage: "contexts", State: core.StageOK}
}

func (p *Pipeline) analyzePatterns(ctx context.Context, contexts []core.BusinessContext) ([]core.StrategicInsight, core.StageStatus) {
	if len(contexts) == 0 {
		return nil, core.StageStatus{Stage: "insights", State: core.StageEmpty, Reason: "no contexts"}
	}

	contextsJSON, err := json.Marshal(contexts)
	if err != nil {
		return nil, core.StageStatus{Stage: "insights", State: core.StageFailed, Reason: err.Error()}
	}

	prompt := fmt.Sprintf(insightsPromptFormat, string(contextsJSON))
	raw, err := p.llm.Complete(ctx, prompt, p.cfg.MaxTokens)
	if err != nil {
		p.logger.Warn("Pattern analysis call failed", zap.Error(err))
		return nil, core.StageStatus{Stage: "insights", State: core.StageFailed, Reason: err.Error()}
	}

	insights := p.parser.ParseInsights(raw)
	if len(insights) == 0 {
		return nil, core.StageStatus{Stage: "insights", State: core.StageEmpty}
	}
	return insights, core.StageStatus{Stage: "insights", State: core.StageOK}
}

func (p *Pipeline) generateRecommendations(ctx context.Context, contexts []core.BusinessContext, insights []core.StrategicInsight) ([]core.StrategicRecommendation, core.StageStatus) {
	if len(contexts) == 0 && len(insights) == 0 {
		return nil, core.StageStatus{Stage: "recommendations", State: core.StageEmpty, Reason: "no contexts or insights"}
	}

	contextsJSON, err := json.Marshal(contexts)
	if err != nil {
		return nil, core.StageStatus{Stage: "recommendations", State: core.StageFailed, Reason: err.Error()}
	}
	insightsJSON, err := json.Marshal(insights)
	if err != nil {
		return nil, core.StageStatus{Stage: "recommendations", State: core.StageFailed, Reason: err.Error()}
	}

	prompt := fmt.Sprintf(recommendationsPromptFormat, string(contextsJSON), string(insightsJSON))
	raw, err := p.llm.Complete(ctx, prompt, p.cfg.MaxTokens)
	if err != nil {
		p.logger.Warn("Recommendation call failed", zap.Error(err))
		return nil, core.StageStatus{Stage: "recommendations", State: core.StageFailed, Reason: err.Error()}
	}

	recommendations := p.parser.ParseRecommendations(raw)
	if len(recommendations) == 0 {
		return nil, core.StageStatus{Stage: "recommendations", State: core.StageEmpty}
	}
	return recommendations, core.StageStatus{Stage: "recommendations", State: core.StageOK}
}

// highlights renders triage-approved messages into prompt-sized lines,
// preferring the assignment summary when one exists
func (p *Pipeline) highlights(messages []*core.Message) []string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		line := fmt.Sprintf("From %s: %s", msg.From, msg.Subject)
		if msg.Assignment != nil && msg.Assignment.Summary != "" {
			line += " - " + msg.Assignment.Summary
		} else if msg.BodyPreview != "" {
			line += " - " + p.text.Preview(msg.BodyPreview, 200)
		}
		lines = append(lines, line)
	}
	return lines
}

func (p *Pipeline) renderSummary(summary core.ContentSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Messages considered: %d of %d (efficiency %.2f)\n",
		summary.MessageCount, summary.TotalCount, summary.EfficiencyRatio)

	if len(summary.TopContacts) > 0 {
		sb.WriteString("\nKey contacts:\n")
		for _, c := range summary.TopContacts {
			topics := make([]string, len(c.Topics))
			for i, topic := range c.Topics {
				topics[i] = keywords.Title(topic)
			}
			fmt.Fprintf(&sb, "- %s (tier %s, score %.2f, topics: %s)\n",
				c.Email, c.Tier, c.EngagementScore, strings.Join(topics, ", "))
		}
	}

	sb.WriteString("\nMessage highlights:\n")
	for _, line := range summary.Highlights {
		fmt.Fprintf(&sb, "- %s\n", line)
	}
	return sb.String()
}

func ratio(filtered, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(filtered) / float64(total)
}
