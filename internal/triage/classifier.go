package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/inbox-intel/internal/config"
	"github.com/mikey/inbox-intel/internal/core"
	"github.com/mikey/inbox-intel/internal/keywords"
	"go.uber.org/zap"
)

// Classifier decides, per incoming message, whether it merits expensive
// analysis. It is a strict-order decision tree: the first matching branch
// wins. Classification is a total function; any internal failure degrades to
// SKIP rather than raising, since callers iterate large batches.
type Classifier struct {
	tiers    core.TierProvider
	cfg      config.TriageConfig
	business *keywords.Extractor
	promo    *keywords.Extractor
	logger   *zap.Logger
}

// NewClassifier creates a new triage classifier
func NewClassifier(tiers core.TierProvider, cfg config.TriageConfig, logger *zap.Logger) *Classifier {
	return &Classifier{
		tiers:    tiers,
		cfg:      cfg,
		business: keywords.NewExtractor(cfg.BusinessKeywords, 0),
		promo:    keywords.NewExtractor(cfg.PromoKeywords, 0),
		logger:   logger,
	}
}

// Classify evaluates the decision tree for one message
func (c *Classifier) Classify(ctx context.Context, userID string, msg *core.Message) (decision core.ProcessingDecision) {
	// The handler must not touch msg; a nil message is one of the panics it
	// recovers from.
	var sender string
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("Triage degraded to skip",
				zap.String("sender", sender),
				zap.Any("panic", r))
			decision = core.ProcessingDecision{
				Action:     core.ActionSkip,
				Confidence: core.ConfidenceLow,
				Reason:     fmt.Sprintf("classification failed: %v", r),
				DecidedAt:  time.Now(),
			}
		}
	}()

	sender = strings.ToLower(strings.TrimSpace(msg.From))
	subject := msg.Subject
	preview := msg.BodyPreview
	if preview == "" {
		preview = msg.Body
	}

	// Branch 1: known engaged contact.
	if contact, ok := c.tiers.Lookup(ctx, userID, sender); ok {
		if contact.Tier == core.Tier1 || contact.Tier == core.Tier2 {
			cost := c.cfg.TierCost
			if contact.Tier == core.Tier1 {
				cost = c.cfg.TierCostHigh
			}
			return core.ProcessingDecision{
				Action:        core.ActionAnalyzeWithAI,
				Confidence:    core.ConfidenceHigh,
				Reason:        fmt.Sprintf("sender is a %s contact", contact.Tier),
				Priority:      contact.EngagementScore,
				EstimatedCost: cost,
				DecidedAt:     time.Now(),
			}
		}
	}

	// Branch 2: automated or bulk sender.
	if reason, ok := c.automatedSender(sender, subject); ok {
		return core.ProcessingDecision{
			Action:     core.ActionSkip,
			Confidence: core.ConfidenceHigh,
			Reason:     reason,
			DecidedAt:  time.Now(),
		}
	}

	// Branch 3: business-relevant content or a non-personal sender domain.
	if matched := c.business.Extract(subject + " " + preview); len(matched) > 0 {
		return core.ProcessingDecision{
			Action:        core.ActionConditionalAnalyze,
			Confidence:    core.ConfidenceMedium,
			Reason:        fmt.Sprintf("business keywords: %s", strings.Join(matched, ", ")),
			Priority:      c.cfg.ConditionalPriority,
			EstimatedCost: c.cfg.ConditionalCost,
			DecidedAt:     time.Now(),
		}
	}
	if domain := domainOf(sender); domain != "" && !c.isPersonalDomain(domain) {
		return core.ProcessingDecision{
			Action:        core.ActionConditionalAnalyze,
			Confidence:    core.ConfidenceMedium,
			Reason:        fmt.Sprintf("unknown sender from organization domain %s", domain),
			Priority:      c.cfg.ConditionalPriority,
			EstimatedCost: c.cfg.ConditionalCost,
			DecidedAt:     time.Now(),
		}
	}

	// Branch 4: deliberate default, not an error.
	return core.ProcessingDecision{
		Action:     core.ActionSkip,
		Confidence: core.ConfidenceHigh,
		Reason:     "no engagement history and no business relevance",
		DecidedAt:  time.Now(),
	}
}

// automatedSender applies the bulk-mail heuristics: local-part automation
// markers, known bulk-provider domains, and promotional subject keywords
func (c *Classifier) automatedSender(sender, subject string) (string, bool) {
	for _, marker := range c.cfg.AutomationMarkers {
		if marker != "" && strings.Contains(sender, marker) {
			return fmt.Sprintf("automated sender marker %q", marker), true
		}
	}

	domain := domainOf(sender)
	for _, bulk := range c.cfg.BulkDomains {
		if bulk != "" && (domain == bulk || strings.HasSuffix(domain, "."+bulk)) {
			return fmt.Sprintf("bulk mail provider %s", bulk), true
		}
	}

	if matched := c.promo.Extract(subject); len(matched) > 0 {
		return fmt.Sprintf("promotional subject: %s", strings.Join(matched, ", ")), true
	}

	return "", false
}

func (c *Classifier) isPersonalDomain(domain string) bool {
	for _, personal := range c.cfg.PersonalDomains {
		if strings.EqualFold(domain, personal) {
			return true
		}
	}
	return false
}

func domainOf(addr string) string {
	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(parts[1])
}
