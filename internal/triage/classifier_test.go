package triage

import (
	"context"
	"testing"

	"github.com/mikey/inbox-intel/internal/config"
	"github.com/mikey/inbox-intel/internal/core"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// stubTiers serves canned contacts and optionally panics to exercise the
// degradation path
type stubTiers struct {
	contacts map[string]*core.Contact
	panics   bool
}

func (s *stubTiers) Lookup(ctx context.Context, userID, senderEmail string) (*core.Contact, bool) {
	if s.panics {
		panic("tier store exploded")
	}
	c, ok := s.contacts[senderEmail]
	return c, ok
}

func testTriageConfig() config.TriageConfig {
	cfg := config.NewFromViper(config.NewEmptyViper())
	return cfg.GetTriage()
}

func newTestClassifier(tiers core.TierProvider) *Classifier {
	return NewClassifier(tiers, testTriageConfig(), zap.NewNop())
}

func TestClassifyTier1Contact(t *testing.T) {
	tiers := &stubTiers{contacts: map[string]*core.Contact{
		"vip@acme.com": {Email: "vip@acme.com", Tier: core.Tier1, EngagementScore: 0.85},
	}}
	c := newTestClassifier(tiers)

	decision := c.Classify(context.Background(), "u1", &core.Message{
		From:    "VIP@acme.com",
		Subject: "50% off everything", // tier wins even over promo content
	})

	assert.Equal(t, core.ActionAnalyzeWithAI, decision.Action)
	assert.Equal(t, core.ConfidenceHigh, decision.Confidence)
	assert.Equal(t, 0.85, decision.Priority)
	assert.Equal(t, 4000, decision.EstimatedCost)
	assert.Contains(t, decision.Reason, "TIER_1")
}

func TestClassifyTier2Contact(t *testing.T) {
	tiers := &stubTiers{contacts: map[string]*core.Contact{
		"colleague@acme.com": {Email: "colleague@acme.com", Tier: core.Tier2, EngagementScore: 0.5},
	}}
	c := newTestClassifier(tiers)

	decision := c.Classify(context.Background(), "u1", &core.Message{From: "colleague@acme.com"})

	assert.Equal(t, core.ActionAnalyzeWithAI, decision.Action)
	assert.Equal(t, 3000, decision.EstimatedCost)
	assert.Equal(t, 0.5, decision.Priority)
}

func TestClassifyTierLastFallsThrough(t *testing.T) {
	tiers := &stubTiers{contacts: map[string]*core.Contact{
		"rare@gmail.com": {Email: "rare@gmail.com", Tier: core.TierLast, EngagementScore: 0.1},
	}}
	c := newTestClassifier(tiers)

	decision := c.Classify(context.Background(), "u1", &core.Message{
		From:    "rare@gmail.com",
		Subject: "hey",
	})

	// A TIER_LAST contact gets no tier treatment and nothing else matches.
	assert.Equal(t, core.ActionSkip, decision.Action)
	assert.Equal(t, core.ConfidenceHigh, decision.Confidence)
	assert.Equal(t, "no engagement history and no business relevance", decision.Reason)
}

func TestClassifyAutomatedSenders(t *testing.T) {
	c := newTestClassifier(&stubTiers{})

	tests := []struct {
		name    string
		from    string
		subject string
	}{
		{"noreply marker", "noreply@shop.example.com", "Your order"},
		{"newsletter marker", "newsletter@media.example.com", "This week"},
		{"bulk domain", "updates@mail.substack.com", "New post"},
		{"promo subject", "deals@gmail.com", "Last chance: 50% off sale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := c.Classify(context.Background(), "u1", &core.Message{
				From:    tt.from,
				Subject: tt.subject,
			})
			assert.Equal(t, core.ActionSkip, decision.Action)
			assert.Equal(t, core.ConfidenceHigh, decision.Confidence)
		})
	}
}

func TestClassifyBusinessKeywords(t *testing.T) {
	c := newTestClassifier(&stubTiers{})

	decision := c.Classify(context.Background(), "u1", &core.Message{
		From:        "someone@gmail.com",
		Subject:     "Draft proposal for next quarter",
		BodyPreview: "attached is the contract",
	})

	assert.Equal(t, core.ActionConditionalAnalyze, decision.Action)
	assert.Equal(t, core.ConfidenceMedium, decision.Confidence)
	assert.Equal(t, 0.3, decision.Priority)
	assert.Equal(t, 2000, decision.EstimatedCost)
	assert.Contains(t, decision.Reason, "proposal")
}

func TestClassifyOrganizationDomain(t *testing.T) {
	c := newTestClassifier(&stubTiers{})

	decision := c.Classify(context.Background(), "u1", &core.Message{
		From:    "partner@acmecorp.io",
		Subject: "hello",
	})

	assert.Equal(t, core.ActionConditionalAnalyze, decision.Action)
	assert.Contains(t, decision.Reason, "acmecorp.io")
}

func TestClassifyDefaultSkip(t *testing.T) {
	c := newTestClassifier(&stubTiers{})

	decision := c.Classify(context.Background(), "u1", &core.Message{
		From:    "friend@gmail.com",
		Subject: "lunch?",
	})

	assert.Equal(t, core.ActionSkip, decision.Action)
	assert.Equal(t, core.ConfidenceHigh, decision.Confidence)
}

func TestClassifyMissingFields(t *testing.T) {
	c := newTestClassifier(&stubTiers{})

	decision := c.Classify(context.Background(), "u1", &core.Message{})

	// A message with no sender and no subject still yields a decision.
	assert.Equal(t, core.ActionSkip, decision.Action)
	assert.NotEmpty(t, decision.Reason)
}

func TestClassifyRecoversFromPanic(t *testing.T) {
	c := newTestClassifier(&stubTiers{panics: true})

	decision := c.Classify(context.Background(), "u1", &core.Message{
		From:    "anyone@acme.com",
		Subject: "meeting",
	})

	assert.Equal(t, core.ActionSkip, decision.Action)
	assert.Equal(t, core.ConfidenceLow, decision.Confidence)
	assert.Contains(t, decision.Reason, "classification failed")
}

func TestClassifyNilMessageDegradesToSkip(t *testing.T) {
	c := newTestClassifier(&stubTiers{})

	decision := c.Classify(context.Background(), "u1", nil)

	assert.Equal(t, core.ActionSkip, decision.Action)
	assert.Equal(t, core.ConfidenceLow, decision.Confidence)
	assert.Contains(t, decision.Reason, "classification failed")
}
