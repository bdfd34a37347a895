package parse

import (
	"testing"

	"github.com/mikey/inbox-intel/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestParser() *Parser {
	return NewParser(zap.NewNop())
}

func TestParseContextsJSONArray(t *testing.T) {
	p := newTestParser()

	raw := `[
		{"name": "Acme renewal", "description": "Contract renewal discussion", "type": "opportunity", "priority_score": 0.9, "confidence_level": 0.8},
		{"name": "Vendor dispute", "description": "Escalating billing issue", "type": "challenge", "priority_score": 0.7}
	]`

	contexts := p.ParseContexts(raw)
	require.Len(t, contexts, 2)
	assert.Equal(t, "Acme renewal", contexts[0].Name)
	assert.Equal(t, core.ContextOpportunity, contexts[0].Type)
	assert.Equal(t, 0.8, contexts[0].ConfidenceLevel)
	assert.NotEmpty(t, contexts[0].ID)
	// Missing confidence defaults, missing ID is generated.
	assert.Equal(t, 0.5, contexts[1].ConfidenceLevel)
	assert.NotEmpty(t, contexts[1].ID)
}

func TestParseContextsFencedJSON(t *testing.T) {
	p := newTestParser()

	raw := "```json\n[{\"name\": \"Launch prep\", \"description\": \"Q3 product launch\"}]\n```"

	contexts := p.ParseContexts(raw)
	require.Len(t, contexts, 1)
	assert.Equal(t, "Launch prep", contexts[0].Name)
	// Type inferred from text when the model omits it.
	assert.Equal(t, core.ContextProject, contexts[0].Type)
}

func TestParseContextsWrapperObject(t *testing.T) {
	p := newTestParser()

	raw := `{"contexts": [{"name": "Hiring push", "description": "Three open roles"}]}`

	contexts := p.ParseContexts(raw)
	require.Len(t, contexts, 1)
	assert.Equal(t, "Hiring push", contexts[0].Name)
}

func TestParseContextsJSONEmbeddedInProse(t *testing.T) {
	p := newTestParser()

	raw := `Here are the business contexts I identified:
[{"name": "Partner intro", "description": "Warm introduction to a reseller"}]
Let me know if you need more detail.`

	contexts := p.ParseContexts(raw)
	require.Len(t, contexts, 1)
	assert.Equal(t, "Partner intro", contexts[0].Name)
}

func TestParseContextsLabeledSectionFallback(t *testing.T) {
	p := newTestParser()

	raw := `CONTEXT 1: Acme partnership
The partnership discussion is progressing toward a pilot.

CONTEXT 2: Billing problem
An unresolved invoice issue with the vendor.`

	contexts := p.ParseContexts(raw)
	require.Len(t, contexts, 2)
	assert.Equal(t, "Acme partnership", contexts[0].Name)
	assert.Contains(t, contexts[0].Description, "pilot")
	assert.Equal(t, "Billing problem", contexts[1].Name)
	assert.Equal(t, core.ContextChallenge, contexts[1].Type)
	assert.Equal(t, 0.4, contexts[0].ConfidenceLevel)
}

func TestParseContextsUnparseable(t *testing.T) {
	p := newTestParser()

	assert.Empty(t, p.ParseContexts("I could not find anything useful."))
	assert.Empty(t, p.ParseContexts(""))
}

func TestParseInsightsTypeInference(t *testing.T) {
	p := newTestParser()

	raw := `INSIGHT 1: Growing risk of churn
Two key accounts have gone quiet at the same time.`

	insights := p.ParseInsights(raw)
	require.Len(t, insights, 1)
	assert.Equal(t, core.InsightRisk, insights[0].Type)
	assert.NotEmpty(t, insights[0].ID)
}

func TestParseRecommendationsUrgencyInference(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		text string
		want core.Urgency
	}{
		{"RECOMMENDATION 1: Respond immediately\nThe client is waiting.", core.UrgencyCritical},
		{"RECOMMENDATION 1: Schedule this week\nHigh priority follow-up.", core.UrgencyHigh},
		{"RECOMMENDATION 1: Tidy the backlog\nDo this when possible.", core.UrgencyLow},
		{"RECOMMENDATION 1: Review the notes\nStandard follow-up.", core.UrgencyMedium},
	}

	for _, tt := range tests {
		recs := p.ParseRecommendations(tt.text)
		require.Len(t, recs, 1)
		assert.Equal(t, tt.want, recs[0].Urgency)
	}
}

func TestParseRecommendationsJSONKeepsExplicitUrgency(t *testing.T) {
	p := newTestParser()

	raw := `[{"title": "Ping the client", "description": "They asked for an update", "urgency": "low", "confidence_score": 0.9}]`

	recs := p.ParseRecommendations(raw)
	require.Len(t, recs, 1)
	assert.Equal(t, core.UrgencyLow, recs[0].Urgency)
	assert.Equal(t, 0.9, recs[0].ConfidenceScore)
	assert.Equal(t, "medium", recs[0].EstimatedImpact)
}

func TestParseTree(t *testing.T) {
	p := newTestParser()

	raw := `{"topics": [{"name": "sales", "description": "pipeline"}], "people": [{"email": "a@b.com"}], "projects": [], "relationships": []}`

	tree, err := p.ParseTree(raw)
	require.NoError(t, err)
	assert.Len(t, tree.Topics, 1)
	assert.Len(t, tree.People, 1)
}

func TestParseTreeFailures(t *testing.T) {
	p := newTestParser()

	_, err := p.ParseTree("Sorry, I cannot help with that.")
	assert.Error(t, err)

	// Structurally valid but content-free trees are rejected too; refine
	// safety depends on it.
	_, err = p.ParseTree(`{"topics": [], "people": [], "projects": [], "relationships": []}`)
	assert.Error(t, err)
}

func TestParseAssignment(t *testing.T) {
	p := newTestParser()

	res, err := p.ParseAssignment(`{"primary_topic": "sales", "importance_score": 0.8, "sentiment_score": 0.2, "summary": "Client confirmed the pilot."}`)
	require.NoError(t, err)
	assert.Equal(t, "sales", res.PrimaryTopic)
	assert.Equal(t, 0.8, res.ImportanceScore)

	_, err = p.ParseAssignment("no json here")
	assert.Error(t, err)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, stripFences("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, stripFences(`{"a": 1}`))
}
