package parse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/mikey/inbox-intel/internal/core"
	"github.com/mikey/inbox-intel/internal/keywords"
	"go.uber.org/zap"
)

// Parser converts the model's semi-structured responses into typed records.
// Strategy, in order: embedded JSON extraction, labeled-section regex
// fallback, then keyword heuristics for missing fields. Parsing never errors
// outward for record lists; unparseable input yields an empty list plus a
// logged diagnostic.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a new response parser
func NewParser(logger *zap.Logger) *Parser {
	return &Parser{logger: logger}
}

var (
	contextSection        = regexp.MustCompile(`(?im)^\s*CONTEXT\s+\d+\s*:\s*(.+)$`)
	insightSection        = regexp.MustCompile(`(?im)^\s*INSIGHT\s+\d+\s*:\s*(.+)$`)
	recommendationSection = regexp.MustCompile(`(?im)^\s*RECOMMENDATION\s+\d+\s*:\s*(.+)$`)
)

// ParseContexts extracts BusinessContext records from a raw model response
func (p *Parser) ParseContexts(raw string) []core.BusinessContext {
	var list []core.BusinessContext
	if p.extractList(raw, &list, "contexts") && len(list) > 0 {
		for i := range list {
			if list[i].ID == "" {
				list[i].ID = uuid.New().String()
			}
			if list[i].Type == "" {
				list[i].Type = inferContextType(list[i].Name + " " + list[i].Description)
			}
			if list[i].ConfidenceLevel == 0 {
				list[i].ConfidenceLevel = 0.5
			}
		}
		return list
	}

	// Labeled-section fallback.
	sections := splitSections(raw, contextSection)
	if len(sections) == 0 {
		p.logger.Warn("No contexts parseable from response",
			zap.Int("response_len", len(raw)))
		return nil
	}
	out := make([]core.BusinessContext, 0, len(sections))
	for _, sec := range sections {
		out = append(out, core.BusinessContext{
			ID:              uuid.New().String(),
			Name:            sec.title,
			Description:     sec.body,
			Type:            inferContextType(sec.title + " " + sec.body),
			Status:          "active",
			PriorityScore:   0.5,
			ConfidenceLevel: 0.4,
		})
	}
	return out
}

// ParseInsights extracts StrategicInsight records from a raw model response
func (p *Parser) ParseInsights(raw string) []core.StrategicInsight {
	var list []core.StrategicInsight
	if p.extractList(raw, &list, "insights") && len(list) > 0 {
		for i := range list {
			if list[i].ID == "" {
				list[i].ID = uuid.New().String()
			}
			if list[i].Type == "" {
				list[i].Type = inferInsightType(list[i].Title + " " + list[i].Description)
			}
			if list[i].ConfidenceLevel == 0 {
				list[i].ConfidenceLevel = 0.5
			}
		}
		return list
	}

	sections := splitSections(raw, insightSection)
	if len(sections) == 0 {
		p.logger.Warn("No insights parseable from response",
			zap.Int("response_len", len(raw)))
		return nil
	}
	out := make([]core.StrategicInsight, 0, len(sections))
	for _, sec := range sections {
		out = append(out, core.StrategicInsight{
			ID:              uuid.New().String(),
			Title:           sec.title,
			Description:     sec.body,
			Type:            inferInsightType(sec.title + " " + sec.body),
			ConfidenceLevel: 0.4,
		})
	}
	return out
}

// ParseRecommendations extracts StrategicRecommendation records from a raw
// model response
func (p *Parser) ParseRecommendations(raw string) []core.StrategicRecommendation {
	var list []core.StrategicRecommendation
	if p.extractList(raw, &list, "recommendations") && len(list) > 0 {
		for i := range list {
			if list[i].ID == "" {
				list[i].ID = uuid.New().String()
			}
			if list[i].Urgency == "" {
				list[i].Urgency = inferUrgency(list[i].Title + " " + list[i].Description)
			}
			if list[i].EstimatedImpact == "" {
				list[i].EstimatedImpact = "medium"
			}
			if list[i].ConfidenceScore == 0 {
				list[i].ConfidenceScore = 0.5
			}
		}
		return list
	}

	sections := splitSections(raw, recommendationSection)
	if len(sections) == 0 {
		p.logger.Warn("No recommendations parseable from response",
			zap.Int("response_len", len(raw)))
		return nil
	}
	out := make([]core.StrategicRecommendation, 0, len(sections))
	for _, sec := range sections {
		out = append(out, core.StrategicRecommendation{
			ID:              uuid.New().String(),
			Title:           sec.title,
			Description:     sec.body,
			Urgency:         inferUrgency(sec.title + " " + sec.body),
			EstimatedImpact: "medium",
			ConfidenceScore: 0.4,
		})
	}
	return out
}

// ParseTree extracts a full knowledge tree. Unlike the record-list parsers
// this reports failure, because refine safety depends on distinguishing a
// bad response from an empty tree.
func (p *Parser) ParseTree(raw string) (*core.KnowledgeTree, error) {
	var tree core.KnowledgeTree
	if !p.extractObject(raw, &tree) {
		return nil, fmt.Errorf("no parseable knowledge tree in response (%d bytes)", len(raw))
	}
	if len(tree.Topics) == 0 && len(tree.People) == 0 && len(tree.Projects) == 0 {
		return nil, fmt.Errorf("parsed tree is empty")
	}
	return &tree, nil
}

// ParseAssignment extracts a per-message assignment result
func (p *Parser) ParseAssignment(raw string) (*core.AssignmentResult, error) {
	var res core.AssignmentResult
	if !p.extractObject(raw, &res) {
		return nil, fmt.Errorf("no parseable assignment in response (%d bytes)", len(raw))
	}
	return &res, nil
}

// extractList tries, in order: the whole text as a JSON array, an embedded
// array, and an embedded object wrapping the array under the given key
func (p *Parser) extractList(raw string, dst any, wrapperKey string) bool {
	text := stripFences(raw)

	if candidate, ok := embeddedSlice(text, '[', ']'); ok {
		if json.Unmarshal([]byte(candidate), dst) == nil {
			return true
		}
	}

	if candidate, ok := embeddedSlice(text, '{', '}'); ok {
		var wrapper map[string]json.RawMessage
		if json.Unmarshal([]byte(candidate), &wrapper) == nil {
			if inner, ok := wrapper[wrapperKey]; ok {
				if json.Unmarshal(inner, dst) == nil {
					return true
				}
			}
			// A single object instead of a list; wrap it.
			if json.Unmarshal([]byte("["+candidate+"]"), dst) == nil {
				return true
			}
		}
	}

	return false
}

// extractObject tries the whole text, then the outermost embedded object
func (p *Parser) extractObject(raw string, dst any) bool {
	text := stripFences(raw)
	if json.Unmarshal([]byte(text), dst) == nil {
		return true
	}
	if candidate, ok := embeddedSlice(text, '{', '}'); ok {
		if json.Unmarshal([]byte(candidate), dst) == nil {
			return true
		}
	}
	return false
}

// embeddedSlice returns the substring from the first open delimiter to the
// last matching close delimiter
func embeddedSlice(text string, open, closing byte) (string, bool) {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, closing)
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx > 0 {
			text = text[idx+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}

type section struct {
	title string
	body  string
}

// splitSections cuts the text at each marker match; the body of a section
// runs until the next marker of any kind
func splitSections(raw string, marker *regexp.Regexp) []section {
	matches := marker.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return nil
	}
	sections := make([]section, 0, len(matches))
	for i, m := range matches {
		title := strings.TrimSpace(raw[m[2]:m[3]])
		bodyStart := m[1]
		bodyEnd := len(raw)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}
		body := strings.TrimSpace(raw[bodyStart:bodyEnd])
		sections = append(sections, section{title: title, body: body})
	}
	return sections
}

// Heuristic vocabularies for fields the model left blank. Order inside each
// switch is the precedence.
var (
	criticalTerms    = keywords.NewExtractor([]string{"critical", "immediately", "urgent"}, 0)
	highTerms        = keywords.NewExtractor([]string{"asap", "high priority", "this week"}, 0)
	lowTerms         = keywords.NewExtractor([]string{"eventually", "low priority", "when possible"}, 0)
	opportunityTerms = keywords.NewExtractor([]string{"opportunit", "deal", "prospect"}, 0)
	challengeTerms   = keywords.NewExtractor([]string{"risk", "problem", "challenge", "issue"}, 0)
	projectTerms     = keywords.NewExtractor([]string{"project", "launch", "milestone"}, 0)
	riskTerms        = keywords.NewExtractor([]string{"risk", "threat", "concern"}, 0)
	connectionTerms  = keywords.NewExtractor([]string{"connect", "introduc", "relationship"}, 0)
)

// inferUrgency applies the documented keyword heuristic; the default is
// medium
func inferUrgency(text string) core.Urgency {
	switch {
	case criticalTerms.ContainsAny(text):
		return core.UrgencyCritical
	case highTerms.ContainsAny(text):
		return core.UrgencyHigh
	case lowTerms.ContainsAny(text):
		return core.UrgencyLow
	default:
		return core.UrgencyMedium
	}
}

func inferContextType(text string) core.ContextType {
	switch {
	case opportunityTerms.ContainsAny(text):
		return core.ContextOpportunity
	case challengeTerms.ContainsAny(text):
		return core.ContextChallenge
	case projectTerms.ContainsAny(text):
		return core.ContextProject
	default:
		return core.ContextRelationship
	}
}

func inferInsightType(text string) core.InsightType {
	switch {
	case riskTerms.ContainsAny(text):
		return core.InsightRisk
	case opportunityTerms.ContainsAny(text):
		return core.InsightOpportunity
	case connectionTerms.ContainsAny(text):
		return core.InsightConnection
	default:
		return core.InsightTrend
	}
}
