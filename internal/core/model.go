package core

import (
	"time"
)

// Message represents a single decoded email message
type Message struct {
	ID          string
	From        string
	To          []string
	Subject     string
	BodyPreview string
	Body        string
	SentAt      time.Time
	Outbound    bool
	Assignment  *AssignmentResult
}

// Processed reports whether the message has already been assigned to the
// knowledge tree
func (m *Message) Processed() bool {
	return m.Assignment != nil
}

// MessageRef is a lightweight handle to a message held by the mailbox provider
type MessageRef struct {
	ID     string
	Folder string
}

// User represents the owner of a mailbox
type User struct {
	ID    string
	Email string
	Name  string
}

// Tier is the discrete engagement class of a contact
type Tier string

const (
	Tier1    Tier = "TIER_1"
	Tier2    Tier = "TIER_2"
	TierLast Tier = "TIER_LAST"
)

// FrequencyClass buckets how often a contact is written to
type FrequencyClass string

const (
	FrequencyDaily      FrequencyClass = "daily"
	FrequencyWeekly     FrequencyClass = "weekly"
	FrequencyMonthly    FrequencyClass = "monthly"
	FrequencyOccasional FrequencyClass = "occasional"
)

// Contact represents one correspondent derived from outbound history
type Contact struct {
	Email           string
	FirstOutbound   time.Time
	LastOutbound    time.Time
	OutboundCount   int
	InboundCount    int
	Topics          []string
	Frequency       FrequencyClass
	EngagementScore float64
	Tier            Tier
}

// Action is the triage outcome for a message
type Action string

const (
	ActionAnalyzeWithAI      Action = "ANALYZE_WITH_AI"
	ActionConditionalAnalyze Action = "CONDITIONAL_ANALYZE"
	ActionSkip               Action = "SKIP"
)

// Confidence expresses how certain the classifier is about a decision
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// ProcessingDecision is the per-message triage verdict. It is ephemeral and
// recomputed on every classification call.
type ProcessingDecision struct {
	Action        Action
	Confidence    Confidence
	Reason        string
	Priority      float64
	EstimatedCost int
	DecidedAt     time.Time
}

// Topic is one subject area extracted into the knowledge tree
type Topic struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Importance  string   `json:"importance"`
	Subtopics   []string `json:"subtopics"`
	Frequency   int      `json:"frequency"`
}

// Person is one correspondent as the knowledge tree understands them
type Person struct {
	Email                string   `json:"email"`
	Name                 string   `json:"name"`
	Role                 string   `json:"role"`
	Company              string   `json:"company"`
	RelationshipStrength string   `json:"relationship_strength"`
	PrimaryTopics        []string `json:"primary_topics"`
}

// Project is an ongoing effort inferred from the message history
type Project struct {
	Name         string   `json:"name"`
	Status       string   `json:"status"`
	Stakeholders []string `json:"stakeholders"`
}

// Relationship is a typed edge between tree entities
type Relationship struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// KnowledgeTree is the structured representation of a user's communications.
// Stored trees are always complete; refinement replaces the whole tree.
type KnowledgeTree struct {
	Topics        []Topic        `json:"topics"`
	People        []Person       `json:"people"`
	Projects      []Project      `json:"projects"`
	Relationships []Relationship `json:"relationships"`
	Version       int            `json:"version"`
	BuiltAt       time.Time      `json:"built_at"`
}

// AssignmentResult is the per-message classification against an existing tree
type AssignmentResult struct {
	PrimaryTopic    string  `json:"primary_topic"`
	ImportanceScore float64 `json:"importance_score"`
	SentimentScore  float64 `json:"sentiment_score"`
	Summary         string  `json:"summary"`
	AssignedAt      time.Time
}

// ContextType categorizes a synthesized business context
type ContextType string

const (
	ContextOpportunity  ContextType = "opportunity"
	ContextRelationship ContextType = "relationship"
	ContextProject      ContextType = "project"
	ContextChallenge    ContextType = "challenge"
)

// BusinessContext is one coherent business situation synthesized from
// multiple messages
type BusinessContext struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	Type            ContextType `json:"type"`
	KeyPeople       []string    `json:"key_people"`
	Status          string      `json:"status"`
	PriorityScore   float64     `json:"priority_score"`
	Impact          string      `json:"impact"`
	ConfidenceLevel float64     `json:"confidence_level"`
}

// InsightType categorizes a strategic insight
type InsightType string

const (
	InsightTrend       InsightType = "trend"
	InsightOpportunity InsightType = "opportunity"
	InsightRisk        InsightType = "risk"
	InsightConnection  InsightType = "connection"
)

// StrategicInsight is a cross-context pattern worth the user's attention
type StrategicInsight struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Type            InsightType `json:"type"`
	Description     string      `json:"description"`
	Evidence        []string    `json:"evidence"`
	Implications    string      `json:"implications"`
	Response        string      `json:"response"`
	ConfidenceLevel float64     `json:"confidence_level"`
}

// Urgency ranks how quickly a recommendation should be acted on
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

// StrategicRecommendation is one concrete suggested action
type StrategicRecommendation struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Rationale       string   `json:"rationale"`
	ImpactAnalysis  string   `json:"impact_analysis"`
	Urgency         Urgency  `json:"urgency"`
	EstimatedImpact string   `json:"estimated_impact"`
	TimeSensitivity string   `json:"time_sensitivity"`
	RelatedContexts []string `json:"related_contexts"`
	Actions         []string `json:"actions"`
	SuccessMetrics  []string `json:"success_metrics"`
	ConfidenceScore float64  `json:"confidence_score"`
}

// StageState describes how a pipeline stage finished
type StageState string

const (
	StageOK     StageState = "ok"
	StageEmpty  StageState = "empty"
	StageFailed StageState = "failed"
)

// StageStatus keeps "no results" and "call failed" distinguishable to
// callers and tests
type StageStatus struct {
	Stage  string
	State  StageState
	Reason string
}

// ContentSummary is the stage-1 digest the synthesis stages operate on
type ContentSummary struct {
	MessageCount    int
	TotalCount      int
	EfficiencyRatio float64
	TopContacts     []Contact
	Highlights      []string
	Degraded        bool
}

// IntelligenceBrief is the final compiled, ranked summary
type IntelligenceBrief struct {
	ExecutiveSummary string
	ImmediateActions []StrategicRecommendation
	ShortTermActions []StrategicRecommendation
	Opportunities    []BusinessContext
	Risks            []BusinessContext
	KeyRelationships []BusinessContext
	ActiveProjects   []BusinessContext
	GeneratedAt      time.Time
}

// IntelligenceResult is the success envelope returned by a synthesis run.
// Sub-lists may be empty; stage statuses record why.
type IntelligenceResult struct {
	UserEmail       string
	Contexts        []BusinessContext
	Insights        []StrategicInsight
	Recommendations []StrategicRecommendation
	Brief           IntelligenceBrief
	Stages          []StageStatus
	GeneratedAt     time.Time
	FromCache       bool
}

// CacheEntry wraps a synthesis result with its expiry bounds
type CacheEntry struct {
	UserEmail string
	Result    *IntelligenceResult
	CachedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its expiry at the given instant
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
