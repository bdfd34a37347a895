package config

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// ScoringConfig holds the engagement-score formula constants
type ScoringConfig struct {
	FrequencyDivisor  float64
	FrequencyCap      float64
	RecencyWeight     float64
	RecencyWindowDays float64
	SpanWeight        float64
	SpanWindowDays    float64
	NoHistoryFloor    float64
	Tier1Threshold    float64
	Tier2Threshold    float64
}

// TriageConfig holds the classifier keyword lists and cost estimates
type TriageConfig struct {
	AutomationMarkers   []string
	BulkDomains         []string
	PromoKeywords       []string
	BusinessKeywords    []string
	PersonalDomains     []string
	TierCost            int
	TierCostHigh        int
	ConditionalCost     int
	ConditionalPriority float64
	MaxTopics           int
}

// TreeConfig holds knowledge-tree build and refine limits
type TreeConfig struct {
	BuildBatchSize  int
	MaxRefineBatch  int
	MaxTokens       int
	AssignMaxTokens int
}

// SynthesisConfig holds the pipeline limits
type SynthesisConfig struct {
	MaxMessages         int
	DegradedMaxMessages int
	TopN                int
	MaxTokens           int
}

// IngestConfig holds the SMTP ingestion settings
type IngestConfig struct {
	Enabled        bool
	ListenAddress  string
	RelayAddress   string
	RelayPort      int
	RelayEnabled   bool
	ActionHeader   string
	PriorityHeader string
	ReasonHeader   string
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetScoring returns the engagement scoring configuration
func (c *Config) GetScoring() ScoringConfig {
	return ScoringConfig{
		FrequencyDivisor:  c.GetFloat64("scoring.frequency_divisor"),
		FrequencyCap:      c.GetFloat64("scoring.frequency_cap"),
		RecencyWeight:     c.GetFloat64("scoring.recency_weight"),
		RecencyWindowDays: c.GetFloat64("scoring.recency_window_days"),
		SpanWeight:        c.GetFloat64("scoring.span_weight"),
		SpanWindowDays:    c.GetFloat64("scoring.span_window_days"),
		NoHistoryFloor:    c.GetFloat64("scoring.no_history_floor"),
		Tier1Threshold:    c.GetFloat64("scoring.tier1_threshold"),
		Tier2Threshold:    c.GetFloat64("scoring.tier2_threshold"),
	}
}

// GetTriage returns the triage classifier configuration
func (c *Config) GetTriage() TriageConfig {
	return TriageConfig{
		AutomationMarkers:   c.GetStringSlice("triage.automation_markers"),
		BulkDomains:         c.GetStringSlice("triage.bulk_domains"),
		PromoKeywords:       c.GetStringSlice("triage.promo_keywords"),
		BusinessKeywords:    c.GetStringSlice("triage.business_keywords"),
		PersonalDomains:     c.GetStringSlice("triage.personal_domains"),
		TierCost:            c.GetInt("triage.tier_cost"),
		TierCostHigh:        c.GetInt("triage.tier_cost_high"),
		ConditionalCost:     c.GetInt("triage.conditional_cost"),
		ConditionalPriority: c.GetFloat64("triage.conditional_priority"),
		MaxTopics:           c.GetInt("triage.max_topics"),
	}
}

// GetTree returns the knowledge tree configuration
func (c *Config) GetTree() TreeConfig {
	return TreeConfig{
		BuildBatchSize:  c.GetInt("tree.build_batch_size"),
		MaxRefineBatch:  c.GetInt("tree.max_refine_batch"),
		MaxTokens:       c.GetInt("tree.max_tokens"),
		AssignMaxTokens: c.GetInt("tree.assign_max_tokens"),
	}
}

// GetSynthesis returns the synthesis pipeline configuration
func (c *Config) GetSynthesis() SynthesisConfig {
	return SynthesisConfig{
		MaxMessages:         c.GetInt("synthesis.max_messages"),
		DegradedMaxMessages: c.GetInt("synthesis.degraded_max_messages"),
		TopN:                c.GetInt("synthesis.top_n"),
		MaxTokens:           c.GetInt("synthesis.max_tokens"),
	}
}

// GetIngest returns the SMTP ingestion configuration
func (c *Config) GetIngest() IngestConfig {
	return IngestConfig{
		Enabled:        c.GetBool("ingest.enabled"),
		ListenAddress:  c.GetString("ingest.listen_address"),
		RelayAddress:   c.GetString("ingest.relay_address"),
		RelayPort:      c.GetInt("ingest.relay_port"),
		RelayEnabled:   c.GetBool("ingest.relay_enabled"),
		ActionHeader:   c.GetString("ingest.headers.action"),
		PriorityHeader: c.GetString("ingest.headers.priority"),
		ReasonHeader:   c.GetString("ingest.headers.reason"),
	}
}
