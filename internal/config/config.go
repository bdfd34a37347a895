package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/inbox-intel/")
	v.AddConfigPath("$HOME/.inbox-intel")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("INBOX_INTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// LLM provider defaults
	v.SetDefault("llm.provider", "openai")

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-v2")
	v.SetDefault("bedrock.max_tokens", 2000)
	v.SetDefault("bedrock.temperature", 0.2)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-pro")
	v.SetDefault("gemini.max_tokens", 2000)
	v.SetDefault("gemini.temperature", 0.2)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4")
	v.SetDefault("openai.max_tokens", 2000)
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 4096)

	// Engagement scoring defaults. Weights and thresholds are tuning knobs,
	// not structural invariants.
	v.SetDefault("scoring.frequency_divisor", 50.0)
	v.SetDefault("scoring.frequency_cap", 0.5)
	v.SetDefault("scoring.recency_weight", 0.3)
	v.SetDefault("scoring.recency_window_days", 365.0)
	v.SetDefault("scoring.span_weight", 0.2)
	v.SetDefault("scoring.span_window_days", 365.0)
	v.SetDefault("scoring.no_history_floor", 0.1)
	v.SetDefault("scoring.tier1_threshold", 0.7)
	v.SetDefault("scoring.tier2_threshold", 0.3)

	// Triage defaults
	v.SetDefault("triage.automation_markers", []string{
		"noreply", "no-reply", "donotreply", "notifications", "mailer-daemon",
		"newsletter", "marketing", "promo", "digest", "updates", "alerts",
	})
	v.SetDefault("triage.bulk_domains", []string{
		"mailchimp.com", "sendgrid.net", "constantcontact.com",
		"campaign-monitor.com", "mailgun.org", "substack.com",
	})
	v.SetDefault("triage.promo_keywords", []string{
		"% off", "sale", "discount", "unsubscribe", "limited time", "free trial",
		"coupon", "deal of", "last chance", "act now",
	})
	v.SetDefault("triage.business_keywords", []string{
		"meeting", "proposal", "contract", "partnership", "invoice", "deadline",
		"project", "budget", "review", "agreement", "opportunity", "demo",
		"follow up", "decision", "launch", "hiring", "urgent",
	})
	v.SetDefault("triage.personal_domains", []string{
		"gmail.com", "yahoo.com", "hotmail.com", "outlook.com", "aol.com",
		"icloud.com", "proton.me", "protonmail.com",
	})
	v.SetDefault("triage.tier_cost", 3000)
	v.SetDefault("triage.tier_cost_high", 4000)
	v.SetDefault("triage.conditional_cost", 2000)
	v.SetDefault("triage.conditional_priority", 0.3)
	v.SetDefault("triage.max_topics", 5)

	// Knowledge tree defaults
	v.SetDefault("tree.build_batch_size", 50)
	v.SetDefault("tree.max_refine_batch", 25)
	v.SetDefault("tree.max_tokens", 4000)
	v.SetDefault("tree.assign_max_tokens", 500)

	// Synthesis defaults
	v.SetDefault("synthesis.max_messages", 100)
	v.SetDefault("synthesis.degraded_max_messages", 25)
	v.SetDefault("synthesis.top_n", 5)
	v.SetDefault("synthesis.max_tokens", 3000)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "30m")
	v.SetDefault("cache.cleanup_frequency", "10m")
	v.SetDefault("cache.sqlite_path", "/data/intel_cache.db")

	// Record store defaults
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.sqlite_path", "/data/inbox_intel.db")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/inbox_intel")

	// SMTP ingestion defaults
	v.SetDefault("ingest.enabled", false)
	v.SetDefault("ingest.listen_address", "0.0.0.0:10025")
	v.SetDefault("ingest.relay_address", "127.0.0.1")
	v.SetDefault("ingest.relay_port", 10026)
	v.SetDefault("ingest.relay_enabled", false)
	v.SetDefault("ingest.headers.action", "X-Intel-Action")
	v.SetDefault("ingest.headers.priority", "X-Intel-Priority")
	v.SetDefault("ingest.headers.reason", "X-Intel-Reason")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
