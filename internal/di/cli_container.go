package di

import (
	"flag"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/inbox-intel/internal/adapters/mailbox"
	"github.com/mikey/inbox-intel/internal/adapters/store"
	"github.com/mikey/inbox-intel/internal/config"
	"github.com/mikey/inbox-intel/internal/core"
	"github.com/mikey/inbox-intel/internal/engagement"
	"github.com/mikey/inbox-intel/internal/factory"
	"github.com/mikey/inbox-intel/internal/keywords"
	"github.com/mikey/inbox-intel/internal/logging"
	"github.com/mikey/inbox-intel/internal/parse"
	"github.com/mikey/inbox-intel/internal/synthesis"
	"github.com/mikey/inbox-intel/internal/tree"
	"github.com/mikey/inbox-intel/internal/triage"
	"github.com/mikey/inbox-intel/internal/utils"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// LLM provider flags
	Provider    string
	MaxTokens   int
	Temperature float64
	TopP        float64
	MaxBodySize int

	// Bedrock flags
	BedrockRegion  string
	BedrockModelID string

	// Gemini flags
	GeminiAPIKey    string
	GeminiModelName string

	// OpenAI flags
	OpenAIAPIKey    string
	OpenAIModelName string

	// Run flags
	UserEmail    string
	Mode         string
	ForceRefresh bool

	// Input flags
	InputFile  string
	MailboxDir string
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	// LLM provider flags
	flag.StringVar(&flags.Provider, "provider", "openai", "LLM provider (bedrock, gemini, openai)")
	flag.IntVar(&flags.MaxTokens, "max-tokens", 2000, "Maximum tokens for LLM response")
	flag.Float64Var(&flags.Temperature, "temperature", 0.2, "Temperature for LLM generation")
	flag.Float64Var(&flags.TopP, "top-p", 0.9, "Top-p for LLM generation")
	flag.IntVar(&flags.MaxBodySize, "max-body-size", 4096, "Maximum message body size to send to LLM")

	// Bedrock flags
	flag.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")
	flag.StringVar(&flags.BedrockModelID, "bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	flag.StringVar(&flags.GeminiAPIKey, "gemini-api-key", "", "API key for Google Gemini")
	flag.StringVar(&flags.GeminiModelName, "gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	flag.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")
	flag.StringVar(&flags.OpenAIModelName, "openai-model", "gpt-4", "OpenAI model name")

	// Run flags
	flag.StringVar(&flags.UserEmail, "user", "", "Email address of the mailbox owner")
	flag.StringVar(&flags.Mode, "mode", "triage", "Run mode (triage, intel)")
	flag.BoolVar(&flags.ForceRefresh, "force-refresh", false, "Bypass the intelligence cache")

	// Input flags
	flag.StringVar(&flags.InputFile, "file", "", "Input message file (use stdin if not specified)")
	flag.StringVar(&flags.MailboxDir, "mailbox", "", "Directory of .eml files to load as the mailbox")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.New()
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register LLM client
	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMClient, error) {
		return f.CreateLLMClient()
	}); err != nil {
		return nil, err
	}

	// Register an in-memory store; the CLI loads its messages per run
	if err := container.Provide(store.NewMemoryStore); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *store.MemoryStore) core.RecordStore {
		return s
	}); err != nil {
		return nil, err
	}

	// Register mailbox provider over the given directory
	if err := container.Provide(func(flags *CLIFlags, text *utils.TextProcessor, logger *zap.Logger) core.MailboxProvider {
		return mailbox.NewMaildirProvider(flags.MailboxDir, text, logger)
	}); err != nil {
		return nil, err
	}

	// Register typed configuration sections
	if err := container.Provide(func(cfg *config.Config) config.ScoringConfig {
		return cfg.GetScoring()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) config.TriageConfig {
		return cfg.GetTriage()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) config.TreeConfig {
		return cfg.GetTree()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) config.SynthesisConfig {
		return cfg.GetSynthesis()
	}); err != nil {
		return nil, err
	}

	// Register domain components
	if err := container.Provide(parse.NewParser); err != nil {
		return nil, err
	}
	if err := container.Provide(func(triageCfg config.TriageConfig) *keywords.Extractor {
		return keywords.NewExtractor(triageCfg.BusinessKeywords, triageCfg.MaxTopics)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(engagement.NewScorer); err != nil {
		return nil, err
	}
	if err := container.Provide(engagement.NewTierStore); err != nil {
		return nil, err
	}
	if err := container.Provide(func(ts *engagement.TierStore) core.TierProvider {
		return ts
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(triage.NewClassifier); err != nil {
		return nil, err
	}
	if err := container.Provide(tree.NewBuilder); err != nil {
		return nil, err
	}
	if err := container.Provide(synthesis.NewPipeline); err != nil {
		return nil, err
	}

	// Bind the port interfaces the core service consumes
	if err := container.Provide(func(c *triage.Classifier) core.MessageClassifier {
		return c
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(b *tree.Builder) core.TreeManager {
		return b
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(p *synthesis.Pipeline) core.SynthesisRunner {
		return p
	}); err != nil {
		return nil, err
	}

	// Register intelligence service with no cache
	if err := container.Provide(func(
		recordStore core.RecordStore,
		classifier core.MessageClassifier,
		trees core.TreeManager,
		pipeline core.SynthesisRunner,
		logger *zap.Logger,
	) *core.IntelligenceService {
		return core.NewIntelligenceService(
			recordStore,
			classifier,
			trees,
			pipeline,
			nil,              // No cache for CLI
			false,            // Cache disabled
			time.Duration(0), // No TTL
			logger,
		)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// Set LLM provider
	v.Set("llm.provider", flags.Provider)

	// Set provider-specific configuration
	switch flags.Provider {
	case "bedrock":
		v.Set("bedrock.region", flags.BedrockRegion)
		v.Set("bedrock.model_id", flags.BedrockModelID)
		v.Set("bedrock.max_tokens", flags.MaxTokens)
		v.Set("bedrock.temperature", flags.Temperature)
		v.Set("bedrock.top_p", flags.TopP)
		v.Set("bedrock.max_body_size", flags.MaxBodySize)
	case "gemini":
		v.Set("gemini.api_key", flags.GeminiAPIKey)
		v.Set("gemini.model_name", flags.GeminiModelName)
		v.Set("gemini.max_tokens", flags.MaxTokens)
		v.Set("gemini.temperature", flags.Temperature)
		v.Set("gemini.top_p", flags.TopP)
		v.Set("gemini.max_body_size", flags.MaxBodySize)
	case "openai":
		v.Set("openai.api_key", flags.OpenAIAPIKey)
		v.Set("openai.model_name", flags.OpenAIModelName)
		v.Set("openai.max_tokens", flags.MaxTokens)
		v.Set("openai.temperature", flags.Temperature)
		v.Set("openai.top_p", flags.TopP)
		v.Set("openai.max_body_size", flags.MaxBodySize)
	}

	return config.NewFromViper(v)
}
