package di

import (
	"time"

	"go.uber.org/dig"

	"github.com/mikey/inbox-intel/internal/adapters/ingest"
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

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewIngestFactory); err != nil {
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

	// Register record store
	if err := container.Provide(func(f *factory.StoreFactory) (core.RecordStore, error) {
		return f.CreateRecordStore()
	}); err != nil {
		return nil, err
	}

	// Register intelligence cache
	if err := container.Provide(func(f *factory.CacheFactory) (core.IntelligenceCache, error) {
		return f.CreateIntelligenceCache()
	}); err != nil {
		return nil, err
	}

	// Register cache TTL and enabled flag
	if err := container.Provide(func(f *factory.CacheFactory) (time.Duration, error) {
		return f.GetCacheTTL()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.CacheFactory) bool {
		return f.IsCacheEnabled()
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

	// Register intelligence service
	if err := container.Provide(core.NewIntelligenceService); err != nil {
		return nil, err
	}

	// Register SMTP ingestor (nil when ingestion is disabled)
	if err := container.Provide(func(
		f *factory.IngestFactory,
		store core.RecordStore,
		classifier core.MessageClassifier,
		text *utils.TextProcessor,
	) *ingest.SMTPIngestor {
		return f.CreateSMTPIngestor(store, classifier, text)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
