package factory

import (
	"github.com/mikey/inbox-intel/internal/adapters/ingest"
	"github.com/mikey/inbox-intel/internal/config"
	"github.com/mikey/inbox-intel/internal/core"
	"github.com/mikey/inbox-intel/internal/utils"
	"go.uber.org/zap"
)

// IngestFactory creates SMTP ingestors based on configuration
type IngestFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewIngestFactory creates a new ingest factory
func NewIngestFactory(cfg *config.Config, logger *zap.Logger) *IngestFactory {
	return &IngestFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSMTPIngestor creates the SMTP ingestor, or nil when ingestion is disabled
func (f *IngestFactory) CreateSMTPIngestor(
	store core.RecordStore,
	classifier core.MessageClassifier,
	text *utils.TextProcessor,
) *ingest.SMTPIngestor {
	ingestCfg := f.cfg.GetIngest()
	if !ingestCfg.Enabled {
		return nil
	}
	return ingest.NewSMTPIngestor(store, classifier, text, ingestCfg, f.logger)
}
