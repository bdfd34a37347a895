package factory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mikey/inbox-intel/internal/adapters/store"
	"github.com/mikey/inbox-intel/internal/config"
	"github.com/mikey/inbox-intel/internal/core"
	"go.uber.org/zap"
)

// StoreFactory creates record stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRecordStore creates a record store based on the configuration
func (f *StoreFactory) CreateRecordStore() (core.RecordStore, error) {
	storeType := f.cfg.GetString("store.type")

	switch storeType {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		sqlitePath := f.cfg.GetString("store.sqlite_path")
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteStore(sqlitePath, f.logger)
	case "mysql":
		dsn := f.cfg.GetString("store.mysql_dsn")
		// Messages carry sent_at timestamps, which the driver only scans
		// into time.Time with parseTime enabled.
		if !strings.Contains(dsn, "parseTime") {
			if strings.Contains(dsn, "?") {
				dsn += "&parseTime=true"
			} else {
				dsn += "?parseTime=true"
			}
		}
		return store.NewMySQLStore(dsn, f.logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}
