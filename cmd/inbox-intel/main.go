package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/inbox-intel/internal/adapters/ingest"
	"github.com/mikey/inbox-intel/internal/core"
	"github.com/mikey/inbox-intel/internal/di"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	ingestor *ingest.SMTPIngestor,
	llmClient core.LLMClient,
	cache core.IntelligenceCache,
	recordStore core.RecordStore,
) error {
	defer logger.Sync()

	if ingestor != nil {
		if err := ingestor.Start(); err != nil {
			logger.Fatal("Failed to start SMTP ingestor", zap.Error(err))
			return err
		}
	} else {
		logger.Info("SMTP ingestion disabled")
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	if ingestor != nil {
		if err := ingestor.Stop(); err != nil {
			logger.Error("Failed to stop SMTP ingestor", zap.Error(err))
		}
	}

	// Close any resources that need closing
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}

	// Stop the cache sweeper if the backend runs one
	if stopper, ok := cache.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	if closer, ok := recordStore.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close record store", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
