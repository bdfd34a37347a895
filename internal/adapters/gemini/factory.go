package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/inbox-intel/internal/config"
	"github.com/mikey/inbox-intel/internal/core"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Factory creates Gemini clients
type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFactory creates a new Gemini factory
func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateLLMClient creates a new Gemini client
func (f *Factory) CreateLLMClient() (core.LLMClient, error) {
	geminiCfg := f.cfg.GetGemini()

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(geminiCfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return NewGeminiClient(
		client,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		f.logger,
	), nil
}
