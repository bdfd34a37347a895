package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
)

// GeminiClient is an implementation of the LLMClient interface using Google Gemini
type GeminiClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	maxTokens int
	logger    *zap.Logger
}

// NewGeminiClient creates a new Gemini client around an existing genai client
func NewGeminiClient(
	client *genai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *GeminiClient {
	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiClient{
		client:    client,
		model:     model,
		modelName: modelName,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Complete sends a prompt and returns the raw response text
func (c *GeminiClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens > 0 && maxTokens <= c.maxTokens {
		c.model.SetMaxOutputTokens(int32(maxTokens))
	} else {
		c.model.SetMaxOutputTokens(int32(c.maxTokens))
	}

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	c.logger.Debug("Gemini completion",
		zap.String("model", c.modelName),
		zap.Int("prompt_len", len(prompt)))

	return responseText, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
