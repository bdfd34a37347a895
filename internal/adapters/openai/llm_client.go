package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient is an implementation of the LLMClient interface using OpenAI
type OpenAIClient struct {
	client      *openai.Client
	modelName   string
	maxTokens   int
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *OpenAIClient {
	return &OpenAIClient{
		client:      client,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}
}

// Complete sends a prompt and returns the raw response text
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 || maxTokens > c.maxTokens {
		maxTokens = c.maxTokens
	}

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a business communication analyst. Respond only with the requested structure.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from OpenAI")
	}

	c.logger.Debug("OpenAI completion",
		zap.String("model", c.modelName),
		zap.String("processing_id", resp.ID),
		zap.Int("prompt_len", len(prompt)))

	return resp.Choices[0].Message.Content, nil
}
