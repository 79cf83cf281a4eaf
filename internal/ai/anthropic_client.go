package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient is the alternative provider selected with AI_PROVIDER=anthropic
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicClient creates a Messages API client
func NewAnthropicClient(apiKey, model string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is empty")
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: 4096,
	}, nil
}

// GenerateContent sends a text prompt
func (c *AnthropicClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	return c.send(ctx, anthropic.NewTextBlock(prompt))
}

// GenerateWithImage sends the image block followed by the prompt
func (c *AnthropicClient) GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(image)
	return c.send(ctx,
		anthropic.NewImageBlockBase64(mimeType, encoded),
		anthropic.NewTextBlock(prompt),
	)
}

func (c *AnthropicClient) send(ctx context.Context, blocks ...anthropic.ContentBlockParamUnion) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("anthropic response size=%d tokens_in=%d tokens_out=%d", len(block.Text), message.Usage.InputTokens, message.Usage.OutputTokens)
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in anthropic response")
}
