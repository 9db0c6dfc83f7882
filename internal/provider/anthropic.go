package provider

import (
	"context"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/harrison/orchestra/internal/models"
)

// AnthropicModel is a Model backed by the Anthropic Messages API,
// streaming text deltas into onChunk as they arrive.
type AnthropicModel struct {
	client    sdk.Client
	modelName string
	maxTokens int64
}

// NewAnthropicModel builds a Model from an API key. modelName should be one
// of the anthropic-sdk-go Model constants (e.g. sdk.ModelClaudeSonnet4_5).
func NewAnthropicModel(apiKey, modelName string, maxTokens int64) *AnthropicModel {
	return &AnthropicModel{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		modelName: modelName,
		maxTokens: maxTokens,
	}
}

// Complete sends the conversation as a single streaming Messages request
// and feeds text deltas through onChunk as they're received.
func (m *AnthropicModel) Complete(ctx context.Context, systemPrompt string, conversation []models.Message, onChunk func(string)) (string, error) {
	var msgs []sdk.MessageParam
	for _, msg := range conversation {
		switch msg.Role {
		case models.MessageAssistant:
			msgs = append(msgs, sdk.NewAssistantMessage(sdk.NewTextBlock(msg.Content)))
		default:
			msgs = append(msgs, sdk.NewUserMessage(sdk.NewTextBlock(msg.Content)))
		}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(m.modelName),
		MaxTokens: m.maxTokens,
		Messages:  msgs,
	}
	if systemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: systemPrompt}}
	}

	stream := m.client.Messages.NewStreaming(ctx, params)
	var full string
	for stream.Next() {
		event := stream.Current()
		delta, ok := event.AsAny().(sdk.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		text := delta.Delta.Text
		if text == "" {
			continue
		}
		full += text
		if onChunk != nil {
			onChunk(text)
		}
	}
	if err := stream.Err(); err != nil {
		return full, fmt.Errorf("anthropic stream: %w", err)
	}
	return full, nil
}
