// Package ai – Anthropic backend
//
// This file implements the multi-model backend strategy on top of the
// official anthropic-sdk-go client. It is deliberately thin: request
// assembly, one Messages.New call, and response flattening. Usage counts
// come straight from the API response, so the invoker's estimation fallback
// rarely fires for this backend.
package ai

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicMessages is the slice of the SDK surface this backend uses.
// Narrowed to an interface so tests can substitute a fake without network.
type anthropicMessages interface {
	New(ctx context.Context, params sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicBackend services catalog models whose provider is
// catalog.ProviderAnthropic.
type AnthropicBackend struct {
	messages  anthropicMessages
	maxTokens int64
}

// NewAnthropicBackend constructs a backend authenticated with apiKey.
// maxTokens caps each completion; values <= 0 default to 1024.
func NewAnthropicBackend(apiKey string, maxTokens int64) *AnthropicBackend {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicBackend{messages: &client.Messages, maxTokens: maxTokens}
}

// Complete implements Backend.
func (b *AnthropicBackend) Complete(ctx context.Context, modelID, system, prompt string) (*Completion, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: b.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}

	msg, err := b.messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return &Completion{
		Text:      sb.String(),
		TokensIn:  int(msg.Usage.InputTokens),
		TokensOut: int(msg.Usage.OutputTokens),
	}, nil
}
