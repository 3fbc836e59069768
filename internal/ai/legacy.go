// Package ai – legacy backend
//
// This file implements the legacy single-model backend strategy: a plain
// OpenAI-compatible chat-completions endpoint spoken over HTTP/JSON. The
// product ran on this shape before the multi-model backend existed, and a
// subset of the catalog still routes here.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// LegacyBackend services catalog models whose provider is
// catalog.ProviderLegacy by POSTing to an OpenAI-compatible
// /v1/chat/completions endpoint.
type LegacyBackend struct {
	baseURL   string
	apiKey    string
	maxTokens int
	client    *http.Client
}

// NewLegacyBackend constructs a backend against baseURL (e.g.
// "https://api.openai.com"). maxTokens caps each completion; values <= 0
// default to 1024. A nil client gets a 60s-timeout default; per-request
// deadlines still come from ctx.
func NewLegacyBackend(baseURL, apiKey string, maxTokens int, client *http.Client) *LegacyBackend {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &LegacyBackend{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		maxTokens: maxTokens,
		client:    client,
	}
}

// chatRequest is the wire shape of a chat-completions call.
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the subset of the response the backend consumes. Usage may
// be absent; zero counts trigger the invoker's estimation fallback.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements Backend.
func (b *LegacyBackend) Complete(ctx context.Context, modelID, system, prompt string) (*Completion, error) {
	msgs := make([]chatMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{Model: modelID, Messages: msgs, MaxTokens: b.maxTokens})
	if err != nil {
		return nil, fmt.Errorf("legacy backend: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("legacy backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("legacy backend: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("legacy backend: read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("legacy backend: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := "request failed"
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("legacy backend: status %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("legacy backend: empty choices")
	}

	return &Completion{
		Text:      parsed.Choices[0].Message.Content,
		TokensIn:  parsed.Usage.PromptTokens,
		TokensOut: parsed.Usage.CompletionTokens,
	}, nil
}
