package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

// Completion providers accepted by completion.provider
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderLocal     = "local"
)

// Completer sends one system/user exchange to a text-completion service
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// NewCompleter returns the client for the configured provider, or nil for the
// local provider, which converts without a service
func NewCompleter(cfg *Config) (Completer, error) {
	settings := cfg.Settings.Completion
	switch settings.Provider {
	case ProviderOpenAI:
		return &OpenAIClient{
			endpoint:    strings.TrimRight(settings.Endpoint, "/"),
			apiKey:      cfg.Credentials.OpenAIKey,
			model:       settings.Model,
			maxTokens:   settings.MaxTokens,
			temperature: settings.Temperature,
			httpClient:  &http.Client{Timeout: cfg.Settings.CompletionTimeout()},
		}, nil
	case ProviderAnthropic:
		return &AnthropicClient{
			apiKey: cfg.Credentials.AnthropicKey,
			settings: types.RequestSettings{
				Model:       settings.Model,
				MaxTokens:   settings.MaxTokens,
				Temperature: settings.Temperature,
			},
		}, nil
	case ProviderLocal:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", settings.Provider)
	}
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint
type OpenAIClient struct {
	endpoint    string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete posts a chat completion request and returns the first choice
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in API response")
	}
	debugLog("completion used %d prompt / %d completion tokens",
		chatResp.Usage.PromptTokens, chatResp.Usage.CompletionTokens)

	return chatResp.Choices[0].Message.Content, nil
}

// AnthropicClient sends prompts through llmkit
type AnthropicClient struct {
	apiKey   string
	settings types.RequestSettings
}

// Complete runs one prompt. llmkit has no context support, so cancellation
// only stops waiting for the answer.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		response, err := anthropic.PromptWithSettings(systemPrompt, userPrompt, "", c.apiKey, c.settings)
		if err != nil {
			done <- result{err: fmt.Errorf("anthropic prompt failed: %w", err)}
			return
		}
		if len(response.Content) == 0 {
			done <- result{err: fmt.Errorf("no content in response")}
			return
		}
		done <- result{text: response.Content[0].Text}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
