// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ResponseFormat tells a provider what shape of answer to produce.
type ResponseFormat string

const (
	FormatText ResponseFormat = "text"
	FormatJSON ResponseFormat = "json"
)

// CompletionRequest is one call to the analysis provider.
type CompletionRequest struct {
	SystemPrompt   string
	UserPrompt     string
	ResponseFormat ResponseFormat
	MaxTokens      int
	Temperature    float64
}

// Provider abstracts the external analysis API so tests can supply a fake.
// Complete returns the raw text of the model's answer.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// APIError is a failed provider call. StatusCode 0 means no HTTP response
// was received (network failure or timeout).
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("provider request failed: %s", e.Message)
	}
	if e.Type != "" {
		return fmt.Sprintf("provider returned HTTP %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("provider returned HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsAuth reports whether the credential was rejected.
func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsRetriable reports whether the call may succeed if repeated: network
// failures, rate limiting (429), and server errors (5xx).
func (e *APIError) IsRetriable() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// anthropicVersion is the Messages API version header value.
const anthropicVersion = "2023-06-01"

// DefaultBaseURL is the Anthropic API root.
const DefaultBaseURL = "https://api.anthropic.com"

// ClaudeBackend calls the Anthropic Messages API.
type ClaudeBackend struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type claudeErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// jsonPrefill starts the assistant turn so the model continues a JSON object.
const jsonPrefill = "{"

// Complete sends one Messages API request. For FormatJSON the assistant
// turn is prefilled with "{" and the prefill is restored on the returned
// text.
func (c *ClaudeBackend) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := []claudeMessage{{Role: "user", Content: req.UserPrompt}}
	if req.ResponseFormat == FormatJSON {
		messages = append(messages, claudeMessage{Role: "assistant", Content: jsonPrefill})
	}

	body, err := json.Marshal(claudeRequest{
		Model:       c.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      req.SystemPrompt,
		Messages:    messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", &APIError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var eb claudeErrorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error.Message != "" {
			apiErr.Type = eb.Error.Type
			apiErr.Message = eb.Error.Message
		}
		return "", apiErr
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", &APIError{Message: err.Error(), Err: err}
		}
		return "", fmt.Errorf("decoding provider response: %w", err)
	}

	var b strings.Builder
	for _, block := range cResp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := b.String()
	if req.ResponseFormat == FormatJSON && !strings.HasPrefix(strings.TrimSpace(text), jsonPrefill) {
		text = jsonPrefill + text
	}
	return text, nil
}
