// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaudeBackend_Complete(t *testing.T) {
	var got claudeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content": [{"type": "text", "text": "\"simpleSummary\": \"ok\"}"}]}`))
	}))
	defer srv.Close()

	b := &ClaudeBackend{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL}
	text, err := b.Complete(context.Background(), CompletionRequest{
		SystemPrompt:   "system",
		UserPrompt:     "user",
		ResponseFormat: FormatJSON,
		MaxTokens:      100,
		Temperature:    0.2,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"simpleSummary": "ok"}`, text)

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, "system", got.System)
	assert.Equal(t, 100, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, "{", got.Messages[1].Content)
}

func TestClaudeBackend_TextFormatHasNoPrefill(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Messages, 1)
		w.Write([]byte(`{"content": [{"type": "text", "text": "plain"}]}`))
	}))
	defer srv.Close()

	b := &ClaudeBackend{BaseURL: srv.URL}
	text, err := b.Complete(context.Background(), CompletionRequest{UserPrompt: "u", ResponseFormat: FormatText})
	require.NoError(t, err)
	assert.Equal(t, "plain", text)
}

func TestClaudeBackend_ErrorStatus(t *testing.T) {
	tests := []struct {
		status    int
		body      string
		auth      bool
		retriable bool
		errType   string
	}{
		{401, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, true, false, "authentication_error"},
		{429, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, false, true, "rate_limit_error"},
		{529, `{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`, false, true, "overloaded_error"},
		{400, `not json`, false, false, ""},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			b := &ClaudeBackend{BaseURL: srv.URL}
			_, err := b.Complete(context.Background(), CompletionRequest{UserPrompt: "u"})

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.auth, apiErr.IsAuth())
			assert.Equal(t, tt.retriable, apiErr.IsRetriable())
			assert.Equal(t, tt.errType, apiErr.Type)
		})
	}
}

func TestClaudeBackend_NetworkTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	b := &ClaudeBackend{BaseURL: srv.URL}
	_, err := b.Complete(ctx, CompletionRequest{UserPrompt: "u"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, apiErr.StatusCode)
	assert.True(t, apiErr.IsRetriable())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
