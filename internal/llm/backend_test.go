package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func completionJSON(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(body)
}

func newTestBackend(t *testing.T, handler http.HandlerFunc) *OpenAIBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIBackend(OpenAIConfig{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		DefaultModel: "gpt-4o-mini",
	}, zaptest.NewLogger(t))
}

func TestComplete_Success(t *testing.T) {
	var got map[string]any
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionJSON("  Almanya'da üç üniversite öneriyorum.  ")))
	})

	text, err := backend.Complete(context.Background(), Request{
		SystemPrompt: "You are Edu Bot.",
		UserMessage:  "Almanya'da üniversite",
		MaxTokens:    300,
		Temperature:  0.3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Almanya'da üç üniversite öneriyorum.", text)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.EqualValues(t, 300, got["max_tokens"])
	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestComplete_ModelOverride(t *testing.T) {
	var model string
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		model, _ = body["model"].(string)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionJSON("ok")))
	})

	_, err := backend.Complete(context.Background(), Request{UserMessage: "hi", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", model)
}

func TestComplete_ServerErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	})

	_, err := backend.Complete(context.Background(), Request{UserMessage: "hi"})
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestComplete_EmptyContent(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionJSON("   ")))
	})

	_, err := backend.Complete(context.Background(), Request{UserMessage: "hi"})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestComplete_Timeout(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := backend.Complete(ctx, Request{UserMessage: "hi"})
	assert.ErrorIs(t, err, ErrTimeout)
}
