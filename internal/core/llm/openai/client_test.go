package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/core/llm"
)

func TestClient_Summarize(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini-2024-07-18",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "A short summary."}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o-mini"}, nil)
	resp, err := c.Summarize(context.Background(), llm.Request{Prompt: "summarize this", Temperature: 0.2, MaxTokens: 64})
	require.NoError(t, err)

	assert.Equal(t, "A short summary.", resp.Summary)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", resp.Info.Model)
	assert.Equal(t, int64(12), resp.Info.PromptEvalCount)
	assert.Equal(t, int64(4), resp.Info.EvalCount)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.EqualValues(t, 64, got["max_tokens"])
	assert.EqualValues(t, 0.2, got["temperature"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
}

func TestClient_SummarizeErrorIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil)
	_, err := c.Summarize(context.Background(), llm.Request{Prompt: "x", MaxTokens: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExternalCall)
	assert.Contains(t, err.Error(), "Error calling OpenAI API")
	assert.Equal(t, 1, calls)
}
