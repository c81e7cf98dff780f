package inference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHF(t *testing.T, h http.HandlerFunc, policy string) *HuggingFace {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewHuggingFace(HFConfig{APIKey: "test-key", Model: "org/vision-model", BaseURL: srv.URL, ProviderPolicy: policy})
	require.NoError(t, err)
	return c
}

func TestHuggingFace_Complete(t *testing.T) {
	t.Run("sends one user message with text then image and returns first choice", func(t *testing.T) {
		var got map[string]any
		c := newTestHF(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &got))
			_, _ = w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"a red bicycle"}},{"index":1,"message":{"content":"ignored"}}]}`))
		}, DefaultProviderPolicy)

		text, err := c.Complete(context.Background(), BuildPrompt("what is this?", "https://img.example/a.png"))
		require.NoError(t, err)
		assert.Equal(t, "a red bicycle", text)

		assert.Equal(t, "org/vision-model:fireworks-ai", got["model"])
		assert.EqualValues(t, 500, got["max_tokens"])
		assert.Equal(t, false, got["stream"])
		msgs := got["messages"].([]any)
		require.Len(t, msgs, 1)
		msg := msgs[0].(map[string]any)
		assert.Equal(t, "user", msg["role"])
		parts := msg["content"].([]any)
		require.Len(t, parts, 2)
		assert.Equal(t, map[string]any{"type": "text", "text": "what is this?"}, parts[0])
		assert.Equal(t, map[string]any{"type": "image_url", "image_url": map[string]any{"url": "https://img.example/a.png"}}, parts[1])
	})

	t.Run("provider error object keeps status, code and message", func(t *testing.T) {
		c := newTestHF(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("x-request-id", "req-9")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid credentials in Authorization header","type":"invalid_request_error"}}`))
		}, "")

		_, err := c.Complete(context.Background(), BuildPrompt("q", "https://img.example/a.png"))
		require.Error(t, err)
		var pe *ProviderError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "Invalid credentials in Authorization header", err.Error())
		assert.Equal(t, http.StatusUnauthorized, pe.Status)
		assert.Equal(t, "invalid_request_error", pe.Code)
		assert.Equal(t, "req-9", pe.RequestID)
		assert.False(t, pe.Retryable())
	})

	t.Run("plain string error body", func(t *testing.T) {
		c := newTestHF(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"Model is currently loading"}`))
		}, "")

		_, err := c.Complete(context.Background(), BuildPrompt("q", "https://img.example/a.png"))
		require.Error(t, err)
		assert.Equal(t, "Model is currently loading", err.Error())
		assert.True(t, IsRetryable(err))
	})

	t.Run("empty choices is an error", func(t *testing.T) {
		c := newTestHF(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}, "")

		_, err := c.Complete(context.Background(), BuildPrompt("q", "https://img.example/a.png"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNoChoices))
	})
}

func TestHuggingFace_ModelString(t *testing.T) {
	cases := []struct {
		model, policy, want string
	}{
		{"org/m", "", "org/m"},
		{"org/m", "auto", "org/m"},
		{"org/m", "together", "org/m:together"},
		{"org/m:groq", "together", "org/m:groq"},
	}
	for _, tc := range cases {
		c, err := NewHuggingFace(HFConfig{APIKey: "k", Model: tc.model, ProviderPolicy: tc.policy})
		require.NoError(t, err)
		assert.Equal(t, tc.want, c.modelString())
	}
}

func TestNewHuggingFace_RequiresKeyAndModel(t *testing.T) {
	_, err := NewHuggingFace(HFConfig{Model: "m"})
	assert.Error(t, err)
	_, err = NewHuggingFace(HFConfig{APIKey: "k"})
	assert.Error(t, err)
}

func TestHuggingFace_TransportErrorIsRetryable(t *testing.T) {
	c, err := NewHuggingFace(HFConfig{APIKey: "k", Model: "m", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), BuildPrompt("q", "https://img.example/a.png"))
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestProviderError_Detail(t *testing.T) {
	pe := &ProviderError{Provider: "huggingface", Status: 429, Code: "rate_limit", Message: "slow down"}
	assert.Equal(t, "huggingface: slow down (status=429, code=rate_limit)", pe.Detail())
	pe.RequestID = "abc"
	assert.Equal(t, "huggingface: slow down (status=429, code=rate_limit, request_id=abc)", pe.Detail())
	assert.Equal(t, "slow down", pe.Error())
}
