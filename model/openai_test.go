package model

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-handler/logging"
	"persona-handler/prompts"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/v1", "test-key", 0, logging.Discard())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func completion(content string) map[string]any {
	return map[string]any{
		"id":     "cmpl-1",
		"object": "chat.completion",
		"model":  "m1",
		"choices": []any{
			map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
	}
}

func TestCompleteSendsParams(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, completion("Hi there"))
	})

	req := NewRequest(
		prompts.Prompt{prompts.System("be nice"), prompts.User("hello")},
		"m1",
		Params{Temperature: 0.5, MaxTokens: 64, LogitBias: map[string]int{"50256": -100}},
	)
	text, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)

	assert.Equal(t, "m1", body["model"])
	assert.EqualValues(t, 64, body["max_tokens"])
	assert.InDelta(t, 0.5, body["temperature"], 1e-6)
	assert.Len(t, body["messages"], 2)
	assert.Equal(t, map[string]any{"50256": float64(-100)}, body["logit_bias"])
}

func TestCompleteNoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "x", "choices": []any{}})
	})

	_, err := c.Complete(context.Background(), NewRequest(nil, "m2", Params{}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProvider))

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "m2", pe.Model)
	assert.Equal(t, "no choices", pe.Reason)
}

func TestCompleteErrorPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{"message": "model overloaded", "type": "server_error"},
		})
	})

	_, err := c.Complete(context.Background(), NewRequest(nil, "m3", Params{}))
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "model overloaded", pe.Reason)
}

func TestDescribeAttachesImage(t *testing.T) {
	var body struct {
		Messages []struct {
			Role    string           `json:"role"`
			Content []map[string]any `json:"content"`
		} `json:"messages"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, completion("a cat"))
	})

	req := NewRequest(prompts.Prompt{prompts.User("what is it?")}, "vision", Params{})
	text, err := c.Describe(context.Background(), req, "https://img.example/cat.png")
	require.NoError(t, err)
	assert.Equal(t, "a cat", text)

	require.Len(t, body.Messages, 1)
	parts := body.Messages[0].Content
	require.Len(t, parts, 2)
	assert.Equal(t, "what is it?", parts[0]["text"])
	assert.Equal(t, "image_url", parts[1]["type"])
}

func TestEmbedOrdersByIndex(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"object": "list",
			"data": []any{
				map[string]any{"object": "embedding", "index": 1, "embedding": []float32{0, 1}},
				map[string]any{"object": "embedding", "index": 0, "embedding": []float32{1, 0}},
			},
		})
	})

	vectors, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
}

func TestWithModelCopiesRequest(t *testing.T) {
	base := NewRequest(
		prompts.Prompt{prompts.User("q")}, "m1",
		Params{Temperature: 0.7, MaxTokens: 10, LogitBias: map[string]int{"1": 1}},
	)
	next := base.WithModel("m2")
	next.Params.LogitBias["1"] = 5

	assert.Equal(t, "m2", next.Model)
	assert.Equal(t, "m1", base.Model)
	assert.Equal(t, 1, base.Params.LogitBias["1"])
	assert.Equal(t, base.Prompt, next.Prompt)
	assert.Equal(t, base.Params.Temperature, next.Params.Temperature)
}
