package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillwire/skillwire/core"
	"github.com/skillwire/skillwire/resilience"
)

func fastRetry() *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func chatCompletion(content string) map[string]interface{} {
	return map[string]interface{}{
		"model": "test-model",
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
		"usage": map[string]int{
			"prompt_tokens":     10,
			"completion_tokens": 5,
			"total_tokens":      15,
		},
	}
}

func TestChatSuccess(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(chatCompletion("hello there"))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, WithRetry(fastRetry()), WithModel("test-model"))
	resp, err := client.Chat(context.Background(), []core.ChatMessage{
		{Role: "user", Content: "hi"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, "test-model", resp.Model)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "test-model", gotBody.Model)
	require.Len(t, gotBody.Messages, 1)
	assert.Equal(t, "hi", gotBody.Messages[0].Content)
}

func TestChatSystemPromptPrepended(t *testing.T) {
	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(chatCompletion("ok"))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, WithRetry(fastRetry()))
	_, err := client.Chat(context.Background(), []core.ChatMessage{
		{Role: "user", Content: "hi"},
	}, &core.AIOptions{SystemPrompt: "be terse"})
	require.NoError(t, err)

	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
	assert.Equal(t, "be terse", gotBody.Messages[0].Content)
}

func TestChatRetriesTransientFailures(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(chatCompletion("recovered"))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, WithRetry(fastRetry()))
	resp, err := client.Chat(context.Background(), []core.ChatMessage{{Role: "user", Content: "hi"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestChatDoesNotRetryClientErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "bad model name", "type": "invalid_request_error"},
		})
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, WithRetry(fastRetry()))
	_, err := client.Chat(context.Background(), []core.ChatMessage{{Role: "user", Content: "hi"}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRequestFailed)
	assert.Contains(t, err.Error(), "bad model name")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts), "client errors are permanent")
}

func TestChatMissingAPIKey(t *testing.T) {
	client := NewClient("", "http://unused")
	_, err := client.Chat(context.Background(), []core.ChatMessage{{Role: "user", Content: "hi"}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMissingConfiguration)
}

func TestChatEmptyConversation(t *testing.T) {
	client := NewClient("test-key", "http://unused")
	_, err := client.Chat(context.Background(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestChatNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"model": "m", "choices": []interface{}{}})
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, WithRetry(fastRetry()))
	_, err := client.Chat(context.Background(), []core.ChatMessage{{Role: "user", Content: "hi"}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRequestFailed)
}
