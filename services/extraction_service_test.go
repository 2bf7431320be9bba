package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers/testutil"
	"github.com/AI-Template-SDK/senso-tracker/internal/resilience"
)

func chatCompletionBody(content string) string {
	payload := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4.1",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 100, "completion_tokens": 20, "total_tokens": 120},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func newTestExtraction(t *testing.T, handler http.HandlerFunc) ExtractionService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewExtractionService(
		config.OpenAIConfig{APIKey: "test-key", ExtractionModel: "gpt-4.1", BaseURL: srv.URL},
		testutil.NewMockCostService(),
		WithRetryConfig(fastRetry()),
	)
}

func TestExtractOrganizations(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "structured object",
			content: `{"organizations": ["Intact", "Wawanesa Mutual"]}`,
			want:    []string{"Intact", "Wawanesa Mutual"},
		},
		{
			name:    "fenced bare array",
			content: "```json\n[\"Aviva\", \"Wawanesa\"]\n```",
			want:    []string{"Aviva", "Wawanesa"},
		},
		{
			name:    "malformed output degrades to empty",
			content: "Sorry, I cannot help with that.",
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body []byte
			svc := newTestExtraction(t, func(w http.ResponseWriter, r *http.Request) {
				body, _ = io.ReadAll(r.Body)
				assert.Equal(t, "/chat/completions", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, chatCompletionBody(tt.content))
			})

			orgs, err := svc.ExtractOrganizations(context.Background(), testutil.SampleAnswerText)
			require.NoError(t, err)
			assert.Equal(t, tt.want, orgs)
			assert.Contains(t, string(body), "organizations_extraction")
		})
	}
}

func TestExtractOrganizations_EmptyAnswerSkipsCall(t *testing.T) {
	var calls int32
	svc := newTestExtraction(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	orgs, err := svc.ExtractOrganizations(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, orgs)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestExtractSentiments_RetriesServiceUnavailable(t *testing.T) {
	var calls int32
	svc := newTestExtraction(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"error": {"message": "service unavailable", "type": "server_error"}}`)
			return
		}
		io.WriteString(w, chatCompletionBody(`{"sentiments": [{"organization": "Wawanesa", "sentiment_score": 0.6}]}`))
	})

	sentiments, err := svc.ExtractSentiments(context.Background(), testutil.SampleAnswerText)
	require.NoError(t, err)
	require.Len(t, sentiments, 1)
	assert.Equal(t, "Wawanesa", sentiments[0].Organization)
	assert.InDelta(t, 0.6, sentiments[0].SentimentScore, 1e-9)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestExtractSentiments_TransientExhausted(t *testing.T) {
	var calls int32
	svc := newTestExtraction(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error": {"message": "overloaded", "type": "server_error"}}`)
	})

	_, err := svc.ExtractSentiments(context.Background(), testutil.SampleAnswerText)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestExtractOrganizations_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	svc := newTestExtraction(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error": {"message": "bad schema", "type": "invalid_request_error"}}`)
	})

	_, err := svc.ExtractOrganizations(context.Background(), testutil.SampleAnswerText)
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
