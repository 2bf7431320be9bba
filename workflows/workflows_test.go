package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkerrors "github.com/inngest/inngestgo/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/models"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers"
	"github.com/AI-Template-SDK/senso-tracker/services"
)

func TestPlatformsToRun(t *testing.T) {
	assert.Equal(t, []string{"chatgpt", "gemini", "perplexity", "claude"}, PlatformsToRun(nil))
	assert.Equal(t, []string{"claude", "chatgpt"}, PlatformsToRun([]string{"Anthropic", "openai", "claude", "bard"}))
}

func TestNewBatchRunEvent(t *testing.T) {
	at := time.Date(2024, 2, 29, 6, 0, 0, 0, time.UTC)
	evt := NewBatchRunEvent("gemini", at, "manual")
	assert.Equal(t, BatchRunEventName, evt.Name)
	assert.Equal(t, "gemini", evt.Data["provider"])
	assert.Equal(t, "2024-02-29T06:00:00Z", evt.Data["requested_at"])
}

func TestSummarize(t *testing.T) {
	res := &services.BatchResult{
		BatchID:  "b1",
		Provider: "perplexity",
		Results: []*models.ExtractionResult{
			{HasMatch: true},
			{HasMatch: false},
			{Error: "timeout"},
		},
		Failed:  1,
		Sources: []models.SourceCount{{Domain: "ibc.ca", Count: 2}},
		Cost:    0.02,
	}
	s := Summarize(res, time.Date(2024, 2, 7, 6, 0, 0, 0, time.UTC))
	assert.Equal(t, BatchSummary{
		BatchID: "b1", Provider: "perplexity", Date: "202402", Day: "07",
		Cells: 3, Failed: 1, Matched: 1, Sources: 1, Cost: 0.02,
	}, s)
}

func TestNewSlackAlerter_EmptyURLDisables(t *testing.T) {
	a := NewSlackAlerter("")
	assert.Nil(t, a)
	assert.NoError(t, a.Alert(context.Background(), "t", "d"))
}

func TestSlackAlerter_Posts(t *testing.T) {
	var got slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewSlackAlerter(srv.URL)
	a.now = func() time.Time { return time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC) }

	require.NoError(t, a.Alert(context.Background(), "Tracker batch failed", "provider=gemini"))
	assert.Contains(t, got.Text, "*Tracker batch failed*")
	assert.Contains(t, got.Text, "2024-03-01T06:00:00Z")
	assert.Contains(t, got.Text, "provider=gemini")
}

func TestSlackAlerter_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewSlackAlerter(srv.URL).Alert(context.Background(), "t", "d")
	assert.EqualError(t, err, "slack webhook returned status 403")
}

func TestBatchFailureDetail(t *testing.T) {
	assert.Equal(t, "provider=claude error=boom", BatchFailureDetail("claude", nil, errors.New("boom")))
	assert.Equal(t, "provider=chatgpt batch_id=b1 failed=2/9",
		BatchFailureDetail("chatgpt", &BatchSummary{BatchID: "b1", Failed: 2, Cells: 9}, nil))
}

func TestZeroVisibilityDetail(t *testing.T) {
	r := &services.ScoreReport{ZeroVisibilityLocations: []string{"Brandon", "Manitoba"}}
	assert.Equal(t, "month=202403 locations=Brandon, Manitoba", ZeroVisibilityDetail("202403", r))
}

func TestRetryPolicy(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retriable bool
	}{
		{"config error", &config.ConfigError{Path: "config/tracking.yaml", Missing: []string{"products"}}, false},
		{"unsupported provider", fmt.Errorf("run: %w", &providers.UnsupportedProviderError{ID: "bard"}), false},
		{"partial persist", &services.PersistError{Written: 3, Failed: 1, Err: errors.New("insert failed")}, false},
		{"wrapped partial persist", fmt.Errorf("step 'persist' failed: %w", &services.PersistError{Written: 1, Failed: 4, Err: errors.New("x")}), false},
		{"nothing persisted", &services.PersistError{Written: 0, Failed: 5, Err: errors.New("db down")}, true},
		{"provider outage", errors.New("service unavailable"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RetryPolicy(tt.err)
			require.Error(t, got)
			assert.Equal(t, !tt.retriable, sdkerrors.IsNoRetryError(got))
		})
	}
	assert.NoError(t, RetryPolicy(nil))
}

func TestSummarizeMaps(t *testing.T) {
	rank := 2
	avg := 2.0
	res := &services.MapsResult{
		BatchID: "m1",
		Cells: []*services.MapsCell{
			{Product: "auto", Location: "Winnipeg", Rank: &rank},
			{Product: "home", Location: "Winnipeg"},
			{Product: "auto", Location: "Manitoba", Error: "timeout"},
		},
		Failed:      1,
		AverageRank: &avg,
	}

	s := SummarizeMaps(res, time.Date(2024, 3, 9, 7, 0, 0, 0, time.UTC))
	assert.Equal(t, "202403", s.Date)
	assert.Equal(t, "09", s.Day)
	assert.Equal(t, 3, s.Cells)
	assert.Equal(t, 1, s.Ranked)
	assert.Equal(t, 1, s.Failed)
	require.NotNil(t, s.AverageRank)
	assert.InDelta(t, 2.0, *s.AverageRank, 1e-9)
	assert.Nil(t, s.AverageRating)
}

func TestMapsFailureDetail(t *testing.T) {
	assert.Equal(t, "source=places error=boom", MapsFailureDetail(nil, errors.New("boom")))
	assert.Equal(t, "source=places batch_id=m1 failed=1/6", MapsFailureDetail(&MapsSummary{BatchID: "m1", Failed: 1, Cells: 6}, nil))
}
