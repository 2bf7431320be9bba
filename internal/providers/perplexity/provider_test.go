package perplexity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers/testutil"
	"github.com/AI-Template-SDK/senso-tracker/internal/resilience"
)

func TestAsk(t *testing.T) {
	srv := testutil.NewMockAPIServer(http.StatusOK, testutil.SamplePerplexityPayload())
	defer srv.Close()

	p := NewProvider(config.PerplexityConfig{APIKey: "pk", Model: "sonar", BaseURL: srv.URL()})
	assert.Equal(t, "perplexity", p.Name())
	assert.Equal(t, "sonar", p.Model())

	answer, err := p.Ask(context.Background(), "give me the best home insurance companies in Ontario")
	require.NoError(t, err)
	assert.Equal(t, "Wawanesa is well rated [1].", answer.Text)
	assert.Equal(t, []string{"ratehub.ca", "ibc.ca"}, answer.Sources)
	assert.Equal(t, 10, answer.InputTokens)
	assert.Equal(t, 5, answer.OutputTokens)

	req := srv.LastRequest()
	assert.Equal(t, "/chat/completions", req.Path)
	assert.Equal(t, "Bearer pk", req.Header.Get("Authorization"))

	var body ChatCompletionRequest
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, "sonar", body.Model)
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "user", body.Messages[0].Role)
	require.NotNil(t, body.WebSearchOptions)
	assert.Equal(t, "CA", body.WebSearchOptions.UserLocation.Country)
}

func TestChatCompletion_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantErr       string
		wantTransient bool
	}{
		{name: "server_unavailable", status: http.StatusServiceUnavailable, body: `{}`, wantErr: "unexpected status 503", wantTransient: true},
		{name: "bad_request", status: http.StatusBadRequest, body: `{}`, wantErr: "unexpected status 400"},
		{name: "malformed_response", status: http.StatusOK, body: `{invalid`, wantErr: "unmarshal response"},
		{name: "no_choices", status: http.StatusOK, body: `{"choices":[]}`, wantErr: "no choices"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.NewMockAPIServer(tt.status, tt.body)
			defer srv.Close()

			p := NewProvider(config.PerplexityConfig{APIKey: "pk", BaseURL: srv.URL()})
			_, err := p.Ask(context.Background(), "q")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var te *resilience.TransientError
			assert.Equal(t, tt.wantTransient, errors.As(err, &te))
		})
	}
}

func TestNewProvider_DefaultModel(t *testing.T) {
	p := NewProvider(config.PerplexityConfig{APIKey: "pk"})
	assert.Equal(t, defaultModel, p.Model())
}
