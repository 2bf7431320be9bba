package gemini_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers/gemini"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers/testutil"
)

func TestAsk(t *testing.T) {
	srv := testutil.NewMockAPIServer(http.StatusOK, testutil.SampleGeminiPayload())
	defer srv.Close()

	p, err := gemini.NewProvider(context.Background(),
		config.GeminiConfig{APIKey: "gk", Model: "gemini-2.5-flash"},
		gemini.WithBaseURL(srv.URL()+"/"),
	)
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())

	answer, err := p.Ask(context.Background(), "give me the best auto insurance companies in Manitoba")
	require.NoError(t, err)

	assert.Equal(t, "Wawanesa and Intact both serve Manitoba.", answer.Text)
	// titles pass through without URL normalization
	assert.Equal(t, []string{"wawanesa.com", "Insurance Bureau of Canada"}, answer.Sources)
	assert.Equal(t, 12, answer.InputTokens)
	assert.Equal(t, 30, answer.OutputTokens)

	req := srv.LastRequest()
	assert.True(t, strings.HasSuffix(req.Path, "models/gemini-2.5-flash:generateContent"), req.Path)
	assert.Contains(t, string(req.Body), "googleSearch")
}

func TestAsk_ServerError(t *testing.T) {
	srv := testutil.NewMockAPIServer(http.StatusServiceUnavailable, `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`)
	defer srv.Close()

	p, err := gemini.NewProvider(context.Background(), config.GeminiConfig{APIKey: "gk"}, gemini.WithBaseURL(srv.URL()+"/"))
	require.NoError(t, err)

	answer, err := p.Ask(context.Background(), "q")
	require.Error(t, err)
	assert.Nil(t, answer)
}
