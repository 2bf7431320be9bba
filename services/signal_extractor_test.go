package services

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-Template-SDK/senso-tracker/internal/metrics"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers/common"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers/testutil"
	"github.com/AI-Template-SDK/senso-tracker/internal/resilience"
)

func TestSignalExtractor_Extract(t *testing.T) {
	ext := &fakeExtraction{
		orgs:       []string{"Intact Insurance", "Wawanesa Mutual", "Manitoba Public Insurance"},
		sentiments: []OrgSentiment{{Organization: "Wawanesa Mutual", SentimentScore: 0.7}},
	}
	extractor := NewSignalExtractor(ext, nil)

	answer := &common.Answer{
		Text:         testutil.SampleAnswerText,
		Sources:      []string{"wawanesa.com", "intact.ca"},
		InputTokens:  12,
		OutputTokens: 80,
	}
	res, err := extractor.Extract(context.Background(), answer, testutil.SampleTracking())
	require.NoError(t, err)

	assert.True(t, res.HasMatch)
	assert.Equal(t, map[string]int{"Wawanesa": 1, "Wawanesa Mutual": 1}, res.PresenceMatches)
	assert.Equal(t, map[string]int{"competitor_1": 1, "competitor_2": 0}, res.CompetitorMatches)
	require.NotNil(t, res.Rank)
	assert.Equal(t, 2, *res.Rank)
	require.NotNil(t, res.Sentiment)
	assert.InDelta(t, 0.7, *res.Sentiment, 1e-9)
	assert.Equal(t, []string{"wawanesa.com", "intact.ca"}, res.Sources)
	assert.Equal(t, 80, res.OutputTokens)
	assert.Equal(t, 2, ext.calls)
}

func TestSignalExtractor_NilAnswer(t *testing.T) {
	extractor := NewSignalExtractor(&fakeExtraction{}, nil)
	res, err := extractor.Extract(context.Background(), nil, testutil.SampleTracking())
	require.NoError(t, err)
	assert.False(t, res.HasMatch)
	assert.Equal(t, 0, res.TotalCount())
	assert.NotNil(t, res.Sources)
	assert.Nil(t, res.Rank)
	assert.Nil(t, res.Sentiment)
}

func TestSignalExtractor_TransientDegradesToNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	ext := &fakeExtraction{
		orgsErr:    resilience.NewTransientError(errors.New("service unavailable"), 503),
		sentiments: []OrgSentiment{{Organization: "Wawanesa", SentimentScore: -0.2}},
	}

	res, err := NewSignalExtractor(ext, m).Extract(context.Background(), &common.Answer{Text: testutil.SampleAnswerText}, testutil.SampleTracking())
	require.NoError(t, err)
	assert.Nil(t, res.Rank)
	require.NotNil(t, res.Sentiment)
	assert.InDelta(t, -0.2, *res.Sentiment, 1e-9)
	assert.True(t, res.HasMatch)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.Extractions.WithLabelValues("ranking", "degraded")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Extractions.WithLabelValues("sentiment", "ok")))
}

func TestSignalExtractor_OtherErrorsPropagate(t *testing.T) {
	ext := &fakeExtraction{sentimentsErr: errors.New("invalid api key")}
	_, err := NewSignalExtractor(ext, nil).Extract(context.Background(), &common.Answer{Text: "Wawanesa"}, testutil.SampleTracking())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}
