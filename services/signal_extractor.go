// services/signal_extractor.go
package services

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/metrics"
	"github.com/AI-Template-SDK/senso-tracker/internal/models"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers/common"
	"github.com/AI-Template-SDK/senso-tracker/internal/resilience"
)

type signalExtractor struct {
	extraction ExtractionService
	metrics    *metrics.TrackerMetrics
}

func NewSignalExtractor(extraction ExtractionService, m *metrics.TrackerMetrics) SignalExtractor {
	return &signalExtractor{extraction: extraction, metrics: m}
}

// Extract matches brand and competitor aliases in the answer and resolves rank
// and sentiment through the extraction service. Rank and sentiment run concurrently.
// A transient failure that outlasts its retries leaves the signal nil; any other
// failure is returned.
func (e *signalExtractor) Extract(ctx context.Context, answer *common.Answer, tracking *config.Tracking) (*models.ExtractionResult, error) {
	if answer == nil {
		answer = &common.Answer{}
	}

	sources := answer.Sources
	if sources == nil {
		sources = []string{}
	}

	presence := MatchPhrases(answer.Text, tracking.SearchPhrases)
	result := &models.ExtractionResult{
		AnswerText:        answer.Text,
		Sources:           sources,
		PresenceMatches:   presence,
		HasMatch:          AnyMatch(presence),
		CompetitorMatches: matchCompetitors(answer.Text, tracking.Competitors),
		InputTokens:       answer.InputTokens,
		OutputTokens:      answer.OutputTokens,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		orgs, err := e.extraction.ExtractOrganizations(gctx, answer.Text)
		if err != nil {
			return e.degrade("ranking", err)
		}
		result.Rank = ResolveRank(orgs, tracking.SearchPhrases)
		e.metrics.ObserveExtraction("ranking", "ok")
		return nil
	})
	g.Go(func() error {
		sentiments, err := e.extraction.ExtractSentiments(gctx, answer.Text)
		if err != nil {
			return e.degrade("sentiment", err)
		}
		result.Sentiment = ResolveSentiment(sentiments, tracking.SearchPhrases)
		e.metrics.ObserveExtraction("sentiment", "ok")
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// degrade swallows transient errors and returns everything else
func (e *signalExtractor) degrade(kind string, err error) error {
	if resilience.IsTransient(err) {
		zap.L().Warn("extraction degraded after retries", zap.String("kind", kind), zap.Error(err))
		e.metrics.ObserveExtraction(kind, "degraded")
		return nil
	}
	e.metrics.ObserveExtraction(kind, "error")
	return err
}

// matchCompetitors flags each competitor key by whole-word match of its alias
func matchCompetitors(text string, competitors config.Competitors) map[string]int {
	byAlias := MatchPhrases(text, competitors.Aliases())
	matches := make(map[string]int, len(competitors))
	for _, c := range competitors {
		matches[c.Key] = byAlias[c.Alias]
	}
	return matches
}
