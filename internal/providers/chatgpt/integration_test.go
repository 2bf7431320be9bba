//go:build integration
// +build integration

package chatgpt_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers/chatgpt"
)

// TestAskIntegration calls the real Responses API
// Run with: go test -tags=integration ./internal/providers/chatgpt/
func TestAskIntegration(t *testing.T) {
	apiKey := os.Getenv("TRACKER_OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping integration test: TRACKER_OPENAI_API_KEY not set")
	}

	provider := chatgpt.NewProvider(config.OpenAIConfig{APIKey: apiKey, Model: "gpt-4o"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	answer, err := provider.Ask(ctx, "give me the best auto insurance companies in Winnipeg")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer.Text == "" {
		t.Fatal("expected non-empty answer")
	}
	t.Logf("answer: %d chars, %d sources, %d/%d tokens",
		len(answer.Text), len(answer.Sources), answer.InputTokens, answer.OutputTokens)
}
