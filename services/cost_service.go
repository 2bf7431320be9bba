// services/cost_service.go
package services

import (
	"strings"

	"github.com/AI-Template-SDK/senso-tracker/internal/providers"
)

type costService struct{}

func NewCostService() CostService {
	return &costService{}
}

// Cost per 1M tokens
var costPerToken = map[string]struct{ input, output float64 }{
	"gpt-4o":                   {input: 2.50, output: 10.00},
	"gpt-4.1":                  {input: 2.00, output: 8.00},
	"gpt-4.1-mini":             {input: 0.40, output: 1.60},
	"claude-sonnet-4-20250514": {input: 3.00, output: 15.00},
	"gemini-2.5-flash":         {input: 0.30, output: 2.50},
	"sonar":                    {input: 1.00, output: 1.00},
}

// Cost per 1000 web searches
var costPerWebSearch = map[providers.ID]float64{
	providers.ChatGPT:    25.00,
	providers.Claude:     10.00,
	providers.Perplexity: 5.00,
	providers.Gemini:     35.00,
}

func (s *costService) CalculateCost(provider string, model string, inputTokens int, outputTokens int, websearch bool) float64 {
	modelCosts, exists := costPerToken[model]
	if !exists {
		modelCosts = costPerToken["gpt-4.1"]
	}

	totalCost := (float64(inputTokens)/1_000_000.0)*modelCosts.input +
		(float64(outputTokens)/1_000_000.0)*modelCosts.output

	if websearch {
		if searchCost, ok := costPerWebSearch[providerKey(provider)]; ok {
			totalCost += searchCost / 1000.0
		}
	}

	return totalCost
}

func providerKey(provider string) providers.ID {
	if id, err := providers.Parse(provider); err == nil {
		return id
	}
	provider = strings.ToLower(provider)
	switch {
	case strings.Contains(provider, "gpt"):
		return providers.ChatGPT
	case strings.Contains(provider, "sonar"):
		return providers.Perplexity
	}
	return providers.ChatGPT
}
