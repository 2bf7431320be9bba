package testutil

import (
	"github.com/AI-Template-SDK/senso-tracker/internal/config"
)

// SampleConfig returns a test configuration
func SampleConfig() *config.Config {
	return &config.Config{
		OpenAI:     config.OpenAIConfig{APIKey: "test-openai-key", Model: "gpt-4o", ExtractionModel: "gpt-4.1"},
		Anthropic:  config.AnthropicConfig{APIKey: "test-anthropic-key", Model: "claude-sonnet-4-20250514"},
		Gemini:     config.GeminiConfig{APIKey: "test-gemini-key", Model: "gemini-2.5-flash"},
		Perplexity: config.PerplexityConfig{APIKey: "test-perplexity-key", Model: "sonar"},
		Runner: config.RunnerConfig{
			Capacity: 7,
			RPM:      map[string]int{"chatgpt": 50, "gemini": 1, "perplexity": 50, "claude": 50},
		},
	}
}

// SampleTracking returns a 2 products x 2 locations tracking configuration
func SampleTracking() *config.Tracking {
	return &config.Tracking{
		Products:      []string{"auto", "home"},
		Locations:     []string{"Winnipeg", "Manitoba"},
		SearchPhrases: []string{"Wawanesa", "Wawanesa Mutual"},
		Competitors: config.Competitors{
			{Key: "competitor_1", Alias: "Intact"},
			{Key: "competitor_2", Alias: "Co-operators"},
		},
		AIPlatforms: []string{"chatgpt"},
	}
}

// SampleAnswerText is a typical recommendation answer mentioning the brand and one competitor
const SampleAnswerText = `Here are some of the best auto insurance companies in Winnipeg:

1. **Intact Insurance** - large national carrier.
2. **Wawanesa Mutual** - strong local presence and claims service.
3. **Manitoba Public Insurance** - basic coverage provider.`

// SampleResponsesPayload returns a Responses API body with url_citation annotations
func SampleResponsesPayload() string {
	return `{
		"id": "resp_123",
		"status": "completed",
		"output": [
			{"id": "ws_1", "type": "web_search_call", "status": "completed"},
			{
				"id": "msg_1",
				"type": "message",
				"status": "completed",
				"content": [
					{
						"type": "output_text",
						"text": "Wawanesa and Intact are popular choices.",
						"annotations": [
							{"type": "url_citation", "start_index": 0, "end_index": 8, "url": "https://www.Wawanesa.com/canada/", "title": "Wawanesa"},
							{"type": "url_citation", "start_index": 13, "end_index": 19, "url": "https://www.intact.ca/mb", "title": "Intact"},
							{"type": "url_citation", "start_index": 0, "end_index": 8, "url": "https://wawanesa.com/about", "title": "About"}
						]
					}
				]
			}
		],
		"usage": {"input_tokens": 120, "output_tokens": 45, "total_tokens": 165}
	}`
}

// SamplePerplexityPayload returns a chat completion body with a flat citations list
func SamplePerplexityPayload() string {
	return `{
		"id": "cmpl-123",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "Wawanesa is well rated [1]."}}],
		"citations": ["https://www.ratehub.ca/car-insurance", "https://www.IBC.ca/mb"],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5}
	}`
}

// SampleGeminiPayload returns a generateContent body with grounding chunk titles
func SampleGeminiPayload() string {
	return `{
		"candidates": [
			{
				"content": {"role": "model", "parts": [{"text": "Wawanesa and Intact both serve Manitoba."}]},
				"finishReason": "STOP",
				"groundingMetadata": {
					"groundingChunks": [
						{"web": {"uri": "https://vertexaisearch.cloud.google.com/grounding-api-redirect/abc", "title": "wawanesa.com"}},
						{"web": {"uri": "https://vertexaisearch.cloud.google.com/grounding-api-redirect/def", "title": "Insurance Bureau of Canada"}}
					]
				}
			}
		],
		"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 30, "totalTokenCount": 42}
	}`
}

// SampleClaudePayload returns a Messages API body with web search citations
func SampleClaudePayload() string {
	return `{
		"id": "msg_01",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-20250514",
		"content": [
			{"type": "text", "text": "Top options include "},
			{
				"type": "text",
				"text": "Wawanesa Mutual",
				"citations": [
					{"type": "web_search_result_location", "url": "https://www.wawanesa.com/canada", "title": "Wawanesa", "cited_text": "Wawanesa Mutual", "encrypted_index": "abc"}
				]
			},
			{"type": "text", "text": " and Intact."}
		],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 200, "output_tokens": 50}
	}`
}
