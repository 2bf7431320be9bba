package chatgpt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/AI-Template-SDK/senso-tracker/internal/providers/common"
	"github.com/AI-Template-SDK/senso-tracker/internal/resilience"
)

// Ask sends one query with web_search_preview and returns the answer text
// plus the url_citation annotations reduced to base domains.
func (p *Provider) Ask(ctx context.Context, query string) (*common.Answer, error) {
	requestBody := WebSearchRequest{
		Model: p.model,
		Tools: []WebSearchTool{
			{
				Type: "web_search_preview",
				UserLocation: WebUserLocation{
					Type:    "approximate",
					Country: p.country,
				},
			},
		},
		Input: query,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, eris.Wrap(err, "chatgpt: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/responses", bytes.NewReader(jsonData))
	if err != nil {
		return nil, eris.Wrap(err, "chatgpt: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "chatgpt: web search request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		statusErr := fmt.Errorf("chatgpt: web search API returned status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	var webSearchResp WebSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&webSearchResp); err != nil {
		return nil, eris.Wrap(err, "chatgpt: decode web search response")
	}

	text, citations := extractMessage(webSearchResp)
	if text == "" {
		return nil, eris.New("chatgpt: no message content found in web search response")
	}

	return &common.Answer{
		Text:         text,
		Sources:      common.ExtractBaseDomains(citations),
		InputTokens:  webSearchResp.Usage.InputTokens,
		OutputTokens: webSearchResp.Usage.OutputTokens,
	}, nil
}

// extractMessage returns the first output_text block and its url_citation URLs
func extractMessage(resp WebSearchResponse) (string, []string) {
	for _, output := range resp.Output {
		if output.Type != "message" {
			continue
		}
		for _, content := range output.Content {
			if content.Type != "output_text" || content.Text == "" {
				continue
			}
			var urls []string
			for _, a := range content.Annotations {
				if a.Type == "url_citation" && a.URL != "" {
					urls = append(urls, a.URL)
				}
			}
			return content.Text, urls
		}
	}
	return "", nil
}
