// workflows/alerts.go
package workflows

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AI-Template-SDK/senso-tracker/services"
)

// Alerter posts operator-facing alerts
type Alerter interface {
	Alert(ctx context.Context, title, detail string) error
}

type slackPayload struct {
	Text string `json:"text"`
}

// SlackAlerter posts to an incoming webhook
type SlackAlerter struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

// NewSlackAlerter returns nil when webhookURL is empty, which disables alerts.
func NewSlackAlerter(webhookURL string) *SlackAlerter {
	if webhookURL == "" {
		return nil
	}
	return &SlackAlerter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		now:        time.Now,
	}
}

func (a *SlackAlerter) Alert(ctx context.Context, title, detail string) error {
	if a == nil {
		return nil
	}

	text := fmt.Sprintf(":rotating_light: *%s*\n*Time:* %s\n```%s```",
		title, a.now().UTC().Format(time.RFC3339), detail)
	body, err := json.Marshal(slackPayload{Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// BatchFailureDetail describes a failed or partially failed batch
func BatchFailureDetail(provider string, summary *BatchSummary, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "provider=%s", provider)
	if summary != nil {
		fmt.Fprintf(&b, " batch_id=%s failed=%d/%d", summary.BatchID, summary.Failed, summary.Cells)
	}
	if err != nil {
		fmt.Fprintf(&b, " error=%v", err)
	}
	return b.String()
}

// ZeroVisibilityDetail lists the locations with no brand mention this month
func ZeroVisibilityDetail(month string, report *services.ScoreReport) string {
	return fmt.Sprintf("month=%s locations=%s", month, strings.Join(report.ZeroVisibilityLocations, ", "))
}

func notify(ctx context.Context, a Alerter, title, detail string) {
	if a == nil {
		return
	}
	if err := a.Alert(ctx, title, detail); err != nil {
		zap.L().Warn("failed to send alert", zap.String("title", title), zap.Error(err))
	}
}
