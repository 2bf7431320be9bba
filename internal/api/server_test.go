package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/models"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers"
	"github.com/AI-Template-SDK/senso-tracker/internal/scoring"
	"github.com/AI-Template-SDK/senso-tracker/internal/store"
	"github.com/AI-Template-SDK/senso-tracker/services"
)

var testSecret = []byte("test-secret")

type fakeTracker struct {
	req       services.BatchRequest
	err       error
	persisted bool
	persistAt time.Time
}

func (f *fakeTracker) RunBatch(_ context.Context, req services.BatchRequest) (*services.BatchResult, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &services.BatchResult{BatchID: "batch-1", Provider: "chatgpt", Results: []*models.ExtractionResult{{Product: "auto"}}}, nil
}

func (f *fakeTracker) TrackDaily(context.Context, string, time.Time) (*services.BatchResult, error) {
	return nil, errors.New("not used")
}

func (f *fakeTracker) Persist(_ context.Context, _ *services.BatchResult, now time.Time) error {
	f.persisted = true
	f.persistAt = now
	return nil
}

type fakeReports struct {
	aggQuery    services.AggregateQuery
	scoreQuery  services.ScoreQuery
	mapsCity    *bool
	err         error
	invalidated bool
}

func (f *fakeReports) Aggregate(_ context.Context, q services.AggregateQuery) ([]models.AggregateRow, error) {
	f.aggQuery = q
	return []models.AggregateRow{{Product: "auto", AIPlatform: "chatgpt", Day: "07", Total: 1}}, f.err
}

func (f *fakeReports) Scores(_ context.Context, q services.ScoreQuery) (*services.ScoreReport, error) {
	f.scoreQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return &services.ScoreReport{Month: q.Month, DaysInMonth: 29}, nil
}

func (f *fakeReports) TopSources(_ context.Context, provider, _ string) ([]models.SourceCount, error) {
	if _, err := providers.Parse(provider); err != nil {
		return nil, err
	}
	return []models.SourceCount{{Domain: "ibc.ca", Count: 3}}, nil
}

func (f *fakeReports) Days(_ context.Context, month string) (*services.DaysReport, error) {
	return &services.DaysReport{Month: month, DaysInMonth: 31, DaysTracked: []string{"01"}}, f.err
}

func (f *fakeReports) Maps(_ context.Context, month string, isCity *bool) ([]models.MapsSummary, error) {
	f.mapsCity = isCity
	if f.err != nil {
		return nil, f.err
	}
	rank := 2.0
	return []models.MapsSummary{{Product: "auto", Location: "Winnipeg", AvgRank: &rank, Days: 4}}, nil
}

func (f *fakeReports) Invalidate() { f.invalidated = true }

func newTestServer(t *testing.T) (*httptest.Server, *fakeTracker, *fakeReports) {
	t.Helper()
	tracker, reports := &fakeTracker{}, &fakeReports{}
	s := NewServer(config.AuthConfig{JWTSecret: string(testSecret), AdminRole: "admin"}, tracker, reports)
	s.now = func() time.Time { return time.Date(2024, 2, 7, 6, 0, 0, 0, time.UTC) }
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return srv, tracker, reports
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := GenerateToken("analyst@example.com", role, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, method, url, tok, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"missing token", http.MethodGet, "/v1/days/202402", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/v1/days/202402", "not-a-jwt", http.StatusUnauthorized},
		{"viewer can read", http.MethodGet, "/v1/days/202402", token(t, "viewer"), http.StatusOK},
		{"viewer cannot run batches", http.MethodPost, "/v1/batches", token(t, "viewer"), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, tt.token, `{"provider":"chatgpt"}`)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestValidateToken_Expired(t *testing.T) {
	tok, err := GenerateToken("x", "admin", testSecret, -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(tok, testSecret)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = ValidateToken(token(t, "admin"), []byte("other-secret"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRunBatch(t *testing.T) {
	srv, tracker, reports := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/batches", token(t, "admin"),
		`{"provider":"gemini","locations":["Winnipeg"],"prompt_template":"best {keyword} in {location}","persist":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res services.BatchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, "batch-1", res.BatchID)

	assert.Equal(t, "gemini", tracker.req.Provider)
	assert.Equal(t, []string{"Winnipeg"}, tracker.req.Locations)
	assert.Equal(t, "best {keyword} in {location}", tracker.req.PromptTemplate)
	assert.True(t, tracker.persisted)
	assert.Equal(t, 7, tracker.persistAt.Day())
	assert.True(t, reports.invalidated)
}

func TestRunBatch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"config error", &config.ConfigError{Path: "tracking.yaml", Missing: []string{"products"}}, http.StatusBadRequest},
		{"unsupported provider", &providers.UnsupportedProviderError{ID: "bard"}, http.StatusBadRequest},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, tracker, _ := newTestServer(t)
			tracker.err = tt.err
			resp := do(t, http.MethodPost, srv.URL+"/v1/batches", token(t, "admin"), `{"provider":"chatgpt"}`)
			assert.Equal(t, tt.want, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRunBatch_BadBody(t *testing.T) {
	srv, _, _ := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/v1/batches", token(t, "admin"), `{`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/v1/batches", token(t, "admin"), `{}`).StatusCode)
}

func TestAggregateQueryParams(t *testing.T) {
	srv, _, reports := newTestServer(t)

	resp := do(t, http.MethodGet,
		srv.URL+"/v1/aggregates/202402?group_by=location&is_city=true&provider=claude&location=Winnipeg&location=Brandon&metric=competitor_2",
		token(t, "viewer"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	q := reports.aggQuery
	assert.Equal(t, "202402", q.Month)
	require.NotNil(t, q.IsCity)
	assert.True(t, *q.IsCity)
	assert.Equal(t, []string{"Winnipeg", "Brandon"}, q.Locations)
	assert.Equal(t, "claude", q.Provider)
	assert.Equal(t, "location", q.GroupBy)
	assert.Equal(t, "competitor_2", q.Metric)

	bad := do(t, http.MethodGet, srv.URL+"/v1/aggregates/202402?is_city=maybe", token(t, "viewer"), "")
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestScores(t *testing.T) {
	srv, _, reports := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/v1/scores/202402?is_city=false", token(t, "viewer"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report services.ScoreReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, 29, report.DaysInMonth)
	require.NotNil(t, reports.scoreQuery.IsCity)
	assert.False(t, *reports.scoreQuery.IsCity)

	reports.err = &scoring.ValidationError{Value: "202413", Reason: "month out of range"}
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, srv.URL+"/v1/scores/202413", token(t, "viewer"), "").StatusCode)

	reports.err = store.ErrInvalidMetric
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, srv.URL+"/v1/scores/202402?metric=x", token(t, "viewer"), "").StatusCode)
}

func TestSources(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/v1/sources/perplexity/202402", token(t, "viewer"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var top []models.SourceCount
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&top))
	assert.Equal(t, []models.SourceCount{{Domain: "ibc.ca", Count: 3}}, top)

	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, srv.URL+"/v1/sources/bard/202402", token(t, "viewer"), "").StatusCode)
}

func TestMaps(t *testing.T) {
	srv, _, reports := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/v1/maps/202402?is_city=true", token(t, "viewer"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rows []models.MapsSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 4, rows[0].Days)
	require.NotNil(t, reports.mapsCity)
	assert.True(t, *reports.mapsCity)

	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodGet, srv.URL+"/v1/maps/202402", "", "").StatusCode)

	reports.err = &scoring.ValidationError{Value: "2024", Reason: "month must be YYYYMM"}
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, srv.URL+"/v1/maps/2024", token(t, "viewer"), "").StatusCode)
}
