package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/AI-Template-SDK/senso-tracker/internal/providers/common"
)

// MockProvider is a scripted provider for runner and service tests
type MockProvider struct {
	NameValue  string
	ModelValue string
	AskFunc    func(ctx context.Context, query string) (*common.Answer, error)

	mu      sync.Mutex
	Queries []string
}

func (m *MockProvider) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *MockProvider) Model() string {
	return m.ModelValue
}

func (m *MockProvider) Ask(ctx context.Context, query string) (*common.Answer, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()

	if m.AskFunc != nil {
		return m.AskFunc(ctx, query)
	}
	return &common.Answer{}, nil
}

// MockCostService is a mock implementation of CostService for testing
type MockCostService struct {
	CalculateCostFunc func(provider, model string, inputTokens, outputTokens int, websearch bool) float64
}

func (m *MockCostService) CalculateCost(provider, model string, inputTokens, outputTokens int, websearch bool) float64 {
	if m.CalculateCostFunc != nil {
		return m.CalculateCostFunc(provider, model, inputTokens, outputTokens, websearch)
	}
	return 0.0015
}

// NewMockCostService creates a new mock cost service
func NewMockCostService() *MockCostService {
	return &MockCostService{}
}

// RecordedRequest is one request captured by a MockAPIServer
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// MockAPIServer serves a canned JSON body and records every request
type MockAPIServer struct {
	Server *httptest.Server
	Status int
	Body   string

	mu       sync.Mutex
	Requests []RecordedRequest
}

// NewMockAPIServer starts a server answering every path with status and body
func NewMockAPIServer(status int, body string) *MockAPIServer {
	mock := &MockAPIServer{Status: status, Body: body}

	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mock.mu.Lock()
		mock.Requests = append(mock.Requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   data,
		})
		status, body := mock.Status, mock.Body
		mock.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	return mock
}

// URL returns the server base URL
func (m *MockAPIServer) URL() string {
	return m.Server.URL
}

// LastRequest returns the most recent captured request
func (m *MockAPIServer) LastRequest() RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return RecordedRequest{}
	}
	return m.Requests[len(m.Requests)-1]
}

// Close closes the mock server
func (m *MockAPIServer) Close() {
	m.Server.Close()
}
