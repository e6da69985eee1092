// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/ytrelay/internal/models"
)

// MockResolver is a test double for services.Resolver. It records every source ID it is
// asked for and answers with Fn, or with Record/Err when Fn is nil.
type MockResolver struct {
	ResolverName string
	Record       *models.MediaRecord
	Err          error
	Fn           func(ctx context.Context, sourceID string) (*models.MediaRecord, error)

	mu    sync.Mutex
	calls []string
}

func (m *MockResolver) Resolve(ctx context.Context, sourceID string) (*models.MediaRecord, error) {
	m.mu.Lock()
	m.calls = append(m.calls, sourceID)
	m.mu.Unlock()

	if m.Fn != nil {
		return m.Fn(ctx, sourceID)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Record == nil {
		return nil, errors.New("mock resolver has no record")
	}
	record := *m.Record
	if record.SourceID == "" {
		record.SourceID = sourceID
	}
	if record.Resolver == "" {
		record.Resolver = m.Name()
	}
	return &record, nil
}

func (m *MockResolver) Name() string {
	if m.ResolverName == "" {
		return "mock"
	}
	return m.ResolverName
}

// Calls returns the source IDs passed to Resolve, in order.
func (m *MockResolver) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockSearcher is a test double for services.Searcher. Fn, when set, answers instead of
// Results/Err.
type MockSearcher struct {
	Results []models.SearchResult
	Err     error
	Fn      func(ctx context.Context, query string, limit int) ([]models.SearchResult, error)

	mu      sync.Mutex
	queries []string
}

func (m *MockSearcher) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.Fn != nil {
		return m.Fn(ctx, query, limit)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	results := append([]models.SearchResult(nil), m.Results...)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Queries returns the queries passed to Search, in order.
func (m *MockSearcher) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
