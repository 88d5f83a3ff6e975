package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/outfitter/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu       sync.Mutex
	data     map[string][]byte
	getError error
	setError error
	getCalls int
	setCalls int
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{data: make(map[string][]byte)}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

// MockSearchProvider returns canned results per query substring
type MockSearchProvider struct {
	mu      sync.Mutex
	results map[string][]domain.SearchResultItem // keyed by a substring of the query
	err     error
	queries []string
}

func NewMockSearchProvider() *MockSearchProvider {
	return &MockSearchProvider{results: make(map[string][]domain.SearchResultItem)}
}

func (m *MockSearchProvider) Search(ctx context.Context, query string) ([]domain.SearchResultItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	for key, items := range m.results {
		if strings.Contains(query, key) {
			return items, nil
		}
	}
	return nil, nil
}

// MockContentFetcher returns page text per URL; unknown URLs fail
type MockContentFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	fetched []string
}

func NewMockContentFetcher() *MockContentFetcher {
	return &MockContentFetcher{pages: make(map[string]string)}
}

func (m *MockContentFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetched = append(m.fetched, pageURL)
	if text, ok := m.pages[pageURL]; ok {
		return text, nil
	}
	return "", domain.ErrFetchFailed
}

// MockGenerator answers generation requests through a handler per operation
type MockGenerator struct {
	mu       sync.Mutex
	handlers map[string]func(req domain.GenerationRequest) (string, error)
	requests []domain.GenerationRequest
}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{handlers: make(map[string]func(domain.GenerationRequest) (string, error))}
}

func (m *MockGenerator) On(operation string, fn func(req domain.GenerationRequest) (string, error)) *MockGenerator {
	m.handlers[operation] = fn
	return m
}

func (m *MockGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fn, ok := m.handlers[req.Operation]
	m.mu.Unlock()
	if !ok {
		return "", errors.New("unexpected operation " + req.Operation)
	}
	return fn(req)
}

func (m *MockGenerator) Calls(operation string) []domain.GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.GenerationRequest
	for _, r := range m.requests {
		if r.Operation == operation {
			out = append(out, r)
		}
	}
	return out
}
