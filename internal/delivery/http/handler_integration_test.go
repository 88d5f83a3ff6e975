package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfitter/backend/config"
	"github.com/outfitter/backend/internal/domain"
	"github.com/outfitter/backend/internal/infrastructure/cache"
	"github.com/outfitter/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		RateLimit: config.RateLimitConfig{PerIP: 100},
	}
}

// mockSearchService records the last request and returns a canned outcome
type mockSearchService struct {
	result *domain.SearchResult
	err    error
	lastSC *domain.SearchContext
	mode   domain.Mode
}

func (m *mockSearchService) Search(ctx context.Context, sc *domain.SearchContext, mode domain.Mode) (*domain.SearchResult, error) {
	m.lastSC = sc
	m.mode = mode
	return m.result, m.err
}

func setupTestRouter(service SearchService) *gin.Engine {
	return SetupRouter(testConfig(), NewHandler(service, nil), nil)
}

func postSearch(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/v1/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheckEndpoint(t *testing.T) {
	router := setupTestRouter(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, serviceName, response["service"])
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	for _, method := range []string{"POST", "PUT", "DELETE"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(method, "/health", nil))
		assert.Equal(t, http.StatusNotFound, w.Code, method)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupTestRouter(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestSearchEndpoint(t *testing.T) {
	t.Run("passes the request through", func(t *testing.T) {
		service := &mockSearchService{result: &domain.SearchResult{RequestID: "r1", Mode: domain.ModeSimplified}}
		router := setupTestRouter(service)

		w := postSearch(router, `{"gender":"female","preferences":{"color":"Black","priceRange":"0-100","categories":["Dress"]},"mode":"simplified"}`)
		require.Equal(t, http.StatusOK, w.Code)

		assert.Equal(t, domain.ModeSimplified, service.mode)
		require.NotNil(t, service.lastSC)
		assert.Equal(t, "female", service.lastSC.Gender)
		assert.Equal(t, []string{"Dress"}, service.lastSC.Preferences.Categories)

		var got domain.SearchResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "r1", got.RequestID)
	})

	t.Run("mode defaults to full", func(t *testing.T) {
		service := &mockSearchService{result: &domain.SearchResult{}}
		w := postSearch(setupTestRouter(service), `{"preferences":{"categories":["Dress"]}}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, domain.ModeFull, service.mode)
	})

	errorCases := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"malformed body", `{"preferences":`, nil, http.StatusBadRequest},
		{"unknown mode", `{"preferences":{"categories":["Dress"]},"mode":"turbo"}`, nil, http.StatusBadRequest},
		{"invalid request", `{"preferences":{"categories":[]}}`, fmt.Errorf("%w: at least one category", domain.ErrInvalidRequest), http.StatusBadRequest},
		{"cache down", `{"preferences":{"categories":["Dress"]}}`, fmt.Errorf("%w: dial tcp", domain.ErrCacheUnavailable), http.StatusServiceUnavailable},
		{"unexpected", `{"preferences":{"categories":["Dress"]}}`, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			w := postSearch(setupTestRouter(&mockSearchService{err: tc.err}), tc.body)
			assert.Equal(t, tc.wantStatus, w.Code)

			var response map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.NotEmpty(t, response["error"])
		})
	}

	t.Run("service not configured", func(t *testing.T) {
		w := postSearch(setupTestRouter(nil), `{"preferences":{"categories":["Dress"]}}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("rate limited", func(t *testing.T) {
		cfg := testConfig()
		cfg.RateLimit.PerIP = 1
		router := SetupRouter(cfg, NewHandler(&mockSearchService{result: &domain.SearchResult{}}, nil), nil)

		assert.Equal(t, http.StatusOK, postSearch(router, `{"preferences":{"categories":["Dress"]}}`).Code)
		assert.Equal(t, http.StatusTooManyRequests, postSearch(router, `{"preferences":{"categories":["Dress"]}}`).Code)
	})
}

// stubProvider, stubFetcher and stubGenerator back a real orchestrator
type stubProvider struct{}

func (stubProvider) Search(ctx context.Context, query string) ([]domain.SearchResultItem, error) {
	if strings.Contains(query, "Dress") {
		return []domain.SearchResultItem{{Title: "Wrap Dress", Link: "https://store.com/wrap", Source: "Store", Price: "$59.00"}}, nil
	}
	return nil, nil
}

type stubFetcher struct{}

func (stubFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	return "Wrap Dress. In stock. $59.00", nil
}

type stubGenerator struct{ calls int }

func (g *stubGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	g.calls++
	if req.Operation == "verify" {
		return `{"results":[{"index":0,"isValidPage":true,"detectedCategory":"dress","stockStatus":"LIKELY_AVAILABLE","price":"$59.00","matchScore":91,"reason":"in stock"}]}`, nil
	}
	return "", fmt.Errorf("%w: unexpected operation %s", domain.ErrTerminalRemote, req.Operation)
}

func TestSearchWithOrchestrator(t *testing.T) {
	memoryCache := cache.NewMemoryCache()
	t.Cleanup(func() { _ = memoryCache.Close() })

	gen := &stubGenerator{}
	stages := usecase.Stages{
		Discovery: usecase.NewCategoryDiscovery(stubProvider{}, nil),
		Verifier:  usecase.NewBatchVerifier(stubFetcher{}, gen, usecase.BatchVerifierConfig{}, nil),
		Validator: usecase.NewHeuristicValidator(usecase.HeuristicValidatorConfig{}),
		Scorer:    usecase.NewStyleScorer(gen, nil),
		Composer:  usecase.NewOutfitComposer(gen, usecase.OutfitComposerConfig{}, nil),
	}
	orchestrator := usecase.NewOrchestrator(stages, memoryCache, usecase.OrchestratorConfig{CacheTTL: time.Minute}, nil)
	router := setupTestRouter(orchestrator)

	body := `{"gender":"female","preferences":{"color":"Black","priceRange":"0-100","categories":["Dress","Shoes"]},"mode":"simplified"}`

	w := postSearch(router, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var first domain.SearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	require.Len(t, first.Categories, 2)
	require.Len(t, first.Categories[0].Items, 1)
	item := first.Categories[0].Items[0]
	assert.Equal(t, "dress_1", item.ID)
	assert.Equal(t, "https://store.com/wrap", item.Link)
	assert.Equal(t, domain.LabelInStock, item.Availability)
	assert.Equal(t, 91, item.MatchScore)
	assert.Empty(t, first.Categories[1].Items)
	assert.Equal(t, 0, first.Categories[1].InitialCandidateCount)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, gen.calls)

	w = postSearch(router, body)
	require.Equal(t, http.StatusOK, w.Code)
	var second domain.SearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.True(t, second.Cached)
	assert.Equal(t, 1, gen.calls, "cached response makes no remote calls")
}
