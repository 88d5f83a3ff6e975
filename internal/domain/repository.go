package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations.
// Entries are write-once; implementations must be safe for concurrent use.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SearchResultItem is one listing as returned by the search provider
type SearchResultItem struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Source    string `json:"source"`
	Snippet   string `json:"snippet"`
	Price     string `json:"price"`
	Thumbnail string `json:"thumbnail"`
}

// SearchProvider runs a free-text product search
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]SearchResultItem, error)
}

// ContentFetcher returns the cleaned text of a single page
type ContentFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// GenerationRequest is a single call to the classification/generation service
type GenerationRequest struct {
	Operation   string   // used for logs and metrics, e.g. "verify"
	Instruction string   // the textual instruction
	Schema      string   // the requested output schema, as JSON text
	ImageURLs   []string // optional reference images
}

// Generator calls the classification/generation service and returns its raw text output
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}
