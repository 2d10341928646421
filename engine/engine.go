package engine

import (
	"context"
	"time"
)

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier ("http", "rod" or "rod-stealth").
	Name() string

	// Fetch retrieves one search results page.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
// URL already carries the encoded search query.
type FetchRequest struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML       []byte
	StatusCode int // 0 when the engine cannot observe it
	FinalURL   string
	EngineName string
}
