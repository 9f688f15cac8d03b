package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/httpx"
)

const defaultAttempts = 3

var errEmptyResults = errors.New("search returned no results")

type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Summary string `json:"summary"`
}

// RawResult is a backend record before normalization.
type RawResult struct {
	Title string
	Href  string
	Body  string
}

type Backend interface {
	Name() string
	TextSearch(ctx context.Context, query string, maxResults int, proxy string) ([]RawResult, error)
}

type KeySource interface {
	GetAPIKey(ctx context.Context, provider string, fallback string) string
}

type Option func(*Client)

// WithBackOff replaces the retry schedule.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = fn
	}
}

func WithAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

type Client struct {
	backend    Backend
	attempts   int
	newBackOff func() backoff.BackOff
}

func NewClient(backend Backend, opts ...Option) *Client {
	c := &Client{
		backend:    backend,
		attempts:   defaultAttempts,
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// defaultBackOff waits 1s after the first failed attempt and 2s after the second.
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 2 * time.Second
	return b
}

func (c *Client) Name() string {
	return c.backend.Name()
}

// Search queries the backend with retries on errors and empty result sets.
// It returns an empty slice once all attempts are exhausted.
func (c *Client) Search(ctx context.Context, query string, maxResults int, proxy string) []Result {
	var raw []RawResult
	attempt := 0
	operation := func() error {
		attempt++
		found, err := c.backend.TextSearch(ctx, query, maxResults, proxy)
		if err != nil {
			log.Printf("[livesearch] %s search attempt %d/%d failed: %v", c.backend.Name(), attempt, c.attempts, err)
			return err
		}
		if len(found) == 0 {
			log.Printf("[livesearch] %s returned empty results (%d/%d)", c.backend.Name(), attempt, c.attempts)
			return errEmptyResults
		}
		raw = found
		return nil
	}
	schedule := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.attempts-1)), ctx)
	if err := backoff.Retry(operation, schedule); err != nil {
		return []Result{}
	}

	normalized := make([]Result, 0, len(raw))
	for _, r := range raw {
		normalized = append(normalized, Result{Title: r.Title, URL: r.Href, Summary: r.Body})
	}
	normalized = preferTrusted(normalized)
	if maxResults > 0 && len(normalized) > maxResults {
		normalized = normalized[:maxResults]
	}
	return normalized
}

type BackendOptions struct {
	DuckDuckGoURL string
	TavilyURL     string
	Timeout       time.Duration
	HTTP          *httpx.Client
	Keys          KeySource
}

func NewBackend(name string, opts BackendOptions) (Backend, error) {
	if opts.HTTP == nil {
		opts.HTTP = httpx.New()
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "duckduckgo", "ddg":
		return &DuckDuckGo{Endpoint: opts.DuckDuckGoURL, Timeout: opts.Timeout, Fetcher: opts.HTTP}, nil
	case "tavily":
		return &Tavily{Endpoint: opts.TavilyURL, Timeout: opts.Timeout, Poster: opts.HTTP, Keys: opts.Keys}, nil
	default:
		return nil, fmt.Errorf("unsupported search backend: %s", name)
	}
}
