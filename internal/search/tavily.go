package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/httpx"
)

const defaultTavilyURL = "https://api.tavily.com"

var ErrTavilyKeyMissing = errors.New("tavily api key missing")

type Tavily struct {
	Endpoint string
	Timeout  time.Duration
	Poster   httpx.Poster
	Keys     KeySource
}

func (t *Tavily) Name() string {
	return "Tavily"
}

func (t *Tavily) TextSearch(ctx context.Context, query string, maxResults int, proxy string) ([]RawResult, error) {
	apiKey := ""
	if t.Keys != nil {
		apiKey = strings.TrimSpace(t.Keys.GetAPIKey(ctx, "tavily", ""))
	}
	if apiKey == "" {
		return nil, backoff.Permanent(ErrTavilyKeyMissing)
	}
	endpoint := t.Endpoint
	if endpoint == "" {
		endpoint = defaultTavilyURL
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	body, err := json.Marshal(map[string]any{
		"query":        query,
		"max_results":  maxResults,
		"search_depth": "basic",
	})
	if err != nil {
		return nil, err
	}
	resp, err := t.Poster.Post(ctx, strings.TrimRight(endpoint, "/")+"/search", map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + apiKey,
	}, body, timeout, proxy)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return nil, backoff.Permanent(fmt.Errorf("tavily rejected credentials: HTTP %d", resp.StatusCode))
	}
	if !resp.OK() {
		return nil, fmt.Errorf("tavily returned HTTP %d", resp.StatusCode)
	}
	var parsed struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, err
	}
	results := make([]RawResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, RawResult{Title: r.Title, Href: r.URL, Body: r.Content})
	}
	return results, nil
}
