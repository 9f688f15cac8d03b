package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/httpx"
)

type scriptedBackend struct {
	replies []scriptedReply
	calls   int
}

type scriptedReply struct {
	results []RawResult
	err     error
}

func (s *scriptedBackend) Name() string { return "Scripted" }

func (s *scriptedBackend) TextSearch(ctx context.Context, query string, maxResults int, proxy string) ([]RawResult, error) {
	reply := s.replies[s.calls]
	s.calls++
	return reply.results, reply.err
}

type recordingBackOff struct {
	waits []time.Duration
	inner backoff.BackOff
}

func (r *recordingBackOff) NextBackOff() time.Duration {
	next := r.inner.NextBackOff()
	r.waits = append(r.waits, next)
	return 0
}

func (r *recordingBackOff) Reset() { r.inner.Reset() }

func TestClientSearch_RetriesThenSucceeds(t *testing.T) {
	backend := &scriptedBackend{replies: []scriptedReply{
		{err: errors.New("rate limited")},
		{},
		{results: []RawResult{
			{Title: "Blog", Href: "https://blog.example.com/paris", Body: "notes"},
			{Title: "Paris weather", Href: "https://www.accuweather.com/en/fr/paris/623/weather-forecast/623", Body: "21°"},
		}},
	}}
	recorder := &recordingBackOff{inner: defaultBackOff()}
	client := NewClient(backend, WithBackOff(func() backoff.BackOff { return recorder }))

	results := client.Search(context.Background(), "paris weather", 2, "")
	require.Equal(t, 3, backend.calls)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, recorder.waits)
	require.Len(t, results, 2)
	require.Equal(t, "Paris weather", results[0].Title, "trusted results come first")
	require.Equal(t, "21°", results[0].Summary)
	require.Equal(t, "https://blog.example.com/paris", results[1].URL)
}

func TestClientSearch_ExhaustsAttempts(t *testing.T) {
	backend := &scriptedBackend{replies: []scriptedReply{{}, {err: errors.New("boom")}, {}}}
	client := NewClient(backend, WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }))

	results := client.Search(context.Background(), "nothing", 3, "")
	require.NotNil(t, results)
	require.Empty(t, results)
	require.Equal(t, 3, backend.calls)
}

func TestClientSearch_PermanentErrorStopsRetrying(t *testing.T) {
	backend := &scriptedBackend{replies: []scriptedReply{{err: backoff.Permanent(ErrTavilyKeyMissing)}}}
	client := NewClient(backend, WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }))
	require.Empty(t, client.Search(context.Background(), "q", 3, ""))
	require.Equal(t, 1, backend.calls)
}

func TestClientSearch_TruncatesToMaxResults(t *testing.T) {
	backend := &scriptedBackend{replies: []scriptedReply{{results: []RawResult{
		{Href: "https://a.example/1"}, {Href: "https://b.example/2"}, {Href: "https://www.timeanddate.com/weather/japan/tokyo"},
	}}}}
	client := NewClient(backend, WithAttempts(1))
	results := client.Search(context.Background(), "q", 2, "")
	require.Len(t, results, 2)
	require.Equal(t, "https://www.timeanddate.com/weather/japan/tokyo", results[0].URL)
	require.Equal(t, "https://a.example/1", results[1].URL)
	require.Equal(t, "Scripted", client.Name())
}

func TestDuckDuckGoBackend(t *testing.T) {
	page := `<html><body>
<div class="result results_links result--ad"><a class="result__a" href="https://ads.example">Ad</a></div>
<div class="result results_links">
  <h2><a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.timeanddate.com%2Fweather%2Fchina%2Fbeijing&amp;rut=abc">Weather for <b>Beijing</b></a></h2>
  <a class="result__snippet" href="#">Current weather   in Beijing</a>
</div>
<div class="result results_links">
  <h2><a class="result__a" href="https://example.com/beijing">Beijing guide</a></h2>
  <div class="result__snippet">Travel tips</div>
</div>
<div class="result"><a class="result__a" href="/relative">Broken</a></div>
</body></html>`
	var gotQuery, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	ddg := &DuckDuckGo{Endpoint: server.URL + "/html/", Timeout: time.Second, Fetcher: httpx.New()}
	results, err := ddg.TextSearch(context.Background(), "beijing weather", 5, "")
	require.NoError(t, err)
	require.Equal(t, "beijing weather", gotQuery)
	require.Equal(t, httpx.BrowserUserAgent, gotAgent)
	require.Equal(t, []RawResult{
		{Title: "Weather for Beijing", Href: "https://www.timeanddate.com/weather/china/beijing", Body: "Current weather in Beijing"},
		{Title: "Beijing guide", Href: "https://example.com/beijing", Body: "Travel tips"},
	}, results)

	limited, err := ddg.TextSearch(context.Background(), "beijing weather", 1, "")
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestDuckDuckGoBackend_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	ddg := &DuckDuckGo{Endpoint: server.URL, Fetcher: httpx.New()}
	_, err := ddg.TextSearch(context.Background(), "q", 3, "")
	require.Error(t, err)
}

type staticKeys map[string]string

func (s staticKeys) GetAPIKey(ctx context.Context, provider string, fallback string) string {
	if v, ok := s[provider]; ok {
		return v
	}
	return fallback
}

func TestTavilyBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "Bearer tvly-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		require.Equal(t, "tokyo time", payload["query"])
		require.Equal(t, float64(3), payload["max_results"])
		_, _ = w.Write([]byte(`{"results":[{"title":"Tokyo","url":"https://www.timeanddate.com/worldclock/japan/tokyo","content":"12:00"}]}`))
	}))
	defer server.Close()

	backend, err := NewBackend("tavily", BackendOptions{TavilyURL: server.URL + "/", Keys: staticKeys{"tavily": "tvly-key"}})
	require.NoError(t, err)
	require.Equal(t, "Tavily", backend.Name())
	results, err := backend.TextSearch(context.Background(), "tokyo time", 3, "")
	require.NoError(t, err)
	require.Equal(t, []RawResult{{Title: "Tokyo", Href: "https://www.timeanddate.com/worldclock/japan/tokyo", Body: "12:00"}}, results)
}

func TestTavilyBackend_Failures(t *testing.T) {
	backend := &Tavily{Poster: httpx.New()}
	_, err := backend.TextSearch(context.Background(), "q", 3, "")
	require.True(t, errors.Is(err, ErrTavilyKeyMissing))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()
	backend = &Tavily{Endpoint: server.URL, Poster: httpx.New(), Keys: staticKeys{"tavily": "bad"}}
	_, err = backend.TextSearch(context.Background(), "q", 3, "")
	var permanent *backoff.PermanentError
	require.ErrorAs(t, err, &permanent)
}

func TestNewBackend(t *testing.T) {
	backend, err := NewBackend("", BackendOptions{})
	require.NoError(t, err)
	require.Equal(t, "DuckDuckGo", backend.Name())

	_, err = NewBackend("bing", BackendOptions{})
	require.EqualError(t, err, "unsupported search backend: bing")
}
