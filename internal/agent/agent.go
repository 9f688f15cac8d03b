package agent

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/events"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/extract"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/geo"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/httpx"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/llm"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/query"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/search"
)

const (
	TraceDirectDisabled     = "No optimization (direct LLM mode, web search disabled)"
	TraceDirectFailed       = "No optimization (direct LLM mode)"
	TraceOriginalPrompt     = "No optimization (using original prompt)"
	TraceVisionSearch       = "No optimization (VLM Search mode)"
	TraceVisionDirect       = "TI2T mode (direct vision response)"
	TraceVisionUnsupported  = "TI2T mode unsupported model"
	TraceVisionMissingImage = "TI2T mode missing image"
	TraceVisionEncoding     = "TI2T mode image encoding failed"

	weatherSeparator    = "--- Web Search Results ---"
	noVisionResults     = "No search results found."
	defaultVisionAsk    = "Describe this image."
	defaultFetchTimeout = 10 * time.Second
)

type Gateway interface {
	Complete(ctx context.Context, endpoint llm.Endpoint, messages []llm.ChatMessage) string
}

type GeoResolver interface {
	Resolve(ctx context.Context, text string, proxy string) geo.Resolution
}

type QueryOptimizer interface {
	Optimize(ctx context.Context, endpoint llm.Endpoint, original string, place *geo.PlaceHint) (string, error)
	OptimizeVision(ctx context.Context, endpoint llm.Endpoint, original string, place *geo.PlaceHint, image llm.ImagePart) (string, error)
}

type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int, proxy string) []search.Result
}

type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string, timeout time.Duration, proxy string) string
}

// Observer receives stage events as a run progresses.
type Observer interface {
	Observe(ctx context.Context, eventType string, payload map[string]any)
}

type ObserverFunc func(ctx context.Context, eventType string, payload map[string]any)

func (f ObserverFunc) Observe(ctx context.Context, eventType string, payload map[string]any) {
	f(ctx, eventType, payload)
}

type noopObserver struct{}

func (noopObserver) Observe(context.Context, string, map[string]any) {}

type noGeo struct{}

func (noGeo) Resolve(context.Context, string, string) geo.Resolution { return geo.Resolution{} }

type Config struct {
	Catalog      *llm.Catalog
	Gateway      Gateway
	Geo          GeoResolver
	Optimizer    QueryOptimizer
	Searcher     Searcher
	Pages        PageFetcher
	Limits       Limits
	FetchTimeout time.Duration
}

type Agent struct {
	catalog      *llm.Catalog
	gateway      Gateway
	geo          GeoResolver
	optimizer    QueryOptimizer
	searcher     Searcher
	pages        PageFetcher
	limits       Limits
	fetchTimeout time.Duration
}

func New(cfg Config) *Agent {
	a := &Agent{
		catalog:      cfg.Catalog,
		gateway:      cfg.Gateway,
		geo:          cfg.Geo,
		optimizer:    cfg.Optimizer,
		searcher:     cfg.Searcher,
		pages:        cfg.Pages,
		limits:       cfg.Limits.withDefaults(),
		fetchTimeout: cfg.FetchTimeout,
	}
	if a.catalog == nil {
		a.catalog = llm.DefaultCatalog()
	}
	if a.gateway == nil {
		a.gateway = llm.NewGateway(nil)
	}
	if a.geo == nil {
		a.geo = noGeo{}
	}
	if a.optimizer == nil {
		a.optimizer = query.NewOptimizer(a.gateway)
	}
	if a.searcher == nil {
		a.searcher = search.NewClient(&search.DuckDuckGo{Fetcher: httpx.New()})
	}
	if a.pages == nil {
		a.pages = extract.New(nil, extract.DefaultLimits())
	}
	if a.fetchTimeout <= 0 {
		a.fetchTimeout = defaultFetchTimeout
	}
	return a
}

type Request struct {
	Query    string
	Model    llm.ModelConfig
	Settings Settings
	Image    []byte
	Role     string
	Observer Observer
}

type Result struct {
	Answer     string   `json:"answer"`
	SourceURLs []string `json:"source_urls"`
	Trace      string   `json:"trace"`
}

func (r Result) Sources() string {
	return strings.Join(r.SourceURLs, "\n")
}

// run carries per-request state through the pipeline.
type run struct {
	req      Request
	observer Observer
	proxy    string
}

func (r *run) emit(ctx context.Context, eventType string, payload map[string]any) {
	r.observer.Observe(ctx, eventType, payload)
}

func (a *Agent) Run(ctx context.Context, req Request) Result {
	r := &run{req: req, observer: req.Observer, proxy: req.Settings.Proxy}
	if r.observer == nil {
		r.observer = noopObserver{}
	}
	if req.Settings.NumResults == 0 {
		req.Settings.NumResults = DefaultNumResults
		r.req.Settings.NumResults = DefaultNumResults
	}
	r.emit(ctx, events.TypeRunStarted, map[string]any{
		"mode":     string(req.Settings.Mode),
		"provider": req.Model.Provider,
		"search":   req.Settings.EnableWebSearch,
	})

	if req.Settings.Mode == ModeVision {
		return a.runVision(ctx, r)
	}
	if req.Model.MissingKey() {
		return missingKey(req.Model.Provider)
	}
	a.noteDualMode(req.Model)

	endpoint := req.Model.Endpoint(false, r.proxy)
	if !req.Settings.EnableWebSearch {
		return a.direct(ctx, r, endpoint)
	}
	return a.searchText(ctx, r, endpoint)
}

func missingKey(provider string) Result {
	log.Printf("[livesearch] API key missing for %s", provider)
	return Result{
		Answer:     llm.ErrMissingAPIKey.Error(),
		SourceURLs: []string{},
		Trace:      fmt.Sprintf("Configuration error: API key missing for %s", provider),
	}
}

func (a *Agent) noteDualMode(model llm.ModelConfig) {
	spec, ok := a.catalog.Provider(model.Provider)
	if !ok {
		return
	}
	if spec.IsDualMode(model.TextModel) || spec.SupportsVision(model.TextModel) {
		log.Printf("[livesearch] %s is a vision-capable model; running text-only", model.TextModel)
	}
}

func (a *Agent) direct(ctx context.Context, r *run, endpoint llm.Endpoint) Result {
	messages := []llm.ChatMessage{
		llm.Text(llm.RoleSystem, directSystemPrompt(r.req.Settings.OutputLanguage, r.req.Role)),
		llm.Text(llm.RoleUser, r.req.Query),
	}
	answer := a.answer(ctx, r, endpoint, messages)
	if llm.IsError(answer) {
		return Result{Answer: answer, SourceURLs: []string{}, Trace: TraceDirectFailed}
	}
	return Result{Answer: answer, SourceURLs: []string{}, Trace: TraceDirectDisabled}
}

func (a *Agent) answer(ctx context.Context, r *run, endpoint llm.Endpoint, messages []llm.ChatMessage) string {
	r.emit(ctx, events.TypeAnswerStarted, map[string]any{"model": endpoint.Model})
	answer := a.gateway.Complete(ctx, endpoint, messages)
	r.emit(ctx, events.TypeAnswerCompleted, map[string]any{"model": endpoint.Model, "error": llm.IsError(answer)})
	return answer
}

func (a *Agent) resolve(ctx context.Context, r *run) geo.Resolution {
	resolution := a.geo.Resolve(ctx, r.req.Query, r.proxy)
	if resolution.Coordinates == nil {
		return resolution
	}
	payload := map[string]any{
		"lat":     resolution.Coordinates.Lat,
		"lon":     resolution.Coordinates.Lon,
		"weather": resolution.Weather != nil,
	}
	if resolution.Place != nil {
		payload["place"] = resolution.Place.DisplayName()
	}
	r.emit(ctx, events.TypeGeoResolved, payload)
	return resolution
}

func (a *Agent) searchText(ctx context.Context, r *run, endpoint llm.Endpoint) Result {
	resolution := a.resolve(ctx, r)
	trace := TraceOriginalPrompt
	searchQuery := r.req.Query

	if r.req.Settings.OptimizeQuery {
		rewritten, err := a.optimizer.Optimize(ctx, endpoint, r.req.Query, resolution.Place)
		if err != nil {
			log.Printf("[livesearch] query optimization failed: %v", err)
			trace = err.Error()
			r.emit(ctx, events.TypeQueryFailed, map[string]any{"reason": err.Error()})
		} else {
			log.Printf("[livesearch] query optimized: %s -> %s", r.req.Query, rewritten)
			trace = fmt.Sprintf("Original: %s\nOptimized: %s", r.req.Query, rewritten)
			if resolution.Place != nil {
				if name := resolution.Place.DisplayName(); name != "" {
					trace += "\nLocation resolved: " + name
				}
			}
			searchQuery = rewritten
			r.emit(ctx, events.TypeQueryOptimized, map[string]any{"original": r.req.Query, "optimized": rewritten})
		}
	}

	results := a.retrieve(ctx, r, searchQuery)
	if len(results) == 0 {
		return Result{
			Answer:     fmt.Sprintf("No search results found using %s.", a.searcher.Name()),
			SourceURLs: []string{},
			Trace:      trace,
		}
	}

	blocks, sources := a.gather(ctx, r, results)
	evidence := withWeather(resolution.Weather, strings.Join(blocks, "\n"))
	messages := []llm.ChatMessage{
		llm.Text(llm.RoleSystem, searchSystemPrompt(r.req.Settings.OutputLanguage, r.req.Role)),
		llm.Text(llm.RoleUser, fmt.Sprintf("User Query: %s\n\nSearch Results:\n%s", r.req.Query, evidence)),
	}
	answer := a.answer(ctx, r, endpoint, messages)
	return Result{Answer: answer, SourceURLs: sources, Trace: trace}
}

func (a *Agent) retrieve(ctx context.Context, r *run, searchQuery string) []search.Result {
	log.Printf("[livesearch] searching for %q using %s", searchQuery, a.searcher.Name())
	results := a.searcher.Search(ctx, searchQuery, r.req.Settings.NumResults, r.proxy)
	r.emit(ctx, events.TypeSearchCompleted, map[string]any{
		"query":   searchQuery,
		"backend": a.searcher.Name(),
		"results": len(results),
	})
	return results
}

func withWeather(weather *geo.WeatherSnapshot, evidence string) string {
	if weather == nil {
		return evidence
	}
	return fmt.Sprintf("%s\n\n%s\n%s", weather.Format(), weatherSeparator, evidence)
}

// gather fetches ranked results window by window and evaluates them in
// ranked order, stopping once enough trusted pages have content. In vision
// mode a failed fetch still contributes its search summary.
func (a *Agent) gather(ctx context.Context, r *run, results []search.Result) ([]string, []string) {
	candidates := make([]search.Result, 0, len(results))
	for _, result := range search.Rank(results) {
		switch {
		case !isHTTPURL(result.URL):
			r.emit(ctx, events.TypeFetchSkipped, map[string]any{"url": result.URL, "reason": "unsupported url"})
		case isStructuredHomepage(result.URL):
			log.Printf("[livesearch] skipping %s homepage", extract.StructuredDomain)
			r.emit(ctx, events.TypeFetchSkipped, map[string]any{"url": result.URL, "reason": "homepage"})
		default:
			candidates = append(candidates, result)
		}
	}

	blocks := []string{}
	sources := []string{}
	trusted := 0
	window := a.limits.FetchConcurrency
	for start := 0; start < len(candidates); start += window {
		if ctx.Err() != nil {
			break
		}
		batch := candidates[start:min(start+window, len(candidates))]
		contents := a.prefetch(ctx, batch, r.proxy)
		for i, result := range batch {
			if contents[i] == "" {
				r.emit(ctx, events.TypeFetchFailed, map[string]any{"url": result.URL})
				if r.req.Settings.Mode == ModeVision {
					blocks = append(blocks, fmt.Sprintf("Source: %s (%s)\nSummary: %s\n(Content fetch failed)\n---", result.Title, result.URL, result.Summary))
					sources = append(sources, result.URL)
				}
				continue
			}
			limit := a.limits.SnippetChars
			if extract.IsStructuredDomain(result.URL) {
				limit = a.limits.StructuredSnippetChars
			}
			snippet := extract.Truncate(contents[i], limit)
			blocks = append(blocks, fmt.Sprintf("Source: %s (%s)\nSummary: %s\nContent: %s\n---", result.Title, result.URL, result.Summary, snippet))
			sources = append(sources, result.URL)
			r.emit(ctx, events.TypeFetchCompleted, map[string]any{"url": result.URL, "chars": len([]rune(snippet))})

			if search.IsTrusted(result.URL) {
				trusted++
			}
			if trusted >= a.limits.EarlyStopTrusted {
				log.Printf("[livesearch] %d trusted sources with content, stopping early", trusted)
				r.emit(ctx, events.TypeEarlyStop, map[string]any{"trusted": trusted})
				return blocks, sources
			}
		}
	}
	return blocks, sources
}

func (a *Agent) prefetch(ctx context.Context, batch []search.Result, proxy string) []string {
	contents := make([]string, len(batch))
	if len(batch) == 1 {
		log.Printf("[livesearch] fetching %s", batch[0].URL)
		contents[0] = a.pages.Fetch(ctx, batch[0].URL, a.fetchTimeout, proxy)
		return contents
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(batch))
	for i, result := range batch {
		g.Go(func() error {
			log.Printf("[livesearch] fetching %s", result.URL)
			contents[i] = a.pages.Fetch(gctx, result.URL, a.fetchTimeout, proxy)
			return nil
		})
	}
	_ = g.Wait()
	return contents
}

func isHTTPURL(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

func isStructuredHomepage(raw string) bool {
	if !extract.IsStructuredDomain(raw) {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Path == "" || parsed.Path == "/") && parsed.RawQuery == ""
}
