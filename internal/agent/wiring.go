package agent

import (
	"time"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/config"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/extract"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/geo"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/httpx"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/llm"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/search"
)

// FromConfig assembles the pipeline with one shared HTTP client for the
// LLM gateway, geo backends, search backend and page extractor.
func FromConfig(cfg config.Config, catalog *llm.Catalog, keys llm.KeySource) (*Agent, error) {
	shared := httpx.New()

	backend, err := search.NewBackend(cfg.SearchBackend, search.BackendOptions{
		DuckDuckGoURL: cfg.DuckDuckGoURL,
		TavilyURL:     cfg.TavilyURL,
		Timeout:       seconds(cfg.SearchTimeoutSeconds),
		HTTP:          shared,
		Keys:          keys,
	})
	if err != nil {
		return nil, err
	}

	geoTimeout := seconds(cfg.GeoTimeoutSeconds)
	resolver := geo.NewResolver(
		geo.NewOpenMeteo(cfg.OpenMeteoURL, geoTimeout, shared),
		geo.NewNominatim(cfg.NominatimURL, geoTimeout, shared),
	).WithLanguage(cfg.GeoLanguage)

	return New(Config{
		Catalog:  catalog,
		Gateway:  llm.NewGateway(shared),
		Geo:      resolver,
		Searcher: search.NewClient(backend),
		Pages:    extract.New(shared, extract.DefaultLimits()),
		Limits: Limits{
			EarlyStopTrusted:       cfg.EarlyStopTrusted,
			SnippetChars:           cfg.SnippetChars,
			StructuredSnippetChars: cfg.StructuredSnippetChars,
			FetchConcurrency:       cfg.FetchConcurrency,
		},
		FetchTimeout: seconds(cfg.FetchTimeoutSeconds),
	}), nil
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
