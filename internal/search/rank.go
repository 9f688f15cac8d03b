package search

import (
	"net/url"
	"sort"
	"strings"
)

// TrustedDomains are authoritative time/weather sources, matched by host.
var TrustedDomains = []string{
	"timeanddate.com",
	"accuweather.com",
	"weather.com",
	"wunderground.com",
	"openweathermap.org",
	"worldweatheronline.com",
	"weather-atlas.com",
	"weathertoday.live",
	"easeweather.com",
}

func IsTrusted(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}
	for _, domain := range TrustedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// IsHomepage treats a URL ending in "/" or with at most three slashes
// (scheme plus host, no path segment) as a site root.
func IsHomepage(rawURL string) bool {
	return strings.HasSuffix(rawURL, "/") || strings.Count(rawURL, "/") <= 3
}

func tier(r Result) int {
	switch {
	case IsTrusted(r.URL) && !IsHomepage(r.URL):
		return 0
	case IsTrusted(r.URL):
		return 1
	default:
		return 2
	}
}

// Rank orders results trusted-specific, then trusted-homepage, then the
// rest, keeping engine order within each tier. The input is not modified.
func Rank(results []Result) []Result {
	ranked := append([]Result(nil), results...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return tier(ranked[i]) < tier(ranked[j])
	})
	return ranked
}

func preferTrusted(results []Result) []Result {
	trusted := []Result{}
	other := []Result{}
	for _, r := range results {
		if IsTrusted(r.URL) {
			trusted = append(trusted, r)
		} else {
			other = append(other, r)
		}
	}
	return append(trusted, other...)
}
