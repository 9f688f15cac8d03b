package extract

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/httpx"
)

// StructuredDomain publishes per-location time and weather values in
// predictable markup, so its pages are extracted field by field.
const StructuredDomain = "timeanddate.com"

type Limits struct {
	GenericMaxChars     int
	StructuredMainChars int
	FragmentScan        int
	FragmentKeep        int
	FragmentMaxChars    int
}

func DefaultLimits() Limits {
	return Limits{
		GenericMaxChars:     5000,
		StructuredMainChars: 3000,
		FragmentScan:        5,
		FragmentKeep:        3,
		FragmentMaxChars:    100,
	}
}

type Extractor struct {
	fetcher httpx.Fetcher
	limits  Limits
}

func New(fetcher httpx.Fetcher, limits Limits) *Extractor {
	if fetcher == nil {
		fetcher = httpx.New()
	}
	return &Extractor{fetcher: fetcher, limits: limits}
}

// Fetch downloads rawURL and returns its readable text, or "" on any failure.
func (e *Extractor) Fetch(ctx context.Context, rawURL string, timeout time.Duration, proxy string) string {
	resp, err := e.fetcher.Get(ctx, rawURL, map[string]string{"User-Agent": httpx.BrowserUserAgent}, timeout, proxy)
	if err != nil {
		log.Printf("[livesearch] fetch error for %s: %v", rawURL, err)
		return ""
	}
	if !resp.OK() {
		log.Printf("[livesearch] fetch error for %s: HTTP %d", rawURL, resp.StatusCode)
		return ""
	}
	text, err := e.Extract(rawURL, resp.Body)
	if err != nil {
		log.Printf("[livesearch] parse error for %s: %v", rawURL, err)
		return ""
	}
	return text
}

func (e *Extractor) Extract(rawURL string, body []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if IsStructuredDomain(rawURL) {
		return e.structured(doc), nil
	}
	return e.generic(doc), nil
}

func IsStructuredDomain(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	return host == StructuredDomain || strings.HasSuffix(host, "."+StructuredDomain)
}

var genericSkip = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
	atom.Header: true,
	atom.Footer: true,
	atom.Nav:    true,
}

var structuredSkip = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
}

func (e *Extractor) generic(doc *html.Node) string {
	var raw strings.Builder
	collectText(doc, genericSkip, func(text string) {
		raw.WriteString(text)
	})
	chunks := []string{}
	for _, line := range strings.Split(raw.String(), "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				chunks = append(chunks, phrase)
			}
		}
	}
	return Truncate(strings.Join(chunks, "\n"), e.limits.GenericMaxChars)
}

func (e *Extractor) structured(doc *html.Node) string {
	timeInfo := []string{}
	weatherInfo := []string{}
	timeScanned, weatherScanned := 0, 0
	walk(doc, func(n *html.Node) bool {
		if n.DataAtom != atom.Div && n.DataAtom != atom.Span {
			return true
		}
		class := strings.ToLower(attr(n, "class"))
		if class == "" {
			return true
		}
		if timeScanned < e.limits.FragmentScan && containsAny(class, "time", "clock", "cst", "utc") {
			timeScanned++
			if text := strippedText(n); text != "" && len([]rune(text)) < e.limits.FragmentMaxChars {
				timeInfo = append(timeInfo, text)
			}
		}
		if weatherScanned < e.limits.FragmentScan && containsAny(class, "weather", "temp", "°f", "°c") {
			weatherScanned++
			text := strippedText(n)
			if text != "" && (strings.Contains(text, "°") || containsAny(strings.ToLower(text), "weather", "forecast")) {
				weatherInfo = append(weatherInfo, text)
			}
		}
		return true
	})

	region := findMainRegion(doc)
	if region == nil {
		region = doc
	}
	mainText := joinedText(region, "\n")

	combined := []string{}
	if len(timeInfo) > 0 {
		combined = append(combined, fmt.Sprintf("Time Information: %s", strings.Join(head(timeInfo, e.limits.FragmentKeep), " | ")))
	}
	if len(weatherInfo) > 0 {
		combined = append(combined, fmt.Sprintf("Weather Information: %s", strings.Join(head(weatherInfo, e.limits.FragmentKeep), " | ")))
	}
	combined = append(combined, fmt.Sprintf("Main Content: %s", Truncate(mainText, e.limits.StructuredMainChars)))
	return strings.Join(combined, "\n")
}

func findMainRegion(doc *html.Node) *html.Node {
	var main, content *html.Node
	walk(doc, func(n *html.Node) bool {
		if main != nil {
			return false
		}
		if n.DataAtom == atom.Main {
			main = n
			return false
		}
		if content == nil && n.DataAtom == atom.Div && strings.Contains(strings.ToLower(attr(n, "class")), "content") {
			content = n
		}
		return true
	})
	if main != nil {
		return main
	}
	return content
}

// walk visits nodes depth-first in document order. Returning false from fn
// skips the node's children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if n.Type == html.ElementNode && !fn(n) {
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walk(child, fn)
	}
}

func collectText(n *html.Node, skip map[atom.Atom]bool, emit func(string)) {
	if n.Type == html.ElementNode && skip[n.DataAtom] {
		return
	}
	if n.Type == html.TextNode {
		emit(n.Data)
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, skip, emit)
	}
}

func strippedText(n *html.Node) string {
	return joinedText(n, "")
}

func joinedText(n *html.Node, sep string) string {
	parts := []string{}
	collectText(n, structuredSkip, func(text string) {
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, sep)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func containsAny(value string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(value, needle) {
			return true
		}
	}
	return false
}

func head(values []string, n int) []string {
	if n >= 0 && len(values) > n {
		return values[:n]
	}
	return values
}

// Truncate caps text at limit characters, counted in runes.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
