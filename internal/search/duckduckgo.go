package search

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/httpx"
)

const defaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes the keyless HTML results page.
type DuckDuckGo struct {
	Endpoint string
	Timeout  time.Duration
	Fetcher  httpx.Fetcher
}

func (d *DuckDuckGo) Name() string {
	return "DuckDuckGo"
}

func (d *DuckDuckGo) TextSearch(ctx context.Context, query string, maxResults int, proxy string) ([]RawResult, error) {
	endpoint := d.Endpoint
	if endpoint == "" {
		endpoint = defaultDuckDuckGoURL
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	target, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	params := target.Query()
	params.Set("q", query)
	target.RawQuery = params.Encode()

	resp, err := d.Fetcher.Get(ctx, target.String(), map[string]string{"User-Agent": httpx.BrowserUserAgent}, timeout, proxy)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("duckduckgo returned HTTP %d", resp.StatusCode)
	}
	results, err := parseDuckDuckGoHTML(resp.Body)
	if err != nil {
		return nil, err
	}
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

func parseDuckDuckGoHTML(body []byte) ([]RawResult, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	results := []RawResult{}
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			classes := classList(n)
			switch {
			case classes["result--ad"]:
				return
			case classes["result__a"]:
				results = append(results, RawResult{
					Title: nodeText(n),
					Href:  decodeDuckDuckGoHref(attrValue(n, "href")),
				})
				return
			case classes["result__snippet"]:
				if len(results) > 0 && results[len(results)-1].Body == "" {
					results[len(results)-1].Body = nodeText(n)
				}
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
	}
	visit(doc)

	filtered := results[:0]
	for _, r := range results {
		if r.Href != "" {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// decodeDuckDuckGoHref unwraps /l/?uddg= redirect links to the target URL.
func decodeDuckDuckGoHref(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(parsed.Hostname(), "duckduckgo.com") && strings.HasPrefix(parsed.Path, "/l/") {
		if target := parsed.Query().Get("uddg"); target != "" {
			return target
		}
	}
	if parsed.Host == "" {
		return ""
	}
	return href
}

func classList(n *html.Node) map[string]bool {
	classes := map[string]bool{}
	for _, class := range strings.Fields(attrValue(n, "class")) {
		classes[class] = true
	}
	return classes
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
