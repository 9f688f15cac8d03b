package httpx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// BrowserUserAgent is sent on page fetches; several result sites reject
// requests without a desktop browser identifier.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const defaultMaxBodyBytes int64 = 8 << 20

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type Fetcher interface {
	Get(ctx context.Context, rawURL string, headers map[string]string, timeout time.Duration, proxy string) (Response, error)
}

type Poster interface {
	Post(ctx context.Context, rawURL string, headers map[string]string, body []byte, timeout time.Duration, proxy string) (Response, error)
}

// NewClient builds an *http.Client with the given timeout, routed through
// proxy when one is set. Both http and https traffic use the same proxy;
// without one the environment proxy settings apply.
func NewClient(timeout time.Duration, proxy string) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	proxy = strings.TrimSpace(proxy)
	if proxy != "" {
		proxyURL, err := ParseProxy(proxy)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

func ParseProxy(proxy string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(proxy))
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("invalid proxy url: unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid proxy url: missing host")
	}
	return parsed, nil
}

// Client is the shared Fetcher/Poster. Underlying http.Clients are cached per
// timeout and proxy pair so connections are reused across calls.
type Client struct {
	MaxBodyBytes int64

	mu      sync.Mutex
	clients map[string]*http.Client
}

func New() *Client {
	return &Client{
		MaxBodyBytes: defaultMaxBodyBytes,
		clients:      map[string]*http.Client{},
	}
}

func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string, timeout time.Duration, proxy string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Response{}, err
	}
	return c.do(req, headers, timeout, proxy)
}

func (c *Client) Post(ctx context.Context, rawURL string, headers map[string]string, body []byte, timeout time.Duration, proxy string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	return c.do(req, headers, timeout, proxy)
}

func (c *Client) do(req *http.Request, headers map[string]string, timeout time.Duration, proxy string) (Response, error) {
	client, err := c.client(timeout, proxy)
	if err != nil {
		return Response{}, err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return Response{}, err
	}
	return Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (c *Client) client(timeout time.Duration, proxy string) (*http.Client, error) {
	key := fmt.Sprintf("%s|%s", timeout, strings.TrimSpace(proxy))
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clients == nil {
		c.clients = map[string]*http.Client{}
	}
	if existing, ok := c.clients[key]; ok {
		return existing, nil
	}
	created, err := NewClient(timeout, proxy)
	if err != nil {
		return nil, err
	}
	c.clients[key] = created
	return created, nil
}
