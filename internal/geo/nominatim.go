package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/httpx"
)

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	nominatimUserAgent  = "livesearch/1.0"
)

type Nominatim struct {
	BaseURL string
	Timeout time.Duration
	Fetcher httpx.Fetcher
}

func NewNominatim(baseURL string, timeout time.Duration, fetcher httpx.Fetcher) *Nominatim {
	if fetcher == nil {
		fetcher = httpx.New()
	}
	return &Nominatim{BaseURL: baseURL, Timeout: timeout, Fetcher: fetcher}
}

type nominatimResponse struct {
	Error   string            `json:"error"`
	Address map[string]string `json:"address"`
}

// Reverse returns nil without error when the service has no address for
// the point.
func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64, language string, proxy string) (*PlaceHint, error) {
	base := n.BaseURL
	if base == "" {
		base = DefaultNominatimURL
	}
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if language == "" {
		language = DefaultGeocodeLanguage
	}
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", formatFloat(lat))
	params.Set("lon", formatFloat(lon))
	params.Set("accept-language", language)
	params.Set("addressdetails", "1")
	target := strings.TrimRight(base, "/") + "/reverse?" + params.Encode()

	resp, err := n.Fetcher.Get(ctx, target, map[string]string{"User-Agent": nominatimUserAgent}, timeout, proxy)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("nominatim returned HTTP %d", resp.StatusCode)
	}
	var parsed nominatimResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("decode nominatim response: %w", err)
	}
	if parsed.Error != "" || len(parsed.Address) == 0 {
		return nil, nil
	}
	address := parsed.Address
	return &PlaceHint{
		City:     firstNonEmpty(address["city"], address["town"], address["village"], address["county"]),
		District: firstNonEmpty(address["suburb"], address["district"]),
		State:    firstNonEmpty(address["state"], address["state_district"]),
		Country:  address["country"],
		Region:   address["region"],
	}, nil
}
