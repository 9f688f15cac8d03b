package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/httpx"
)

const (
	DefaultOpenMeteoURL = "https://api.open-meteo.com/v1"
	currentFields       = "temperature_2m,relative_humidity_2m,apparent_temperature,is_day,precipitation,rain,showers,snowfall,weather_code,cloud_cover,wind_speed_10m"
)

type OpenMeteo struct {
	BaseURL string
	Timeout time.Duration
	Fetcher httpx.Fetcher
}

func NewOpenMeteo(baseURL string, timeout time.Duration, fetcher httpx.Fetcher) *OpenMeteo {
	if fetcher == nil {
		fetcher = httpx.New()
	}
	return &OpenMeteo{BaseURL: baseURL, Timeout: timeout, Fetcher: fetcher}
}

type openMeteoResponse struct {
	Timezone     string `json:"timezone"`
	TimezoneAbbr string `json:"timezone_abbreviation"`
	Current      struct {
		Time                string      `json:"time"`
		Temperature         json.Number `json:"temperature_2m"`
		ApparentTemperature json.Number `json:"apparent_temperature"`
		Humidity            json.Number `json:"relative_humidity_2m"`
		WindSpeed           json.Number `json:"wind_speed_10m"`
		CloudCover          json.Number `json:"cloud_cover"`
		WeatherCode         *int        `json:"weather_code"`
		IsDay               *int        `json:"is_day"`
	} `json:"current"`
}

func (o *OpenMeteo) Current(ctx context.Context, lat, lon float64, proxy string) (*WeatherSnapshot, error) {
	base := o.BaseURL
	if base == "" {
		base = DefaultOpenMeteoURL
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	params := url.Values{}
	params.Set("latitude", formatFloat(lat))
	params.Set("longitude", formatFloat(lon))
	params.Set("current", currentFields)
	params.Set("timezone", "auto")
	params.Set("timeformat", "iso8601")
	target := strings.TrimRight(base, "/") + "/forecast?" + params.Encode()

	resp, err := o.Fetcher.Get(ctx, target, map[string]string{"Accept": "application/json"}, timeout, proxy)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("open-meteo returned HTTP %d", resp.StatusCode)
	}
	decoder := json.NewDecoder(bytes.NewReader(resp.Body))
	decoder.UseNumber()
	var parsed openMeteoResponse
	if err := decoder.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode open-meteo response: %w", err)
	}
	timezone := parsed.Timezone
	if timezone == "" {
		timezone = "Unknown"
	}
	return &WeatherSnapshot{
		Coordinates:         Coordinates{Lat: lat, Lon: lon},
		Timezone:            timezone,
		TimezoneAbbr:        parsed.TimezoneAbbr,
		LocalTime:           parsed.Current.Time,
		Temperature:         parsed.Current.Temperature,
		ApparentTemperature: parsed.Current.ApparentTemperature,
		Humidity:            parsed.Current.Humidity,
		WindSpeed:           parsed.Current.WindSpeed,
		CloudCover:          parsed.Current.CloudCover,
		WeatherCode:         parsed.Current.WeatherCode,
		IsDay:               parsed.Current.IsDay != nil && *parsed.Current.IsDay != 0,
	}, nil
}
