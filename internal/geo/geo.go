package geo

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
)

var coordinatePattern = regexp.MustCompile(`(-?\d+\.?\d*)\s*[,，]\s*(-?\d+\.?\d*)`)

type Coordinates struct {
	Lat float64
	Lon float64
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%s, %s", formatFloat(c.Lat), formatFloat(c.Lon))
}

// ParseCoordinates finds the first "lat, lon" pair in text. The ASCII and
// full-width commas are both accepted; out-of-range pairs are rejected.
func ParseCoordinates(text string) (Coordinates, bool) {
	match := coordinatePattern.FindStringSubmatch(text)
	if match == nil {
		return Coordinates{}, false
	}
	lat, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return Coordinates{}, false
	}
	lon, err := strconv.ParseFloat(match[2], 64)
	if err != nil {
		return Coordinates{}, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Coordinates{}, false
	}
	return Coordinates{Lat: lat, Lon: lon}, true
}

type PlaceHint struct {
	City     string
	District string
	State    string
	Country  string
	Region   string
}

// SearchName is the compact name fed to query rewriting, e.g. "Beijing Haidian".
func (p PlaceHint) SearchName() string {
	base := firstNonEmpty(p.City, p.State, p.Region)
	if base != "" && p.District != "" {
		return base + " " + p.District
	}
	return base
}

func (p PlaceHint) DisplayName() string {
	switch {
	case p.City != "" && p.Country != "":
		return p.City + ", " + p.Country
	case p.City != "":
		return p.City
	default:
		return p.Country
	}
}

func (p PlaceHint) empty() bool {
	return p.City == "" && p.District == "" && p.State == "" && p.Country == "" && p.Region == ""
}

type ForecastBackend interface {
	Current(ctx context.Context, lat, lon float64, proxy string) (*WeatherSnapshot, error)
}

type GeocodeBackend interface {
	Reverse(ctx context.Context, lat, lon float64, language string, proxy string) (*PlaceHint, error)
}

type Resolution struct {
	Coordinates *Coordinates
	Weather     *WeatherSnapshot
	Place       *PlaceHint
}

// DefaultGeocodeLanguage is the accept-language sent with reverse geocoding
// unless a Resolver is given another one.
const DefaultGeocodeLanguage = "en"

// Resolver turns coordinates embedded in a query into weather data and a
// place hint. Either backend may be nil.
type Resolver struct {
	forecast ForecastBackend
	geocode  GeocodeBackend
	language string
}

func NewResolver(forecast ForecastBackend, geocode GeocodeBackend) *Resolver {
	return &Resolver{forecast: forecast, geocode: geocode, language: DefaultGeocodeLanguage}
}

// WithLanguage sets the language place names are requested in. An empty
// value keeps the current one.
func (r *Resolver) WithLanguage(language string) *Resolver {
	if language = strings.TrimSpace(language); language != "" {
		r.language = language
	}
	return r
}

// Resolve never fails: each lookup that errors leaves its half of the
// Resolution nil.
func (r *Resolver) Resolve(ctx context.Context, text string, proxy string) Resolution {
	coords, ok := ParseCoordinates(text)
	if !ok {
		return Resolution{}
	}
	resolution := Resolution{Coordinates: &coords}

	if r.forecast != nil {
		weather, err := r.forecast.Current(ctx, coords.Lat, coords.Lon, proxy)
		if err != nil {
			log.Printf("[livesearch] forecast lookup failed for %s: %v", coords, err)
		} else if weather != nil {
			resolution.Weather = weather
		}
	}

	if r.geocode != nil {
		place, err := r.geocode.Reverse(ctx, coords.Lat, coords.Lon, r.language, proxy)
		if err != nil {
			log.Printf("[livesearch] reverse geocoding failed for %s: %v", coords, err)
		} else if place != nil && !place.empty() {
			resolution.Place = place
		}
	}
	return resolution
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
