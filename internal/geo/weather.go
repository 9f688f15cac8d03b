package geo

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

var wmoCodes = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

func DescribeWeatherCode(code int) string {
	if desc, ok := wmoCodes[code]; ok {
		return desc
	}
	return "Unknown weather code"
}

// WeatherSnapshot holds current conditions. Numeric readings keep the
// forecast API's own textual form.
type WeatherSnapshot struct {
	Coordinates         Coordinates
	Timezone            string
	TimezoneAbbr        string
	LocalTime           string
	Temperature         json.Number
	ApparentTemperature json.Number
	Humidity            json.Number
	WindSpeed           json.Number
	CloudCover          json.Number
	WeatherCode         *int
	IsDay               bool
}

func (w WeatherSnapshot) Condition() string {
	if w.WeatherCode == nil {
		return DescribeWeatherCode(-1)
	}
	return DescribeWeatherCode(*w.WeatherCode)
}

// Format renders the block placed ahead of web search context.
func (w WeatherSnapshot) Format() string {
	timezone := w.Timezone
	if timezone == "" {
		timezone = "Unknown"
	}
	isDay := "No"
	if w.IsDay {
		isDay = "Yes"
	}
	lines := []string{
		"--- REAL-TIME WEATHER & TIME DATA (Source: Open-Meteo) ---",
		fmt.Sprintf("Location Coordinates: %s, %s", formatFloat(w.Coordinates.Lat), formatFloat(w.Coordinates.Lon)),
		fmt.Sprintf("Timezone: %s (%s)", timezone, w.TimezoneAbbr),
		fmt.Sprintf("Current Local Time: %s", strings.ReplaceAll(w.LocalTime, "T", " ")),
		fmt.Sprintf("Temperature: %s °C (Apparent: %s °C)", reading(w.Temperature), reading(w.ApparentTemperature)),
		fmt.Sprintf("Condition: %s", w.Condition()),
		fmt.Sprintf("Humidity: %s%%", reading(w.Humidity)),
		fmt.Sprintf("Wind Speed: %s km/h", reading(w.WindSpeed)),
		fmt.Sprintf("Cloud Cover: %s%%", reading(w.CloudCover)),
		fmt.Sprintf("Is Day: %s", isDay),
		"--------------------------------------------------------",
	}
	return strings.Join(lines, "\n")
}

func reading(n json.Number) string {
	if n == "" {
		return "N/A"
	}
	return n.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
