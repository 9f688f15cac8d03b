package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsTrusted(t *testing.T) {
	cases := map[string]bool{
		"https://www.timeanddate.com/weather/china/beijing": true,
		"https://weather.com/weather/today/l/Paris":         true,
		"https://m.accuweather.com/en/fr/paris":             true,
		"https://theweather.com/paris":                      false,
		"https://example.com/?src=weather.com":              false,
		"https://openweathermap.org.evil.example/":          false,
		"not a url":                                         false,
		"":                                                  false,
	}
	for rawURL, expected := range cases {
		require.Equal(t, expected, IsTrusted(rawURL), rawURL)
	}
}

func TestIsHomepage(t *testing.T) {
	require.True(t, IsHomepage("https://www.timeanddate.com/"))
	require.True(t, IsHomepage("https://www.timeanddate.com"))
	require.True(t, IsHomepage("https://www.timeanddate.com/weather/"))
	require.False(t, IsHomepage("https://www.timeanddate.com/weather/china"))
}

func TestRank_ThreeTiersStable(t *testing.T) {
	input := []Result{
		{Title: "u1", URL: "https://example.com/a/b"},
		{Title: "th1", URL: "https://www.accuweather.com"},
		{Title: "ts1", URL: "https://www.timeanddate.com/weather/uk/london"},
		{Title: "u2", URL: "https://news.example.org/x/y"},
		{Title: "ts2", URL: "https://www.wunderground.com/weather/gb/london"},
		{Title: "th2", URL: "https://weather.com/"},
	}
	ranked := Rank(input)
	titles := []string{}
	for _, r := range ranked {
		titles = append(titles, r.Title)
	}
	require.Equal(t, []string{"ts1", "ts2", "th1", "th2", "u1", "u2"}, titles)
	require.Equal(t, "u1", input[0].Title, "input must not be reordered")
	require.Equal(t, ranked, Rank(ranked), "ranking is idempotent")
}

func TestRank_Empty(t *testing.T) {
	require.Empty(t, Rank(nil))
}
