package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	Port                   string
	PublicURL              string
	StoreDriver            string
	PostgresURL            string
	TemporalAddress        string
	TemporalTaskQueue      string
	SecretsKey             string
	KeysFile               string
	DefaultProvider        string
	SearchBackend          string
	SearchTimeoutSeconds   int
	FetchTimeoutSeconds    int
	GeoTimeoutSeconds      int
	GeoLanguage            string
	EarlyStopTrusted       int
	SnippetChars           int
	StructuredSnippetChars int
	FetchConcurrency       int
	NominatimURL           string
	OpenMeteoURL           string
	DuckDuckGoURL          string
	TavilyURL              string
}

func Load() Config {
	port := getEnv("LIVESEARCH_PORT", "8080")
	postgresURL := getEnv("POSTGRES_URL", "")
	if postgresURL == "" {
		postgresURL = buildPostgresURL()
	}
	return Config{
		Port:                   port,
		PublicURL:              getEnv("LIVESEARCH_URL", "http://localhost:"+port),
		StoreDriver:            getEnv("STORE_DRIVER", "memory"),
		PostgresURL:            postgresURL,
		TemporalAddress:        getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTaskQueue:      getEnv("TEMPORAL_TASK_QUEUE", "livesearch-runs"),
		SecretsKey:             getEnv("LIVESEARCH_SECRETS_KEY", ""),
		KeysFile:               getEnv("LIVESEARCH_KEYS_FILE", defaultKeysFile()),
		DefaultProvider:        getEnv("LIVESEARCH_DEFAULT_PROVIDER", "deepseek"),
		SearchBackend:          getEnv("SEARCH_BACKEND", "duckduckgo"),
		SearchTimeoutSeconds:   getEnvInt("SEARCH_TIMEOUT_SECONDS", 30),
		FetchTimeoutSeconds:    getEnvInt("FETCH_TIMEOUT_SECONDS", 10),
		GeoTimeoutSeconds:      getEnvInt("GEO_TIMEOUT_SECONDS", 10),
		GeoLanguage:            getEnv("GEO_LANGUAGE", "en"),
		EarlyStopTrusted:       getEnvInt("EARLY_STOP_TRUSTED", 2),
		SnippetChars:           getEnvInt("SNIPPET_CHARS", 2000),
		StructuredSnippetChars: getEnvInt("STRUCTURED_SNIPPET_CHARS", 3000),
		FetchConcurrency:       getEnvInt("FETCH_CONCURRENCY", 1),
		NominatimURL:           getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		OpenMeteoURL:           getEnv("OPEN_METEO_URL", "https://api.open-meteo.com/v1"),
		DuckDuckGoURL:          getEnv("DUCKDUCKGO_URL", "https://html.duckduckgo.com/html/"),
		TavilyURL:              getEnv("TAVILY_URL", "https://api.tavily.com"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func buildPostgresURL() string {
	user := getEnv("POSTGRES_USER", "livesearch")
	password := getEnv("POSTGRES_PASSWORD", "livesearch")
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	database := getEnv("POSTGRES_DB", "livesearch")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, database)
}

func defaultKeysFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".livesearch", "keys.yaml")
}
