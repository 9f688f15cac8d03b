package agent

import (
	"fmt"
	"strings"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/httpx"
)

type Mode string

const (
	ModeText   Mode = "T2T"
	ModeVision Mode = "TI2T"
)

type Language string

const (
	LanguageAuto    Language = "auto"
	LanguageChinese Language = "zh"
	LanguageEnglish Language = "en"
)

const (
	DefaultNumResults = 3
	MinNumResults     = 1
	MaxNumResults     = 10
)

// SearchOptions is the loosely typed input accepted from callers.
// NumResults of zero selects the default.
type SearchOptions struct {
	Mode            string `json:"mode"`
	EnableWebSearch bool   `json:"enable_web_search"`
	NumResults      int    `json:"num_results"`
	OutputLanguage  string `json:"output_language"`
	OptimizeQuery   bool   `json:"optimize_query"`
	Proxy           string `json:"proxy"`
}

type Settings struct {
	Mode            Mode
	EnableWebSearch bool
	NumResults      int
	OutputLanguage  Language
	OptimizeQuery   bool
	Proxy           string
}

func ConfigureSearch(opts SearchOptions) (Settings, error) {
	mode, err := ParseMode(opts.Mode)
	if err != nil {
		return Settings{}, err
	}
	language, err := ParseLanguage(opts.OutputLanguage)
	if err != nil {
		return Settings{}, err
	}
	numResults := opts.NumResults
	if numResults == 0 {
		numResults = DefaultNumResults
	}
	if numResults < MinNumResults || numResults > MaxNumResults {
		return Settings{}, fmt.Errorf("num_results must be between %d and %d, got %d", MinNumResults, MaxNumResults, numResults)
	}
	proxy := strings.TrimSpace(opts.Proxy)
	if proxy != "" {
		if _, err := httpx.ParseProxy(proxy); err != nil {
			return Settings{}, err
		}
	}
	return Settings{
		Mode:            mode,
		EnableWebSearch: opts.EnableWebSearch,
		NumResults:      numResults,
		OutputLanguage:  language,
		OptimizeQuery:   opts.OptimizeQuery,
		Proxy:           proxy,
	}, nil
}

func ParseMode(raw string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "T2T", "TEXT":
		return ModeText, nil
	case "TI2T", "VISION":
		return ModeVision, nil
	}
	return "", fmt.Errorf("unsupported mode: %s", raw)
}

func ParseLanguage(raw string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto":
		return LanguageAuto, nil
	case "zh", "zh-cn", "chinese", "中文":
		return LanguageChinese, nil
	case "en", "english":
		return LanguageEnglish, nil
	}
	return "", fmt.Errorf("unsupported output language: %s", raw)
}

// Limits bound how much evidence a run gathers.
type Limits struct {
	EarlyStopTrusted       int
	SnippetChars           int
	StructuredSnippetChars int
	FetchConcurrency       int
}

func DefaultLimits() Limits {
	return Limits{
		EarlyStopTrusted:       2,
		SnippetChars:           2000,
		StructuredSnippetChars: 3000,
		FetchConcurrency:       1,
	}
}

func (l Limits) withDefaults() Limits {
	defaults := DefaultLimits()
	if l.EarlyStopTrusted <= 0 {
		l.EarlyStopTrusted = defaults.EarlyStopTrusted
	}
	if l.SnippetChars <= 0 {
		l.SnippetChars = defaults.SnippetChars
	}
	if l.StructuredSnippetChars <= 0 {
		l.StructuredSnippetChars = defaults.StructuredSnippetChars
	}
	if l.FetchConcurrency <= 0 {
		l.FetchConcurrency = defaults.FetchConcurrency
	}
	return l
}
