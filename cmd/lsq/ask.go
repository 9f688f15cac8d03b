package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/agent"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/llm"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/secrets"
)

var errAnswerFailed = errors.New("answer failed")

type askOptions struct {
	provider    string
	textModel   string
	visionModel string
	apiKey      string
	baseURL     string
	temperature float64
	maxTokens   int
	timeout     int
	mode        string
	search      bool
	results     int
	language    string
	optimize    bool
	proxy       string
	image       string
	role        string
	jsonOutput  bool
	verbose     bool
}

func newAskCmd() *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer a question, grounding it in live search results",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, opts, strings.Join(args, " "))
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.provider, "provider", "p", "", "LLM provider id (defaults to LIVESEARCH_DEFAULT_PROVIDER)")
	flags.StringVarP(&opts.textModel, "model", "m", "", "text model")
	flags.StringVar(&opts.visionModel, "vision-model", "", "vision model for TI2T runs")
	flags.StringVar(&opts.apiKey, "api-key", "", "API key override")
	flags.StringVar(&opts.baseURL, "base-url", "", "API base URL override")
	flags.Float64Var(&opts.temperature, "temperature", llm.DefaultTemperature, "sampling temperature")
	flags.IntVar(&opts.maxTokens, "max-tokens", 0, "maximum answer tokens")
	flags.IntVar(&opts.timeout, "timeout", 0, "LLM timeout in seconds")
	flags.StringVar(&opts.mode, "mode", "", "T2T or TI2T (implied by --image)")
	flags.BoolVar(&opts.search, "search", true, "ground the answer in web search results")
	flags.IntVarP(&opts.results, "results", "n", agent.DefaultNumResults, "number of search results to consider")
	flags.StringVar(&opts.language, "lang", "auto", "answer language: auto, en or zh")
	flags.BoolVar(&opts.optimize, "optimize", true, "rewrite the question into a search query")
	flags.StringVar(&opts.proxy, "proxy", "", "proxy URL for outbound requests")
	flags.StringVar(&opts.image, "image", "", "path to a PNG, JPEG or GIF image")
	flags.StringVar(&opts.role, "role", "", "persona for the system prompt (defaults to the nearest ROLE.md)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print the result as JSON")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "print stage events to stderr")
	return cmd
}

func runAsk(cmd *cobra.Command, opts *askOptions, query string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	input, err := opts.input(query)
	if err != nil {
		return err
	}
	if input.Provider == "" {
		input.Provider = cfg.DefaultProvider
	}
	if !cmd.Flags().Changed("temperature") {
		input.Temperature = nil
	}
	if input.Role == "" {
		if input.Role, err = readRole(); err != nil {
			return err
		}
	}

	file, err := loadKeysFile(cfg.KeysFile)
	if err != nil {
		return err
	}
	keys := secrets.NewKeyring(file, nil, nil)
	catalog := newCatalog()

	req, err := input.Build(cmd.Context(), catalog, keys)
	if err != nil {
		return err
	}
	if opts.verbose {
		errOut := cmd.ErrOrStderr()
		req.Observer = agent.ObserverFunc(func(_ context.Context, eventType string, payload map[string]any) {
			fmt.Fprintln(errOut, renderEvent(eventType, payload))
		})
	}

	pipeline, err := newRunner(cfg, catalog, keys)
	if err != nil {
		return err
	}
	result := pipeline.Run(cmd.Context(), req)

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, renderAnswer(result))
	}
	if llm.IsError(result.Answer) {
		return errAnswerFailed
	}
	return nil
}

func (o *askOptions) input(query string) (agent.Input, error) {
	temperature := o.temperature
	input := agent.Input{
		Query:          strings.TrimSpace(query),
		Provider:       strings.TrimSpace(o.provider),
		TextModel:      o.textModel,
		VisionModel:    o.visionModel,
		APIKey:         o.apiKey,
		BaseURL:        o.baseURL,
		Temperature:    &temperature,
		MaxTokens:      o.maxTokens,
		TimeoutSeconds: o.timeout,
		Search: agent.SearchOptions{
			Mode:            o.mode,
			EnableWebSearch: o.search,
			NumResults:      o.results,
			OutputLanguage:  o.language,
			OptimizeQuery:   o.optimize,
			Proxy:           o.proxy,
		},
		Role: o.role,
	}
	if o.image != "" {
		raw, err := os.ReadFile(o.image)
		if err != nil {
			return agent.Input{}, fmt.Errorf("read image: %w", err)
		}
		input.Image = base64.StdEncoding.EncodeToString(raw)
		if input.Search.Mode == "" {
			input.Search.Mode = string(agent.ModeVision)
		}
	}
	return input, nil
}
