package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/agent"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/config"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/llm"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/role"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/secrets"
)

type runner interface {
	Run(ctx context.Context, req agent.Request) agent.Result
}

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	loadKeysFile = secrets.LoadKeysFile
	readRole     = role.ReadFromDisk
	newCatalog   = llm.DefaultCatalog
	newRunner    = func(cfg config.Config, catalog *llm.Catalog, keys llm.KeySource) (runner, error) {
		return agent.FromConfig(cfg, catalog, keys)
	}
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "lsq",
		Short:        "Ask an LLM with live web search grounding",
		SilenceUsage: true,
	}
	root.AddCommand(newAskCmd())
	root.AddCommand(newProvidersCmd())
	return root
}
