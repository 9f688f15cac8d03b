package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.temporal.io/sdk/client"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/agent"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/api"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/config"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/events"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/llm"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/secrets"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/store"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/store/memory"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/store/postgres"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/workflows"
)

type server interface {
	Start(ctx context.Context, addr string) error
}

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	newBroker = events.NewBroker
	newStore  = func(cfg config.Config) (store.Store, error) {
		return openStore(cfg)
	}
	loadKeysFile = secrets.LoadKeysFile
	newCipher    = secrets.NewCipher
	newRunner    = func(cfg config.Config, catalog *llm.Catalog, keys llm.KeySource) (api.Runner, error) {
		return agent.FromConfig(cfg, catalog, keys)
	}
	dialTemporal       = client.Dial
	newWorkflowService = func(c client.Client, taskQueue string) api.WorkflowService {
		return workflows.NewService(c, taskQueue)
	}
	newServer = func(st store.Store, broker *events.Broker, wf api.WorkflowService, cfg config.Config, opts ...api.Option) server {
		return api.NewServer(st, broker, wf, cfg, opts...)
	}
	notifyContext = signal.NotifyContext
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	broker := newBroker()
	st, err := newStore(cfg)
	if err != nil {
		return err
	}

	var cipher *secrets.Cipher
	if cfg.SecretsKey != "" {
		cipher, err = newCipher(cfg.SecretsKey)
		if err != nil {
			return err
		}
	} else {
		log.Printf("warning: LIVESEARCH_SECRETS_KEY not set; stored provider keys are disabled")
	}
	file, err := loadKeysFile(cfg.KeysFile)
	if err != nil {
		return err
	}
	keys := secrets.NewKeyring(file, st, cipher)
	catalog := llm.DefaultCatalog()

	runner, err := newRunner(cfg, catalog, keys)
	if err != nil {
		return err
	}

	// Async runs need a store the worker can read.
	var workflowService api.WorkflowService
	if isPostgres(cfg.StoreDriver) {
		workflowClient, err := dialTemporal(client.Options{HostPort: cfg.TemporalAddress})
		if err != nil {
			return err
		}
		if workflowClient != nil {
			defer workflowClient.Close()
		}
		workflowService = newWorkflowService(workflowClient, cfg.TemporalTaskQueue)
	} else {
		log.Printf("async search runs disabled with %s store", cfg.StoreDriver)
	}

	server := newServer(st, broker, workflowService, cfg,
		api.WithCatalog(catalog),
		api.WithKeys(keys),
		api.WithCipher(cipher),
		api.WithRunner(runner),
	)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("LiveSearch API listening on %s", addr)
	if err := server.Start(ctx, addr); err != nil {
		return err
	}
	return nil
}

func openStore(cfg config.Config) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StoreDriver)) {
	case "", "memory":
		return memory.New(), nil
	case "postgres":
		return postgres.New(cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.StoreDriver)
	}
}

func isPostgres(driver string) bool {
	return strings.EqualFold(strings.TrimSpace(driver), "postgres")
}
