package main

import (
	"log"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/agent"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/config"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/llm"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/secrets"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/store"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/store/postgres"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/workflows"
)

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	dialTemporal = client.Dial
	newStore     = func(conn string) (store.Store, error) {
		return postgres.New(conn)
	}
	newCipher    = secrets.NewCipher
	loadKeysFile = secrets.LoadKeysFile
	newRunner    = func(cfg config.Config, catalog *llm.Catalog, keys llm.KeySource) (workflows.Runner, error) {
		return agent.FromConfig(cfg, catalog, keys)
	}
	newActivities   = workflows.NewSearchActivities
	newWorker       = worker.New
	workerInterrupt = worker.InterruptCh
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
	temporalClient, err := dialTemporal(client.Options{
		HostPort: cfg.TemporalAddress,
	})
	if err != nil {
		return err
	}
	if temporalClient != nil {
		defer temporalClient.Close()
	}

	st, err := newStore(cfg.PostgresURL)
	if err != nil {
		return err
	}

	var cipher *secrets.Cipher
	if cfg.SecretsKey != "" {
		cipher, err = newCipher(cfg.SecretsKey)
		if err != nil {
			return err
		}
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
	activities := newActivities(st, runner, catalog, keys, cfg.PublicURL)

	w := newWorker(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.SearchWorkflow)
	w.RegisterActivity(activities)

	log.Println("LiveSearch worker started")
	if err := w.Run(workerInterrupt()); err != nil {
		return err
	}

	return nil
}
