package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli"

	"github.com/mmynk/hearth/internal/config"
	"github.com/mmynk/hearth/internal/storage"
	"github.com/mmynk/hearth/internal/storage/badgerstore"
	"github.com/mmynk/hearth/internal/storage/sqlite"
	"github.com/mmynk/hearth/pkg/logging"
)

const version = "0.1.0"

func main() {
	app := cli.NewApp()
	app.Name = "hearth"
	app.Usage = "End-to-end encrypted household ledger vault"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "load configuration from `FILE`",
		},
		cli.StringFlag{
			Name:  "level, l",
			Usage: "override the logging level [debug|info|warn|error]",
		},
	}
	app.Commands = []cli.Command{
		serveCommand(),
		backupCommand(),
		restoreCommand(),
		cleanupInvitesCommand(),
	}
	app.Action = runServe

	if err := app.Run(os.Args); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration named by the global flags and sets
// up logging from it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}
	if level := c.GlobalString("level"); level != "" {
		cfg.LogLevel = level
	}
	logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendBadger:
		store, err := badgerstore.New(badgerstore.Config{
			Path:       cfg.Storage.Path,
			InMemory:   cfg.Storage.InMemory,
			SyncWrites: true,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "backend", cfg.Storage.Backend, "path", cfg.Storage.Path)
		return store, nil
	case config.BackendSQLite:
		store, err := sqlite.New(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "backend", cfg.Storage.Backend, "database", cfg.Storage.Path)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
