// habitd is the background daemon: it runs pattern analysis on a schedule
// against the configured Home Assistant instance and serves the results
// over a unix socket to the habit CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/runger/habitd/internal/config"
	"github.com/runger/habitd/internal/daemon"
	"github.com/runger/habitd/internal/hass"
	"github.com/runger/habitd/internal/logging"
	"github.com/runger/habitd/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "habitd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "config file path (default ~/.habitd/config.yaml)")
	flag.Parse()

	paths := config.DefaultPaths()
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	path := *configPath
	if path == "" {
		path = paths.ConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	logger := logging.NewFromLevel(cfg.Daemon.LogLevel)

	store, err := storage.Open(databasePath(cfg, paths))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	source, err := hass.NewClient(cfg.HomeAssistant)
	if err != nil {
		return err
	}

	server, err := daemon.NewServer(&daemon.ServerConfig{
		Config: cfg,
		Paths:  paths,
		Store:  store,
		Source: source,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx)
}

func databasePath(cfg *config.Config, paths *config.Paths) string {
	if cfg.Storage.DatabasePath != "" {
		return cfg.Storage.DatabasePath
	}
	return paths.DatabaseFile()
}
