package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/runger/habitd/internal/daemon"
	"github.com/runger/habitd/internal/hass"
	"github.com/runger/habitd/internal/logging"
	"github.com/runger/habitd/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the habitd daemon in the foreground",
	Long: `Run the habitd daemon in the foreground.

Equivalent to running the habitd binary; useful under a process supervisor
or for trying the daemon without installing a second binary.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return err
	}

	logger := logging.NewFromLevel(cfg.Daemon.LogLevel)

	store, err := storage.Open(databasePath(cfg, paths))
	if err != nil {
		return err
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
