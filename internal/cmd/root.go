// Package cmd implements the habit CLI commands.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/runger/habitd/internal/config"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "habit",
	Short: "automation suggestions from your home's activity history",
	Long: `habit - automation suggestions from your home's activity history
  - analyze     → detect time-consistent manual actions
  - suggestions → list ranked automation candidates
  - stale       → find automations that stopped firing`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file path (default ~/.habitd/config.yaml)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(suggestionsCmd)
	rootCmd.AddCommand(dismissCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(staleCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the config path and loads it.
func loadConfig() (*config.Config, *config.Paths, error) {
	paths := config.DefaultPaths()
	path := configFlag
	if path == "" {
		path = paths.ConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, paths, nil
}

// socketPath returns the daemon socket for the loaded config.
func socketPath(cfg *config.Config, paths *config.Paths) string {
	if cfg.Daemon.SocketPath != "" {
		return cfg.Daemon.SocketPath
	}
	return paths.SocketFile()
}

// databasePath returns the state database for the loaded config.
func databasePath(cfg *config.Config, paths *config.Paths) string {
	if cfg.Storage.DatabasePath != "" {
		return cfg.Storage.DatabasePath
	}
	return paths.DatabaseFile()
}
