package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runger/habitd/internal/ipc"
)

var dismissCmd = &cobra.Command{
	Use:   "dismiss <id>",
	Short: "Dismiss a suggestion or stale automation",
	Long: `Dismiss a suggestion or stale automation so later runs stop reporting it.

Suggestion ids come from 'habit suggestions'; stale automation ids are the
automation entity id (automation.*). Dismissing never alters history records.`,
	Args: cobra.ExactArgs(1),
	RunE: runDismiss,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore a previously dismissed item",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestore,
}

func runDismiss(cmd *cobra.Command, args []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	client := ipc.NewClient(socketPath(cfg, paths))
	if err := client.Dismiss(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Dismissed %s\n", args[0])
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	client := ipc.NewClient(socketPath(cfg, paths))
	if err := client.Restore(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Restored %s\n", args[0])
	return nil
}
