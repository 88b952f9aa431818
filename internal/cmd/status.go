package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runger/habitd/internal/ipc"
)

var statusJSONFlag bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSONFlag, "json", false, "print status as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	client := ipc.NewClient(socketPath(cfg, paths))
	status, err := client.Status(cmd.Context())
	if err != nil {
		return err
	}
	if statusJSONFlag {
		return json.NewEncoder(os.Stdout).Encode(status)
	}
	for _, key := range []string{"version", "uptime", "last_run_id", "last_run_at", "suggestions", "stale_automations", "record_count"} {
		if v, ok := status[key]; ok {
			fmt.Printf("%-18s %v\n", key, v)
		}
	}
	return nil
}
