package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runger/habitd/internal/ipc"
)

var (
	stalePageFlag     int
	stalePageSizeFlag int
	staleJSONFlag     bool
)

var staleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List automations that have not triggered recently",
	RunE:  runStale,
}

func init() {
	staleCmd.Flags().IntVar(&stalePageFlag, "page", 1, "page number")
	staleCmd.Flags().IntVar(&stalePageSizeFlag, "page-size", 20, "automations per page")
	staleCmd.Flags().BoolVar(&staleJSONFlag, "json", false, "print the page as JSON")
}

func runStale(cmd *cobra.Command, args []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	client := ipc.NewClient(socketPath(cfg, paths))
	result, err := client.Stale(cmd.Context(), stalePageFlag, stalePageSizeFlag)
	if err != nil {
		return err
	}

	if staleJSONFlag {
		return json.NewEncoder(os.Stdout).Encode(result)
	}
	if result.Total == 0 {
		fmt.Println("No stale automations.")
		return nil
	}
	fmt.Printf("Stale automations (page %d/%d, %d total):\n\n", result.Page, result.Pages, result.Total)
	for _, a := range result.StaleAutomations {
		state := ""
		if a.IsDisabled {
			state = " [disabled]"
		}
		switch {
		case a.DaysSinceTriggered < 0:
			fmt.Printf("  %s%s\n    never triggered\n", a.FriendlyName, state)
		default:
			fmt.Printf("  %s%s\n    last triggered %d day(s) ago (%s)\n",
				a.FriendlyName, state, a.DaysSinceTriggered, a.LastTriggered)
		}
		fmt.Printf("    id=%s\n", a.AutomationID)
	}
	return nil
}
