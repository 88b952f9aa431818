package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runger/habitd/internal/ipc"
)

var (
	suggestionsPageFlag     int
	suggestionsPageSizeFlag int
	suggestionsJSONFlag     bool
	suggestionsTopFlag      bool
)

var suggestionsCmd = &cobra.Command{
	Use:   "suggestions",
	Short: "List automation suggestions from the daemon's last run",
	RunE:  runSuggestions,
}

func init() {
	suggestionsCmd.Flags().IntVar(&suggestionsPageFlag, "page", 1, "page number")
	suggestionsCmd.Flags().IntVar(&suggestionsPageSizeFlag, "page-size", 20, "suggestions per page")
	suggestionsCmd.Flags().BoolVar(&suggestionsJSONFlag, "json", false, "print the page as JSON")
	suggestionsCmd.Flags().BoolVar(&suggestionsTopFlag, "top", false, "show only the top 5 suggestions")
}

func runSuggestions(cmd *cobra.Command, args []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	client := ipc.NewClient(socketPath(cfg, paths))

	page, size := suggestionsPageFlag, suggestionsPageSizeFlag
	if suggestionsTopFlag {
		page, size = 1, 5
	}
	result, err := client.Suggestions(cmd.Context(), page, size)
	if err != nil {
		return err
	}

	if suggestionsJSONFlag {
		return json.NewEncoder(os.Stdout).Encode(result)
	}
	if result.Total == 0 {
		fmt.Println("No suggestions. Run `habit analyze` or wait for the next scheduled run.")
		return nil
	}
	fmt.Printf("Suggestions (page %d/%d, %d total):\n\n", result.Page, result.Pages, result.Total)
	for _, s := range result.Suggestions {
		fmt.Printf("  %s\n    id=%s score=%.2f seen=%d last=%s\n",
			s.Description, s.ID, s.ConsistencyScore, s.OccurrenceCount, s.LastOccurrence)
	}
	return nil
}
