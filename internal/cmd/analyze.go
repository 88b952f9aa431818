package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/habitd/internal/activity"
	"github.com/runger/habitd/internal/analyzer"
	"github.com/runger/habitd/internal/hass"
	"github.com/runger/habitd/internal/storage"
	"github.com/runger/habitd/internal/suggestion"
)

var (
	analyzeDBFlag        string
	analyzeInputFlag     string
	analyzeLookbackFlag  int
	analyzeMinOccFlag    int
	analyzeThresholdFlag float64
	analyzeWindowFlag    int
	analyzeJSONFlag      bool
	analyzeAllFlag       bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run pattern analysis once and print suggestions",
	Long: `Run pattern analysis over activity history and print ranked suggestions.

History sources, in order of preference:
  --db <file>     read a Home Assistant recorder database directly (offline)
  --input <file>  read logbook entries from an NDJSON file (one JSON object per line)
  (neither)       query the configured Home Assistant instance live`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDBFlag, "db", "", "recorder database file")
	analyzeCmd.Flags().StringVar(&analyzeInputFlag, "input", "", "NDJSON logbook file")
	analyzeCmd.Flags().IntVar(&analyzeLookbackFlag, "lookback", 0, "lookback days (overrides config)")
	analyzeCmd.Flags().IntVar(&analyzeMinOccFlag, "min-occurrences", 0, "minimum occurrences (overrides config)")
	analyzeCmd.Flags().Float64Var(&analyzeThresholdFlag, "threshold", -1, "consistency threshold (overrides config)")
	analyzeCmd.Flags().IntVar(&analyzeWindowFlag, "window", 0, "time window minutes (overrides config)")
	analyzeCmd.Flags().BoolVar(&analyzeJSONFlag, "json", false, "print suggestions as JSON")
	analyzeCmd.Flags().BoolVar(&analyzeAllFlag, "all", false, "include previously dismissed suggestions")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	if analyzeLookbackFlag > 0 {
		cfg.Analysis.LookbackDays = analyzeLookbackFlag
	}
	if analyzeMinOccFlag > 0 {
		cfg.Analysis.MinOccurrences = analyzeMinOccFlag
	}
	if analyzeThresholdFlag >= 0 {
		cfg.Analysis.ConsistencyThreshold = analyzeThresholdFlag
	}
	if analyzeWindowFlag > 0 {
		cfg.Analysis.TimeWindowMinutes = analyzeWindowFlag
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts := cfg.AnalyzerOptions()
	if err := opts.Validate(); err != nil {
		return err
	}

	end := time.Now()
	start := end.AddDate(0, 0, -cfg.Analysis.LookbackDays)

	var (
		records []activity.Record
		names   map[string]string
	)
	switch {
	case analyzeDBFlag != "":
		history, err := storage.ReadRecorder(ctx, analyzeDBFlag, start, end, cfg.Analysis.TrackedDomains)
		if err != nil {
			return err
		}
		records, names = history.Records, history.FriendlyNames
	case analyzeInputFlag != "":
		records, err = readNDJSON(analyzeInputFlag)
		if err != nil {
			return err
		}
	default:
		client, err := hass.NewClient(cfg.HomeAssistant)
		if err != nil {
			return err
		}
		records, err = client.Logbook(ctx, start, end)
		if err != nil {
			return err
		}
		if states, err := client.States(ctx); err == nil {
			names = hass.FriendlyNames(states)
		}
	}

	if !analyzeAllFlag {
		store, err := storage.Open(databasePath(cfg, paths))
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Dismissed, err = store.DismissedIDs(ctx, storage.KindSuggestion)
		if err != nil {
			return err
		}
	}
	if names != nil {
		opts.ResolveName = func(entityID string) (string, bool) {
			name, ok := names[entityID]
			return name, ok
		}
	}

	suggestions, err := analyzer.Analyze(records, opts)
	if err != nil {
		return err
	}

	if analyzeJSONFlag {
		return json.NewEncoder(os.Stdout).Encode(suggestions)
	}
	printSuggestions(suggestions, len(records))
	return nil
}

// readNDJSON reads one logbook entry per line. Unparsable lines are skipped;
// data quality never fails a run.
func readNDJSON(path string) ([]activity.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var records []activity.Record
	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw map[string]any
		if err := json.Unmarshal(line, &raw); err != nil {
			continue
		}
		records = append(records, activity.FromRaw(raw))
	}
	return records, scanner.Err()
}

func printSuggestions(suggestions []suggestion.Suggestion, recordCount int) {
	if len(suggestions) == 0 {
		fmt.Printf("No patterns found in %d records.\n", recordCount)
		return
	}
	fmt.Printf("Found %d suggestion(s) in %d records:\n\n", len(suggestions), recordCount)
	for _, s := range suggestions {
		fmt.Printf("  %s\n    id=%s window=%s-%s last=%s\n",
			s.Description, s.ID, s.TimeWindowStart, s.TimeWindowEnd, s.LastOccurrence)
	}
}
