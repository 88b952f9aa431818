// Package analyzer runs the full pattern-detection pipeline: classify manual
// actions, extract action verbs, bucket timestamps onto the time grid,
// aggregate per (entity, action, window), score consistency, and build
// ranked suggestions.
//
// The analyzer is a pure batch transform. It holds no state, performs no
// I/O, and is safe to invoke concurrently with different inputs; history
// retrieval, dismissal persistence, and notification delivery belong to the
// caller.
package analyzer

import (
	"fmt"
	"log/slog"

	"github.com/runger/habitd/internal/action"
	"github.com/runger/habitd/internal/activity"
	"github.com/runger/habitd/internal/classify"
	"github.com/runger/habitd/internal/pattern"
	"github.com/runger/habitd/internal/suggestion"
	"github.com/runger/habitd/internal/window"
)

// Default analysis parameters.
const (
	DefaultLookbackDays         = 14
	DefaultMinOccurrences       = 2
	DefaultConsistencyThreshold = 0.30
	DefaultWindowMinutes        = window.DefaultWidthMinutes
)

// TrackedDomains is the default entity-domain allowlist.
var TrackedDomains = []string{
	"light",
	"switch",
	"cover",
	"climate",
	"scene",
	"script",
	"input_number",
	"input_boolean",
	"input_select",
	"input_datetime",
	"input_button",
}

// Options configures one analysis run. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	// TrackedDomains is the entity-domain allowlist.
	TrackedDomains []string

	// MinOccurrences is the minimum total occurrences an (entity, action)
	// pair needs before it can become a suggestion. Must be >= 1.
	MinOccurrences int

	// ConsistencyThreshold is the minimum dominant-window share, in [0,1].
	ConsistencyThreshold float64

	// WindowMinutes is the bucket width. Must be in (0, 60] and divide
	// the hour evenly so the grid tiles cleanly.
	WindowMinutes int

	// Filters configures manual-action user/domain filtering.
	Filters classify.Filters

	// Dismissed is the caller's set of dismissed suggestion ids. Read
	// only; may be nil.
	Dismissed map[string]struct{}

	// ResolveName optionally maps entity ids to display names.
	ResolveName suggestion.NameResolver

	// Logger receives per-run debug output. Nil disables logging.
	Logger *slog.Logger
}

// DefaultOptions returns Options with the standard thresholds, no filtering,
// and the default tracked domains.
func DefaultOptions() Options {
	return Options{
		TrackedDomains:       TrackedDomains,
		MinOccurrences:       DefaultMinOccurrences,
		ConsistencyThreshold: DefaultConsistencyThreshold,
		WindowMinutes:        DefaultWindowMinutes,
	}
}

// Validate reports configuration defects. These are caller errors, raised
// before any record is touched; data-quality problems never surface here.
func (o Options) Validate() error {
	if len(o.TrackedDomains) == 0 {
		return fmt.Errorf("analyzer: tracked domains must not be empty")
	}
	if o.MinOccurrences < 1 {
		return fmt.Errorf("analyzer: min occurrences must be >= 1, got %d", o.MinOccurrences)
	}
	if o.ConsistencyThreshold < 0 || o.ConsistencyThreshold > 1 {
		return fmt.Errorf("analyzer: consistency threshold must be in [0,1], got %v", o.ConsistencyThreshold)
	}
	if o.WindowMinutes <= 0 || o.WindowMinutes > 60 || 60%o.WindowMinutes != 0 {
		return fmt.Errorf("analyzer: window minutes must evenly divide an hour, got %d", o.WindowMinutes)
	}
	if !classify.ValidMode(classifyModeOrNone(o.Filters.UserMode)) {
		return fmt.Errorf("analyzer: invalid user filter mode %q", o.Filters.UserMode)
	}
	if !classify.ValidMode(classifyModeOrNone(o.Filters.DomainMode)) {
		return fmt.Errorf("analyzer: invalid domain filter mode %q", o.Filters.DomainMode)
	}
	return nil
}

func classifyModeOrNone(m classify.FilterMode) classify.FilterMode {
	if m == "" {
		return classify.ModeNone
	}
	return m
}

// Analyze runs the pipeline over one batch of records and returns the
// ranked, dismissal-filtered suggestions. A batch that produces nothing
// yields an empty slice, not an error; the only error source is invalid
// Options. Individual defective records (malformed entity id, unparsable
// timestamp) are skipped silently.
func Analyze(records []activity.Record, opts Options) ([]suggestion.Suggestion, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	tracked := make(map[string]struct{}, len(opts.TrackedDomains))
	for _, d := range opts.TrackedDomains {
		tracked[d] = struct{}{}
	}

	occurrences := make([]pattern.Occurrence, 0, len(records))
	for _, rec := range records {
		domain := rec.Domain()
		if _, ok := tracked[domain]; !ok {
			continue
		}
		if !classify.IsManual(rec, opts.Filters) {
			continue
		}
		at, ok := activity.ParseTimestamp(rec.When)
		if !ok {
			continue
		}
		occurrences = append(occurrences, pattern.Occurrence{
			EntityID: rec.EntityID,
			Action:   action.Extract(domain, rec.State),
			At:       at,
		})
	}

	candidates := pattern.Aggregate(occurrences, opts.WindowMinutes, opts.MinOccurrences, opts.ConsistencyThreshold)

	if opts.Logger != nil {
		opts.Logger.Debug("pattern analysis",
			"records", len(records),
			"manual_occurrences", len(occurrences),
			"candidates", len(candidates),
			"min_occurrences", opts.MinOccurrences,
			"consistency_threshold", opts.ConsistencyThreshold,
		)
	}

	return suggestion.Build(candidates, opts.WindowMinutes, opts.Dismissed, opts.ResolveName), nil
}
