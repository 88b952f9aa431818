// Package suggestion materializes scored pattern candidates into the
// ranked, described, deduplicated suggestion records the host exposes.
package suggestion

import (
	"fmt"
	"strings"
	"time"

	"github.com/runger/habitd/internal/action"
	"github.com/runger/habitd/internal/pattern"
	"github.com/runger/habitd/internal/window"
)

// Suggestion is one ranked automation candidate. It is a value object built
// fresh each run; "seen before" semantics live entirely in the caller's
// dismissal store, keyed by the deterministic ID.
type Suggestion struct {
	ID               string  `json:"id"`
	EntityID         string  `json:"entity_id"`
	FriendlyName     string  `json:"friendly_name,omitempty"`
	Action           string  `json:"action"`
	SuggestedTime    string  `json:"suggested_time"`
	TimeWindowStart  string  `json:"time_window_start"`
	TimeWindowEnd    string  `json:"time_window_end"`
	ConsistencyScore float64 `json:"consistency_score"`
	OccurrenceCount  int     `json:"occurrence_count"`
	LastOccurrence   string  `json:"last_occurrence"`
	TimeRange        string  `json:"time_range,omitempty"`
	Description      string  `json:"description"`
}

// NameResolver maps an entity id to its display name. A missing mapping is
// not an error; implementations return ("", false) and the suggestion falls
// back to the raw entity id.
type NameResolver func(entityID string) (string, bool)

// ID derives the stable suggestion identifier from the candidate's entity,
// action, and dominant window label. Dots and colons are flattened so the
// id is safe as an object key anywhere the host stores it.
func ID(entityID, actionVerb, windowLabel string) string {
	id := entityID + "_" + actionVerb + "_" + windowLabel
	id = strings.ReplaceAll(id, ".", "_")
	return strings.ReplaceAll(id, ":", "_")
}

// Describe renders the one-line human description for a suggestion.
func Describe(s Suggestion) string {
	display := s.FriendlyName
	if display == "" {
		display = s.EntityID
	}
	return fmt.Sprintf("%s %s around %s (%d%% consistent, seen %d times)",
		action.Display(s.Action), display, s.SuggestedTime,
		int(s.ConsistencyScore*100), s.OccurrenceCount)
}

// Build converts candidates into suggestions, resolves display names, drops
// dismissed ids, and fills descriptions. Candidates arrive already ranked
// from the aggregator and the order is preserved; the dismissed set is only
// read, never modified.
func Build(candidates []pattern.Candidate, widthMinutes int, dismissed map[string]struct{}, resolve NameResolver) []Suggestion {
	suggestions := make([]Suggestion, 0, len(candidates))
	for _, c := range candidates {
		id := ID(c.EntityID, c.Action, c.Window)
		if _, skip := dismissed[id]; skip {
			continue
		}

		start, end := window.Bounds(c.Window, widthMinutes)
		s := Suggestion{
			ID:               id,
			EntityID:         c.EntityID,
			Action:           c.Action,
			SuggestedTime:    window.SuggestedTime(c.Window),
			TimeWindowStart:  start,
			TimeWindowEnd:    end,
			ConsistencyScore: c.Consistency,
			OccurrenceCount:  c.Total,
			LastOccurrence:   formatLast(c.Last),
			TimeRange:        window.HourRange(c.Hours),
		}
		if resolve != nil {
			if name, ok := resolve(c.EntityID); ok && name != "" {
				s.FriendlyName = name
			}
		}
		s.Description = Describe(s)
		suggestions = append(suggestions, s)
	}
	return suggestions
}

func formatLast(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
