package analyzer

import (
	"sort"
	"strings"
	"time"

	"github.com/runger/habitd/internal/activity"
)

// DefaultStaleThresholdDays is how long an automation may go untriggered
// before it is reported as stale.
const DefaultStaleThresholdDays = 30

// AutomationState is a snapshot of one automation entity, as reported by
// the states API.
type AutomationState struct {
	EntityID      string
	State         string // "on" when enabled, "off" when disabled
	FriendlyName  string
	LastTriggered string // ISO-8601, empty if never triggered
}

// StaleAutomation is an automation that has not fired within the configured
// threshold. DaysSinceTriggered is -1 for automations that never fired.
type StaleAutomation struct {
	AutomationID       string `json:"automation_id"`
	FriendlyName       string `json:"friendly_name"`
	LastTriggered      string `json:"last_triggered,omitempty"`
	DaysSinceTriggered int    `json:"days_since_triggered"`
	IsDisabled         bool   `json:"is_disabled"`
}

// FindStale reports automations whose last trigger is older than
// thresholdDays (or that never triggered at all), skipping any whose entity
// id or friendly name contains one of ignorePatterns (case-insensitive
// substring match). Results are ordered most-stale first, never-triggered
// automations last.
func FindStale(states []AutomationState, now time.Time, thresholdDays int, ignorePatterns []string) []StaleAutomation {
	if thresholdDays <= 0 {
		thresholdDays = DefaultStaleThresholdDays
	}

	var stale []StaleAutomation
	for _, st := range states {
		if !strings.HasPrefix(st.EntityID, "automation.") {
			continue
		}
		if ignored(st, ignorePatterns) {
			continue
		}

		entry := StaleAutomation{
			AutomationID: st.EntityID,
			FriendlyName: st.FriendlyName,
			IsDisabled:   st.State == "off",
		}

		last, ok := activity.ParseTimestamp(st.LastTriggered)
		if !ok {
			// Never triggered: stale by definition.
			entry.DaysSinceTriggered = -1
			stale = append(stale, entry)
			continue
		}

		days := int(now.Sub(last).Hours() / 24)
		if days < thresholdDays {
			continue
		}
		entry.LastTriggered = last.Format(time.RFC3339)
		entry.DaysSinceTriggered = days
		stale = append(stale, entry)
	}

	sort.SliceStable(stale, func(i, j int) bool {
		a, b := stale[i], stale[j]
		if (a.DaysSinceTriggered < 0) != (b.DaysSinceTriggered < 0) {
			return b.DaysSinceTriggered < 0
		}
		if a.DaysSinceTriggered != b.DaysSinceTriggered {
			return a.DaysSinceTriggered > b.DaysSinceTriggered
		}
		return a.AutomationID < b.AutomationID
	})

	return stale
}

func ignored(st AutomationState, patterns []string) bool {
	id := strings.ToLower(strings.TrimPrefix(st.EntityID, "automation."))
	name := strings.ToLower(st.FriendlyName)
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if strings.Contains(id, p) || strings.Contains(name, p) {
			return true
		}
	}
	return false
}
