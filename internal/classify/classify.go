// Package classify decides whether an activity record represents a genuine
// manual user action. The logic is exclusion-based: a record counts as manual
// only when nothing proves it was automated AND it carries a valid user
// context. This catches physical button presses and Zigbee remotes while
// rejecting automation and script side effects.
package classify

import (
	"strings"

	"github.com/runger/habitd/internal/activity"
)

// FilterMode selects how a user or context-domain filter set is applied.
type FilterMode string

const (
	ModeNone    FilterMode = "none"
	ModeExclude FilterMode = "exclude"
	ModeInclude FilterMode = "include"
)

// ValidMode reports whether m is a recognized filter mode.
func ValidMode(m FilterMode) bool {
	switch m {
	case ModeNone, ModeExclude, ModeInclude:
		return true
	}
	return false
}

// UnknownUser is the placeholder some history backends emit when the actor
// cannot be determined. It carries no evidence of human origin.
const UnknownUser = "unknown"

// automationSources are trigger description fragments that mark a state
// change as automation-driven even when no context fields say so.
var automationSources = []string{
	"time pattern",
	"state of ",
	"time change",
	"via template",
	"Home Assistant starting",
}

// Filters holds the user and context-domain filter configuration.
// The zero value performs no filtering.
type Filters struct {
	UserMode   FilterMode
	Users      map[string]struct{}
	DomainMode FilterMode
	Domains    map[string]struct{}
}

// NewFilters builds Filters from config-level mode strings and slices.
// An empty mode defaults to ModeNone.
func NewFilters(userMode FilterMode, users []string, domainMode FilterMode, domains []string) Filters {
	return Filters{
		UserMode:   defaultMode(userMode),
		Users:      toSet(users),
		DomainMode: defaultMode(domainMode),
		Domains:    toSet(domains),
	}
}

func defaultMode(m FilterMode) FilterMode {
	if m == "" {
		return ModeNone
	}
	return m
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// IsManual reports whether rec is an eligible manual action under the given
// filters. It inspects only causal context fields, so malformed entity ids
// pass through untouched (the extractor handles them).
func IsManual(rec activity.Record, f Filters) bool {
	if rec.ContextEvent == "automation_triggered" {
		return false
	}
	if rec.ParentID != "" {
		return false
	}
	if rec.ContextDomain == "automation" || rec.ContextDomain == "script" {
		return false
	}
	for _, pattern := range automationSources {
		if rec.Source != "" && strings.Contains(rec.Source, pattern) {
			return false
		}
	}

	switch f.UserMode {
	case ModeExclude:
		if rec.UserID != "" {
			if _, excluded := f.Users[rec.UserID]; excluded {
				return false
			}
		}
	case ModeInclude:
		// Include mode requires a match; records without a user never
		// match, and an empty include set matches nothing.
		if rec.UserID == "" {
			return false
		}
		if _, included := f.Users[rec.UserID]; !included {
			return false
		}
	}

	switch f.DomainMode {
	case ModeExclude:
		// Records without a context domain are kept: nothing to match.
		if rec.ContextDomain != "" {
			if _, excluded := f.Domains[rec.ContextDomain]; excluded {
				return false
			}
		}
	case ModeInclude:
		if rec.ContextDomain == "" {
			return false
		}
		if _, included := f.Domains[rec.ContextDomain]; !included {
			return false
		}
	}

	// Without a valid user context we cannot confirm human origin; reject
	// to avoid false positives from integration events that slip through
	// without explicit automation markers.
	return rec.UserID != "" && rec.UserID != UnknownUser
}
