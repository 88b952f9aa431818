// Package activity defines the activity record type the analysis pipeline
// consumes. Records are shaped from raw history entries (Home Assistant
// logbook responses or recorder rows) which may carry missing or wrongly
// typed fields; shaping degrades gracefully and never panics.
package activity

import (
	"strings"
	"time"
)

// Record represents one observed entity state change with causal context.
// A Record is a plain value: it is built once per analysis run and never
// mutated afterwards.
type Record struct {
	// EntityID is "domain.object_id". May be empty if the raw entry was
	// malformed; such records are dropped by the classifier stage.
	EntityID string

	// State is the new state value ("on", "off", "heat", ...).
	State string

	// When is the raw ISO-8601 timestamp of the change.
	When string

	// UserID identifies the human actor, if any. Empty means no user
	// context was recorded.
	UserID string

	// ParentID is non-empty when the change was triggered by another
	// context (an automation or script run), not a direct human action.
	ParentID string

	// ContextDomain is the integration that generated the context
	// (e.g. "automation", "script", "nodered").
	ContextDomain string

	// ContextEvent is the context event type, when present
	// (e.g. "automation_triggered").
	ContextEvent string

	// Source is free-form trigger description text some history backends
	// attach (e.g. "time pattern", "state of sun.sun").
	Source string
}

// Domain returns the entity domain ("light" for "light.kitchen").
// Returns "" for malformed entity ids.
func (r Record) Domain() string {
	if i := strings.IndexByte(r.EntityID, '.'); i > 0 {
		return r.EntityID[:i]
	}
	return ""
}

// FromRaw shapes a raw history entry into a Record. Every field is optional
// and tolerated at any type; non-string values are ignored rather than
// coerced so that a malformed entry yields a harmless mostly-empty Record.
func FromRaw(raw map[string]any) Record {
	return Record{
		EntityID:      rawString(raw, "entity_id"),
		State:         rawString(raw, "state"),
		When:          rawString(raw, "when"),
		UserID:        rawString(raw, "context_user_id"),
		ParentID:      rawString(raw, "context_parent_id"),
		ContextDomain: rawString(raw, "context_domain"),
		ContextEvent:  rawString(raw, "context_event_type"),
		Source:        rawString(raw, "source"),
	}
}

func rawString(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// timestamp layouts accepted from history backends, tried in order.
// Naive layouts (no offset) are interpreted as UTC so that bucketing
// stays deterministic regardless of host timezone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses an ISO-8601 timestamp with or without an explicit
// offset. Naive timestamps are assumed UTC. Returns ok=false for anything
// unparsable; callers drop such records instead of failing the run.
func ParseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		// time.Parse interprets offset-free layouts as UTC, which is
		// exactly the assume-UTC behavior we want for naive timestamps.
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
