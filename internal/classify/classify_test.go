package classify

import (
	"testing"

	"github.com/runger/habitd/internal/activity"
)

func manualRecord() activity.Record {
	return activity.Record{
		EntityID: "light.kitchen",
		State:    "on",
		When:     "2026-02-03T07:30:00+00:00",
		UserID:   "user-abc",
	}
}

func TestIsManualAcceptsPlainUserAction(t *testing.T) {
	if !IsManual(manualRecord(), Filters{}) {
		t.Error("record with valid user and no automation markers should be manual")
	}
}

func TestIsManualRejectsAutomationMarkers(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*activity.Record)
	}{
		{"automation_triggered event", func(r *activity.Record) { r.ContextEvent = "automation_triggered" }},
		{"parent context", func(r *activity.Record) { r.ParentID = "parent-ctx" }},
		{"automation context domain", func(r *activity.Record) { r.ContextDomain = "automation" }},
		{"script context domain", func(r *activity.Record) { r.ContextDomain = "script" }},
		{"time pattern source", func(r *activity.Record) { r.Source = "time pattern" }},
		{"state trigger source", func(r *activity.Record) { r.Source = "state of sun.sun" }},
		{"time change source", func(r *activity.Record) { r.Source = "time change" }},
		{"template source", func(r *activity.Record) { r.Source = "turned on via template" }},
		{"startup source", func(r *activity.Record) { r.Source = "Home Assistant starting" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := manualRecord()
			tt.mutate(&rec)
			if IsManual(rec, Filters{}) {
				t.Error("record with automation marker classified as manual")
			}
		})
	}
}

func TestIsManualRequiresValidUser(t *testing.T) {
	rec := manualRecord()
	rec.UserID = ""
	if IsManual(rec, Filters{}) {
		t.Error("record without user context classified as manual")
	}

	rec.UserID = UnknownUser
	if IsManual(rec, Filters{}) {
		t.Error("record with unknown user classified as manual")
	}
}

func TestIsManualAutomationMarkerWinsOverUser(t *testing.T) {
	// A valid user id does not rescue a record with automation evidence.
	rec := manualRecord()
	rec.ContextEvent = "automation_triggered"
	if IsManual(rec, Filters{}) {
		t.Error("automation evidence should override user context")
	}
}

func TestUserFilterExclude(t *testing.T) {
	f := NewFilters(ModeExclude, []string{"user-abc"}, "", nil)

	if IsManual(manualRecord(), f) {
		t.Error("excluded user kept")
	}

	rec := manualRecord()
	rec.UserID = "user-other"
	if !IsManual(rec, f) {
		t.Error("non-excluded user dropped")
	}
}

func TestUserFilterInclude(t *testing.T) {
	f := NewFilters(ModeInclude, []string{"user-abc"}, "", nil)

	if !IsManual(manualRecord(), f) {
		t.Error("included user dropped")
	}

	rec := manualRecord()
	rec.UserID = "user-other"
	if IsManual(rec, f) {
		t.Error("non-included user kept")
	}
}

func TestUserFilterIncludeEmptySetMatchesNothing(t *testing.T) {
	f := Filters{UserMode: ModeInclude}
	if IsManual(manualRecord(), f) {
		t.Error("include mode with empty set should match nothing")
	}
}

func TestDomainFilter(t *testing.T) {
	rec := manualRecord()
	rec.ContextDomain = "nodered"

	exclude := NewFilters("", nil, ModeExclude, []string{"nodered"})
	if IsManual(rec, exclude) {
		t.Error("excluded context domain kept")
	}
	// No context domain means nothing to exclude.
	if !IsManual(manualRecord(), exclude) {
		t.Error("record without context domain dropped by exclude filter")
	}

	include := NewFilters("", nil, ModeInclude, []string{"nodered"})
	if !IsManual(rec, include) {
		t.Error("included context domain dropped")
	}
	if IsManual(manualRecord(), include) {
		t.Error("record without context domain kept by include filter")
	}
}

func TestNewFiltersDefaultsEmptyModeToNone(t *testing.T) {
	f := NewFilters("", []string{"user-abc"}, "", nil)
	if f.UserMode != ModeNone || f.DomainMode != ModeNone {
		t.Errorf("empty modes = %q/%q, want none/none", f.UserMode, f.DomainMode)
	}
	// Mode none ignores the set entirely.
	if !IsManual(manualRecord(), f) {
		t.Error("mode none should not filter")
	}
}

func TestValidMode(t *testing.T) {
	for _, m := range []FilterMode{ModeNone, ModeExclude, ModeInclude} {
		if !ValidMode(m) {
			t.Errorf("ValidMode(%q) = false", m)
		}
	}
	if ValidMode("both") {
		t.Error(`ValidMode("both") = true`)
	}
}
