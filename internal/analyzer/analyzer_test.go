package analyzer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/habitd/internal/activity"
	"github.com/runger/habitd/internal/classify"
)

func manual(entity, state, when, userID string) activity.Record {
	return activity.Record{
		EntityID: entity,
		State:    state,
		When:     when,
		UserID:   userID,
	}
}

func morningRecords() []activity.Record {
	// Four distinct days, all inside the 07:00 window.
	return []activity.Record{
		manual("light.kitchen", "on", "2026-02-01T07:02:00+00:00", "user-a"),
		manual("light.kitchen", "on", "2026-02-02T07:05:00+00:00", "user-a"),
		manual("light.kitchen", "on", "2026-02-03T07:10:00+00:00", "user-a"),
		manual("light.kitchen", "on", "2026-02-04T07:20:00+00:00", "user-a"),
	}
}

func TestAnalyzeMorningRoutine(t *testing.T) {
	got, err := Analyze(morningRecords(), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 1)

	s := got[0]
	assert.Equal(t, "light.kitchen", s.EntityID)
	assert.Equal(t, "turn_on", s.Action)
	assert.Equal(t, "07:00", s.SuggestedTime)
	assert.Equal(t, "07:00", s.TimeWindowStart)
	assert.Equal(t, "07:29", s.TimeWindowEnd)
	assert.Equal(t, 4, s.OccurrenceCount)
	assert.InDelta(t, 1.0, s.ConsistencyScore, 1e-9)
	assert.Equal(t, "2026-02-04T07:20:00Z", s.LastOccurrence)
}

func TestAnalyzeSplitAcrossWindows(t *testing.T) {
	// Three occurrences in the 07:00 window, one at 08:00.
	records := []activity.Record{
		manual("light.kitchen", "on", "2026-02-01T07:02:00+00:00", "user-a"),
		manual("light.kitchen", "on", "2026-02-02T07:05:00+00:00", "user-a"),
		manual("light.kitchen", "on", "2026-02-03T07:10:00+00:00", "user-a"),
		manual("light.kitchen", "on", "2026-02-04T08:05:00+00:00", "user-a"),
	}
	got, err := Analyze(records, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].OccurrenceCount)
	assert.InDelta(t, 0.75, got[0].ConsistencyScore, 1e-9)
	assert.Equal(t, "07:00", got[0].TimeWindowStart)
}

func TestAnalyzeMinOccurrencesNotMet(t *testing.T) {
	opts := DefaultOptions()
	opts.MinOccurrences = 5
	got, err := Analyze(morningRecords(), opts)
	require.NoError(t, err)
	assert.Empty(t, got, "4 occurrences with min 5 should emit nothing")
}

func TestAnalyzeUserExcludeFilterReducesCount(t *testing.T) {
	records := append(morningRecords(),
		manual("light.kitchen", "on", "2026-02-05T07:12:00+00:00", "user-b"),
		manual("light.kitchen", "on", "2026-02-06T07:14:00+00:00", "user-b"),
	)
	opts := DefaultOptions()
	opts.Filters = classify.NewFilters(classify.ModeExclude, []string{"user-b"}, "", nil)
	got, err := Analyze(records, opts)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].OccurrenceCount, "user-b entries removed before bucketing")
}

func TestAnalyzeDismissalFiltersOutput(t *testing.T) {
	first, err := Analyze(morningRecords(), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, first, 1)

	opts := DefaultOptions()
	opts.Dismissed = map[string]struct{}{first[0].ID: {}}
	second, err := Analyze(morningRecords(), opts)
	require.NoError(t, err)
	assert.Empty(t, second, "dismissed id must be absent from later runs")
}

func TestAnalyzeSkipsAutomatedRecords(t *testing.T) {
	records := morningRecords()
	automated := manual("light.kitchen", "on", "2026-02-05T07:03:00+00:00", "user-a")
	automated.ParentID = "automation-ctx"
	records = append(records, automated)

	got, err := Analyze(records, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].OccurrenceCount, "automated record must not count")
}

func TestAnalyzeSkipsUntrackedDomains(t *testing.T) {
	records := []activity.Record{
		manual("sensor.temp", "21.5", "2026-02-01T07:02:00+00:00", "user-a"),
		manual("sensor.temp", "21.6", "2026-02-02T07:05:00+00:00", "user-a"),
	}
	got, err := Analyze(records, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAnalyzeSkipsDefectiveRecords(t *testing.T) {
	records := append(morningRecords(),
		manual("", "on", "2026-02-05T07:03:00+00:00", "user-a"),          // no entity id
		manual("light.kitchen", "on", "not-a-timestamp", "user-a"),       // bad timestamp
		manual("light.kitchen", "on", "", "user-a"),                      // missing timestamp
		activity.Record{EntityID: "light.kitchen", State: "on", When: "2026-02-05T07:03:00+00:00"}, // no user
	)
	got, err := Analyze(records, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].OccurrenceCount, "defective records skipped, run never fails")
}

func TestAnalyzeEmptyInput(t *testing.T) {
	got, err := Analyze(nil, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAnalyzeDeterministic(t *testing.T) {
	var records []activity.Record
	for day := 1; day <= 6; day++ {
		when := fmt.Sprintf("2026-02-%02dT07:05:00+00:00", day)
		records = append(records,
			manual("light.kitchen", "on", when, "user-a"),
			manual("light.hallway", "on", when, "user-a"),
			manual("switch.coffee", "on", when, "user-a"),
		)
	}
	first, err := Analyze(records, DefaultOptions())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Analyze(records, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAnalyzeResolvesFriendlyNames(t *testing.T) {
	opts := DefaultOptions()
	opts.ResolveName = func(entityID string) (string, bool) {
		return "Kitchen Light", entityID == "light.kitchen"
	}
	got, err := Analyze(morningRecords(), opts)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Kitchen Light", got[0].FriendlyName)
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		wantOK bool
	}{
		{"defaults", func(o *Options) {}, true},
		{"no tracked domains", func(o *Options) { o.TrackedDomains = nil }, false},
		{"zero min occurrences", func(o *Options) { o.MinOccurrences = 0 }, false},
		{"negative threshold", func(o *Options) { o.ConsistencyThreshold = -0.1 }, false},
		{"threshold above one", func(o *Options) { o.ConsistencyThreshold = 1.1 }, false},
		{"threshold bounds ok", func(o *Options) { o.ConsistencyThreshold = 1.0 }, true},
		{"zero window", func(o *Options) { o.WindowMinutes = 0 }, false},
		{"oversized window", func(o *Options) { o.WindowMinutes = 90 }, false},
		{"non-tiling window", func(o *Options) { o.WindowMinutes = 45 }, false},
		{"hour window", func(o *Options) { o.WindowMinutes = 60 }, true},
		{"bad user filter mode", func(o *Options) { o.Filters.UserMode = "both" }, false},
		{"bad domain filter mode", func(o *Options) { o.Filters.DomainMode = "sometimes" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			err := opts.Validate()
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAnalyzeInvalidOptionsFailBeforeProcessing(t *testing.T) {
	opts := DefaultOptions()
	opts.ConsistencyThreshold = 2.0
	_, err := Analyze(morningRecords(), opts)
	assert.Error(t, err)
}
