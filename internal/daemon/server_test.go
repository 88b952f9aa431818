package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/habitd/internal/activity"
	"github.com/runger/habitd/internal/config"
	"github.com/runger/habitd/internal/hass"
	"github.com/runger/habitd/internal/storage"
)

// fakeSource serves canned history and records notifications.
type fakeSource struct {
	records []activity.Record
	states  []hass.EntityState

	notifyTitles   []string
	notifyMessages []string
}

func (f *fakeSource) Logbook(ctx context.Context, start, end time.Time) ([]activity.Record, error) {
	return f.records, nil
}

func (f *fakeSource) States(ctx context.Context) ([]hass.EntityState, error) {
	return f.states, nil
}

func (f *fakeSource) Notify(ctx context.Context, notificationID, title, message string) error {
	f.notifyTitles = append(f.notifyTitles, title)
	f.notifyMessages = append(f.notifyMessages, message)
	return nil
}

func morningRecords() []activity.Record {
	return []activity.Record{
		{EntityID: "light.kitchen", State: "on", When: "2026-02-01T07:02:00+00:00", UserID: "user-a"},
		{EntityID: "light.kitchen", State: "on", When: "2026-02-02T07:05:00+00:00", UserID: "user-a"},
		{EntityID: "light.kitchen", State: "on", When: "2026-02-03T07:10:00+00:00", UserID: "user-a"},
	}
}

func newTestServer(t *testing.T, source *fakeSource) *Server {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	srv, err := NewServer(&ServerConfig{
		Config: cfg,
		Paths:  &config.Paths{BaseDir: t.TempDir()},
		Store:  store,
		Source: source,
	})
	require.NoError(t, err)
	return srv
}

func TestRunAnalysisPublishesSnapshot(t *testing.T) {
	source := &fakeSource{
		records: morningRecords(),
		states: []hass.EntityState{
			{EntityID: "light.kitchen", Attributes: map[string]any{"friendly_name": "Kitchen Light"}},
		},
	}
	srv := newTestServer(t, source)

	require.NoError(t, srv.RunAnalysis(context.Background()))

	snap := srv.CurrentSnapshot()
	assert.NotEmpty(t, snap.RunID)
	assert.Equal(t, 3, snap.RecordCount)
	require.Len(t, snap.Suggestions, 1)
	assert.Equal(t, "Kitchen Light", snap.Suggestions[0].FriendlyName)
	assert.False(t, snap.FinishedAt.IsZero())

	// The run was recorded for the status surface.
	run, err := srv.store.LastRun(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, snap.RunID, run.RunID)
	assert.Equal(t, 1, run.SuggestionCount)
}

func TestRunAnalysisSendsDigest(t *testing.T) {
	source := &fakeSource{records: morningRecords()}
	srv := newTestServer(t, source)

	require.NoError(t, srv.RunAnalysis(context.Background()))
	require.Len(t, source.notifyTitles, 1)
	assert.Equal(t, "Automation Suggestions Found", source.notifyTitles[0])
	assert.Contains(t, source.notifyMessages[0], "light.kitchen")
}

func TestRunAnalysisNoNotifyWhenDisabledOrEmpty(t *testing.T) {
	source := &fakeSource{records: morningRecords()}
	srv := newTestServer(t, source)
	srv.cfg.Daemon.NotifyOnResults = false
	require.NoError(t, srv.RunAnalysis(context.Background()))
	assert.Empty(t, source.notifyTitles)

	empty := &fakeSource{}
	srv = newTestServer(t, empty)
	require.NoError(t, srv.RunAnalysis(context.Background()))
	assert.Empty(t, empty.notifyTitles, "no suggestions, no digest")
}

func TestRunAnalysisReportsStale(t *testing.T) {
	source := &fakeSource{
		states: []hass.EntityState{
			{
				EntityID:   "automation.old",
				State:      "on",
				Attributes: map[string]any{"friendly_name": "Old Routine", "last_triggered": "2025-06-01T00:00:00+00:00"},
			},
		},
	}
	srv := newTestServer(t, source)
	require.NoError(t, srv.RunAnalysis(context.Background()))

	snap := srv.CurrentSnapshot()
	require.Len(t, snap.Stale, 1)
	assert.Equal(t, "automation.old", snap.Stale[0].AutomationID)
	assert.Equal(t, "Old Routine", snap.Stale[0].FriendlyName)
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	resp := rec.Result()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHandleListSuggestions(t *testing.T) {
	srv := newTestServer(t, &fakeSource{records: morningRecords()})
	require.NoError(t, srv.RunAnalysis(context.Background()))

	resp, body := doRequest(t, srv, http.MethodGet, "/v1/suggestions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Suggestions []map[string]any `json:"suggestions"`
		Total       int              `json:"total"`
		Page        int              `json:"page"`
		Pages       int              `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 1, out.Total)
	assert.Equal(t, 1, out.Page)
	assert.Equal(t, 1, out.Pages)
	require.Len(t, out.Suggestions, 1)
	assert.Equal(t, "light_kitchen_turn_on_07_00", out.Suggestions[0]["id"])
}

func TestHandleListSuggestionsEmptySnapshot(t *testing.T) {
	srv := newTestServer(t, &fakeSource{})
	resp, body := doRequest(t, srv, http.MethodGet, "/v1/suggestions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"suggestions":[]`)
}

func TestHandleListSuggestionsBadPagination(t *testing.T) {
	srv := newTestServer(t, &fakeSource{})
	resp, _ := doRequest(t, srv, http.MethodGet, "/v1/suggestions?page=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doRequest(t, srv, http.MethodGet, "/v1/suggestions?page_size=500", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleDismissRemovesFromSnapshotAndStore(t *testing.T) {
	srv := newTestServer(t, &fakeSource{records: morningRecords()})
	require.NoError(t, srv.RunAnalysis(context.Background()))
	id := srv.CurrentSnapshot().Suggestions[0].ID

	resp, _ := doRequest(t, srv, http.MethodPost, "/v1/dismiss", map[string]string{"id": id})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Empty(t, srv.CurrentSnapshot().Suggestions, "served snapshot updated immediately")

	dismissed, err := srv.store.IsDismissed(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, dismissed)

	// And the next run keeps it filtered.
	require.NoError(t, srv.RunAnalysis(context.Background()))
	assert.Empty(t, srv.CurrentSnapshot().Suggestions)
}

func TestHandleDismissStaleUsesEntityID(t *testing.T) {
	srv := newTestServer(t, &fakeSource{})
	resp, _ := doRequest(t, srv, http.MethodPost, "/v1/dismiss", map[string]string{"id": "automation.old"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stale, err := srv.store.DismissedIDs(context.Background(), storage.KindStale)
	require.NoError(t, err)
	assert.Contains(t, stale, "automation.old")
}

func TestHandleRestore(t *testing.T) {
	srv := newTestServer(t, &fakeSource{records: morningRecords()})
	require.NoError(t, srv.RunAnalysis(context.Background()))
	id := srv.CurrentSnapshot().Suggestions[0].ID

	doRequest(t, srv, http.MethodPost, "/v1/dismiss", map[string]string{"id": id})
	resp, _ := doRequest(t, srv, http.MethodPost, "/v1/restore", map[string]string{"id": id})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.RunAnalysis(context.Background()))
	assert.Len(t, srv.CurrentSnapshot().Suggestions, 1, "restored id reappears")
}

func TestHandleDismissValidation(t *testing.T) {
	srv := newTestServer(t, &fakeSource{})
	resp, _ := doRequest(t, srv, http.MethodPost, "/v1/dismiss", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t, &fakeSource{records: morningRecords()})
	require.NoError(t, srv.RunAnalysis(context.Background()))

	resp, body := doRequest(t, srv, http.MethodGet, "/v1/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]any
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, float64(1), status["suggestions"])
	assert.Equal(t, float64(3), status["record_count"])
	assert.NotEmpty(t, status["last_run_id"])
	assert.NotEmpty(t, status["last_run_at"])
}

func TestHandleTopSuggestions(t *testing.T) {
	records := make([]activity.Record, 0, 14)
	for _, entity := range []string{"light.a", "light.b", "light.c", "light.d", "light.e", "light.f", "light.g"} {
		records = append(records,
			activity.Record{EntityID: entity, State: "on", When: "2026-02-01T07:02:00+00:00", UserID: "user-a"},
			activity.Record{EntityID: entity, State: "on", When: "2026-02-02T07:05:00+00:00", UserID: "user-a"},
		)
	}
	srv := newTestServer(t, &fakeSource{records: records})
	require.NoError(t, srv.RunAnalysis(context.Background()))

	resp, body := doRequest(t, srv, http.MethodGet, "/v1/suggestions/top", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Suggestions []map[string]any `json:"suggestions"`
		Total       int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 7, out.Total)
	assert.Len(t, out.Suggestions, 5)
}

func TestPaginate(t *testing.T) {
	bounds, meta := paginate(45, 2, 20)
	assert.Equal(t, [2]int{20, 40}, bounds)
	assert.Equal(t, pageMeta{Total: 45, Page: 2, Pages: 3, PageSize: 20}, meta)

	bounds, meta = paginate(45, 3, 20)
	assert.Equal(t, [2]int{40, 45}, bounds)

	bounds, meta = paginate(45, 9, 20)
	assert.Equal(t, [2]int{45, 45}, bounds, "past-the-end page is empty, not an error")

	bounds, meta = paginate(0, 1, 20)
	assert.Equal(t, [2]int{0, 0}, bounds)
	assert.Equal(t, 0, meta.Pages)
}
