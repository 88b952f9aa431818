package daemon

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/runger/habitd/internal/analyzer"
	"github.com/runger/habitd/internal/storage"
	"github.com/runger/habitd/internal/suggestion"
)

// Pagination bounds for list endpoints.
const (
	defaultPageSize = 20
	maxPageSize     = 100
	topCount        = 5
)

// Router builds the daemon's HTTP API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/v1/suggestions", s.handleListSuggestions)
	r.Get("/v1/suggestions/top", s.handleTopSuggestions)
	r.Get("/v1/stale", s.handleListStale)
	r.Get("/v1/status", s.handleStatus)
	r.Post("/v1/analyze", s.handleAnalyze)
	r.Post("/v1/dismiss", s.handleDismiss)
	r.Post("/v1/restore", s.handleRestore)

	return r
}

type pageMeta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	Pages    int `json:"pages"`
	PageSize int `json:"page_size"`
}

type suggestionsResponse struct {
	Suggestions []suggestion.Suggestion `json:"suggestions"`
	pageMeta
}

type staleResponse struct {
	StaleAutomations []analyzer.StaleAutomation `json:"stale_automations"`
	pageMeta
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleListSuggestions(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := parsePagination(w, r)
	if !ok {
		return
	}
	snap := s.CurrentSnapshot()
	slice, meta := paginate(len(snap.Suggestions), page, pageSize)
	writeJSON(w, http.StatusOK, suggestionsResponse{
		Suggestions: sliceOrEmpty(snap.Suggestions[slice[0]:slice[1]]),
		pageMeta:    meta,
	})
}

func (s *Server) handleTopSuggestions(w http.ResponseWriter, r *http.Request) {
	snap := s.CurrentSnapshot()
	top := snap.Suggestions
	if len(top) > topCount {
		top = top[:topCount]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"suggestions": sliceOrEmpty(top),
		"total":       len(snap.Suggestions),
	})
}

func (s *Server) handleListStale(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := parsePagination(w, r)
	if !ok {
		return
	}
	snap := s.CurrentSnapshot()
	slice, meta := paginate(len(snap.Stale), page, pageSize)
	stale := snap.Stale[slice[0]:slice[1]]
	if stale == nil {
		stale = []analyzer.StaleAutomation{}
	}
	writeJSON(w, http.StatusOK, staleResponse{
		StaleAutomations: stale,
		pageMeta:         meta,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.CurrentSnapshot()
	status := map[string]any{
		"version":       Version,
		"pid":           os.Getpid(),
		"uptime_sec":    int(time.Since(s.startTime).Seconds()),
		"suggestions":   len(snap.Suggestions),
		"stale":         len(snap.Stale),
		"interval_days": s.cfg.Daemon.IntervalDays,
		"lookback_days": s.cfg.Analysis.LookbackDays,
		"last_run_id":   snap.RunID,
		"last_run_at":   "",
		"record_count":  snap.RecordCount,
	}
	if !snap.FinishedAt.IsZero() {
		status["last_run_at"] = snap.FinishedAt.Format(time.RFC3339)
	}
	if run, err := s.store.LastRun(r.Context()); err == nil && run != nil {
		status["last_recorded_run"] = run.RunID
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if err := s.TriggerAnalysis(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	snap := s.CurrentSnapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":       snap.RunID,
		"suggestions":  len(snap.Suggestions),
		"stale":        len(snap.Stale),
		"record_count": snap.RecordCount,
	})
}

type dismissRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	var req dismissRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "id is required"})
		return
	}

	// Stale automations are dismissed under their entity id; everything
	// else is a suggestion id.
	kind := storage.KindSuggestion
	if strings.HasPrefix(req.ID, "automation.") {
		kind = storage.KindStale
	}
	if err := s.store.Dismiss(r.Context(), req.ID, kind, time.Now()); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	s.dropFromSnapshot(req.ID, kind)
	writeJSON(w, http.StatusOK, map[string]string{"dismissed": req.ID})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req dismissRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "id is required"})
		return
	}
	if err := s.store.Restore(r.Context(), req.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"restored": req.ID})
}

// dropFromSnapshot removes a freshly dismissed item from the served
// snapshot so reads reflect the dismissal before the next run.
func (s *Server) dropFromSnapshot(id, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case storage.KindSuggestion:
		kept := make([]suggestion.Suggestion, 0, len(s.snapshot.Suggestions))
		for _, sg := range s.snapshot.Suggestions {
			if sg.ID != id {
				kept = append(kept, sg)
			}
		}
		s.snapshot.Suggestions = kept
	case storage.KindStale:
		kept := make([]analyzer.StaleAutomation, 0, len(s.snapshot.Stale))
		for _, st := range s.snapshot.Stale {
			if st.AutomationID != id {
				kept = append(kept, st)
			}
		}
		s.snapshot.Stale = kept
	}
}

func parsePagination(w http.ResponseWriter, r *http.Request) (page, pageSize int, ok bool) {
	page, pageSize = 1, defaultPageSize
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "page must be a positive integer"})
			return 0, 0, false
		}
		page = n
	}
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageSize {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "page_size must be in [1,100]"})
			return 0, 0, false
		}
		pageSize = n
	}
	return page, pageSize, true
}

// paginate clamps a page request onto [start, end) bounds over total items.
func paginate(total, page, pageSize int) ([2]int, pageMeta) {
	pages := 0
	if total > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return [2]int{start, end}, pageMeta{Total: total, Page: page, Pages: pages, PageSize: pageSize}
}

func sliceOrEmpty(s []suggestion.Suggestion) []suggestion.Suggestion {
	if s == nil {
		return []suggestion.Suggestion{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
