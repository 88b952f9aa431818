// Package daemon implements the habitd background daemon: an HTTP JSON API
// served over a unix socket, plus the scheduler that runs pattern analysis
// on the configured interval.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/runger/habitd/internal/activity"
	"github.com/runger/habitd/internal/analyzer"
	"github.com/runger/habitd/internal/config"
	"github.com/runger/habitd/internal/hass"
	"github.com/runger/habitd/internal/storage"
	"github.com/runger/habitd/internal/suggestion"
)

// Version is set at build time.
var Version = "dev"

// NotificationID is the fixed persistent-notification id, so each run's
// digest replaces the previous one instead of stacking up.
const NotificationID = "habitd_suggestions"

// HistorySource supplies the daemon's analysis inputs. *hass.Client is the
// production implementation; tests substitute fakes.
type HistorySource interface {
	Logbook(ctx context.Context, start, end time.Time) ([]activity.Record, error)
	States(ctx context.Context) ([]hass.EntityState, error)
	Notify(ctx context.Context, notificationID, title, message string) error
}

// Server owns the daemon state: the last completed analysis snapshot and
// the scheduler trigger.
type Server struct {
	cfg    *config.Config
	paths  *config.Paths
	store  *storage.Store
	source HistorySource
	logger *slog.Logger

	mu       sync.RWMutex
	snapshot Snapshot

	trigger chan chan error

	startTime time.Time
}

// Snapshot is the result of the last completed analysis run. Reads are
// served from this snapshot; it is replaced wholesale after each run.
type Snapshot struct {
	RunID       string
	Suggestions []suggestion.Suggestion
	Stale       []analyzer.StaleAutomation
	RecordCount int
	FinishedAt  time.Time
}

// ServerConfig contains the daemon dependencies.
type ServerConfig struct {
	Config *config.Config
	Paths  *config.Paths
	Store  *storage.Store
	Source HistorySource
	Logger *slog.Logger
}

// NewServer creates a daemon server.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil || cfg.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("history source is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	paths := cfg.Paths
	if paths == nil {
		paths = config.DefaultPaths()
	}
	return &Server{
		cfg:       cfg.Config,
		paths:     paths,
		store:     cfg.Store,
		source:    cfg.Source,
		logger:    logger,
		trigger:   make(chan chan error, 1),
		startTime: time.Now(),
	}, nil
}

// Run serves the API and the scheduler until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	socketPath := s.cfg.Daemon.SocketPath
	if socketPath == "" {
		socketPath = s.paths.SocketFile()
	}

	// A leftover socket from an unclean shutdown blocks the bind.
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", socketPath, err)
	}

	httpServer := &http.Server{Handler: s.Router()}

	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runScheduler(schedulerCtx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	s.logger.Info("daemon started",
		"version", Version,
		"pid", os.Getpid(),
		"socket_path", socketPath,
		"interval_days", s.cfg.Daemon.IntervalDays,
	)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		stopScheduler()
		wg.Wait()
		return err
	}

	s.logger.Info("daemon shutting down")
	stopScheduler()

	grace := time.Duration(s.cfg.Daemon.ShutdownGraceSec) * time.Second
	if grace <= 0 {
		grace = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Warn("shutdown error", "error", err)
	}
	wg.Wait()
	os.Remove(socketPath)
	return nil
}

// CurrentSnapshot returns the last completed analysis snapshot.
func (s *Server) CurrentSnapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Server) setSnapshot(snap Snapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}

// runScheduler runs one analysis at startup, then on the configured
// interval, and whenever a manual trigger arrives.
func (s *Server) runScheduler(ctx context.Context) {
	interval := time.Duration(s.cfg.Daemon.IntervalDays) * 24 * time.Hour
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.RunAnalysis(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("initial analysis failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunAnalysis(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("scheduled analysis failed", "error", err)
			}
		case done := <-s.trigger:
			done <- s.RunAnalysis(ctx)
		}
	}
}

// TriggerAnalysis requests an analysis run from the scheduler goroutine and
// waits for it to finish.
func (s *Server) TriggerAnalysis(ctx context.Context) error {
	done := make(chan error, 1)
	select {
	case s.trigger <- done:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunAnalysis performs one full analysis run: fetch history and states,
// analyze, detect stale automations, publish the snapshot, record the run,
// and send the notification digest.
func (s *Server) RunAnalysis(ctx context.Context) error {
	started := time.Now()
	start := started.AddDate(0, 0, -s.cfg.Analysis.LookbackDays)

	records, err := s.source.Logbook(ctx, start, started)
	if err != nil {
		return fmt.Errorf("history fetch failed: %w", err)
	}

	states, err := s.source.States(ctx)
	if err != nil {
		// Names and stale detection are enrichment; analysis proceeds.
		s.logger.Warn("states fetch failed", "error", err)
		states = nil
	}
	names := hass.FriendlyNames(states)

	dismissed, err := s.store.DismissedIDs(ctx, storage.KindSuggestion)
	if err != nil {
		return err
	}
	dismissedStale, err := s.store.DismissedIDs(ctx, storage.KindStale)
	if err != nil {
		return err
	}

	opts := s.cfg.AnalyzerOptions()
	opts.Dismissed = dismissed
	opts.ResolveName = func(entityID string) (string, bool) {
		name, ok := names[entityID]
		return name, ok
	}
	opts.Logger = s.logger

	suggestions, err := analyzer.Analyze(records, opts)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	stale := analyzer.FindStale(
		hass.AutomationStates(states),
		started,
		s.cfg.Analysis.StaleThresholdDays,
		s.cfg.Analysis.IgnoreAutomationPatterns,
	)
	stale = filterStale(stale, dismissedStale)

	snap := Snapshot{
		RunID:       uuid.NewString(),
		Suggestions: suggestions,
		Stale:       stale,
		RecordCount: len(records),
		FinishedAt:  time.Now(),
	}
	s.setSnapshot(snap)

	if err := s.store.RecordRun(ctx, storage.AnalysisRun{
		RunID:           snap.RunID,
		StartedMs:       started.UnixMilli(),
		FinishedMs:      snap.FinishedAt.UnixMilli(),
		RecordCount:     snap.RecordCount,
		SuggestionCount: len(suggestions),
		StaleCount:      len(stale),
	}); err != nil {
		s.logger.Warn("failed to record analysis run", "error", err)
	}

	s.logger.Info("analysis complete",
		"run_id", snap.RunID,
		"records", snap.RecordCount,
		"suggestions", len(suggestions),
		"stale_automations", len(stale),
		"duration_ms", time.Since(started).Milliseconds(),
	)

	if s.cfg.Daemon.NotifyOnResults && len(suggestions) > 0 {
		title, message := Digest(suggestions)
		if err := s.source.Notify(ctx, NotificationID, title, message); err != nil {
			s.logger.Warn("failed to send notification", "error", err)
		}
	}
	return nil
}

func filterStale(stale []analyzer.StaleAutomation, dismissed map[string]struct{}) []analyzer.StaleAutomation {
	if len(dismissed) == 0 {
		return stale
	}
	kept := stale[:0]
	for _, st := range stale {
		if _, skip := dismissed[st.AutomationID]; !skip {
			kept = append(kept, st)
		}
	}
	return kept
}
