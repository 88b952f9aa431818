package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/runger/habitd/internal/activity"
)

// RecorderHistory is the result of reading a recorder database: the shaped
// activity records plus the friendly names found in state attributes.
type RecorderHistory struct {
	Records       []activity.Record
	FriendlyNames map[string]string
}

// ReadRecorder reads entity state changes from a Home Assistant recorder
// SQLite database between start and end, restricted to the given entity
// domains. It understands both the modern schema (states joined to
// states_meta, float epoch timestamps) and the legacy schema (entity_id and
// ISO timestamps directly on states).
//
// The database is opened read-only; habitd never writes to a recorder file.
func ReadRecorder(ctx context.Context, path string, start, end time.Time, domains []string) (*RecorderHistory, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open recorder database: %w", err)
	}
	defer db.Close()

	history, err := readModernSchema(ctx, db, start, end, domains)
	if err == nil {
		return history, nil
	}
	return readLegacySchema(ctx, db, start, end, domains)
}

func readModernSchema(ctx context.Context, db *sql.DB, start, end time.Time, domains []string) (*RecorderHistory, error) {
	query := `
		SELECT sm.entity_id, COALESCE(s.state, ''), s.last_updated_ts,
		       COALESCE(s.context_user_id, ''), COALESCE(s.context_parent_id, ''),
		       COALESCE(s.attributes, '')
		FROM states s
		JOIN states_meta sm ON sm.metadata_id = s.metadata_id
		WHERE s.last_updated_ts >= ? AND s.last_updated_ts < ?
		ORDER BY s.last_updated_ts`
	rows, err := db.QueryContext(ctx, query,
		float64(start.UnixNano())/1e9, float64(end.UnixNano())/1e9)
	if err != nil {
		return nil, fmt.Errorf("recorder modern-schema query failed: %w", err)
	}
	defer rows.Close()

	history := newRecorderHistory()
	for rows.Next() {
		var (
			entityID, state, userID, parentID, attrs string
			ts                                       float64
		)
		if err := rows.Scan(&entityID, &state, &ts, &userID, &parentID, &attrs); err != nil {
			return nil, fmt.Errorf("recorder scan failed: %w", err)
		}
		sec := int64(ts)
		when := time.Unix(sec, int64((ts-float64(sec))*1e9)).UTC().Format(time.RFC3339Nano)
		history.add(entityID, state, when, userID, parentID, attrs, domains)
	}
	return history, rows.Err()
}

func readLegacySchema(ctx context.Context, db *sql.DB, start, end time.Time, domains []string) (*RecorderHistory, error) {
	query := `
		SELECT COALESCE(entity_id, ''), COALESCE(state, ''), COALESCE(last_updated, ''),
		       COALESCE(context_user_id, ''), COALESCE(context_parent_id, ''),
		       COALESCE(attributes, '')
		FROM states
		WHERE last_updated >= ? AND last_updated < ?
		ORDER BY last_updated`
	rows, err := db.QueryContext(ctx, query,
		start.UTC().Format("2006-01-02T15:04:05"), end.UTC().Format("2006-01-02T15:04:05"))
	if err != nil {
		return nil, fmt.Errorf("recorder legacy-schema query failed: %w", err)
	}
	defer rows.Close()

	history := newRecorderHistory()
	for rows.Next() {
		var entityID, state, when, userID, parentID, attrs string
		if err := rows.Scan(&entityID, &state, &when, &userID, &parentID, &attrs); err != nil {
			return nil, fmt.Errorf("recorder scan failed: %w", err)
		}
		history.add(entityID, state, when, userID, parentID, attrs, domains)
	}
	return history, rows.Err()
}

func newRecorderHistory() *RecorderHistory {
	return &RecorderHistory{FriendlyNames: make(map[string]string)}
}

func (h *RecorderHistory) add(entityID, state, when, userID, parentID, attrs string, domains []string) {
	if !inDomains(entityID, domains) {
		return
	}
	h.Records = append(h.Records, activity.Record{
		EntityID: entityID,
		State:    state,
		When:     when,
		UserID:   userID,
		ParentID: parentID,
	})
	if _, seen := h.FriendlyNames[entityID]; !seen && attrs != "" {
		var parsed struct {
			FriendlyName string `json:"friendly_name"`
		}
		if err := json.Unmarshal([]byte(attrs), &parsed); err == nil && parsed.FriendlyName != "" {
			h.FriendlyNames[entityID] = parsed.FriendlyName
		}
	}
}

func inDomains(entityID string, domains []string) bool {
	if len(domains) == 0 {
		return true
	}
	i := strings.IndexByte(entityID, '.')
	if i <= 0 {
		return false
	}
	domain := entityID[:i]
	for _, d := range domains {
		if d == domain {
			return true
		}
	}
	return false
}
