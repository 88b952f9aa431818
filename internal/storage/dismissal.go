package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Dismissal kinds. Suggestions and stale automations are dismissed into the
// same table but listed separately.
const (
	KindSuggestion = "suggestion"
	KindStale      = "stale"
)

// Dismiss marks an item id as dismissed. Dismissing an already-dismissed id
// refreshes its timestamp and is not an error.
func (s *Store) Dismiss(ctx context.Context, itemID, kind string, now time.Time) error {
	if itemID == "" {
		return fmt.Errorf("item id is required")
	}
	if kind != KindSuggestion && kind != KindStale {
		return fmt.Errorf("invalid dismissal kind %q", kind)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dismissal (item_id, kind, dismissed_ms) VALUES (?, ?, ?)
		 ON CONFLICT(item_id) DO UPDATE SET dismissed_ms = excluded.dismissed_ms`,
		itemID, kind, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record dismissal: %w", err)
	}
	return nil
}

// Restore removes an item id from the dismissed set. Restoring an unknown id
// is a no-op.
func (s *Store) Restore(ctx context.Context, itemID string) error {
	if itemID == "" {
		return fmt.Errorf("item id is required")
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM dismissal WHERE item_id = ?", itemID)
	if err != nil {
		return fmt.Errorf("failed to restore dismissal: %w", err)
	}
	return nil
}

// ClearDismissed removes all dismissals of the given kind, or every
// dismissal when kind is empty.
func (s *Store) ClearDismissed(ctx context.Context, kind string) error {
	var err error
	if kind == "" {
		_, err = s.db.ExecContext(ctx, "DELETE FROM dismissal")
	} else {
		_, err = s.db.ExecContext(ctx, "DELETE FROM dismissal WHERE kind = ?", kind)
	}
	if err != nil {
		return fmt.Errorf("failed to clear dismissals: %w", err)
	}
	return nil
}

// DismissedIDs returns the set of dismissed ids of the given kind. The
// engine consumes this as its read-only dismissal set.
func (s *Store) DismissedIDs(ctx context.Context, kind string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT item_id FROM dismissal WHERE kind = ?", kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query dismissals: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan dismissal: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dismissals: %w", err)
	}
	return ids, nil
}

// IsDismissed reports whether an item id has been dismissed.
func (s *Store) IsDismissed(ctx context.Context, itemID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM dismissal WHERE item_id = ?", itemID).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("failed to query dismissal: %w", err)
}
