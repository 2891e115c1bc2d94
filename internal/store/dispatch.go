package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DispatchExists reports whether a dispatch key has already been recorded.
func (s *Store) DispatchExists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	var one int
	err := s.db.GetContext(ctx, &one, "SELECT 1 FROM dispatches WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking dispatch %q: %w", key, err)
	}
	return true, nil
}

// RecordDispatch durably marks a key as delivered. Duplicate inserts are
// silent no-ops so overlapping sweeps and transport retries stay safe;
// the primary-key constraint is the only locking involved.
func (s *Store) RecordDispatch(ctx context.Context, key, taskID string, sentAt time.Time) error {
	if key == "" {
		return errors.New("dispatch key is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches(key, task_id, sent_at) VALUES(?, ?, ?)
		 ON CONFLICT(key) DO NOTHING`,
		key, taskID, encodeTime(sentAt))
	if err != nil {
		return fmt.Errorf("recording dispatch %q: %w", key, err)
	}
	return nil
}

// CountDispatches returns the number of recorded dispatches for a task.
func (s *Store) CountDispatches(ctx context.Context, taskID string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM dispatches WHERE task_id = ?", taskID); err != nil {
		return 0, fmt.Errorf("counting dispatches for %s: %w", taskID, err)
	}
	return n, nil
}
