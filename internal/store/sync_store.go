package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// KnownTaskIDs returns the union of accepted and pending task ids.
func (s *SQLStore) KnownTaskIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, s.db.Rebind(`
		SELECT id FROM tasks WHERE user_id = ?
		UNION
		SELECT id FROM pending_tasks WHERE user_id = ?`), userID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying task ids: %w", err)
	}
	return toSet(ids), nil
}

// EmailFingerprints returns the fingerprints of email-sourced tasks in
// both collections.
func (s *SQLStore) EmailFingerprints(ctx context.Context, userID string) (map[string]struct{}, error) {
	var fps []string
	err := s.db.SelectContext(ctx, &fps, s.db.Rebind(`
		SELECT fingerprint FROM tasks WHERE user_id = ? AND source = 'email' AND fingerprint <> ''
		UNION
		SELECT fingerprint FROM pending_tasks WHERE user_id = ? AND source = 'email' AND fingerprint <> ''`),
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying email fingerprints: %w", err)
	}
	return toSet(fps), nil
}

// CommitSync persists the outcome of a sync run atomically. The lastSync
// watermark only ever moves forward.
func (s *SQLStore) CommitSync(ctx context.Context, userID string, batch SyncBatch) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, t := range batch.Pending {
			t.UserID = userID
			if t.CreatedAt.IsZero() {
				t.CreatedAt = batch.SyncedAt
			}
			if err := validateTask(t); err != nil {
				return err
			}
			if _, err := insertTask(ctx, tx, tablePending, t); err != nil {
				return err
			}
		}

		for _, c := range batch.Courses {
			c.UserID = userID
			if err := insertCourse(ctx, tx, c); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE settings SET last_sync = ?
			WHERE user_id = ? AND (last_sync IS NULL OR last_sync < ?)`),
			dbTime(batch.SyncedAt), userID, dbTime(batch.SyncedAt))
		if err != nil {
			return fmt.Errorf("advancing last sync: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var exists int
			if err := tx.GetContext(ctx, &exists, tx.Rebind(
				"SELECT COUNT(*) FROM settings WHERE user_id = ?"), userID); err != nil {
				return err
			}
			if exists == 0 {
				return fmt.Errorf("settings for %s: %w", userID, ErrNotFound)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("committing sync for %s: %w", userID, err)
	}
	return nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
