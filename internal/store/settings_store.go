package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nhle/studyflow/internal/model"
)

type settingsRow struct {
	UserID            string       `db:"user_id"`
	SyncTimes         string       `db:"sync_times"`
	CanvasICalURL     string       `db:"canvas_ical_url"`
	SchoolEmailDomain string       `db:"school_email_domain"`
	LastSync          sql.NullTime `db:"last_sync"`
}

const settingsColumns = "user_id, sync_times, canvas_ical_url, school_email_domain, last_sync"

func (r settingsRow) toModel() (model.Settings, error) {
	st := model.Settings{
		UserID:            r.UserID,
		SyncTimes:         []string{},
		CanvasICalURL:     r.CanvasICalURL,
		SchoolEmailDomain: r.SchoolEmailDomain,
	}
	if err := json.Unmarshal([]byte(r.SyncTimes), &st.SyncTimes); err != nil {
		return model.Settings{}, fmt.Errorf("decoding sync times for %s: %w", r.UserID, err)
	}
	if r.LastSync.Valid {
		t := r.LastSync.Time.UTC()
		st.LastSync = &t
	}
	return st, nil
}

// GetSettings returns the user's settings, or ErrNotFound when the user
// has none.
func (s *SQLStore) GetSettings(ctx context.Context, userID string) (*model.Settings, error) {
	var row settingsRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(
		"SELECT "+settingsColumns+" FROM settings WHERE user_id = ?"), userID)
	if err != nil {
		return nil, fmt.Errorf("getting settings for %s: %w", userID, notFound(err))
	}

	st, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveSettings creates or replaces the user-editable settings fields.
// LastSync is owned by sync and is never written here.
func (s *SQLStore) SaveSettings(ctx context.Context, st model.Settings) error {
	for _, hhmm := range st.SyncTimes {
		if err := model.ParseClock(hhmm); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	syncTimes := st.SyncTimes
	if syncTimes == nil {
		syncTimes = []string{}
	}
	timesJSON, err := json.Marshal(syncTimes)
	if err != nil {
		return fmt.Errorf("marshaling sync times: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO settings (user_id, sync_times, canvas_ical_url, school_email_domain)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			sync_times = excluded.sync_times,
			canvas_ical_url = excluded.canvas_ical_url,
			school_email_domain = excluded.school_email_domain`),
		st.UserID, string(timesJSON), st.CanvasICalURL, st.SchoolEmailDomain,
	)
	if err != nil {
		return fmt.Errorf("saving settings for %s: %w", st.UserID, err)
	}
	return nil
}

// ListSettings returns the settings of every user, for the scheduler.
func (s *SQLStore) ListSettings(ctx context.Context) ([]model.Settings, error) {
	var rows []settingsRow
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT "+settingsColumns+" FROM settings ORDER BY user_id"); err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}

	out := make([]model.Settings, 0, len(rows))
	for _, r := range rows {
		st, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
