package model

import "time"

// MockCalendarURL is the sentinel feed value that selects built-in
// fixture events instead of fetching a real calendar.
const MockCalendarURL = "MOCK_ICAL_URL"

// Settings is the per-user configuration singleton.
type Settings struct {
	UserID string `json:"-"`

	// SyncTimes lists HH:MM times at which a scheduled sync should run.
	SyncTimes []string `json:"syncTimes"`

	// CanvasICalURL is the calendar feed URL or MockCalendarURL.
	CanvasICalURL string `json:"canvasIcalUrl"`

	// SchoolEmailDomain restricts which senders are considered. Empty
	// disables sender filtering.
	SchoolEmailDomain string `json:"schoolEmailDomain"`

	// LastSync is the watermark of the last successful sync; nil means
	// the user has never synced.
	LastSync *time.Time `json:"lastSync"`
}

// User is an account that owns tasks, courses and settings.
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
