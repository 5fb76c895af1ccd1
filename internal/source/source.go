package source

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AuthError indicates that authentication has failed or expired for a
// source. It is returned when a mailbox rejects credentials or an API
// answers 401/403.
type AuthError struct {
	SourceType SourceType
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.SourceType, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// SourceType identifies the kind of external source integration.
type SourceType string

const (
	SourceTypeIMAP     SourceType = "imap"
	SourceTypeGmail    SourceType = "gmail"
	SourceTypeFixture  SourceType = "fixture"
	SourceTypeCalendar SourceType = "calendar"
)

// Email is a single message as seen by task extraction.
type Email struct {
	ID      string    `json:"id" yaml:"id"`
	From    string    `json:"from" yaml:"from"`
	Subject string    `json:"subject" yaml:"subject"`
	Body    string    `json:"body" yaml:"body"`
	Date    time.Time `json:"date" yaml:"-"`
}

// Event is a single calendar feed entry.
type Event struct {
	// UID is the feed's own identifier, stable across fetches.
	UID     string
	Summary string
	Start   time.Time

	// End is nil when the event has no DTEND.
	End *time.Time
}

// EmailSource fetches a bounded batch of recent messages for a user.
type EmailSource interface {
	Type() SourceType
	FetchEmails(ctx context.Context, userID string) ([]Email, error)
}

// CalendarSource fetches and parses the events of an iCalendar feed.
type CalendarSource interface {
	FetchEvents(ctx context.Context, feedURL string) ([]Event, error)
}
