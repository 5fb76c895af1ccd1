package email

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nhle/studyflow/internal/source"
)

//go:embed fixtures/mailbox.yaml
var mailboxYAML []byte

type fixtureMessage struct {
	source.Email `yaml:",inline"`
	AgeDays      int `yaml:"age_days"`
}

// FixtureSource serves a canned inbox whose messages are dated relative
// to the current time. It stands in for a real mailbox in demos and tests.
type FixtureSource struct {
	now func() time.Time
}

// NewFixtureSource creates a fixture mailbox. A nil now uses time.Now.
func NewFixtureSource(now func() time.Time) *FixtureSource {
	if now == nil {
		now = time.Now
	}
	return &FixtureSource{now: now}
}

// Type returns the source type identifier for the fixture mailbox.
func (f *FixtureSource) Type() source.SourceType {
	return source.SourceTypeFixture
}

// FetchEmails returns the canned messages, newest first as listed.
func (f *FixtureSource) FetchEmails(_ context.Context, _ string) ([]source.Email, error) {
	var fixtures []fixtureMessage
	if err := yaml.Unmarshal(mailboxYAML, &fixtures); err != nil {
		return nil, fmt.Errorf("decoding fixture mailbox: %w", err)
	}

	now := f.now()
	emails := make([]source.Email, 0, len(fixtures))
	for _, m := range fixtures {
		e := m.Email
		e.Date = now.AddDate(0, 0, -m.AgeDays)
		emails = append(emails, e)
	}
	return emails, nil
}
