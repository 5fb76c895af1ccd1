package calendar

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"gopkg.in/yaml.v3"

	"github.com/nhle/studyflow/internal/apperr"
	"github.com/nhle/studyflow/internal/model"
	"github.com/nhle/studyflow/internal/source"
)

// ErrMalformedFeed is returned when a response is not a parseable
// iCalendar document. It is distinct from a valid feed with no events.
var ErrMalformedFeed = errors.New("malformed calendar feed")

const (
	fetchTimeout = 30 * time.Second
	maxFeedBytes = 10 << 20
)

//go:embed fixtures/events.yaml
var fixtureYAML []byte

type fixtureEvent struct {
	UID       string `yaml:"uid"`
	Summary   string `yaml:"summary"`
	DaysAhead int    `yaml:"days_ahead"`
}

// Feed implements source.CalendarSource over HTTP.
type Feed struct {
	http *http.Client
	now  func() time.Time
}

// NewFeed creates a calendar feed reader. A nil client gets a default
// one with a 30s timeout.
func NewFeed(client *http.Client) *Feed {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &Feed{http: client, now: time.Now}
}

// FetchEvents downloads and parses the feed at feedURL. The sentinel
// model.MockCalendarURL returns built-in demo events and an empty URL
// returns no events.
func (f *Feed) FetchEvents(ctx context.Context, feedURL string) ([]source.Event, error) {
	feedURL = strings.TrimSpace(feedURL)
	switch feedURL {
	case "":
		return nil, nil
	case model.MockCalendarURL:
		return f.fixtureEvents()
	}

	body, err := f.download(ctx, normalizeURL(feedURL))
	if err != nil {
		return nil, err
	}
	return Parse(body)
}

func (f *Feed) download(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, apperr.New(apperr.Validation, "invalid calendar URL", err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, apperr.Temporary("calendar feed unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, apperr.Temporary("reading calendar feed", err)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperr.Temporary("calendar feed unavailable",
			fmt.Errorf("GET %s: status %d", feedURL, resp.StatusCode))
	case resp.StatusCode >= 300:
		return nil, apperr.New(apperr.ExternalService, "could not fetch calendar",
			fmt.Errorf("GET %s: status %d", feedURL, resp.StatusCode))
	}
	return body, nil
}

// Parse decodes an iCalendar document into events. VEVENTs without a
// UID, summary or start are skipped.
func Parse(data []byte) ([]source.Event, error) {
	if !bytes.Contains(data, []byte("BEGIN:VCALENDAR")) {
		return nil, apperr.New(apperr.ExternalService, "calendar feed is not iCalendar", ErrMalformedFeed)
	}

	cal, err := ics.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.New(apperr.ExternalService, "calendar feed is not iCalendar",
			fmt.Errorf("%w: %v", ErrMalformedFeed, err))
	}

	var events []source.Event
	for _, ev := range cal.Events() {
		uid := strings.TrimSpace(ev.Id())
		summaryProp := ev.GetProperty(ics.ComponentPropertySummary)
		if uid == "" || summaryProp == nil {
			continue
		}

		start, ok := eventStart(ev)
		if !ok {
			continue
		}

		out := source.Event{
			UID:     uid,
			Summary: unescape(summaryProp.Value),
			Start:   start,
		}
		if end, ok := eventEnd(ev); ok {
			out.End = &end
		}
		events = append(events, out)
	}
	return events, nil
}

func eventStart(ev *ics.VEvent) (time.Time, bool) {
	if t, err := ev.GetStartAt(); err == nil {
		return t.UTC(), true
	}
	if t, err := ev.GetAllDayStartAt(); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func eventEnd(ev *ics.VEvent) (time.Time, bool) {
	if ev.GetProperty(ics.ComponentPropertyDtEnd) == nil {
		return time.Time{}, false
	}
	if t, err := ev.GetEndAt(); err == nil {
		return t.UTC(), true
	}
	if t, err := ev.GetAllDayEndAt(); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

var textUnescaper = strings.NewReplacer(`\,`, ",", `\;`, ";", `\n`, "\n", `\N`, "\n", `\\`, `\`)

func unescape(s string) string {
	return textUnescaper.Replace(s)
}

// normalizeURL rewrites webcal:// links, which Canvas hands out, to https.
func normalizeURL(u string) string {
	if rest, ok := strings.CutPrefix(u, "webcal://"); ok {
		return "https://" + rest
	}
	return u
}

func (f *Feed) fixtureEvents() ([]source.Event, error) {
	var fixtures []fixtureEvent
	if err := yaml.Unmarshal(fixtureYAML, &fixtures); err != nil {
		return nil, fmt.Errorf("decoding fixture calendar: %w", err)
	}

	now := f.now().UTC()
	events := make([]source.Event, 0, len(fixtures))
	for _, fx := range fixtures {
		at := now.AddDate(0, 0, fx.DaysAhead)
		end := at
		events = append(events, source.Event{
			UID:     fx.UID,
			Summary: fx.Summary,
			Start:   at,
			End:     &end,
		})
	}
	return events, nil
}
