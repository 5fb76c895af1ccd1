package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/studyflow/internal/apperr"
	"github.com/nhle/studyflow/internal/extract"
	"github.com/nhle/studyflow/internal/model"
	"github.com/nhle/studyflow/internal/source"
	"github.com/nhle/studyflow/internal/source/calendar"
	"github.com/nhle/studyflow/internal/source/email"
	"github.com/nhle/studyflow/internal/store"
	"github.com/nhle/studyflow/tests/testutil"
)

// fakeExtractor returns one candidate per email, titled by subject.
type fakeExtractor struct {
	mu      gosync.Mutex
	calls   int
	seen    []source.Email
	course  string
	typ     model.TaskType
	due     time.Time
	failFor int
	err     error
}

func (f *fakeExtractor) Extract(_ context.Context, emails []source.Email) ([]extract.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.calls <= f.failFor {
		return nil, f.err
	}
	f.seen = emails

	out := make([]extract.Candidate, 0, len(emails))
	for _, e := range emails {
		out = append(out, extract.Candidate{
			Title:   e.Subject,
			Course:  f.course,
			DueDate: f.due,
			Type:    f.typ,
		})
	}
	return out, nil
}

type staticEmails struct {
	emails []source.Email
	err    error
}

func (s staticEmails) Type() source.SourceType { return source.SourceTypeFixture }

func (s staticEmails) FetchEmails(context.Context, string) ([]source.Email, error) {
	return s.emails, s.err
}

type staticEvents []source.Event

func (s staticEvents) FetchEvents(context.Context, string) ([]source.Event, error) {
	return s, nil
}

func testConfig() Config {
	return Config{
		FirstSyncWindow: 21 * 24 * time.Hour,
		Timeout:         10 * time.Second,
		Location:        time.UTC,
		Backoff:         Backoff{MaxAttempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond},
	}
}

func setSettings(t *testing.T, s store.Store, userID string, mutate func(*model.Settings)) {
	t.Helper()
	ctx := context.Background()
	settings, err := s.GetSettings(ctx, userID)
	require.NoError(t, err)
	mutate(settings)
	require.NoError(t, s.SaveSettings(ctx, *settings))
}

func TestRun_FirstSyncFixtureScenario(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	user := testutil.NewTestUser(t, s, "student@dartmouth.edu")
	setSettings(t, s, user.ID, func(st *model.Settings) {
		st.CanvasICalURL = model.MockCalendarURL
	})

	now := time.Now()
	ex := &fakeExtractor{course: "PSYC 101", typ: model.TaskTypeAssignment, due: now.Add(72 * time.Hour)}
	o := New(Deps{
		Store:     s,
		Emails:    email.NewFixtureSource(func() time.Time { return now }),
		Calendar:  calendar.NewFeed(nil),
		Extractor: ex,
	}, testConfig())
	o.now = func() time.Time { return now }

	res, err := o.Run(ctx, user.ID)
	require.NoError(t, err)

	assert.Equal(t, 8, res.EmailsFetched)
	assert.Equal(t, 6, res.EmailsConsidered)
	require.Len(t, ex.seen, 6)
	for _, e := range ex.seen {
		assert.NotEqual(t, "email6", e.ID)
		assert.NotEqual(t, "email7", e.ID)
	}
	assert.Equal(t, 10, res.CreatedPending)

	pending, err := s.ListPending(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, pending, 10)

	var canvas []model.Task
	for _, p := range pending {
		assert.False(t, p.Completed)
		if p.Source == model.TaskSourceCanvas {
			canvas = append(canvas, p)
		}
	}
	require.Len(t, canvas, 4)
	for _, c := range canvas {
		if c.ID == "canvas-event-2" {
			assert.Equal(t, "Response Paper 3", c.Title)
			assert.Equal(t, "PSYC 101", c.Course)
			assert.Equal(t, model.TaskTypeAssignment, c.Type)
		}
	}

	settings, err := s.GetSettings(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, settings.LastSync)
	assert.WithinDuration(t, now, *settings.LastSync, time.Second)

	courses, err := s.ListCourses(ctx, user.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(courses))
	for _, c := range courses {
		names = append(names, c.Name)
		assert.Empty(t, c.Days)
		assert.Equal(t, model.PlaceholderCourseTime, c.Time)
	}
	assert.ElementsMatch(t, []string{"PSYC 101", "CS 256", "MATH 202", "PHYS 101"}, names)
}

func TestRun_CalendarIngestionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	user := testutil.NewTestUser(t, s, "student@dartmouth.edu")
	setSettings(t, s, user.ID, func(st *model.Settings) {
		st.CanvasICalURL = model.MockCalendarURL
	})

	o := New(Deps{
		Store:     s,
		Emails:    staticEmails{},
		Calendar:  calendar.NewFeed(nil),
		Extractor: &fakeExtractor{},
	}, testConfig())

	first, err := o.Run(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, first.CreatedPending)

	second, err := o.Run(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, second.CreatedPending)

	// Accepted tasks still count as known.
	_, err = s.AcceptAllPending(ctx, user.ID)
	require.NoError(t, err)
	third, err := o.Run(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, third.CreatedPending)

	pending, err := s.ListPending(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	courses, err := s.ListCourses(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, courses, 4)
}

func TestRun_SecondSyncUsesWatermark(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	user := testutil.NewTestUser(t, s, "student@dartmouth.edu")

	now := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
	ex := &fakeExtractor{course: "ENGL 205", typ: model.TaskTypeReading, due: now.Add(48 * time.Hour)}
	emails := staticEmails{emails: []source.Email{
		{ID: "old", From: "a@dartmouth.edu", Subject: "old", Date: now.Add(-2 * time.Hour)},
		{ID: "at", From: "a@dartmouth.edu", Subject: "at", Date: now.Add(-time.Hour)},
		{ID: "new", From: "a@dartmouth.edu", Subject: "new", Date: now.Add(-time.Minute)},
	}}
	o := New(Deps{Store: s, Emails: emails, Extractor: ex}, testConfig())

	watermark := now.Add(-time.Hour)
	require.NoError(t, s.CommitSync(ctx, user.ID, store.SyncBatch{SyncedAt: watermark}))
	o.now = func() time.Time { return now }

	res, err := o.Run(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.EmailsConsidered)
	require.Len(t, ex.seen, 1)
	assert.Equal(t, "new", ex.seen[0].ID)
	assert.Equal(t, 1, res.CreatedPending)
}

func TestRun_SenderAllowList(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	user := testutil.NewTestUser(t, s, "student@school.edu")
	setSettings(t, s, user.ID, func(st *model.Settings) {
		st.SchoolEmailDomain = "school.edu"
	})

	now := time.Now()
	ex := &fakeExtractor{course: "BIO 110", typ: model.TaskTypeOther, due: now}
	emails := staticEmails{emails: []source.Email{
		{ID: "1", From: "Prof <prof@School.edu>", Subject: "ok", Date: now},
		{ID: "2", From: "spam@elsewhere.com", Subject: "drop", Date: now},
		{ID: "3", From: "notifications@instructure.com", Subject: "ok", Date: now},
		{ID: "4", From: "canvas-noreply@lms.io", Subject: "ok", Date: now},
	}}
	o := New(Deps{Store: s, Emails: emails, Extractor: ex}, testConfig())

	res, err := o.Run(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.EmailsConsidered)
	for _, e := range ex.seen {
		assert.NotEqual(t, "2", e.ID)
	}
}

func TestRun_NoEmailsSkipsExtraction(t *testing.T) {
	s := testutil.NewTestStore(t)
	user := testutil.NewTestUser(t, s, "student@dartmouth.edu")

	ex := &fakeExtractor{}
	o := New(Deps{Store: s, Emails: staticEmails{}, Extractor: ex}, testConfig())

	res, err := o.Run(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Zero(t, res.CreatedPending)
	assert.Zero(t, ex.calls)

	settings, err := s.GetSettings(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotNil(t, settings.LastSync)
}

func TestRun_ExtractionFailureKeepsWatermark(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	user := testutil.NewTestUser(t, s, "student@dartmouth.edu")
	setSettings(t, s, user.ID, func(st *model.Settings) {
		st.CanvasICalURL = model.MockCalendarURL
	})

	ex := &fakeExtractor{failFor: 1, err: apperr.New(apperr.ExternalService, "bad request", nil)}
	o := New(Deps{
		Store:     s,
		Emails:    email.NewFixtureSource(nil),
		Calendar:  calendar.NewFeed(nil),
		Extractor: ex,
	}, testConfig())

	_, err := o.Run(ctx, user.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.ExternalService))
	assert.Equal(t, 1, ex.calls)

	settings, err := s.GetSettings(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, settings.LastSync)

	pending, err := s.ListPending(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRun_RetriesTemporaryExtractionFailure(t *testing.T) {
	s := testutil.NewTestStore(t)
	user := testutil.NewTestUser(t, s, "student@dartmouth.edu")

	ex := &fakeExtractor{
		failFor: 2,
		err:     apperr.Temporary("overloaded", errors.New("529")),
		course:  "CS 256",
		typ:     model.TaskTypeStudy,
		due:     time.Now(),
	}
	o := New(Deps{Store: s, Emails: email.NewFixtureSource(nil), Extractor: ex}, testConfig())

	res, err := o.Run(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, ex.calls)
	assert.Equal(t, 6, res.CreatedPending)
}

func TestRun_EmailSourceAuthFailure(t *testing.T) {
	s := testutil.NewTestStore(t)
	user := testutil.NewTestUser(t, s, "student@dartmouth.edu")

	emails := staticEmails{err: &source.AuthError{SourceType: source.SourceTypeIMAP, Message: "bad password"}}
	o := New(Deps{Store: s, Emails: emails, Extractor: &fakeExtractor{}}, testConfig())

	_, err := o.Run(context.Background(), user.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.ExternalService))
	assert.True(t, source.IsAuthError(err))
}

func TestRun_MissingSettings(t *testing.T) {
	s := testutil.NewTestStore(t)
	o := New(Deps{Store: s, Emails: staticEmails{}, Extractor: &fakeExtractor{}}, testConfig())

	_, err := o.Run(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.NotFound))
	assert.Contains(t, err.Error(), "settings not found")
}

func TestRun_DiscoversOneCourseAcrossSpellings(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	user := testutil.NewTestUser(t, s, "student@dartmouth.edu")

	now := time.Now()
	ex := &fakeExtractor{course: "HIST 300", typ: model.TaskTypeAssignment, due: now}
	events := staticEvents{
		{UID: "ev-1", Summary: "[hist 300] Essay", Start: now},
	}
	setSettings(t, s, user.ID, func(st *model.Settings) {
		st.CanvasICalURL = "https://canvas.example.edu/feed.ics"
	})
	o := New(Deps{
		Store:     s,
		Emails:    staticEmails{emails: []source.Email{{ID: "e", From: "x@y.edu", Subject: "Essay", Date: now}}},
		Calendar:  events,
		Extractor: ex,
	}, testConfig())

	res, err := o.Run(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DiscoveredCourses)

	courses, err := s.ListCourses(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "HIST 300", courses[0].Name)
	assert.Equal(t, []int{}, courses[0].Days)
	assert.Equal(t, "00:00", courses[0].Time)
}

func TestRun_DiscoversAnyNonEmptyCourse(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	mail := []source.Email{{ID: "e", From: "x@y.edu", Subject: "Note", Date: now}}

	tests := []struct {
		name   string
		course string
		want   []string
	}{
		{"extractor default", extract.DefaultCourse, []string{extract.DefaultCourse}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testutil.NewTestStore(t)
			user := testutil.NewTestUser(t, s, "student@dartmouth.edu")
			ex := &fakeExtractor{course: tt.course, typ: model.TaskTypeOther, due: now}
			o := New(Deps{Store: s, Emails: staticEmails{emails: mail}, Extractor: ex}, testConfig())

			_, err := o.Run(ctx, user.ID)
			require.NoError(t, err)

			courses, err := s.ListCourses(ctx, user.ID)
			require.NoError(t, err)
			var names []string
			for _, c := range courses {
				names = append(names, c.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestRun_SkipsEmailTasksSeenBefore(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	user := testutil.NewTestUser(t, s, "student@dartmouth.edu")

	now := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
	due := now.Add(24 * time.Hour)
	ex := &fakeExtractor{course: "CS 256", typ: model.TaskTypeAssignment, due: due}
	mail := []source.Email{{ID: "e1", From: "x@y.edu", Subject: "Lab 5", Date: now.Add(-time.Hour)}}
	o := New(Deps{Store: s, Emails: staticEmails{emails: mail}, Extractor: ex}, testConfig())
	o.now = func() time.Time { return now }

	first, err := o.Run(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.CreatedPending)

	// A reforwarded copy arrives after the watermark.
	mail[0].Date = now.Add(time.Minute)
	o.now = func() time.Time { return now.Add(2 * time.Minute) }
	second, err := o.Run(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, second.CreatedPending)
}

// gatedExtractor holds every call until release is closed.
type gatedExtractor struct {
	fakeExtractor
	entered chan struct{}
	release chan struct{}
}

func (g *gatedExtractor) Extract(ctx context.Context, emails []source.Email) ([]extract.Candidate, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.fakeExtractor.Extract(ctx, emails)
}

func TestRun_SerializesPerUser(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	user := testutil.NewTestUser(t, s, "student@dartmouth.edu")
	setSettings(t, s, user.ID, func(st *model.Settings) {
		st.CanvasICalURL = model.MockCalendarURL
	})

	now := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
	ex := &gatedExtractor{
		fakeExtractor: fakeExtractor{course: "CS 256", typ: model.TaskTypeAssignment, due: now.Add(24 * time.Hour)},
		entered:       make(chan struct{}, 2),
		release:       make(chan struct{}),
	}
	mail := []source.Email{{ID: "e1", From: "x@y.edu", Subject: "Reading response", Date: now.Add(-time.Hour)}}
	o := New(Deps{
		Store:     s,
		Emails:    staticEmails{emails: mail},
		Calendar:  calendar.NewFeed(nil),
		Extractor: ex,
	}, testConfig())
	o.now = func() time.Time { return now }

	type outcome struct {
		res Result
		err error
	}
	results := make(chan outcome, 2)
	run := func() {
		res, err := o.Run(ctx, user.ID)
		results <- outcome{res, err}
	}

	go run()
	<-ex.entered
	go run()

	// The second run must wait for the lock instead of extracting.
	select {
	case <-ex.entered:
		t.Fatal("second run extracted while the first held the lock")
	case <-time.After(50 * time.Millisecond):
	}
	close(ex.release)

	total := 0
	for i := 0; i < 2; i++ {
		out := <-results
		require.NoError(t, out.err)
		total += out.res.CreatedPending
	}
	assert.Equal(t, 5, total, "one email task plus four canvas events, created once")

	pending, err := s.ListPending(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 5)

	ex.mu.Lock()
	defer ex.mu.Unlock()
	assert.Equal(t, 1, ex.calls, "the second run sees the watermark and skips extraction")
}

func TestDedup(t *testing.T) {
	tasks := []model.Task{
		{ID: "a"},
		{ID: "b"},
		{ID: "a"},
		{ID: "c", Fingerprint: "fp1"},
		{ID: "d", Fingerprint: "fp1"},
		{ID: "e", Fingerprint: "fp2"},
	}
	known := map[string]struct{}{"b": {}}
	prints := map[string]struct{}{"fp2": {}}

	got := dedup(tasks, known, prints)
	ids := make([]string, 0, len(got))
	for _, t := range got {
		ids = append(ids, t.ID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestFingerprint_IgnoresCaseAndSeconds(t *testing.T) {
	due := time.Date(2025, 10, 27, 23, 59, 0, 0, time.UTC)
	a := model.Task{Title: "Midterm Essay", Course: "PSYC 101", DueDate: due}
	b := model.Task{Title: "midterm essay ", Course: "psyc 101", DueDate: due.Add(59 * time.Second)}
	c := model.Task{Title: "Midterm Essay", Course: "PSYC 101", DueDate: due.Add(time.Hour)}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
}
