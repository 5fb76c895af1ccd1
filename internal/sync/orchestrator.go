package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/nhle/studyflow/internal/apperr"
	"github.com/nhle/studyflow/internal/clog"
	"github.com/nhle/studyflow/internal/coursecode"
	"github.com/nhle/studyflow/internal/extract"
	"github.com/nhle/studyflow/internal/model"
	"github.com/nhle/studyflow/internal/source"
	"github.com/nhle/studyflow/internal/store"
)

// Config tunes a sync run.
type Config struct {
	// FirstSyncWindow bounds how far back the first sync reads email.
	FirstSyncWindow time.Duration

	// Timeout bounds a whole run, lock wait included.
	Timeout time.Duration

	// Location is the timezone used for prep deadlines.
	Location *time.Location

	Backoff Backoff
}

// ConfigFrom builds a Config from the application settings.
func ConfigFrom(cfg model.SyncConfig) (Config, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Config{}, err
	}
	b := DefaultBackoff
	b.MaxAttempts = cfg.MaxAttempts
	return Config{
		FirstSyncWindow: time.Duration(cfg.FirstSyncWindowDays) * 24 * time.Hour,
		Timeout:         cfg.Timeout,
		Location:        loc,
		Backoff:         b,
	}, nil
}

// Deps are the collaborators of an Orchestrator. Calendar may be nil when
// no feed adapter is configured; Locker defaults to a MemoryLocker.
type Deps struct {
	Store     store.Store
	Emails    source.EmailSource
	Calendar  source.CalendarSource
	Extractor extract.Extractor
	Locker    Locker
	Logger    *slog.Logger
}

// Result summarizes a successful sync.
type Result struct {
	CreatedPending    int
	EmailsFetched     int
	EmailsConsidered  int
	EventsFetched     int
	DiscoveredCourses int
}

// Orchestrator runs the email + calendar -> pending inbox pipeline.
type Orchestrator struct {
	store     store.Store
	emails    source.EmailSource
	calendar  source.CalendarSource
	extractor extract.Extractor
	locker    Locker
	logger    *slog.Logger
	cfg       Config

	now   func() time.Time
	newID func() string
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	if deps.Locker == nil {
		deps.Locker = NewMemoryLocker()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.FirstSyncWindow <= 0 {
		cfg.FirstSyncWindow = 21 * 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Backoff.MaxAttempts == 0 {
		cfg.Backoff = DefaultBackoff
	}
	return &Orchestrator{
		store:     deps.Store,
		emails:    deps.Emails,
		calendar:  deps.Calendar,
		extractor: deps.Extractor,
		locker:    deps.Locker,
		logger:    deps.Logger,
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// snapshot is the stored state a run reconciles against.
type snapshot struct {
	settings     *model.Settings
	courses      []model.Course
	knownIDs     map[string]struct{}
	fingerprints map[string]struct{}
}

// Run performs one sync for the user. Nothing is persisted and lastSync is
// left untouched unless every step succeeds.
func (o *Orchestrator) Run(ctx context.Context, userID string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	clog.AddUser(ctx, userID)
	log := o.logger.With("user_id", userID)

	unlock, err := o.locker.Lock(ctx, userID)
	if err != nil {
		return Result{}, apperr.New(apperr.Conflict, "a sync is already running", err)
	}
	defer unlock()

	snap, err := o.loadSnapshot(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	now := o.now()
	var res Result

	emails, events, err := o.fetch(ctx, userID, snap.settings.CanvasICalURL)
	if err != nil {
		return Result{}, err
	}
	res.EmailsFetched = len(emails)
	res.EventsFetched = len(events)

	emails = FilterWindow(emails, snap.settings.LastSync, now, o.cfg.FirstSyncWindow)
	emails = FilterSenders(emails, snap.settings.SchoolEmailDomain)
	res.EmailsConsidered = len(emails)
	log.InfoContext(ctx, "emails filtered",
		"fetched", res.EmailsFetched,
		"considered", res.EmailsConsidered,
		"first_sync", snap.settings.LastSync == nil,
	)

	var found []extract.Candidate
	if len(emails) > 0 {
		found, err = retry(ctx, o.cfg.Backoff, func(ctx context.Context) ([]extract.Candidate, error) {
			return o.extractor.Extract(ctx, emails)
		})
		if err != nil {
			return Result{}, externalError("extracting tasks from email", err)
		}
	}

	discovered := newNameSet()
	tasks := make([]model.Task, 0, len(found)+len(events))
	for _, c := range found {
		tasks = append(tasks, model.Task{
			ID:        o.newID(),
			UserID:    userID,
			Title:     c.Title,
			Course:    c.Course,
			DueDate:   c.DueDate,
			Type:      c.Type,
			Completed: false,
			Source:    model.TaskSourceEmail,
		})
		if c.Course != "" {
			discovered.add(c.Course)
		}
	}
	for _, ev := range events {
		t := taskFromEvent(userID, ev)
		tasks = append(tasks, t)
		discovered.add(t.Course)
	}

	tasks = ApplyPrepDeadlines(tasks, snap.courses, o.cfg.Location)
	for i := range tasks {
		if tasks[i].Source == model.TaskSourceEmail {
			tasks[i].Fingerprint = Fingerprint(tasks[i])
		}
	}

	pending := dedup(tasks, snap.knownIDs, snap.fingerprints)
	courses := discovered.newCourses(userID, snap.courses, o.newID)

	batch := store.SyncBatch{
		Pending:  pending,
		Courses:  courses,
		SyncedAt: now,
	}
	if err := o.store.CommitSync(ctx, userID, batch); err != nil {
		return Result{}, apperr.WrapStoreError("sync", err)
	}

	res.CreatedPending = len(pending)
	res.DiscoveredCourses = len(courses)
	log.InfoContext(ctx, "sync complete",
		"candidates", len(tasks),
		"created_pending", res.CreatedPending,
		"events", res.EventsFetched,
		"discovered_courses", res.DiscoveredCourses,
	)
	return res, nil
}

func (o *Orchestrator) loadSnapshot(ctx context.Context, userID string) (snapshot, error) {
	var (
		snap snapshot
		err  error
	)
	snap.settings, err = o.store.GetSettings(ctx, userID)
	if err != nil {
		return snap, apperr.WrapStoreError("settings", err)
	}
	if snap.knownIDs, err = o.store.KnownTaskIDs(ctx, userID); err != nil {
		return snap, apperr.WrapStoreError("tasks", err)
	}
	if snap.fingerprints, err = o.store.EmailFingerprints(ctx, userID); err != nil {
		return snap, apperr.WrapStoreError("tasks", err)
	}
	if snap.courses, err = o.store.ListCourses(ctx, userID); err != nil {
		return snap, apperr.WrapStoreError("courses", err)
	}
	return snap, nil
}

// fetch reads the mailbox and the calendar feed concurrently. The first
// failure cancels the other fetch.
func (o *Orchestrator) fetch(ctx context.Context, userID, feedURL string) ([]source.Email, []source.Event, error) {
	var (
		emails []source.Email
		events []source.Event
	)

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		var err error
		emails, err = retry(ctx, o.cfg.Backoff, func(ctx context.Context) ([]source.Email, error) {
			return o.emails.FetchEmails(ctx, userID)
		})
		if err != nil {
			return externalError(fmt.Sprintf("fetching %s email", o.emails.Type()), err)
		}
		return nil
	})
	if feedURL != "" && o.calendar != nil {
		p.Go(func(ctx context.Context) error {
			var err error
			events, err = retry(ctx, o.cfg.Backoff, func(ctx context.Context) ([]source.Event, error) {
				return o.calendar.FetchEvents(ctx, feedURL)
			})
			if err != nil {
				return externalError("fetching calendar feed", err)
			}
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, nil, err
	}
	return emails, events, nil
}

// externalError keeps an existing classification and marks everything
// else as an upstream failure.
func externalError(msg string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if source.IsAuthError(err) {
		return apperr.New(apperr.ExternalService, msg+": authentication failed", err)
	}
	return apperr.New(apperr.ExternalService, msg+" failed", err)
}

func taskFromEvent(userID string, ev source.Event) model.Task {
	course, title := coursecode.ParseSummary(ev.Summary)
	if title == "" {
		title = extract.DefaultTitle
	}
	due := ev.Start
	if ev.End != nil {
		due = *ev.End
	}
	return model.Task{
		ID:      ev.UID,
		UserID:  userID,
		Title:   title,
		Course:  course,
		DueDate: due,
		Type:    model.TaskTypeAssignment,
		Source:  model.TaskSourceCanvas,
	}
}

// Fingerprint identifies an email-derived task by content, since each
// extraction assigns a fresh id.
func Fingerprint(t model.Task) string {
	key := strings.ToLower(strings.TrimSpace(t.Title)) + "|" +
		strings.ToLower(strings.TrimSpace(t.Course)) + "|" +
		t.DueDate.UTC().Truncate(time.Minute).Format(time.RFC3339)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// dedup drops candidates whose id is already stored, repeats within the
// batch, and email candidates matching a stored fingerprint.
func dedup(tasks []model.Task, knownIDs, fingerprints map[string]struct{}) []model.Task {
	seenIDs := make(map[string]struct{}, len(tasks))
	seenPrints := make(map[string]struct{})
	kept := make([]model.Task, 0, len(tasks))

	for _, t := range tasks {
		if _, ok := knownIDs[t.ID]; ok {
			continue
		}
		if _, ok := seenIDs[t.ID]; ok {
			continue
		}
		if t.Fingerprint != "" {
			if _, ok := fingerprints[t.Fingerprint]; ok {
				continue
			}
			if _, ok := seenPrints[t.Fingerprint]; ok {
				continue
			}
			seenPrints[t.Fingerprint] = struct{}{}
		}
		seenIDs[t.ID] = struct{}{}
		kept = append(kept, t)
	}
	return kept
}

// nameSet collects course names in first-seen order, case-insensitively.
type nameSet struct {
	names []string
	seen  map[string]struct{}
}

func newNameSet() *nameSet {
	return &nameSet{seen: make(map[string]struct{})}
}

func (s *nameSet) add(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	key := strings.ToLower(name)
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.names = append(s.names, name)
}

// newCourses returns placeholder courses for names with no existing match.
func (s *nameSet) newCourses(userID string, existing []model.Course, newID func() string) []model.Course {
	var courses []model.Course
	for _, name := range s.names {
		if _, ok := model.FindCourse(existing, name); ok {
			continue
		}
		courses = append(courses, model.Course{
			ID:     newID(),
			UserID: userID,
			Name:   name,
			Days:   []int{},
			Time:   model.PlaceholderCourseTime,
		})
	}
	return courses
}
