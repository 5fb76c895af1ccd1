package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/studyflow/internal/model"
)

// ErrNotFound is returned when a requested row does not exist for the user.
var ErrNotFound = errors.New("not found")

// SyncBatch is everything a successful sync run persists at once.
type SyncBatch struct {
	// Pending are the new candidate tasks to insert into the inbox.
	Pending []model.Task

	// Courses are newly discovered placeholder courses.
	Courses []model.Course

	// SyncedAt is the new lastSync watermark.
	SyncedAt time.Time
}

// Store defines the persistence interface for per-user tasks, the pending
// inbox, courses, settings, and the accounts that own them. Every
// user-scoped method filters by userID.
type Store interface {
	// === Users and sessions ===

	CreateUser(ctx context.Context, email string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	CreateSession(ctx context.Context, userID string) (string, error)
	UserIDForSession(ctx context.Context, token string) (string, error)

	// === Settings ===

	GetSettings(ctx context.Context, userID string) (*model.Settings, error)
	SaveSettings(ctx context.Context, settings model.Settings) error
	ListSettings(ctx context.Context) ([]model.Settings, error)

	// === Courses ===

	ListCourses(ctx context.Context, userID string) ([]model.Course, error)
	CreateCourse(ctx context.Context, course model.Course) (model.Course, error)
	DeleteCourse(ctx context.Context, userID, id string) error

	// === Accepted tasks ===

	ListTasks(ctx context.Context, userID string) ([]model.Task, error)
	GetTask(ctx context.Context, userID, id string) (*model.Task, error)
	CreateTask(ctx context.Context, task model.Task) (model.Task, error)
	UpdateTask(ctx context.Context, userID, id string, patch model.TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, userID, id string) error
	SnoozeTask(ctx context.Context, userID, id string, days int) (model.Task, error)
	ToggleTask(ctx context.Context, userID, id string) (model.Task, error)

	// === Pending inbox ===

	ListPending(ctx context.Context, userID string) ([]model.Task, error)
	AcceptPending(ctx context.Context, userID, id string) (model.Task, error)
	RejectPending(ctx context.Context, userID, id string) error
	UpdateAndAcceptPending(ctx context.Context, userID, id string, patch model.TaskPatch) (model.Task, error)
	AcceptAllPending(ctx context.Context, userID string) (int, error)
	RejectAllPending(ctx context.Context, userID string) (int, error)

	// === Sync ===

	// KnownTaskIDs returns the ids of all accepted and pending tasks.
	KnownTaskIDs(ctx context.Context, userID string) (map[string]struct{}, error)

	// EmailFingerprints returns the content fingerprints of all
	// email-sourced accepted and pending tasks.
	EmailFingerprints(ctx context.Context, userID string) (map[string]struct{}, error)

	// CommitSync inserts pending tasks and courses and advances lastSync
	// in a single transaction.
	CommitSync(ctx context.Context, userID string, batch SyncBatch) error

	Close() error
}
