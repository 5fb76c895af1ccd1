package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/studyflow/internal/model"
)

const (
	tableTasks   = "tasks"
	tablePending = "pending_tasks"

	taskColumns = "user_id, id, title, course, due_date, type, completed, source, fingerprint, created_at"
)

// validateTask rejects tasks that cannot be stored.
func validateTask(t model.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: task title must not be empty", ErrInvalid)
	}
	if !t.Type.Valid() {
		return fmt.Errorf("%w: unknown task type %q", ErrInvalid, t.Type)
	}
	if !t.Source.Valid() {
		return fmt.Errorf("%w: unknown task source %q", ErrInvalid, t.Source)
	}
	if t.DueDate.IsZero() {
		return fmt.Errorf("%w: task due date is required", ErrInvalid)
	}
	return nil
}

// insertTask writes t into table and reports whether a row was added.
// Rows whose (user_id, id) already exist are left untouched.
func insertTask(ctx context.Context, tx *sqlx.Tx, table string, t model.Task) (bool, error) {
	query := tx.Rebind(fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, id) DO NOTHING`, table, taskColumns))

	res, err := tx.ExecContext(ctx, query,
		t.UserID, t.ID, t.Title, t.Course, dbTime(t.DueDate),
		string(t.Type), t.Completed, string(t.Source), t.Fingerprint,
		dbTime(t.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("inserting into %s %s: %w", table, t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting into %s %s: %w", table, t.ID, err)
	}
	return n > 0, nil
}

func getTask(ctx context.Context, q sqlx.QueryerContext, table, userID, id string) (model.Task, error) {
	var t model.Task
	query := sqlx.Rebind(sqlx.BindType(driverName(q)), fmt.Sprintf(
		"SELECT %s FROM %s WHERE user_id = ? AND id = ?", taskColumns, table))
	if err := sqlx.GetContext(ctx, q, &t, query, userID, id); err != nil {
		return model.Task{}, notFound(err)
	}
	return normalizeTask(t), nil
}

func listTasks(ctx context.Context, db *sqlx.DB, table, userID string) ([]model.Task, error) {
	query := db.Rebind(fmt.Sprintf(
		"SELECT %s FROM %s WHERE user_id = ? ORDER BY due_date, id", taskColumns, table))

	tasks := []model.Task{}
	if err := db.SelectContext(ctx, &tasks, query, userID); err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	for i := range tasks {
		tasks[i] = normalizeTask(tasks[i])
	}
	return tasks, nil
}

// normalizeTask undoes driver-specific time zone handling on read.
func normalizeTask(t model.Task) model.Task {
	t.DueDate = t.DueDate.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	return t
}

// driverName reports the driver behind a sqlx handle so helpers that
// accept either *sqlx.DB or *sqlx.Tx can rebind placeholders.
func driverName(q sqlx.QueryerContext) string {
	switch v := q.(type) {
	case *sqlx.DB:
		return v.DriverName()
	case *sqlx.Tx:
		return v.DriverName()
	}
	return "sqlite"
}

// ListTasks returns the user's accepted tasks ordered by due date.
func (s *SQLStore) ListTasks(ctx context.Context, userID string) ([]model.Task, error) {
	return listTasks(ctx, s.db, tableTasks, userID)
}

// GetTask retrieves one accepted task.
func (s *SQLStore) GetTask(ctx context.Context, userID, id string) (*model.Task, error) {
	t, err := getTask(ctx, s.db, tableTasks, userID, id)
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	return &t, nil
}

// CreateTask inserts a task directly into the accepted list. An empty
// ID gets a fresh UUID and an empty source defaults to manual.
func (s *SQLStore) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Source == "" {
		t.Source = model.TaskSourceManual
	}
	if t.Type == "" {
		t.Type = model.TaskTypeOther
	}
	t.CreatedAt = time.Now().UTC()
	if err := validateTask(t); err != nil {
		return model.Task{}, err
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		// Ids are unique across the accepted list and the inbox.
		var n int
		err := tx.GetContext(ctx, &n, tx.Rebind(`
			SELECT
				(SELECT COUNT(*) FROM tasks WHERE user_id = ? AND id = ?) +
				(SELECT COUNT(*) FROM pending_tasks WHERE user_id = ? AND id = ?)`),
			t.UserID, t.ID, t.UserID, t.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: task %s already exists", ErrConflict, t.ID)
		}
		_, err = insertTask(ctx, tx, tableTasks, t)
		return err
	})
	if err != nil {
		return model.Task{}, fmt.Errorf("creating task: %w", err)
	}
	return normalizeTask(t), nil
}

// UpdateTask merges patch into an accepted task and returns the result.
func (s *SQLStore) UpdateTask(
	ctx context.Context,
	userID, id string,
	patch model.TaskPatch,
) (model.Task, error) {
	return s.mutateTask(ctx, userID, id, func(t model.Task) model.Task {
		return patch.Apply(t)
	})
}

// SnoozeTask pushes a task's due date later by the given number of days.
func (s *SQLStore) SnoozeTask(ctx context.Context, userID, id string, days int) (model.Task, error) {
	if days <= 0 {
		return model.Task{}, fmt.Errorf("%w: snooze must move the deadline forward", ErrInvalid)
	}
	return s.mutateTask(ctx, userID, id, func(t model.Task) model.Task {
		t.DueDate = t.DueDate.AddDate(0, 0, days)
		return t
	})
}

// ToggleTask flips the completed flag of an accepted task.
func (s *SQLStore) ToggleTask(ctx context.Context, userID, id string) (model.Task, error) {
	return s.mutateTask(ctx, userID, id, func(t model.Task) model.Task {
		t.Completed = !t.Completed
		return t
	})
}

// mutateTask reads, transforms and writes back one accepted task in a
// single transaction.
func (s *SQLStore) mutateTask(
	ctx context.Context,
	userID, id string,
	fn func(model.Task) model.Task,
) (model.Task, error) {
	var out model.Task
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		t, err := getTask(ctx, tx, tableTasks, userID, id)
		if err != nil {
			return err
		}
		t = fn(t)
		if err := validateTask(t); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE tasks
			SET title = ?, course = ?, due_date = ?, type = ?, completed = ?
			WHERE user_id = ? AND id = ?`),
			t.Title, t.Course, dbTime(t.DueDate), string(t.Type), t.Completed,
			userID, id,
		)
		if err != nil {
			return err
		}
		out = t
		out.DueDate = dbTime(t.DueDate)
		return nil
	})
	if err != nil {
		return model.Task{}, fmt.Errorf("updating task %s: %w", id, err)
	}
	return out, nil
}

// DeleteTask removes an accepted task.
func (s *SQLStore) DeleteTask(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		"DELETE FROM tasks WHERE user_id = ? AND id = ?"), userID, id)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("deleting task %s: %w", id, ErrNotFound)
	}
	return nil
}
