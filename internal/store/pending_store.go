package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/studyflow/internal/model"
)

// ListPending returns the user's inbox of sync-created candidates.
func (s *SQLStore) ListPending(ctx context.Context, userID string) ([]model.Task, error) {
	return listTasks(ctx, s.db, tablePending, userID)
}

// AcceptPending copies a pending task unchanged into the accepted list
// and removes it from the inbox.
func (s *SQLStore) AcceptPending(ctx context.Context, userID, id string) (model.Task, error) {
	return s.movePending(ctx, userID, id, func(t model.Task) model.Task { return t })
}

// UpdateAndAcceptPending merges patch into a pending task, forces it to
// not completed, and moves the result into the accepted list.
func (s *SQLStore) UpdateAndAcceptPending(
	ctx context.Context,
	userID, id string,
	patch model.TaskPatch,
) (model.Task, error) {
	return s.movePending(ctx, userID, id, func(t model.Task) model.Task {
		t = patch.Apply(t)
		t.Completed = false
		return t
	})
}

func (s *SQLStore) movePending(
	ctx context.Context,
	userID, id string,
	fn func(model.Task) model.Task,
) (model.Task, error) {
	var out model.Task
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		t, err := getTask(ctx, tx, tablePending, userID, id)
		if err != nil {
			return err
		}
		t = fn(t)
		if err := validateTask(t); err != nil {
			return err
		}
		inserted, err := insertTask(ctx, tx, tableTasks, t)
		if err != nil {
			return err
		}
		if !inserted {
			return fmt.Errorf("%w: an accepted task with id %s already exists", ErrConflict, id)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			"DELETE FROM pending_tasks WHERE user_id = ? AND id = ?"), userID, id); err != nil {
			return fmt.Errorf("deleting pending task: %w", err)
		}
		out = t
		out.DueDate = dbTime(t.DueDate)
		return nil
	})
	if err != nil {
		return model.Task{}, fmt.Errorf("accepting pending task %s: %w", id, err)
	}
	return out, nil
}

// RejectPending discards a pending task.
func (s *SQLStore) RejectPending(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		"DELETE FROM pending_tasks WHERE user_id = ? AND id = ?"), userID, id)
	if err != nil {
		return fmt.Errorf("rejecting pending task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rejecting pending task %s: %w", id, ErrNotFound)
	}
	return nil
}

// AcceptAllPending moves every pending task into the accepted list and
// returns how many were moved. If any pending id is already taken by an
// accepted task nothing is moved and ErrConflict is returned.
func (s *SQLStore) AcceptAllPending(ctx context.Context, userID string) (int, error) {
	var moved int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var pending int64
		if err := tx.GetContext(ctx, &pending, tx.Rebind(
			"SELECT COUNT(*) FROM pending_tasks WHERE user_id = ?"), userID); err != nil {
			return fmt.Errorf("counting pending tasks: %w", err)
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(fmt.Sprintf(`
			INSERT INTO tasks (%[1]s)
			SELECT %[1]s FROM pending_tasks WHERE user_id = ?
			ON CONFLICT (user_id, id) DO NOTHING`, taskColumns)), userID)
		if err != nil {
			return fmt.Errorf("copying pending tasks: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if inserted != pending {
			return fmt.Errorf("%w: %d pending task id(s) already accepted", ErrConflict, pending-inserted)
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(
			"DELETE FROM pending_tasks WHERE user_id = ?"), userID); err != nil {
			return fmt.Errorf("clearing pending tasks: %w", err)
		}
		moved = inserted
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("accepting all pending tasks: %w", err)
	}
	return int(moved), nil
}

// RejectAllPending empties the user's inbox and returns how many tasks
// were discarded.
func (s *SQLStore) RejectAllPending(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		"DELETE FROM pending_tasks WHERE user_id = ?"), userID)
	if err != nil {
		return 0, fmt.Errorf("rejecting all pending tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rejecting all pending tasks: %w", err)
	}
	return int(n), nil
}
