package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/studyflow/internal/model"
)

type courseRow struct {
	ID     string `db:"id"`
	UserID string `db:"user_id"`
	Name   string `db:"name"`
	Days   string `db:"days"`
	Time   string `db:"time"`
}

func (r courseRow) toModel() (model.Course, error) {
	c := model.Course{ID: r.ID, UserID: r.UserID, Name: r.Name, Time: r.Time, Days: []int{}}
	if err := json.Unmarshal([]byte(r.Days), &c.Days); err != nil {
		return model.Course{}, fmt.Errorf("decoding days for course %s: %w", r.ID, err)
	}
	return c, nil
}

func validateCourse(c model.Course) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: course name must not be empty", ErrInvalid)
	}
	for _, d := range c.Days {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: weekday %d out of range 0-6", ErrInvalid, d)
		}
	}
	if err := model.ParseClock(c.Time); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func insertCourse(ctx context.Context, tx *sqlx.Tx, c model.Course) error {
	days := c.Days
	if days == nil {
		days = []int{}
	}
	daysJSON, err := json.Marshal(days)
	if err != nil {
		return fmt.Errorf("marshaling course days: %w", err)
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO courses (id, user_id, name, days, time)
		VALUES (?, ?, ?, ?, ?)`),
		c.ID, c.UserID, c.Name, string(daysJSON), c.Time,
	)
	if err != nil {
		return fmt.Errorf("inserting course %s: %w", c.Name, err)
	}
	return nil
}

// ListCourses returns the user's courses ordered by name.
func (s *SQLStore) ListCourses(ctx context.Context, userID string) ([]model.Course, error) {
	var rows []courseRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(
		"SELECT id, user_id, name, days, time FROM courses WHERE user_id = ? ORDER BY name, id"),
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying courses: %w", err)
	}

	courses := make([]model.Course, 0, len(rows))
	for _, r := range rows {
		c, err := r.toModel()
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, nil
}

// CreateCourse inserts a course, generating an ID when empty and
// defaulting the meeting time to 00:00.
func (s *SQLStore) CreateCourse(ctx context.Context, c model.Course) (model.Course, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Time == "" {
		c.Time = model.PlaceholderCourseTime
	}
	if c.Days == nil {
		c.Days = []int{}
	}
	if err := validateCourse(c); err != nil {
		return model.Course{}, err
	}

	if err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		return insertCourse(ctx, tx, c)
	}); err != nil {
		return model.Course{}, fmt.Errorf("creating course: %w", err)
	}
	return c, nil
}

// DeleteCourse removes a course. Tasks referencing it by name are kept.
func (s *SQLStore) DeleteCourse(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		"DELETE FROM courses WHERE user_id = ? AND id = ?"), userID, id)
	if err != nil {
		return fmt.Errorf("deleting course %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("deleting course %s: %w", id, ErrNotFound)
	}
	return nil
}
