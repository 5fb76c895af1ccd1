package model

import (
	"strings"
	"time"
)

// TaskType classifies what kind of work a task represents.
type TaskType string

const (
	TaskTypeAssignment TaskType = "assignment"
	TaskTypePrep       TaskType = "prep"
	TaskTypeReading    TaskType = "reading"
	TaskTypeStudy      TaskType = "study"
	TaskTypeQuiz       TaskType = "quiz"
	TaskTypeOther      TaskType = "other"
)

// TaskTypes lists every valid task type in display order.
var TaskTypes = []TaskType{
	TaskTypeAssignment,
	TaskTypePrep,
	TaskTypeReading,
	TaskTypeStudy,
	TaskTypeQuiz,
	TaskTypeOther,
}

// Valid reports whether t is one of the known task types.
func (t TaskType) Valid() bool {
	for _, known := range TaskTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseTaskType maps free-form text onto a TaskType. Unknown or empty
// values map to TaskTypeOther.
func ParseTaskType(s string) TaskType {
	t := TaskType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return TaskTypeOther
}

// TaskSource identifies where a task came from. It is fixed at creation.
type TaskSource string

const (
	TaskSourceManual TaskSource = "manual"
	TaskSourceEmail  TaskSource = "email"
	TaskSourceCanvas TaskSource = "canvas"
)

// Valid reports whether s is one of the known task sources.
func (s TaskSource) Valid() bool {
	switch s {
	case TaskSourceManual, TaskSourceEmail, TaskSourceCanvas:
		return true
	}
	return false
}

// Task is a tracked deadline, either accepted or awaiting review in the
// pending inbox. The same shape is used for both collections.
type Task struct {
	// ID is unique per user across accepted and pending tasks.
	ID string `json:"id" db:"id"`

	// UserID is the owner of the task.
	UserID string `json:"-" db:"user_id"`

	// Title is the human-readable summary of the task.
	Title string `json:"title" db:"title"`

	// Course is the free-text course name. It is matched
	// case-insensitively against Course.Name.
	Course string `json:"course" db:"course"`

	// DueDate is the absolute deadline, always stored in UTC.
	DueDate time.Time `json:"due_date" db:"due_date"`

	// Type classifies the task.
	Type TaskType `json:"type" db:"type"`

	// Completed is true once the user has checked the task off.
	Completed bool `json:"completed" db:"completed"`

	// Source records the task's provenance.
	Source TaskSource `json:"source" db:"source"`

	// Fingerprint is a content hash used to recognise email-derived
	// tasks across sync runs. Empty for other sources.
	Fingerprint string `json:"-" db:"fingerprint"`

	// CreatedAt is when the row was first written.
	CreatedAt time.Time `json:"-" db:"created_at"`
}

// TaskPatch holds optional field overrides for a task. Nil fields are
// left untouched when applied.
type TaskPatch struct {
	Title     *string    `json:"title,omitempty"`
	Course    *string    `json:"course,omitempty"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Type      *TaskType  `json:"type,omitempty"`
	Completed *bool      `json:"completed,omitempty"`
}

// Apply returns a copy of t with the non-nil patch fields merged in.
// Identity, ownership and provenance are never changed.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Course != nil {
		t.Course = *p.Course
	}
	if p.DueDate != nil {
		t.DueDate = p.DueDate.UTC()
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return t
}

// SnoozeDurations maps the supported snooze keywords to day offsets.
var SnoozeDurations = map[string]int{
	"1d": 1,
	"2d": 2,
	"1w": 7,
}
