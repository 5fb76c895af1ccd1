package server

import (
	"net/http"

	"github.com/nhle/studyflow/internal/apperr"
	"github.com/nhle/studyflow/internal/model"
)

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasks(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeError(w, r, apperr.WrapStoreError("tasks", err))
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// createTask adds a manual task straight to the accepted list.
func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var t model.Task
	if err := decodeJSON(w, r, &t); err != nil {
		writeError(w, r, err)
		return
	}
	if t.Title == "" {
		writeError(w, r, apperr.New(apperr.Validation, "title is required", nil))
		return
	}
	if t.DueDate.IsZero() {
		writeError(w, r, apperr.New(apperr.Validation, "due_date is required", nil))
		return
	}
	t.ID = ""
	t.UserID = userFrom(r.Context())
	t.Source = model.TaskSourceManual

	created, err := s.store.CreateTask(r.Context(), t)
	if err != nil {
		writeError(w, r, apperr.WrapStoreError("task", err))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := requireQuery(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch model.TaskPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.store.UpdateTask(r.Context(), userFrom(r.Context()), id, patch)
	if err != nil {
		writeError(w, r, apperr.WrapStoreError("task", err))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := requireQuery(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.DeleteTask(r.Context(), userFrom(r.Context()), id); err != nil {
		writeError(w, r, apperr.WrapStoreError("task", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) snoozeTask(w http.ResponseWriter, r *http.Request) {
	id, err := requireQuery(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	duration, err := requireQuery(r, "duration")
	if err != nil {
		writeError(w, r, err)
		return
	}
	days, ok := model.SnoozeDurations[duration]
	if !ok {
		writeError(w, r, apperr.New(apperr.Validation, "duration must be one of 1d, 2d, 1w", nil))
		return
	}

	updated, err := s.store.SnoozeTask(r.Context(), userFrom(r.Context()), id, days)
	if err != nil {
		writeError(w, r, apperr.WrapStoreError("task", err))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) toggleTask(w http.ResponseWriter, r *http.Request) {
	id, err := requireQuery(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.store.ToggleTask(r.Context(), userFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, apperr.WrapStoreError("task", err))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
