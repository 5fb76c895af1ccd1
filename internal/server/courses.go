package server

import (
	"net/http"
	"strings"

	"github.com/nhle/studyflow/internal/apperr"
	"github.com/nhle/studyflow/internal/model"
)

func (s *Server) listCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.store.ListCourses(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeError(w, r, apperr.WrapStoreError("courses", err))
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

func (s *Server) createCourse(w http.ResponseWriter, r *http.Request) {
	var c model.Course
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		writeError(w, r, apperr.New(apperr.Validation, "name is required", nil))
		return
	}
	c.ID = ""
	c.UserID = userFrom(r.Context())

	created, err := s.store.CreateCourse(r.Context(), c)
	if err != nil {
		writeError(w, r, apperr.WrapStoreError("course", err))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) deleteCourse(w http.ResponseWriter, r *http.Request) {
	id, err := requireQuery(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.DeleteCourse(r.Context(), userFrom(r.Context()), id); err != nil {
		writeError(w, r, apperr.WrapStoreError("course", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
