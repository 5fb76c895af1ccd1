package server

import (
	"net/http"
	"time"

	"github.com/nhle/studyflow/internal/apperr"
	"github.com/nhle/studyflow/internal/model"
)

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetSettings(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeError(w, r, apperr.WrapStoreError("settings", err))
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// saveSettings replaces the user-editable settings. lastSync in the body
// is ignored; only a successful sync moves it.
func (s *Server) saveSettings(w http.ResponseWriter, r *http.Request) {
	var in model.Settings
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	userID := userFrom(r.Context())
	in.UserID = userID
	in.LastSync = nil

	if err := s.store.SaveSettings(r.Context(), in); err != nil {
		writeError(w, r, apperr.WrapStoreError("settings", err))
		return
	}
	s.getSettings(w, r)
}

type syncStatusResponse struct {
	LastSync *time.Time `json:"lastSync"`
}

type syncResponse struct {
	Success  bool `json:"success"`
	NewTasks int  `json:"newTasks"`
}

func (s *Server) syncStatus(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetSettings(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeError(w, r, apperr.WrapStoreError("settings", err))
		return
	}
	writeJSON(w, http.StatusOK, syncStatusResponse{LastSync: settings.LastSync})
}

func (s *Server) runSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.syncer.Run(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Success: true, NewTasks: res.CreatedPending})
}
