package server

import (
	"net/http"

	"github.com/nhle/studyflow/internal/apperr"
	"github.com/nhle/studyflow/internal/model"
)

type pendingRequest struct {
	TaskID      string           `json:"taskId"`
	UpdatedTask *model.TaskPatch `json:"updatedTask,omitempty"`
}

type acceptResponse struct {
	Success bool       `json:"success"`
	Task    model.Task `json:"task"`
}

type bulkResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

func (s *Server) decodePending(w http.ResponseWriter, r *http.Request) (pendingRequest, bool) {
	var req pendingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return req, false
	}
	if req.TaskID == "" {
		writeError(w, r, apperr.New(apperr.Validation, "taskId is required", nil))
		return req, false
	}
	return req, true
}

func (s *Server) listPending(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListPending(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeError(w, r, apperr.WrapStoreError("pending tasks", err))
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) acceptPending(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePending(w, r)
	if !ok {
		return
	}
	task, err := s.store.AcceptPending(r.Context(), userFrom(r.Context()), req.TaskID)
	if err != nil {
		writeError(w, r, apperr.WrapStoreError("task", err))
		return
	}
	writeJSON(w, http.StatusOK, acceptResponse{Success: true, Task: task})
}

func (s *Server) rejectPending(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePending(w, r)
	if !ok {
		return
	}
	if err := s.store.RejectPending(r.Context(), userFrom(r.Context()), req.TaskID); err != nil {
		writeError(w, r, apperr.WrapStoreError("task", err))
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

// updateAndAcceptPending merges the user's edits into a pending task and
// accepts it as not completed.
func (s *Server) updateAndAcceptPending(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePending(w, r)
	if !ok {
		return
	}
	var patch model.TaskPatch
	if req.UpdatedTask != nil {
		patch = *req.UpdatedTask
	}
	task, err := s.store.UpdateAndAcceptPending(r.Context(), userFrom(r.Context()), req.TaskID, patch)
	if err != nil {
		writeError(w, r, apperr.WrapStoreError("task", err))
		return
	}
	writeJSON(w, http.StatusOK, acceptResponse{Success: true, Task: task})
}

func (s *Server) acceptAllPending(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.AcceptAllPending(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeError(w, r, apperr.WrapStoreError("pending tasks", err))
		return
	}
	writeJSON(w, http.StatusOK, bulkResponse{Success: true, Count: n})
}

func (s *Server) rejectAllPending(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.RejectAllPending(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeError(w, r, apperr.WrapStoreError("pending tasks", err))
		return
	}
	writeJSON(w, http.StatusOK, bulkResponse{Success: true, Count: n})
}
