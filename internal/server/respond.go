package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nhle/studyflow/internal/apperr"
	"github.com/nhle/studyflow/internal/clog"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

type successBody struct {
	Success bool `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {code, message} and records it on the
// request log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.From(err)
	clog.AddError(r.Context(), err)
	writeJSON(w, appErr.Code.HTTPCode(), errorBody{Code: appErr.Code, Message: appErr.Msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperr.New(apperr.Validation, "invalid request body", fmt.Errorf("decoding body: %w", err))
	}
	return nil
}

func requireQuery(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", apperr.New(apperr.Validation, fmt.Sprintf("%s is required", name), nil)
	}
	return v, nil
}
