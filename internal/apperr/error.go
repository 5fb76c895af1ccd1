package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/studyflow/internal/store"
)

// Error is the typed error returned across service boundaries. Msg is
// safe to show to API clients; Err carries the detail for logs.
type Error struct {
	Code Code
	Msg  string
	Err  error

	// Temporary marks failures worth retrying, such as network errors
	// and 5xx responses from an upstream service.
	Temporary bool
}

// New creates an Error.
func New(code Code, msg string, underlying error) *Error {
	return &Error{Code: code, Msg: msg, Err: underlying}
}

// Temporary creates a retryable ExternalService error.
func Temporary(msg string, underlying error) *Error {
	return &Error{Code: ExternalService, Msg: msg, Err: underlying, Temporary: true}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the first *Error in err's chain, or Unknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}

// IsTemporary reports whether err is marked as retryable.
func IsTemporary(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Temporary
	}
	return false
}

// From converts any error into an *Error, keeping existing ones intact and
// classifying store sentinels.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return New(NotFound, "not found", err)
	case errors.Is(err, store.ErrInvalid):
		return New(Validation, validationMessage(err), err)
	case errors.Is(err, store.ErrConflict):
		return New(Conflict, "already exists", err)
	}
	return New(Unknown, "unknown error", err)
}

// WrapStoreError classifies a store failure for the named target.
func WrapStoreError(target string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return New(NotFound, fmt.Sprintf("%s not found", target), err)
	case errors.Is(err, store.ErrInvalid):
		return New(Validation, validationMessage(err), err)
	case errors.Is(err, store.ErrConflict):
		return New(Conflict, fmt.Sprintf("%s already exists", target), err)
	}
	return New(Store, "server error", fmt.Errorf("accessing %s: %w", target, err))
}

// validationMessage trims the wrapping context from store validation
// errors so clients see only the reason.
func validationMessage(err error) string {
	msg := err.Error()
	marker := store.ErrInvalid.Error() + ": "
	if i := strings.Index(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return msg
}
