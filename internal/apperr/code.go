package apperr

import "net/http"

// Code classifies an error for API clients and logging.
type Code string

const (
	Unauthenticated = Code("unauthenticated")
	NotFound        = Code("not_found")
	Validation      = Code("validation")
	ExternalService = Code("external_service")
	Store           = Code("store")
	Conflict        = Code("conflict")
	Unknown         = Code("unknown")
)

// HTTPCode maps the code to the HTTP status returned by the API.
func (c Code) HTTPCode() int {
	switch c {
	case Unauthenticated:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case Validation:
		return http.StatusBadRequest
	case ExternalService:
		return http.StatusBadGateway
	case Conflict:
		return http.StatusConflict
	case Store, Unknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
