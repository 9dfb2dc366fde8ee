package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound       = errors.New("requested resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden access")
	ErrBadRequest     = errors.New("bad request")
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("resource conflict") // e.g., username already exists
	ErrInvalidState   = errors.New("invalid state")     // e.g., contest not started / ended / already finalized
	ErrConcurrency    = errors.New("concurrent update conflict")
	ErrInternalServer = errors.New("internal server error")
)

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidState) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrConcurrency) {
		return http.StatusConflict
	}

	// Check for pgx specific errors (example for unique constraint)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // Unique violation
			return http.StatusConflict
		case "40001": // Serialization failure, caller may retry
			return http.StatusConflict
		}
	}

	return http.StatusInternalServerError
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
