// ============================================================================
// backend/internal/shared/errors.go
// Domain error taxonomy shared by every grading component
// ============================================================================

package shared

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Error classes. Callers test with errors.Is; the HTTP layer maps each class
// to a distinct status code.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrPrecondition = errors.New("precondition failed")
	ErrConflict     = errors.New("conflict")
)

// ValidationError represents a validation error on a single field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors collects field-level validation failures
type FieldErrors []ValidationError

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, e := range fe {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}

// Is lets errors.Is(FieldErrors{...}, ErrValidation) succeed
func (fe FieldErrors) Is(target error) bool {
	return target == ErrValidation
}

// Invalidf returns a validation error with a formatted message
func Invalidf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

// NotFoundf returns a not-found error with a formatted message
func NotFoundf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

// Preconditionf returns a state error with a formatted message
func Preconditionf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrPrecondition, format, args...)
}

// Conflictf returns a conflict error with a formatted message
func Conflictf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConflict, format, args...)
}

// Message strips the trailing class suffix added by errors.Wrapf so that
// "term T1: not found" is reported to callers as "term T1".
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, class := range []error{ErrValidation, ErrNotFound, ErrPrecondition, ErrConflict} {
		msg = strings.TrimSuffix(msg, ": "+class.Error())
	}
	return msg
}
