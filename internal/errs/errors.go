package errs

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks across package boundaries.
var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("already exists")
	ErrPolicyDenied = errors.New("policy denied")
	ErrNotFound     = errors.New("not found")
)

// ValidationError represents malformed or impossible input. Nothing is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError represents a collision on a unique (store, date) key.
type ConflictError struct {
	Resource string
	Key      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Resource, e.Key)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Reason explains a compliance gate rejection.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonAlreadyLoggedToday Reason = "already_logged_today"
	ReasonOutsideShiftWindow Reason = "outside_shift_window"
	ReasonWeeklyLocked       Reason = "weekly_locked"
)

// PolicyDenied is a compliance rejection. It is not a system failure.
type PolicyDenied struct {
	Reason  Reason
	Message string
	Cause   error
}

func (e *PolicyDenied) Error() string {
	return fmt.Sprintf("policy denied (%s): %s", e.Reason, e.Message)
}

func (e *PolicyDenied) Is(target error) bool { return target == ErrPolicyDenied }

func (e *PolicyDenied) Unwrap() error { return e.Cause }

// Deny builds a PolicyDenied with an optional underlying cause.
func Deny(reason Reason, message string, cause error) error {
	return &PolicyDenied{Reason: reason, Message: message, Cause: cause}
}

// ReasonOf extracts the policy reason from err, if any.
func ReasonOf(err error) Reason {
	var pd *PolicyDenied
	if errors.As(err, &pd) {
		return pd.Reason
	}
	return ReasonNone
}
