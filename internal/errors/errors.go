// Package errors defines the error taxonomy shared across the restore engine.
// Each failure class carries enough context for callers to decide between
// failing the run, skipping an entry, or re-invoking later.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError reports malformed or inconsistent caller input. The same
// input will always fail the same way, so it is never retried.
type ValidationError struct {
	Field  string // offending field, empty when the whole input is bad
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for a named field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports that a named remote resource does not exist or is
// not visible to the caller.
type NotFoundError struct {
	Resource string // kind: "environment", "bucket", "protection group", ...
	Name     string
}

func (e *NotFoundError) Error() string {
	if e.Name == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.Name)
}

// NewNotFoundError creates a NotFoundError for a named resource.
func NewNotFoundError(resource, name string) *NotFoundError {
	return &NotFoundError{Resource: resource, Name: name}
}

// APIError reports a non-success backend response after transport retries
// were exhausted.
type APIError struct {
	StatusCode int
	Reason     string
	Content    string // trimmed response body snippet
}

func (e *APIError) Error() string {
	if e.Content == "" {
		return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("api error: status %d: %s: %s", e.StatusCode, e.Reason, e.Content)
}

// NewAPIError creates an APIError from a backend response.
func NewAPIError(status int, reason, content string) *APIError {
	return &APIError{StatusCode: status, Reason: reason, Content: content}
}

// AuthError reports an authorization failure. It is terminal: retrying with
// the same credentials cannot succeed.
type AuthError struct {
	Op  string // operation that was denied
	Err error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "not authorized: " + e.Op
	}
	return fmt.Sprintf("not authorized: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError creates an AuthError for a denied operation.
func NewAuthError(op string, err error) *AuthError {
	return &AuthError{Op: op, Err: err}
}

// TaskError reports a restore task that reached a terminal failure state
// (failed or aborted). The work is definitively not done.
type TaskError struct {
	TaskID string
	Status string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s %s", e.TaskID, e.Status)
}

// NewTaskError creates a TaskError for a terminally failed task.
func NewTaskError(taskID, status string) *TaskError {
	return &TaskError{TaskID: taskID, Status: status}
}

// TimeoutError reports a polling budget exhausted while the task was still
// running. The outcome is indeterminate: the task may yet complete, so the
// caller may poll again with a fresh budget.
type TimeoutError struct {
	TaskID     string
	LastStatus string
	Budget     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s not done after %s - %s", e.TaskID, e.Budget, e.LastStatus)
}

// NewTimeoutError creates a TimeoutError carrying the last observed status.
func NewTimeoutError(taskID, lastStatus string, budget time.Duration) *TimeoutError {
	return &TimeoutError{TaskID: taskID, LastStatus: lastStatus, Budget: budget}
}

// TooManyResultsError reports a result set larger than the configured
// ceiling. Callers narrow the search window or filters and try again.
type TooManyResultsError struct {
	Count int
	Limit int
}

func (e *TooManyResultsError) Error() string {
	return fmt.Sprintf("too many results: %d exceeds limit %d", e.Count, e.Limit)
}

// NewTooManyResultsError creates a TooManyResultsError.
func NewTooManyResultsError(count, limit int) *TooManyResultsError {
	return &TooManyResultsError{Count: count, Limit: limit}
}

// IsValidation returns true if the error is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound returns true if the error reports a missing resource.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAPIError returns true if the error is a backend APIError.
func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}

// IsAuth returns true if the error is an authorization failure.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsTaskFailure returns true if the error reports a terminally failed task.
func IsTaskFailure(err error) bool {
	var te *TaskError
	return errors.As(err, &te)
}

// IsTimeout returns true if the error reports an exhausted polling budget.
// Unlike IsTaskFailure the underlying task may still complete.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsTooManyResults returns true if the error reports an oversized result set.
func IsTooManyResults(err error) bool {
	var te *TooManyResultsError
	return errors.As(err, &te)
}

// Wrap adds context to an error if it's not nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
