package models

import (
	"errors"
	"fmt"
	"time"
)

// Error constants for credentialing operations
var (
	ErrProviderNotFound           = errors.New("provider not found")
	ErrProviderExists             = errors.New("provider already exists")
	ErrInvalidCheckType           = errors.New("invalid verification check type")
	ErrInvalidCheckStatus         = errors.New("invalid verification check status")
	ErrInvalidDecision            = errors.New("invalid committee decision")
	ErrCommentsRequired           = errors.New("comments are required for this decision")
	ErrReviewerRequired           = errors.New("reviewer identity is required")
	ErrMultiplePrimarySpecialties = errors.New("only one specialty may be primary")
	ErrInvalidIntakeSource        = errors.New("invalid intake source")
	ErrIntakeSourceImmutable      = errors.New("intake source cannot be changed")
	ErrCheckNotInFlight           = errors.New("verification check is not in flight")
	ErrCheckInFlight              = errors.New("verification check is already in flight")
	ErrInvalidInput               = errors.New("invalid input")
	ErrDispatcherStopped          = errors.New("verification dispatcher is stopped")
	ErrQueueFull                  = errors.New("verification queue is full")
	ErrUnsupportedFileType        = errors.New("unsupported file type")
)

// InvalidTransitionError is returned when an event is not legal from the current state
type InvalidTransitionError struct {
	Current ProviderStatus
	Event   LifecycleEvent
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: event %q not allowed in state %q", e.Event, e.Current)
}

// ConflictError is returned by a store when the stored version differs from the expected one
type ConflictError struct {
	Resource string
	ID       string
	Expected int32
	Actual   int32
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("optimistic lock conflict for %s %s: expected version %d, but document has version %d",
		e.Resource, e.ID, e.Expected, e.Actual)
}

// ExternalCheckTimeoutError reports a dispatched verification that did not answer in time
type ExternalCheckTimeoutError struct {
	ProviderID string
	Check      CheckType
	Timeout    time.Duration
}

func (e *ExternalCheckTimeoutError) Error() string {
	return fmt.Sprintf("verification %s for provider %s timed out after %s", e.Check, e.ProviderID, e.Timeout)
}

// IsInvalidTransition reports whether err wraps an InvalidTransitionError
func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError
	return errors.As(err, &target)
}

// IsConflict reports whether err wraps a ConflictError
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsExternalCheckTimeout reports whether err wraps an ExternalCheckTimeoutError
func IsExternalCheckTimeout(err error) bool {
	var target *ExternalCheckTimeoutError
	return errors.As(err, &target)
}
