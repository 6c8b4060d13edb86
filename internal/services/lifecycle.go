package services

import "github.com/prefeitura-rio/app-credentialing/internal/models"

type transitionKey struct {
	from  models.ProviderStatus
	event models.LifecycleEvent
}

// transitions is the complete table of legal moves; anything missing is rejected
var transitions = map[transitionKey]models.ProviderStatus{
	{models.StatusNew, models.EventIntakeReceived}:                   models.StatusValidationInProgress,
	{models.StatusValidationInProgress, models.EventValidationPassed}: models.StatusSubmitted,
	{models.StatusValidationInProgress, models.EventValidationFailed}: models.StatusValidationFailed,
	{models.StatusValidationFailed, models.EventRevalidate}:           models.StatusValidationInProgress,
	{models.StatusSubmitted, models.EventPSVDispatched}:               models.StatusPSVInProgress,
	{models.StatusPSVInProgress, models.EventPSVDispatched}:           models.StatusPSVInProgress,
	{models.StatusPSVInProgress, models.EventPSVCompleted}:            models.StatusCommitteePending,
	{models.StatusPSVInProgress, models.EventPSVIssuesFound}:          models.StatusPSVFailed,
	{models.StatusPSVFailed, models.EventPSVRetried}:                  models.StatusPSVInProgress,
	{models.StatusCommitteePending, models.EventApprove}:              models.StatusCredentialed,
	{models.StatusCommitteePending, models.EventReject}:               models.StatusRejected,
	{models.StatusCommitteePending, models.EventRequestInfo}:          models.StatusCommitteePending,
}

// Transition returns the state reached by applying event in current
func Transition(current models.ProviderStatus, event models.LifecycleEvent) (models.ProviderStatus, error) {
	if next, ok := transitions[transitionKey{current, event}]; ok {
		return next, nil
	}
	return current, &models.InvalidTransitionError{Current: current, Event: event}
}

// CanTransition reports whether event is legal in current
func CanTransition(current models.ProviderStatus, event models.LifecycleEvent) bool {
	_, ok := transitions[transitionKey{current, event}]
	return ok
}

// Editable reports whether provider details may still change in status s
func Editable(s models.ProviderStatus) bool {
	return s == models.StatusNew || s == models.StatusValidationFailed
}

// ValidationEvent picks the event that closes a validation pass
func ValidationEvent(findings []models.ValidationError) models.LifecycleEvent {
	if HasErrors(findings) {
		return models.EventValidationFailed
	}
	return models.EventValidationPassed
}

// PSVEvent picks the event implied by a new aggregate while PSV runs.
// ok is false when the aggregate does not move the provider.
func PSVEvent(overall models.OverallPSVStatus) (models.LifecycleEvent, bool) {
	switch overall {
	case models.PSVCompleted:
		return models.EventPSVCompleted, true
	case models.PSVIssuesFound:
		return models.EventPSVIssuesFound, true
	}
	return "", false
}

// statusConsistent reports whether a lifecycle status and a PSV aggregate may coexist
func statusConsistent(status models.ProviderStatus, overall models.OverallPSVStatus) bool {
	switch status {
	case models.StatusNew, models.StatusValidationInProgress, models.StatusValidationFailed, models.StatusSubmitted:
		return overall == models.PSVNotStarted
	case models.StatusPSVInProgress:
		return overall == models.PSVInProgress
	case models.StatusPSVFailed:
		// late results are recorded without leaving PSVFailed
		return overall != models.PSVNotStarted
	case models.StatusCommitteePending, models.StatusCredentialed, models.StatusRejected:
		return overall == models.PSVCompleted
	}
	return false
}
