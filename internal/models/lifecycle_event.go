package models

// LifecycleEvent is something that happens to a provider and may move its status
type LifecycleEvent string

const (
	EventIntakeReceived   LifecycleEvent = "intake-received"
	EventValidationPassed LifecycleEvent = "validation-passed"
	EventValidationFailed LifecycleEvent = "validation-failed"
	EventRevalidate       LifecycleEvent = "revalidate"
	EventPSVDispatched    LifecycleEvent = "psv-dispatched"
	EventPSVRetried       LifecycleEvent = "psv-retried"
	EventPSVCompleted     LifecycleEvent = "psv-completed"
	EventPSVIssuesFound   LifecycleEvent = "psv-issues-found"
	EventApprove          LifecycleEvent = "approve"
	EventReject           LifecycleEvent = "reject"
	EventRequestInfo      LifecycleEvent = "request-info"

	// events that mutate a provider without a status change of their own
	EventEdit               LifecycleEvent = "edit"
	EventVerificationResult LifecycleEvent = "verification-result"
)
