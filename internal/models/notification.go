package models

import "time"

// NotificationSeverity classifies a notification for display
type NotificationSeverity string

const (
	NotificationInfo    NotificationSeverity = "info"
	NotificationSuccess NotificationSeverity = "success"
	NotificationWarning NotificationSeverity = "warning"
	NotificationError   NotificationSeverity = "error"
)

// Notification is a fire-and-forget message about provider progress
type Notification struct {
	ID         string               `json:"id"`
	Message    string               `json:"message"`
	Severity   NotificationSeverity `json:"severity"`
	Timestamp  time.Time            `json:"timestamp"`
	ProviderID string               `json:"providerId,omitempty"`
	Status     ProviderStatus       `json:"status,omitempty"`
}
