package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Subject prefixes used by the coordination platform.
const (
	SubjectStatusPrefix      = "coordination.status"
	SubjectDonorNotifyPrefix = "donors.notify"
	SubjectRunLifecycle      = "coordination.runs"
)

// StatusSubject returns the status subject for one request.
func StatusSubject(providerID, requestID string) string {
	return SubjectStatusPrefix + "." + providerID + "." + requestID
}

// StatusWildcard matches every request's status subject.
func StatusWildcard() string {
	return SubjectStatusPrefix + ".>"
}

// DonorNotifySubject returns the notification subject for one donor.
func DonorNotifySubject(donorID string) string {
	return SubjectDonorNotifyPrefix + "." + donorID
}

// Run lifecycle states published on SubjectRunLifecycle.
const (
	RunStarted = "started"
	RunStopped = "stopped"
)

// StatusEvent is a human-readable progress emission for one request.
type StatusEvent struct {
	ID         uuid.UUID `json:"id"`
	ProviderID string    `json:"provider_id"`
	RequestID  string    `json:"request_id"`
	Phase      string    `json:"phase"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// DonorNotificationEvent asks the delivery layer to push a notification
// to one donor. Delivery internals (FCM and friends) live behind the
// subject, not here.
type DonorNotificationEvent struct {
	ID         uuid.UUID         `json:"id"`
	DonorID    string            `json:"donor_id"`
	ProviderID string            `json:"provider_id"`
	RequestID  string            `json:"request_id"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// RunLifecycleEvent announces a coordination run starting or stopping.
type RunLifecycleEvent struct {
	SessionID  string    `json:"session_id"`
	ProviderID string    `json:"provider_id"`
	RequestID  string    `json:"request_id"`
	State      string    `json:"state"`
	Timestamp  time.Time `json:"timestamp"`
}
