package realtime

import "github.com/google/uuid"

// Channel names. Admin clients join ChannelAdmin; each user joins their own
// channel derived from the identity-provider subject.
const (
	ChannelAdmin = "admin"
)

// UserChannel returns the per-user channel name for an external identity.
func UserChannel(externalID string) string {
	return "user:" + externalID
}

// Event names pushed over the hub. The payload type for each name is fixed;
// nothing else may be emitted.
const (
	EventRegistrationNew     = "registration:new"
	EventRegistrationUpdated = "registration:status-updated"
	EventStatsUpdated        = "stats:updated"
)

// RegistrationNewPayload notifies admins of a new submission.
type RegistrationNewPayload struct {
	Type    string    `json:"type"` // event type: workshop, webinar, internship
	EventID uuid.UUID `json:"eventId"`
	User    struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		UserID   string `json:"userId"`
		AkvoraID string `json:"akvoraId,omitempty"`
	} `json:"user"`
	Status           string `json:"status"`
	PaymentReference string `json:"upiReference,omitempty"`
}

// RegistrationUpdatedPayload notifies a user that their registration moved.
type RegistrationUpdatedPayload struct {
	RegistrationID  *uuid.UUID `json:"registrationId,omitempty"`
	EventID         uuid.UUID  `json:"eventId"`
	Status          string     `json:"status"`
	PaymentStatus   string     `json:"paymentStatus,omitempty"`
	MeetingLink     string     `json:"meetingLink,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	Message         string     `json:"message,omitempty"`
}

// StatsUpdatedPayload nudges admin dashboards to refresh counts.
type StatsUpdatedPayload struct {
	Type    string    `json:"type"`
	Action  string    `json:"action,omitempty"`
	EventID uuid.UUID `json:"eventId"`
}

// Notifier is the push interface consumed by the approval flow. Delivery is
// best effort; implementations must never fail the caller.
type Notifier interface {
	Emit(channel, event string, payload interface{})
}

// NopNotifier discards all events. Used in tests and when the hub is disabled.
type NopNotifier struct{}

// Emit implements Notifier.
func (NopNotifier) Emit(channel, event string, payload interface{}) {}
