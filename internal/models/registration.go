package models

import (
	"time"

	"github.com/google/uuid"
)

// Registration status values. All six transitions between distinct states
// are legal; an admin may reset any registration back to pending.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ValidStatus reports whether s is a known registration status.
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Registration is a user's submitted request to join a paid workshop,
// verified manually against the UPI payment reference.
type Registration struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"userId"`
	EventID           uuid.UUID  `json:"eventId"`
	NameOnCertificate string     `json:"nameOnCertificate"`
	PaymentReference  string     `json:"paymentReference"`
	Status            string     `json:"status"`
	RejectionReason   string     `json:"rejectionReason,omitempty"`
	RejectedAt        *time.Time `json:"rejectedAt,omitempty"`
	AdminMessage      string     `json:"adminMessage,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// RegistrationWithEvent joins a registration with the minimal event fields
// shown on the user's own list. MeetingLink is cleared unless the
// registration is approved.
type RegistrationWithEvent struct {
	Registration
	Event struct {
		ID          uuid.UUID  `json:"id"`
		Title       string     `json:"title"`
		Type        EventType  `json:"type"`
		Date        *time.Time `json:"date,omitempty"`
		EndDate     *time.Time `json:"endDate,omitempty"`
		Status      string     `json:"status"`
		ImageURL    string     `json:"imageUrl,omitempty"`
		Price       float64    `json:"price"`
		MeetingLink string     `json:"meetingLink,omitempty"`
	} `json:"event"`
}

// RegistrationWithUser joins a registration with the registrant's identity
// for the admin review list.
type RegistrationWithUser struct {
	Registration
	User struct {
		FirstName       string `json:"firstName"`
		LastName        string `json:"lastName"`
		Email           string `json:"email"`
		AkvoraID        string `json:"akvoraId,omitempty"`
		ExternalID      string `json:"externalId,omitempty"`
		CertificateName string `json:"certificateName,omitempty"`
	} `json:"user"`
}

// HistoryItem is one entry in a user's participation feed, normalized
// across workshop registrations and webinar/internship participant rows.
type HistoryItem struct {
	ID                 uuid.UUID  `json:"id"`
	Title              string     `json:"title"`
	Type               EventType  `json:"type"`
	Status             string     `json:"status"` // derived lifecycle status
	Date               *time.Time `json:"date,omitempty"`
	EndDate            *time.Time `json:"endDate,omitempty"`
	ImageURL           string     `json:"imageUrl,omitempty"`
	Instructor         string     `json:"instructor,omitempty"`
	MeetingLink        string     `json:"meetingLink,omitempty"`
	RegisteredAt       *time.Time `json:"registeredAt,omitempty"`
	RegistrationStatus string     `json:"registrationStatus"`
}
