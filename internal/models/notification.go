package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification kinds.
const (
	NotificationRegistration = "registration"
	NotificationApproval     = "approval"
	NotificationRejection    = "rejection"
	NotificationCertificate  = "certificate"
	NotificationAnnouncement = "announcement"
)

// Notification is a persisted in-app notification for a user.
type Notification struct {
	ID                  uuid.UUID  `json:"id"`
	UserExternalID      string     `json:"userId"`
	Kind                string     `json:"kind"`
	Title               string     `json:"title"`
	Message             string     `json:"message"`
	RelatedEvent        *uuid.UUID `json:"relatedEvent,omitempty"`
	RelatedRegistration *uuid.UUID `json:"relatedRegistration,omitempty"`
	URL                 string     `json:"url,omitempty"`
	Read                bool       `json:"read"`
	CreatedAt           time.Time  `json:"createdAt"`
}
