package models

import (
	"time"

	"github.com/google/uuid"
)

// Certificate records issuance of a completion certificate for an approved
// workshop registration. The PDF lives in object storage under ObjectKey.
type Certificate struct {
	ID             uuid.UUID  `json:"id"`
	RegistrationID uuid.UUID  `json:"registrationId"`
	Serial         string     `json:"serial"`
	ObjectKey      string     `json:"-"`
	IssuedBy       *uuid.UUID `json:"issuedBy,omitempty"`
	IssuedAt       time.Time  `json:"issuedAt"`
}
