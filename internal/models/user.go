package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Account status values. Blocked users keep their data but cannot act;
// deleted users are soft-deleted and never resolved by the identity layer.
const (
	AccountActive  = "ACTIVE"
	AccountBlocked = "BLOCKED"
	AccountDeleted = "DELETED"
)

// User represents a platform user. ExternalID is the identity-provider
// subject; it is empty for password-only admin accounts.
type User struct {
	ID              uuid.UUID `json:"id"`
	ExternalID      string    `json:"externalId,omitempty"`
	AkvoraID        string    `json:"akvoraId,omitempty"`
	Email           string    `json:"email"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	Phone           string    `json:"phone,omitempty"`
	CertificateName string    `json:"certificateName,omitempty"`
	AvatarURL       string    `json:"avatarUrl,omitempty"`
	Role            Role      `json:"role"`
	Password        string    `json:"-"`
	Status          string    `json:"status"`
	BlockReason     string    `json:"blockReason,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// DisplayName returns the name shown on participant lists and notifications.
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return "User"
	}
	return name
}
