package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies an event.
type EventType string

const (
	EventWorkshop   EventType = "workshop"
	EventWebinar    EventType = "webinar"
	EventInternship EventType = "internship"
)

// ValidEventType reports whether t is a known event type.
func ValidEventType(t string) bool {
	switch EventType(t) {
	case EventWorkshop, EventWebinar, EventInternship:
		return true
	}
	return false
}

// Event represents a workshop, webinar or internship listing.
// Lifecycle status (upcoming/ongoing/completed) is derived from the dates
// on every read and is never stored.
type Event struct {
	ID               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Type             EventType  `json:"type"`
	Date             *time.Time `json:"date,omitempty"`
	EndDate          *time.Time `json:"endDate,omitempty"`
	Duration         string     `json:"duration,omitempty"`
	Location         string     `json:"location,omitempty"`
	IsOnline         bool       `json:"isOnline"`
	MeetingLink      string     `json:"meetingLink,omitempty"`
	MaxParticipants  *int       `json:"maxParticipants,omitempty"`
	Instructor       string     `json:"instructor,omitempty"`
	InstructorBio    string     `json:"instructorBio,omitempty"`
	ImageURL         string     `json:"imageUrl,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	Requirements     []string   `json:"requirements,omitempty"`
	WhatYouWillLearn []string   `json:"whatYouWillLearn,omitempty"`
	Price            float64    `json:"price"`
	UPIID            string     `json:"upiId,omitempty"`
	PayeeName        string     `json:"payeeName,omitempty"`
	CreatedBy        *uuid.UUID `json:"createdBy,omitempty"`
	Status           string     `json:"status"` // derived lifecycle status, filled on read
	ParticipantCount int        `json:"participantCount"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// IsFree reports whether registration requires no payment.
func (e *Event) IsFree() bool { return e.Price <= 0 }

// Participant is a user's membership row for an event. Status defaults to
// approved so rows created before the approval workflow read as approved.
type Participant struct {
	ID              uuid.UUID `json:"id"`
	EventID         uuid.UUID `json:"eventId"`
	UserExternalID  string    `json:"userId"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"name"`
	Status          string    `json:"status"`
	RejectionReason string    `json:"rejectionReason,omitempty"`
	RegisteredAt    time.Time `json:"registeredAt"`
}
