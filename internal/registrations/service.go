package registrations

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akvora/backend/internal/events"
	"github.com/akvora/backend/internal/metrics"
	"github.com/akvora/backend/internal/models"
	"github.com/akvora/backend/internal/realtime"
	"github.com/akvora/backend/pkg/queue"
)

// Validation errors surfaced as 400s.
var (
	ErrInvalidReference = errors.New("payment reference must be 10-18 digits")
	ErrNameRequired     = errors.New("certificate name is required")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrReasonRequired   = errors.New("rejection reason is required")
	ErrEventNotFound    = errors.New("event not found")
	ErrEventEnded       = errors.New("event has already ended")
)

// referencePattern matches a UPI transaction reference: digits only, 10-18
// characters after whitespace is stripped.
var referencePattern = regexp.MustCompile(`^[0-9]{10,18}$`)

// NormalizeReference strips all whitespace from a user-entered reference.
func NormalizeReference(ref string) string {
	return strings.Join(strings.Fields(ref), "")
}

// Store is the persistence surface the service needs. *Repository satisfies
// it; tests use an in-memory fake.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	GetByUserAndEvent(ctx context.Context, userID, eventID uuid.UUID) (*models.Registration, error)
	ReferenceInUse(ctx context.Context, reference string, exclude uuid.UUID) (bool, error)
	Create(ctx context.Context, reg *models.Registration, seed participantSeed) error
	Resubmit(ctx context.Context, reg *models.Registration, seed participantSeed) error
	SetStatus(ctx context.Context, id uuid.UUID, status, reason, adminMessage string, seed participantSeed) (*models.Registration, error)
}

// EventGetter loads events for validation and notification text.
type EventGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// UserGetter loads registrants for admin transitions.
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// NotificationCreator persists in-app notifications. Failures are logged,
// never propagated.
type NotificationCreator interface {
	Create(ctx context.Context, n *models.Notification) error
}

// EmailEnqueuer hands notification emails to the background worker.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Service implements the registration approval workflow.
type Service struct {
	store    Store
	events   EventGetter
	users    UserGetter
	notes    NotificationCreator
	notifier realtime.Notifier
	emails   EmailEnqueuer // nil when Redis is not configured
	logger   *zap.Logger
}

// NewService creates a registrations service.
func NewService(store Store, eventGetter EventGetter, users UserGetter, notes NotificationCreator, notifier realtime.Notifier, emails EmailEnqueuer, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		events:   eventGetter,
		users:    users,
		notes:    notes,
		notifier: notifier,
		emails:   emails,
		logger:   logger,
	}
}

// SubmitInput is a user's registration submission.
type SubmitInput struct {
	EventID           uuid.UUID
	NameOnCertificate string
	PaymentReference  string
}

// freeReference generates an internal reference for free events so the
// uniqueness constraint holds without user input.
func freeReference() string {
	return fmt.Sprintf("FREE-%d", time.Now().UnixNano())
}

// Submit creates or resubmits a registration for the user. Free events are
// approved immediately with a generated reference. Paid events require a
// valid UPI reference and start pending. A rejected registration is
// overwritten in place; pending and approved ones conflict.
func (s *Service) Submit(ctx context.Context, user *models.User, in SubmitInput) (*models.Registration, error) {
	name := strings.TrimSpace(in.NameOnCertificate)
	if name == "" {
		name = user.CertificateName
	}
	if name == "" {
		return nil, ErrNameRequired
	}

	event, err := s.events.GetByID(ctx, in.EventID)
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if event.Status == events.LifecycleCompleted {
		return nil, ErrEventEnded
	}

	status := models.StatusPending
	reference := NormalizeReference(in.PaymentReference)
	if event.IsFree() {
		status = models.StatusApproved
		reference = freeReference()
	} else if !referencePattern.MatchString(reference) {
		return nil, ErrInvalidReference
	}

	seed := participantSeed{
		UserExternalID: user.ExternalID,
		Email:          user.Email,
		DisplayName:    user.DisplayName(),
	}

	existing, err := s.store.GetByUserAndEvent(ctx, user.ID, in.EventID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// Fast-fail on a taken reference before writing; the unique constraint
	// still arbitrates concurrent submissions of the same reference.
	if !event.IsFree() {
		exclude := uuid.Nil
		if existing != nil {
			exclude = existing.ID
		}
		used, err := s.store.ReferenceInUse(ctx, reference, exclude)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, ErrReferenceUsed
		}
	}

	var reg *models.Registration
	switch {
	case existing != nil && existing.Status == models.StatusRejected:
		existing.NameOnCertificate = name
		existing.PaymentReference = reference
		existing.Status = status
		if err := s.store.Resubmit(ctx, existing, seed); err != nil {
			return nil, err
		}
		reg = existing
	case existing != nil:
		return nil, ErrAlreadyRegistered
	default:
		reg = &models.Registration{
			UserID:            user.ID,
			EventID:           in.EventID,
			NameOnCertificate: name,
			PaymentReference:  reference,
			Status:            status,
		}
		if err := s.store.Create(ctx, reg, seed); err != nil {
			return nil, err
		}
	}

	metrics.RegistrationsSubmitted.WithLabelValues(string(event.Type), reg.Status).Inc()
	s.notifySubmitted(ctx, user, event, reg)
	return reg, nil
}

func (s *Service) notifySubmitted(ctx context.Context, user *models.User, event *models.Event, reg *models.Registration) {
	newPayload := realtime.RegistrationNewPayload{
		Type:             string(event.Type),
		EventID:          event.ID,
		Status:           reg.Status,
		PaymentReference: reg.PaymentReference,
	}
	newPayload.User.Name = user.DisplayName()
	newPayload.User.Email = user.Email
	newPayload.User.UserID = user.ExternalID
	newPayload.User.AkvoraID = user.AkvoraID
	s.notifier.Emit(realtime.ChannelAdmin, realtime.EventRegistrationNew, newPayload)
	s.notifier.Emit(realtime.ChannelAdmin, realtime.EventStatsUpdated, realtime.StatsUpdatedPayload{
		Type: string(event.Type), Action: "registered", EventID: event.ID,
	})

	userPayload := realtime.RegistrationUpdatedPayload{
		RegistrationID: &reg.ID,
		EventID:        event.ID,
		Status:         reg.Status,
	}
	if reg.Status == models.StatusApproved {
		userPayload.MeetingLink = event.MeetingLink
		userPayload.Message = "You are registered for " + event.Title
	} else {
		userPayload.Message = "Your payment for " + event.Title + " is being verified"
	}
	s.notifier.Emit(realtime.UserChannel(user.ExternalID), realtime.EventRegistrationUpdated, userPayload)

	note := &models.Notification{
		UserExternalID:      user.ExternalID,
		Kind:                models.NotificationRegistration,
		Title:               "Registration received",
		Message:             "We received your registration for " + event.Title + ".",
		RelatedEvent:        &event.ID,
		RelatedRegistration: &reg.ID,
	}
	if reg.Status == models.StatusPending {
		note.Message += " Your payment reference is being verified."
	}
	if err := s.notes.Create(ctx, note); err != nil {
		s.logger.Warn("create notification failed", zap.Error(err))
	}

	if s.emails != nil {
		err := s.emails.EnqueueEmail(ctx, queue.EmailPayload{
			EmailType:      "registration",
			EventID:        event.ID,
			RegistrationID: reg.ID,
			RecipientEmail: user.Email,
			Subject:        "Registration received: " + event.Title,
			BodyHTML:       registrationEmailBody(user.DisplayName(), event, reg),
		})
		if err != nil {
			s.logger.Warn("enqueue email failed", zap.Error(err))
		}
	}
}

// SetStatus applies an admin transition to a registration. Any of the three
// states may move to any other; a self-transition is an idempotent no-op.
// Rejection requires a non-empty reason; leaving rejected clears it. The
// participant roster moves in the same transaction as the status.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status, reason, adminMessage string) (*models.Registration, error) {
	if !models.ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	reason = strings.TrimSpace(reason)
	if status == models.StatusRejected && reason == "" {
		return nil, ErrReasonRequired
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}

	user, err := s.users.GetByID(ctx, current.UserID)
	if err != nil {
		return nil, fmt.Errorf("load registrant: %w", err)
	}
	seed := participantSeed{
		UserExternalID: user.ExternalID,
		Email:          user.Email,
		DisplayName:    user.DisplayName(),
	}

	reg, err := s.store.SetStatus(ctx, id, status, reason, adminMessage, seed)
	if err != nil {
		return nil, err
	}

	metrics.RegistrationTransitions.WithLabelValues(current.Status, status).Inc()

	event, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil {
		s.logger.Warn("load event for notification failed", zap.Error(err))
		return reg, nil
	}
	s.notifyTransition(ctx, user, event, reg)
	return reg, nil
}

func (s *Service) notifyTransition(ctx context.Context, user *models.User, event *models.Event, reg *models.Registration) {
	payload := realtime.RegistrationUpdatedPayload{
		RegistrationID:  &reg.ID,
		EventID:         event.ID,
		Status:          reg.Status,
		RejectionReason: reg.RejectionReason,
		Message:         reg.AdminMessage,
	}
	note := &models.Notification{
		UserExternalID:      user.ExternalID,
		RelatedEvent:        &event.ID,
		RelatedRegistration: &reg.ID,
	}
	emailType := "registration"
	switch reg.Status {
	case models.StatusApproved:
		payload.MeetingLink = event.MeetingLink
		payload.PaymentStatus = "verified"
		note.Kind = models.NotificationApproval
		note.Title = "Registration approved"
		note.Message = "Your registration for " + event.Title + " has been approved."
		emailType = "approval"
	case models.StatusRejected:
		payload.PaymentStatus = "failed"
		note.Kind = models.NotificationRejection
		note.Title = "Registration rejected"
		note.Message = "Your registration for " + event.Title + " was rejected: " + reg.RejectionReason
		emailType = "rejection"
	default:
		note.Kind = models.NotificationRegistration
		note.Title = "Registration under review"
		note.Message = "Your registration for " + event.Title + " is back under review."
	}

	s.notifier.Emit(realtime.UserChannel(user.ExternalID), realtime.EventRegistrationUpdated, payload)
	s.notifier.Emit(realtime.ChannelAdmin, realtime.EventStatsUpdated, realtime.StatsUpdatedPayload{
		Type: string(event.Type), Action: reg.Status, EventID: event.ID,
	})

	if err := s.notes.Create(ctx, note); err != nil {
		s.logger.Warn("create notification failed", zap.Error(err))
	}
	if s.emails != nil {
		err := s.emails.EnqueueEmail(ctx, queue.EmailPayload{
			EmailType:      emailType,
			EventID:        event.ID,
			RegistrationID: reg.ID,
			RecipientEmail: user.Email,
			Subject:        note.Title + ": " + event.Title,
			BodyHTML:       transitionEmailBody(user.DisplayName(), event, reg),
		})
		if err != nil {
			s.logger.Warn("enqueue email failed", zap.Error(err))
		}
	}
}

// StripMeetingLinks clears the event meeting link on every entry whose
// registration is not approved. The link is confidential until approval.
func StripMeetingLinks(list []models.RegistrationWithEvent) {
	now := time.Now()
	for i := range list {
		item := &list[i]
		item.Event.Status = events.LifecycleStatus(now, item.Event.Date, item.Event.EndDate)
		if item.Status != models.StatusApproved {
			item.Event.MeetingLink = ""
		}
	}
}

func registrationEmailBody(name string, event *models.Event, reg *models.Registration) string {
	if reg.Status == models.StatusApproved {
		return fmt.Sprintf("<p>Hi %s,</p><p>You are registered for <b>%s</b>. See you there!</p>", name, event.Title)
	}
	return fmt.Sprintf("<p>Hi %s,</p><p>We received your registration for <b>%s</b>. Your payment reference <b>%s</b> is being verified; you will be notified once it is approved.</p>",
		name, event.Title, reg.PaymentReference)
}

func transitionEmailBody(name string, event *models.Event, reg *models.Registration) string {
	switch reg.Status {
	case models.StatusApproved:
		return fmt.Sprintf("<p>Hi %s,</p><p>Your registration for <b>%s</b> has been approved.</p>", name, event.Title)
	case models.StatusRejected:
		return fmt.Sprintf("<p>Hi %s,</p><p>Your registration for <b>%s</b> was rejected.</p><p>Reason: %s</p><p>You can submit a new registration with a corrected payment reference.</p>",
			name, event.Title, reg.RejectionReason)
	default:
		return fmt.Sprintf("<p>Hi %s,</p><p>Your registration for <b>%s</b> is back under review.</p>", name, event.Title)
	}
}
