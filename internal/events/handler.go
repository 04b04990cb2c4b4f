package events

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akvora/backend/internal/identity"
	"github.com/akvora/backend/internal/middleware"
	"github.com/akvora/backend/internal/models"
	"github.com/akvora/backend/internal/notifications"
	"github.com/akvora/backend/internal/realtime"
	"github.com/akvora/backend/pkg/response"
	"github.com/akvora/backend/pkg/storage"
)

// Handler serves the event catalog and the participant workflow for free
// events. Paid workshop registrations go through the registrations package.
type Handler struct {
	repo     *Repository
	notes    *notifications.Repository
	notifier realtime.Notifier
	storage  *storage.S3 // nil when S3 is not configured
	logger   *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(repo *Repository, notes *notifications.Repository, notifier realtime.Notifier, s3 *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, notes: notes, notifier: notifier, storage: s3, logger: logger}
}

type eventRequest struct {
	Title            string     `json:"title" binding:"required"`
	Description      string     `json:"description"`
	Type             string     `json:"type" binding:"required"`
	Date             *time.Time `json:"date"`
	EndDate          *time.Time `json:"endDate"`
	Duration         string     `json:"duration"`
	Location         string     `json:"location"`
	IsOnline         bool       `json:"isOnline"`
	MeetingLink      string     `json:"meetingLink"`
	MaxParticipants  *int       `json:"maxParticipants"`
	Instructor       string     `json:"instructor"`
	InstructorBio    string     `json:"instructorBio"`
	ImageURL         string     `json:"imageUrl"`
	Tags             []string   `json:"tags"`
	Requirements     []string   `json:"requirements"`
	WhatYouWillLearn []string   `json:"whatYouWillLearn"`
	Price            float64    `json:"price"`
	UPIID            string     `json:"upiId"`
	PayeeName        string     `json:"payeeName"`
}

func (req *eventRequest) toModel(e *models.Event) {
	e.Title = req.Title
	e.Description = req.Description
	e.Type = models.EventType(req.Type)
	e.Date = req.Date
	e.EndDate = req.EndDate
	e.Duration = req.Duration
	e.Location = req.Location
	e.IsOnline = req.IsOnline
	e.MeetingLink = req.MeetingLink
	e.MaxParticipants = req.MaxParticipants
	e.Instructor = req.Instructor
	e.InstructorBio = req.InstructorBio
	e.ImageURL = req.ImageURL
	e.Tags = req.Tags
	e.Requirements = req.Requirements
	e.WhatYouWillLearn = req.WhatYouWillLearn
	e.Price = req.Price
	e.UPIID = req.UPIID
	e.PayeeName = req.PayeeName
}

// sanitize clears fields not meant for unauthenticated or unapproved readers.
func sanitize(e *models.Event) *models.Event {
	out := *e
	out.MeetingLink = ""
	return &out
}

// Create handles POST /api/admin/events.
func (h *Handler) Create(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "title and type are required")
		return
	}
	if !models.ValidEventType(req.Type) {
		response.BadRequest(c, "type must be workshop, webinar or internship")
		return
	}
	var e models.Event
	req.toModel(&e)
	if adminID := c.GetString(middleware.ContextUserID); adminID != "" {
		if id, err := uuid.Parse(adminID); err == nil {
			e.CreatedBy = &id
		}
	}
	if err := h.repo.Create(c.Request.Context(), &e); err != nil {
		h.logger.Error("create event failed", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	h.notifier.Emit(realtime.ChannelAdmin, realtime.EventStatsUpdated, realtime.StatsUpdatedPayload{
		Type: string(e.Type), Action: "created", EventID: e.ID,
	})
	response.Created(c, e)
}

// Update handles PUT /api/admin/events/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "title and type are required")
		return
	}
	if !models.ValidEventType(req.Type) {
		response.BadRequest(c, "type must be workshop, webinar or internship")
		return
	}
	e := models.Event{ID: id}
	req.toModel(&e)
	if err := h.repo.Update(c.Request.Context(), &e); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("update event failed", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to update event")
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /api/admin/events/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("delete event failed", zap.Error(err))
		response.Internal(c, "failed to delete event")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}

// List handles GET /api/events. Supports ?type=, ?status= and ?search=.
func (h *Handler) List(c *gin.Context) {
	f := ListFilter{
		Type:   c.Query("type"),
		Status: c.Query("status"),
		Search: c.Query("search"),
	}
	if f.Type != "" && !models.ValidEventType(f.Type) {
		response.BadRequest(c, "invalid event type")
		return
	}
	list, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Internal(c, "failed to fetch events")
		return
	}
	out := make([]*models.Event, 0, len(list))
	for i := range list {
		out = append(out, sanitize(&list[i]))
	}
	response.OK(c, out)
}

// ListByType handles GET /api/events/type/:type.
func (h *Handler) ListByType(c *gin.Context) {
	t := c.Param("type")
	if !models.ValidEventType(t) {
		response.BadRequest(c, "invalid event type")
		return
	}
	list, err := h.repo.List(c.Request.Context(), ListFilter{Type: t})
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Internal(c, "failed to fetch events")
		return
	}
	out := make([]*models.Event, 0, len(list))
	for i := range list {
		out = append(out, sanitize(&list[i]))
	}
	response.OK(c, out)
}

// DashboardPosts handles GET /api/events/dashboard-posts: upcoming and
// ongoing events across all types for the landing page.
func (h *Handler) DashboardPosts(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context(), ListFilter{})
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Internal(c, "failed to fetch events")
		return
	}
	out := make([]*models.Event, 0, len(list))
	for i := range list {
		if list[i].Status == LifecycleCompleted {
			continue
		}
		out = append(out, sanitize(&list[i]))
	}
	response.OK(c, out)
}

// Get handles GET /api/events/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("get event failed", zap.Error(err))
		response.Internal(c, "failed to fetch event")
		return
	}
	response.OK(c, sanitize(e))
}

// Register handles POST /api/events/:id/register: joins a free event as an
// approved participant. Paid workshops must go through the payment
// registration flow instead.
func (h *Handler) Register(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	user := identity.CurrentUser(c)

	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		response.Internal(c, "failed to fetch event")
		return
	}
	if !e.IsFree() {
		response.BadRequest(c, "this event requires payment; submit a registration with your payment reference")
		return
	}
	if e.Status == LifecycleCompleted {
		response.BadRequest(c, "this event has already ended")
		return
	}
	if e.MaxParticipants != nil && e.ParticipantCount >= *e.MaxParticipants {
		response.Conflict(c, "event is full")
		return
	}

	p, err := h.repo.AddParticipant(c.Request.Context(), id, user.ExternalID, user.Email, user.DisplayName(), models.StatusApproved)
	if err != nil {
		if errors.Is(err, ErrAlreadyRegistered) {
			response.Conflict(c, "already registered for this event")
			return
		}
		h.logger.Error("add participant failed", zap.Error(err))
		response.Internal(c, "failed to register")
		return
	}

	newPayload := realtime.RegistrationNewPayload{Type: string(e.Type), EventID: e.ID, Status: p.Status}
	newPayload.User.Name = user.DisplayName()
	newPayload.User.Email = user.Email
	newPayload.User.UserID = user.ExternalID
	newPayload.User.AkvoraID = user.AkvoraID
	h.notifier.Emit(realtime.ChannelAdmin, realtime.EventRegistrationNew, newPayload)
	h.notifier.Emit(realtime.ChannelAdmin, realtime.EventStatsUpdated, realtime.StatsUpdatedPayload{
		Type: string(e.Type), Action: "registered", EventID: e.ID,
	})
	h.notifier.Emit(realtime.UserChannel(user.ExternalID), realtime.EventRegistrationUpdated, realtime.RegistrationUpdatedPayload{
		EventID: e.ID, Status: p.Status, MeetingLink: e.MeetingLink,
		Message: "You are registered for " + e.Title,
	})

	response.Created(c, p)
}

// Unregister handles DELETE /api/events/:id/register.
func (h *Handler) Unregister(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	user := identity.CurrentUser(c)
	if err := h.repo.RemoveParticipant(c.Request.Context(), id, user.ExternalID); err != nil {
		if errors.Is(err, ErrParticipantNotFound) {
			response.NotFound(c, "not registered for this event")
			return
		}
		h.logger.Error("remove participant failed", zap.Error(err))
		response.Internal(c, "failed to unregister")
		return
	}
	h.notifier.Emit(realtime.ChannelAdmin, realtime.EventStatsUpdated, realtime.StatsUpdatedPayload{
		Type: "", Action: "unregistered", EventID: id,
	})
	response.OK(c, gin.H{"unregistered": true})
}

// MyEvents handles GET /api/events/my: the caller's webinar and internship
// participations with the hosting event. Meeting links show only on approved
// rows of non-completed events.
func (h *Handler) MyEvents(c *gin.Context) {
	user := identity.CurrentUser(c)
	parts, eventsByID, err := h.repo.ListParticipationForUser(c.Request.Context(), user.ExternalID,
		[]string{string(models.EventWebinar), string(models.EventInternship)})
	if err != nil {
		h.logger.Error("list participation failed", zap.Error(err))
		response.Internal(c, "failed to fetch events")
		return
	}
	type entry struct {
		Event       *models.Event       `json:"event"`
		Participant *models.Participant `json:"participation"`
	}
	out := make([]entry, 0, len(parts))
	for i := range parts {
		p := &parts[i]
		e := eventsByID[p.EventID]
		view := sanitize(e)
		if p.Status == models.StatusApproved {
			view.MeetingLink = e.MeetingLink
		}
		out = append(out, entry{Event: view, Participant: p})
	}
	response.OK(c, out)
}

// Participants handles GET /api/admin/events/:id/participants.
func (h *Handler) Participants(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	list, err := h.repo.ListParticipants(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("list participants failed", zap.Error(err))
		response.Internal(c, "failed to fetch participants")
		return
	}
	response.OK(c, list)
}

type participantStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// SetParticipantStatus handles PUT /api/admin/events/:id/participants/:userId/status.
// Any status may move to any other; rejection requires a reason.
func (h *Handler) SetParticipantStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userExternalID := c.Param("userId")
	var req participantStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status is required")
		return
	}

	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		response.Internal(c, "failed to fetch event")
		return
	}

	p, err := h.repo.SetParticipantStatus(c.Request.Context(), id, userExternalID, req.Status, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidStatus):
			response.BadRequest(c, "status must be pending, approved or rejected")
		case errors.Is(err, ErrReasonRequired):
			response.BadRequest(c, "rejection reason is required")
		case errors.Is(err, ErrParticipantNotFound):
			response.NotFound(c, "participant not found")
		default:
			h.logger.Error("set participant status failed", zap.Error(err))
			response.Internal(c, "failed to update participant")
		}
		return
	}

	payload := realtime.RegistrationUpdatedPayload{
		EventID: e.ID, Status: p.Status, RejectionReason: p.RejectionReason,
	}
	if p.Status == models.StatusApproved {
		payload.MeetingLink = e.MeetingLink
		payload.Message = "Your registration for " + e.Title + " was approved"
	}
	h.notifier.Emit(realtime.UserChannel(userExternalID), realtime.EventRegistrationUpdated, payload)

	note := &models.Notification{
		UserExternalID: userExternalID,
		RelatedEvent:   &e.ID,
	}
	switch p.Status {
	case models.StatusApproved:
		note.Kind = models.NotificationApproval
		note.Title = "Registration approved"
		note.Message = "Your registration for " + e.Title + " has been approved."
	case models.StatusRejected:
		note.Kind = models.NotificationRejection
		note.Title = "Registration rejected"
		note.Message = "Your registration for " + e.Title + " was rejected: " + p.RejectionReason
	default:
		note.Kind = models.NotificationRegistration
		note.Title = "Registration under review"
		note.Message = "Your registration for " + e.Title + " is pending review."
	}
	if err := h.notes.Create(c.Request.Context(), note); err != nil {
		h.logger.Warn("create notification failed", zap.Error(err))
	}

	response.OK(c, p)
}

// Stats handles GET /api/admin/stats.
func (h *Handler) Stats(c *gin.Context) {
	totalEvents, totalParticipants, byType, err := h.repo.DashboardStats(c.Request.Context())
	if err != nil {
		h.logger.Error("dashboard stats failed", zap.Error(err))
		response.Internal(c, "failed to fetch stats")
		return
	}
	response.OK(c, gin.H{
		"totalEvents":       totalEvents,
		"totalParticipants": totalParticipants,
		"byType":            byType,
	})
}

// UploadURL handles POST /api/admin/events/upload-url: a presigned S3 PUT for
// an event image. Returns 503 when object storage is not configured.
func (h *Handler) UploadURL(c *gin.Context) {
	if h.storage == nil {
		response.ServiceUnavailable(c, "object storage is not configured")
		return
	}
	var req struct {
		EventID     string `json:"eventId" binding:"required"`
		Filename    string `json:"filename" binding:"required"`
		ContentType string `json:"contentType"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "eventId and filename are required")
		return
	}
	if !storage.ValidateImageFileType(req.ContentType, req.Filename) {
		response.BadRequest(c, "only jpg, png and webp images are allowed")
		return
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(req.Filename)
	}
	key := storage.EventImageKey(req.EventID, req.Filename)
	url, err := h.storage.GeneratePresignedUploadURL(c.Request.Context(), h.storage.ImagesBucket(), key, contentType, h.storage.PresignExpire())
	if err != nil {
		h.logger.Error("presign upload failed", zap.Error(err))
		response.Internal(c, "failed to create upload url")
		return
	}
	response.OK(c, gin.H{
		"uploadUrl": url,
		"key":       key,
		"publicUrl": h.storage.PublicObjectURL(h.storage.ImagesBucket(), key),
	})
}
