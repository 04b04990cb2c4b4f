package registrations

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akvora/backend/internal/identity"
	"github.com/akvora/backend/pkg/response"
)

// Handler serves the paid-workshop registration flow.
type Handler struct {
	service *Service
	repo    *Repository
	logger  *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(service *Service, repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{service: service, repo: repo, logger: logger}
}

type submitRequest struct {
	EventID           string `json:"eventId" binding:"required"`
	NameOnCertificate string `json:"nameOnCertificate"`
	PaymentReference  string `json:"paymentReference"`
}

// Submit handles POST /api/registrations.
func (h *Handler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "eventId is required")
		return
	}
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	user := identity.CurrentUser(c)

	reg, err := h.service.Submit(c.Request.Context(), user, SubmitInput{
		EventID:           eventID,
		NameOnCertificate: req.NameOnCertificate,
		PaymentReference:  req.PaymentReference,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEventNotFound):
			response.NotFound(c, "event not found")
		case errors.Is(err, ErrEventEnded):
			response.BadRequest(c, "this event has already ended")
		case errors.Is(err, ErrNameRequired):
			response.BadRequest(c, "nameOnCertificate is required")
		case errors.Is(err, ErrInvalidReference):
			response.BadRequest(c, "payment reference must be 10-18 digits")
		case errors.Is(err, ErrAlreadyRegistered):
			response.Conflict(c, "you already have a registration for this event")
		case errors.Is(err, ErrReferenceUsed):
			response.Conflict(c, "this payment reference has already been used")
		default:
			h.logger.Error("submit registration failed", zap.Error(err))
			response.Internal(c, "failed to submit registration")
		}
		return
	}
	response.Created(c, reg)
}

// My handles GET /api/registrations/my: the caller's registrations with
// event summaries. Meeting links show only on approved registrations.
func (h *Handler) My(c *gin.Context) {
	user := identity.CurrentUser(c)
	list, err := h.repo.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("list registrations failed", zap.Error(err))
		response.Internal(c, "failed to fetch registrations")
		return
	}
	StripMeetingLinks(list)
	response.OK(c, list)
}

// History handles GET /api/registrations/history: the caller's combined
// participation feed across workshops, webinars and internships.
func (h *Handler) History(c *gin.Context) {
	user := identity.CurrentUser(c)
	list, err := h.repo.History(c.Request.Context(), user.ID, user.ExternalID)
	if err != nil {
		h.logger.Error("history failed", zap.Error(err))
		response.Internal(c, "failed to fetch history")
		return
	}
	for i := range list {
		item := &list[i]
		if item.RegistrationStatus != "approved" {
			item.MeetingLink = ""
		}
	}
	response.OK(c, list)
}

// ListForEvent handles GET /api/admin/registrations/event/:eventId with an
// optional ?status= filter.
func (h *Handler) ListForEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	status := c.Query("status")
	list, err := h.repo.ListForEvent(c.Request.Context(), eventID, status)
	if err != nil {
		h.logger.Error("list event registrations failed", zap.Error(err))
		response.Internal(c, "failed to fetch registrations")
		return
	}
	response.OK(c, list)
}

type statusRequest struct {
	Status       string `json:"status" binding:"required"`
	Reason       string `json:"reason"`
	AdminMessage string `json:"adminMessage"`
}

// SetStatus handles PUT /api/admin/registrations/:id/status.
func (h *Handler) SetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status is required")
		return
	}
	reg, err := h.service.SetStatus(c.Request.Context(), id, req.Status, req.Reason, req.AdminMessage)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "registration not found")
		case errors.Is(err, ErrInvalidStatus):
			response.BadRequest(c, "status must be pending, approved or rejected")
		case errors.Is(err, ErrReasonRequired):
			response.BadRequest(c, "rejection reason is required")
		default:
			h.logger.Error("set registration status failed", zap.Error(err))
			response.Internal(c, "failed to update registration")
		}
		return
	}
	response.OK(c, reg)
}

// Counts handles GET /api/admin/registrations/counts for the dashboard.
func (h *Handler) Counts(c *gin.Context) {
	counts, err := h.repo.CountByStatus(c.Request.Context())
	if err != nil {
		h.logger.Error("registration counts failed", zap.Error(err))
		response.Internal(c, "failed to fetch counts")
		return
	}
	response.OK(c, counts)
}
