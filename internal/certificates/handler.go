package certificates

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akvora/backend/internal/identity"
	"github.com/akvora/backend/internal/metrics"
	"github.com/akvora/backend/internal/middleware"
	"github.com/akvora/backend/internal/models"
	"github.com/akvora/backend/internal/notifications"
	"github.com/akvora/backend/internal/realtime"
	"github.com/akvora/backend/internal/registrations"
	"github.com/akvora/backend/internal/users"
	"github.com/akvora/backend/pkg/response"
	"github.com/akvora/backend/pkg/storage"
)

// Handler issues and serves completion certificates.
type Handler struct {
	repo     *Repository
	regs     *registrations.Repository
	users    *users.Repository
	notes    *notifications.Repository
	notifier realtime.Notifier
	storage  *storage.S3 // nil when S3 is not configured
	logger   *zap.Logger
}

// NewHandler creates a certificates handler.
func NewHandler(repo *Repository, regs *registrations.Repository, userRepo *users.Repository, notes *notifications.Repository, notifier realtime.Notifier, s3 *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{
		repo:     repo,
		regs:     regs,
		users:    userRepo,
		notes:    notes,
		notifier: notifier,
		storage:  s3,
		logger:   logger,
	}
}

type issueRequest struct {
	RegistrationID string `json:"registrationId" binding:"required"`
}

// Issue handles POST /api/admin/certificates: issues a certificate for an
// approved registration and returns a presigned PUT URL for the PDF.
func (h *Handler) Issue(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "registrationId is required")
		return
	}
	registrationID, err := uuid.Parse(req.RegistrationID)
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}

	reg, err := h.regs.GetByID(c.Request.Context(), registrationID)
	if err != nil {
		if errors.Is(err, registrations.ErrNotFound) {
			response.NotFound(c, "registration not found")
			return
		}
		response.Internal(c, "failed to fetch registration")
		return
	}
	if reg.Status != models.StatusApproved {
		response.BadRequest(c, "certificates can only be issued for approved registrations")
		return
	}

	serial, err := NewSerial()
	if err != nil {
		response.Internal(c, "failed to generate serial")
		return
	}
	cert := &models.Certificate{
		RegistrationID: registrationID,
		Serial:         serial,
		ObjectKey:      storage.CertificateKey(registrationID.String(), serial),
	}
	if adminID := c.GetString(middleware.ContextUserID); adminID != "" {
		if id, err := uuid.Parse(adminID); err == nil {
			cert.IssuedBy = &id
		}
	}
	if err := h.repo.Create(c.Request.Context(), cert); err != nil {
		if errors.Is(err, ErrAlreadyIssued) {
			response.Conflict(c, "certificate already issued for this registration")
			return
		}
		h.logger.Error("issue certificate failed", zap.Error(err))
		response.Internal(c, "failed to issue certificate")
		return
	}
	metrics.CertificatesIssued.Inc()
	h.notifier.Emit(realtime.ChannelAdmin, realtime.EventStatsUpdated, realtime.StatsUpdatedPayload{
		Action: "certificate-issued", EventID: reg.EventID,
	})

	data := gin.H{"certificate": cert}
	if h.storage != nil {
		uploadURL, err := h.storage.GeneratePresignedUploadURL(c.Request.Context(),
			h.storage.CertificatesBucket(), cert.ObjectKey, "application/pdf", h.storage.PresignExpire())
		if err != nil {
			h.logger.Warn("presign certificate upload failed", zap.Error(err))
		} else {
			data["uploadUrl"] = uploadURL
		}
	}

	if user, err := h.users.GetByID(c.Request.Context(), reg.UserID); err == nil {
		note := &models.Notification{
			UserExternalID:      user.ExternalID,
			Kind:                models.NotificationCertificate,
			Title:               "Certificate issued",
			Message:             "Your certificate " + serial + " is ready to download.",
			RelatedRegistration: &registrationID,
		}
		if err := h.notes.Create(c.Request.Context(), note); err != nil {
			h.logger.Warn("create notification failed", zap.Error(err))
		}
	}

	response.Created(c, data)
}

// My handles GET /api/certificates/my: the caller's certificates with
// presigned download URLs.
func (h *Handler) My(c *gin.Context) {
	user := identity.CurrentUser(c)
	list, err := h.repo.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("list certificates failed", zap.Error(err))
		response.Internal(c, "failed to fetch certificates")
		return
	}

	type entry struct {
		CertificateDetail
		DownloadURL string `json:"downloadUrl,omitempty"`
	}
	out := make([]entry, 0, len(list))
	for _, d := range list {
		e := entry{CertificateDetail: d}
		if h.storage != nil {
			url, err := h.storage.GeneratePresignedDownloadURL(c.Request.Context(),
				h.storage.CertificatesBucket(), d.ObjectKey, h.storage.PresignExpire())
			if err != nil {
				h.logger.Warn("presign certificate download failed", zap.Error(err), zap.String("serial", d.Serial))
			} else {
				e.DownloadURL = url
			}
		}
		out = append(out, e)
	}
	response.OK(c, out)
}

// DownloadURL handles GET /api/certificates/:id/download-url: a presigned
// GET for the caller's own certificate PDF.
func (h *Handler) DownloadURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid certificate id")
		return
	}
	user := identity.CurrentUser(c)
	cert, err := h.repo.GetOwned(c.Request.Context(), id, user.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "certificate not found")
			return
		}
		h.logger.Error("get certificate failed", zap.Error(err))
		response.Internal(c, "failed to fetch certificate")
		return
	}
	if h.storage == nil {
		response.ServiceUnavailable(c, "object storage is not configured")
		return
	}
	url, err := h.storage.GeneratePresignedDownloadURL(c.Request.Context(),
		h.storage.CertificatesBucket(), cert.ObjectKey, h.storage.PresignExpire())
	if err != nil {
		h.logger.Error("presign certificate download failed", zap.Error(err))
		response.Internal(c, "failed to create download url")
		return
	}
	response.OK(c, gin.H{"downloadUrl": url, "serial": cert.Serial})
}

// Verify handles GET /api/certificates/verify/:serial: the public
// verification view. No download URL is exposed here.
func (h *Handler) Verify(c *gin.Context) {
	serial := c.Param("serial")
	detail, err := h.repo.DetailBySerial(c.Request.Context(), serial)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "certificate not found")
			return
		}
		h.logger.Error("verify certificate failed", zap.Error(err))
		response.Internal(c, "failed to verify certificate")
		return
	}
	response.OK(c, gin.H{
		"serial":        detail.Serial,
		"recipientName": detail.RecipientName,
		"eventTitle":    detail.EventTitle,
		"eventType":     detail.EventType,
		"eventDate":     detail.EventDate,
		"issuedAt":      detail.IssuedAt,
		"valid":         true,
	})
}

// Revoke handles DELETE /api/admin/certificates/:id. The stored PDF is
// removed best effort.
func (h *Handler) Revoke(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid certificate id")
		return
	}
	cert, err := h.repo.Delete(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "certificate not found")
			return
		}
		h.logger.Error("revoke certificate failed", zap.Error(err))
		response.Internal(c, "failed to revoke certificate")
		return
	}
	if h.storage != nil {
		if err := h.storage.DeleteCertificate(c.Request.Context(), cert.ObjectKey); err != nil {
			h.logger.Warn("delete certificate object failed", zap.Error(err), zap.String("key", cert.ObjectKey))
		}
	}
	response.OK(c, gin.H{"revoked": true})
}
