package emaillogs

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/occasio/backend/internal/events"
	"github.com/occasio/backend/pkg/response"
)

// Handler handles email log HTTP endpoints. Routes are mounted behind events.RequireManager.
type Handler struct {
	svc *Service
}

// NewHandler creates an email logs handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ListByEvent handles GET /events/:id/emails.
func (h *Handler) ListByEvent(c *gin.Context) {
	logs, err := h.svc.ListByEvent(c.Request.Context(), events.FromContext(c).ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, logs)
}

// ResendRequest is the body for POST /events/:id/emails/resend.
type ResendRequest struct {
	EmailLogID string `json:"email_log_id" binding:"required,uuid"`
}

// Resend handles POST /events/:id/emails/resend.
func (h *Handler) Resend(c *gin.Context) {
	var body ResendRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "email_log_id required")
		return
	}
	l, err := h.svc.Resend(c.Request.Context(), events.FromContext(c).ID, uuid.MustParse(body.EmailLogID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, l)
}
