package analytics

import (
	"github.com/gin-gonic/gin"

	"github.com/occasio/backend/internal/events"
	"github.com/occasio/backend/pkg/response"
)

// Handler handles GET /events/:id/stats.
type Handler struct {
	svc *Service
}

// NewHandler creates an analytics handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// EventStats handles GET /events/:id/stats. Manager access is enforced by events.RequireManager.
func (h *Handler) EventStats(c *gin.Context) {
	st, err := h.svc.EventStats(c.Request.Context(), events.FromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, st)
}
