package events

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/occasio/backend/internal/middleware"
	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/pkg/response"
)

// ContextEvent is the gin context key for the event loaded by RequireManager.
const ContextEvent = "event"

// RequireManager allows the request only when the caller manages the event in :id
// (individual organizer, organization member or admin). Call after JWT.
func RequireManager(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid event id")
			c.Abort()
			return
		}
		e, err := svc.ManagedEvent(c.Request.Context(), id, middleware.CurrentActor(c))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextEvent, e)
		c.Next()
	}
}

// FromContext returns the event loaded by RequireManager.
func FromContext(c *gin.Context) *models.Event {
	return c.MustGet(ContextEvent).(*models.Event)
}
