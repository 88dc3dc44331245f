package organizations

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/occasio/backend/internal/middleware"
	"github.com/occasio/backend/pkg/response"
)

// ContextOrganizationID is the context key for the organization ID once access is enforced.
const ContextOrganizationID = "organization_id"

// RequireMember allows the request only for members of the organization in :id, or admins.
// Call after JWT.
func RequireMember(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid organization id")
			c.Abort()
			return
		}
		if _, err := svc.Get(c.Request.Context(), orgID); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		ok, err := svc.CanAccess(c.Request.Context(), orgID, middleware.CurrentActor(c))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if !ok {
			response.Forbidden(c, "You are not a member of this organization")
			c.Abort()
			return
		}
		c.Set(ContextOrganizationID, orgID)
		c.Next()
	}
}
