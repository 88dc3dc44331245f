package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/occasio/backend/internal/auth"
	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = auth.ContextUserID
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// TokenValidator validates a bearer token.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// JWT returns a middleware that validates the Authorization bearer token and sets user claims in context.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		authenticate(c, validator, parts[1])
	}
}

// JWTQuery is JWT for websocket upgrades, where browsers cannot set headers: the token comes from ?token=.
func JWTQuery(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			response.Unauthorized(c, "missing token")
			c.Abort()
			return
		}
		authenticate(c, validator, token)
	}
}

func authenticate(c *gin.Context, validator TokenValidator, token string) {
	claims, err := validator.Validate(token)
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		c.Abort()
		return
	}
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUserRole, claims.Role)
	c.Set(ContextUserEmail, claims.Email)
	c.Next()
}

// CurrentActor returns the authenticated caller. Call only behind JWT.
func CurrentActor(c *gin.Context) models.Actor {
	return models.Actor{
		UserID: c.MustGet(ContextUserID).(uuid.UUID),
		Email:  c.GetString(ContextUserEmail),
		Role:   models.Role(c.GetString(ContextUserRole)),
	}
}
