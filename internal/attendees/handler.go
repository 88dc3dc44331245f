package attendees

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/occasio/backend/internal/events"
	"github.com/occasio/backend/internal/middleware"
	"github.com/occasio/backend/pkg/response"
)

// VerifyRequest is the body for POST /events/:id/verify-attendee.
type VerifyRequest struct {
	TicketCode string `json:"ticketCode" binding:"required"`
}

// Handler handles registration, ticket and check-in endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an attendee handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func parseID(c *gin.Context, param, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.BadRequest(c, msg)
		return uuid.Nil, false
	}
	return id, true
}

// selfOrAdmin resolves :userId and allows it only for the caller or an admin.
func selfOrAdmin(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := parseID(c, "userId", "invalid user id")
	if !ok {
		return uuid.Nil, false
	}
	actor := middleware.CurrentActor(c)
	if actor.UserID != userID && !actor.IsAdmin() {
		response.Forbidden(c, "You can only view your own tickets")
		return uuid.Nil, false
	}
	return userID, true
}

// Join handles POST /events/:id/join.
func (h *Handler) Join(c *gin.Context) {
	id, ok := parseID(c, "id", "invalid event id")
	if !ok {
		return
	}
	res, err := h.svc.Join(c.Request.Context(), id, middleware.CurrentActor(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Leave handles POST /events/:id/leave.
func (h *Handler) Leave(c *gin.Context) {
	id, ok := parseID(c, "id", "invalid event id")
	if !ok {
		return
	}
	msg, err := h.svc.Leave(c.Request.Context(), id, middleware.CurrentActor(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, response.Message{Message: msg})
}

// GetTicket handles GET /events/:id/ticket/:userId.
func (h *Handler) GetTicket(c *gin.Context) {
	id, ok := parseID(c, "id", "invalid event id")
	if !ok {
		return
	}
	userID, ok := selfOrAdmin(c)
	if !ok {
		return
	}
	t, err := h.svc.GetTicket(c.Request.Context(), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, t)
}

// ListTickets handles GET /tickets/:userId.
func (h *Handler) ListTickets(c *gin.Context) {
	userID, ok := selfOrAdmin(c)
	if !ok {
		return
	}
	list, err := h.svc.ListTickets(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Verify handles POST /events/:id/verify-attendee. Mounted behind events.RequireManager.
func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "ticketCode is required")
		return
	}
	e := events.FromContext(c)
	res, err := h.svc.VerifyAttendee(c.Request.Context(), e.ID, req.TicketCode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// ListByEvent handles GET /events/:id/attendees. Mounted behind events.RequireManager.
func (h *Handler) ListByEvent(c *gin.Context) {
	e := events.FromContext(c)
	list, err := h.svc.ListByEvent(c.Request.Context(), e.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}
