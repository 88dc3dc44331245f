package organizations

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/occasio/backend/internal/middleware"
	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/pkg/response"
)

// Handler handles organization HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an organizations handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreateRequest is the body for POST /organizations.
type CreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Website     string `json:"website"`
	Email       string `json:"email" binding:"omitempty,email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Logo        string `json:"logo"`
}

// UpdateRequest is the body for PATCH /organizations/:id.
type UpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Website     *string `json:"website"`
	Email       *string `json:"email" binding:"omitempty,email"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	Logo        *string `json:"logo"`
}

// VerifyRequest is the body for PATCH /organizations/:id/verify.
type VerifyRequest struct {
	Approved        *bool   `json:"approved" binding:"required"`
	RejectionReason *string `json:"rejectionReason"`
}

// AddMemberRequest is the body for POST /organizations/:id/members.
type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func orgID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /organizations. The caller becomes the primary owner.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	o, err := h.svc.Create(c.Request.Context(), middleware.CurrentActor(c).UserID, Profile(req))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, o)
}

// List handles GET /organizations?status&search (admin).
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), models.OrganizationStatus(c.Query("status")), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// ListPending handles GET /organizations/pending (admin).
func (h *Handler) ListPending(c *gin.Context) {
	list, err := h.svc.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// ListMine handles GET /organizations/mine.
func (h *Handler) ListMine(c *gin.Context) {
	list, err := h.svc.ListForUser(c.Request.Context(), middleware.CurrentActor(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /organizations/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}
	o, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, o)
}

// Update handles PATCH /organizations/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	o, err := h.svc.Update(c.Request.Context(), id, middleware.CurrentActor(c).UserID, UpdateInput(req))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, o)
}

// Verify handles PATCH /organizations/:id/verify (admin).
func (h *Handler) Verify(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "approved is required")
		return
	}
	o, err := h.svc.Verify(c.Request.Context(), id, middleware.CurrentActor(c).UserID, *req.Approved, req.RejectionReason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, o)
}

// Delete handles DELETE /organizations/:id (admin).
func (h *Handler) Delete(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, response.Message{Message: "Organization deleted successfully"})
}

// ListMembers handles GET /organizations/:id/members. Mounted behind RequireMember.
func (h *Handler) ListMembers(c *gin.Context) {
	id := c.MustGet(ContextOrganizationID).(uuid.UUID)
	list, err := h.svc.ListMembers(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// AddMember handles POST /organizations/:id/members.
func (h *Handler) AddMember(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "a valid email is required")
		return
	}
	m, err := h.svc.AddMember(c.Request.Context(), id, middleware.CurrentActor(c), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, m)
}
