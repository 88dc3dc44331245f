package events

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/occasio/backend/internal/middleware"
	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/pkg/pagination"
	"github.com/occasio/backend/pkg/response"
	"github.com/occasio/backend/pkg/storage"
)

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	Title          string  `json:"title" binding:"required"`
	Description    string  `json:"description"`
	Location       string  `json:"location"`
	Category       string  `json:"category"`
	EventDate      string  `json:"event_date" binding:"required"`
	StartTime      string  `json:"start_time" binding:"required"`
	EndTime        *string `json:"end_time"`
	MaxAttendees   *int    `json:"max_attendees"`
	OrganizationID *string `json:"organization_id" binding:"omitempty,uuid"`
	Image          string  `json:"image"`
}

// UpdateRequest is the body for PATCH /events/:id. Status is changed only through cancel.
type UpdateRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Location     *string `json:"location"`
	Category     *string `json:"category"`
	EventDate    *string `json:"event_date"`
	StartTime    *string `json:"start_time"`
	EndTime      *string `json:"end_time"`
	MaxAttendees *int    `json:"max_attendees"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an event handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func eventID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	in := CreateInput{
		Title:        req.Title,
		Description:  req.Description,
		Location:     req.Location,
		Category:     req.Category,
		EventDate:    req.EventDate,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		MaxAttendees: req.MaxAttendees,
		Image:        req.Image,
	}
	if req.OrganizationID != nil && *req.OrganizationID != "" {
		orgID := uuid.MustParse(*req.OrganizationID)
		in.OrganizationID = &orgID
	}
	e, err := h.svc.Create(c.Request.Context(), middleware.CurrentActor(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, e)
}

// Get handles GET /events/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	e, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// List handles GET /events?page&limit&status&category&search.
func (h *Handler) List(c *gin.Context) {
	q := ListQuery{
		Status:   models.EventStatus(c.Query("status")),
		Category: c.Query("category"),
		Search:   c.Query("search"),
	}
	page, err := h.svc.List(c.Request.Context(), q, pagination.FromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, page)
}

// ListMine handles GET /me/events?type=joined|organized&status.
func (h *Handler) ListMine(c *gin.Context) {
	actor := middleware.CurrentActor(c)
	page, err := h.svc.ListForUser(c.Request.Context(), actor.UserID,
		Relation(c.Query("type")), models.EventStatus(c.Query("status")), pagination.FromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, page)
}

// Update handles PATCH /events/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, err := h.svc.Update(c.Request.Context(), id, middleware.CurrentActor(c), UpdateInput(req))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// Cancel handles POST /events/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	e, err := h.svc.Cancel(c.Request.Context(), id, middleware.CurrentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /events/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id, middleware.CurrentActor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, response.Message{Message: "Event deleted successfully"})
}

// UploadBanner handles POST /events/:id/banner (multipart form field "file").
func (h *Handler) UploadBanner(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxBannerSize+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "cannot read file")
		return
	}
	defer f.Close()

	e, err := h.svc.UploadBanner(c.Request.Context(), id, middleware.CurrentActor(c),
		fh.Header.Get("Content-Type"), fh.Filename, f, fh.Size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// PresignBannerRequest is the body for POST /events/:id/banner/presign.
type PresignBannerRequest struct {
	ContentType string `json:"content_type" binding:"required"`
}

// PresignBanner handles POST /events/:id/banner/presign.
func (h *Handler) PresignBanner(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	var req PresignBannerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	up, err := h.svc.PresignBanner(c.Request.Context(), id, middleware.CurrentActor(c), req.ContentType)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, up)
}

// SetBannerRequest is the body for PUT /events/:id/banner.
type SetBannerRequest struct {
	ImageURL string `json:"image_url" binding:"required"`
}

// SetBanner handles PUT /events/:id/banner after a pre-signed upload.
func (h *Handler) SetBanner(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	var req SetBannerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, err := h.svc.SetBanner(c.Request.Context(), id, middleware.CurrentActor(c), req.ImageURL)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// NotifyResponse is the body returned by POST /events/:id/notify-attendees.
type NotifyResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// NotifyAttendees handles POST /events/:id/notify-attendees.
func (h *Handler) NotifyAttendees(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	n, err := h.svc.NotifyAttendees(c.Request.Context(), id, middleware.CurrentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, NotifyResponse{Message: "Reminder emails queued", Count: n})
}
