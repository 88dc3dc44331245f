package auth

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/pkg/response"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// EmailRequest is the body for POST /auth/send-otp and /auth/forgot-password.
type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// VerifyOTPRequest is the body for POST /auth/verify-otp.
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

// TokenRequest is the body for POST /auth/verify-reset-token.
type TokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// ResetPasswordRequest is the body for PATCH /auth/reset-password.
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// CreateUserRequest is the body for POST /users.
type CreateUserRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Role      string `json:"role" binding:"omitempty,oneof=user admin"`
}

// UpdateUserRequest is the body for PATCH /users/:id.
type UpdateUserRequest struct {
	Email     *string `json:"email" binding:"omitempty,email"`
	Password  *string `json:"password" binding:"omitempty,min=6"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      *string `json:"role" binding:"omitempty,oneof=user admin"`
}

// ResetTokenResponse is returned by POST /auth/verify-reset-token.
type ResetTokenResponse struct {
	Valid bool   `json:"valid"`
	Email string `json:"email"`
}

// Handler handles auth and user admin HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return false
	}
	return true
}

func message(c *gin.Context, err error, msg string) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, response.Message{Message: msg})
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bind(c, &req) {
		return
	}
	sess, err := h.svc.Register(c.Request.Context(), RegisterInput(req))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sess)
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}
	sess, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sess)
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	u, err := h.svc.Me(c.Request.Context(), c.MustGet(ContextUserID).(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, u.ToPublic())
}

// SendOTP handles POST /auth/send-otp.
func (h *Handler) SendOTP(c *gin.Context) {
	var req EmailRequest
	if !bind(c, &req) {
		return
	}
	message(c, h.svc.SendOTP(c.Request.Context(), req.Email), "OTP sent successfully to your email")
}

// VerifyOTP handles POST /auth/verify-otp.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if !bind(c, &req) {
		return
	}
	message(c, h.svc.VerifyOTP(c.Request.Context(), req.Email, req.Code), "OTP verified successfully")
}

// ForgotPassword handles POST /auth/forgot-password.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if !bind(c, &req) {
		return
	}
	message(c, h.svc.ForgotPassword(c.Request.Context(), req.Email), "Password reset link sent to your email")
}

// VerifyResetToken handles POST /auth/verify-reset-token.
func (h *Handler) VerifyResetToken(c *gin.Context) {
	var req TokenRequest
	if !bind(c, &req) {
		return
	}
	email, err := h.svc.VerifyResetToken(c.Request.Context(), req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ResetTokenResponse{Valid: true, Email: email})
}

// ResetPassword handles PATCH /auth/reset-password.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bind(c, &req) {
		return
	}
	message(c, h.svc.ResetPassword(c.Request.Context(), req.Token, req.NewPassword), "Password reset successfully")
}

// List handles GET /users?search&role&isActive (admin).
func (h *Handler) List(c *gin.Context) {
	f := ListFilter{Search: c.Query("search"), Role: models.Role(c.Query("role"))}
	if v := c.Query("isActive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(c, "isActive must be true or false")
			return
		}
		f.IsActive = &b
	}
	list, err := h.svc.ListUsers(c.Request.Context(), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Create handles POST /users (admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateUserRequest
	if !bind(c, &req) {
		return
	}
	u, err := h.svc.CreateUser(c.Request.Context(), CreateUserInput{
		Email: req.Email, Password: req.Password, FirstName: req.FirstName, LastName: req.LastName,
		Role: models.Role(req.Role),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, u.ToPublic())
}

func userID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return uuid.Nil, false
	}
	return id, true
}

// Update handles PATCH /users/:id (admin).
func (h *Handler) Update(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !bind(c, &req) {
		return
	}
	in := UpdateUserInput{Email: req.Email, Password: req.Password, FirstName: req.FirstName, LastName: req.LastName}
	if req.Role != nil {
		r := models.Role(*req.Role)
		in.Role = &r
	}
	u, err := h.svc.UpdateUser(c.Request.Context(), id, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, u.ToPublic())
}

// Archive handles PATCH /users/:id/archive (admin).
func (h *Handler) Archive(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	message(c, h.svc.Archive(c.Request.Context(), id), "User archived successfully")
}

// Restore handles PATCH /users/:id/restore (admin).
func (h *Handler) Restore(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	message(c, h.svc.Restore(c.Request.Context(), id), "User restored successfully")
}
