package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/pkg/utils"
)

// UserStore is the user persistence used by Service.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, f ListFilter) ([]models.User, error)
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
}

// Codes stores short-lived OTP and reset codes.
type Codes interface {
	SaveOTP(ctx context.Context, email, code string, ttl time.Duration) error
	ConsumeOTP(ctx context.Context, email, code string) (bool, error)
	MarkVerified(ctx context.Context, email string, ttl time.Duration) error
	IsVerified(ctx context.Context, email string) (bool, error)
	ClearVerified(ctx context.Context, email string) error
	SaveResetToken(ctx context.Context, token, email string, ttl time.Duration) error
	ResetEmail(ctx context.Context, token string) (string, error)
	DeleteResetToken(ctx context.Context, token string) error
}

// Mail sends account emails.
type Mail interface {
	OTP(ctx context.Context, email, code string, ttl time.Duration) error
	PasswordReset(ctx context.Context, u *models.User, link string, ttl time.Duration) error
}

// TokenIssuer issues access tokens.
type TokenIssuer interface {
	Generate(userID uuid.UUID, email string, role models.Role) (string, error)
}

// Options configures the account flows.
type Options struct {
	RequireEmailOTP bool
	OTPTTL          time.Duration
	OTPVerifiedTTL  time.Duration
	ResetTTL        time.Duration
	FrontendURL     string
}

func (o *Options) defaults() {
	if o.OTPTTL <= 0 {
		o.OTPTTL = 10 * time.Minute
	}
	if o.OTPVerifiedTTL <= 0 {
		o.OTPVerifiedTTL = 30 * time.Minute
	}
	if o.ResetTTL <= 0 {
		o.ResetTTL = 30 * time.Minute
	}
	if o.FrontendURL == "" {
		o.FrontendURL = "http://localhost:3000"
	}
}

var (
	errInvalidCredentials = models.Unauthorized("Invalid email or password")
	errArchived           = models.Unauthorized("Your account has been archived. Please contact support.")
	errOTPRequired        = models.Invalid("Please verify your email with OTP first. OTP verification expires after 30 minutes.")
	errInvalidOTP         = models.Invalid("Invalid or expired OTP code")
	errInvalidReset       = models.Invalid("Invalid or expired reset token")
	errEmailExists        = models.Conflict("An account with this email address already exists. Please sign in instead.")
)

// Service implements registration, login, OTP, password reset and admin user management.
type Service struct {
	users  UserStore
	codes  Codes
	mail   Mail
	tokens TokenIssuer
	opts   Options
	logger *zap.Logger
}

// NewService creates an auth service.
func NewService(users UserStore, codes Codes, mail Mail, tokens TokenIssuer, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.defaults()
	return &Service{users: users, codes: codes, mail: mail, tokens: tokens, opts: opts, logger: logger}
}

// Session is a signed-in user.
type Session struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// RegisterInput is a self sign-up.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

func isNotFound(err error) bool { return errors.Is(err, models.ErrNotFound) }

func (s *Service) emailTaken(ctx context.Context, email string) (bool, error) {
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// Register creates a user account with the user role and signs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email := normEmail(in.Email)
	taken, err := s.emailTaken(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errEmailExists
	}
	if s.opts.RequireEmailOTP {
		ok, err := s.codes.IsVerified(ctx, email)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errOTPRequired
		}
	}

	u, err := s.newUser(email, in.Password, in.FirstName, in.LastName, models.RoleUser)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	if s.opts.RequireEmailOTP {
		if err := s.codes.ClearVerified(ctx, email); err != nil {
			s.logger.Warn("clear otp verification", zap.Error(err))
		}
	}
	s.logger.Info("user registered", zap.String("user_id", u.ID.String()))
	return s.session(u)
}

func (s *Service) newUser(email, password, first, last string, role models.Role) (*models.User, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &models.User{
		Email:     email,
		Password:  hash,
		FirstName: strings.TrimSpace(first),
		LastName:  strings.TrimSpace(last),
		Role:      role,
		IsActive:  true,
	}, nil
}

func (s *Service) session(u *models.User) (*Session, error) {
	token, err := s.tokens.Generate(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Session{Token: token, User: u.ToPublic()}, nil
}

// Login checks credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if isNotFound(err) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, errArchived
	}
	if !utils.CheckPassword(password, u.Password) {
		return nil, errInvalidCredentials
	}
	return s.session(u)
}

// Me returns the caller's profile.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// SendOTP emails a fresh verification code to an address that has no account yet.
func (s *Service) SendOTP(ctx context.Context, email string) error {
	email = normEmail(email)
	taken, err := s.emailTaken(ctx, email)
	if err != nil {
		return err
	}
	if taken {
		return errEmailExists
	}
	code, err := NewOTPCode()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	if err := s.codes.SaveOTP(ctx, email, code, s.opts.OTPTTL); err != nil {
		return fmt.Errorf("save otp: %w", err)
	}
	if err := s.mail.OTP(ctx, email, code, s.opts.OTPTTL); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	return nil
}

// VerifyOTP checks a code and marks the email verified for registration.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) error {
	email = normEmail(email)
	ok, err := s.codes.ConsumeOTP(ctx, email, strings.TrimSpace(code))
	if err != nil {
		return err
	}
	if !ok {
		return errInvalidOTP
	}
	return s.codes.MarkVerified(ctx, email, s.opts.OTPVerifiedTTL)
}

// ForgotPassword emails a password reset link.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if isNotFound(err) {
		return models.Invalid("No account found with this email address")
	}
	if err != nil {
		return err
	}
	token, err := NewResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.codes.SaveResetToken(ctx, token, u.Email, s.opts.ResetTTL); err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}
	link := strings.TrimRight(s.opts.FrontendURL, "/") + "/forgot-password/reset?token=" + token
	if err := s.mail.PasswordReset(ctx, u, link, s.opts.ResetTTL); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// VerifyResetToken returns the email a valid reset token belongs to.
func (s *Service) VerifyResetToken(ctx context.Context, token string) (string, error) {
	email, err := s.codes.ResetEmail(ctx, token)
	if err != nil {
		return "", err
	}
	if email == "" {
		return "", errInvalidReset
	}
	return email, nil
}

// ResetPassword sets a new password using a reset token. The token is single use.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	email, err := s.VerifyResetToken(ctx, token)
	if err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	if err := s.codes.DeleteResetToken(ctx, token); err != nil {
		s.logger.Warn("delete reset token", zap.Error(err))
	}
	return nil
}

// ListUsers returns users for the admin console.
func (s *Service) ListUsers(ctx context.Context, f ListFilter) ([]models.UserPublic, error) {
	list, err := s.users.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]models.UserPublic, 0, len(list))
	for i := range list {
		out = append(out, list[i].ToPublic())
	}
	return out, nil
}

// CreateUserInput is an admin-created account.
type CreateUserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      models.Role
}

// CreateUser creates an account on behalf of an admin. No OTP is required.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, models.Validation("invalid role")
	}
	u, err := s.newUser(normEmail(in.Email), in.Password, in.FirstName, in.LastName, role)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateUserInput holds optional changes; nil fields are left alone.
type UpdateUserInput struct {
	Email     *string
	Password  *string
	FirstName *string
	LastName  *string
	Role      *models.Role
}

// UpdateUser applies an admin edit.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, in UpdateUserInput) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Email != nil {
		if email := normEmail(*in.Email); email != "" && email != u.Email {
			taken, err := s.emailTaken(ctx, email)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, errEmailRegistered
			}
			u.Email = email
		}
	}
	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, models.Validation("invalid role")
		}
		u.Role = *in.Role
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := utils.HashPassword(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Archive deactivates a user; archived users cannot sign in.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) error {
	return s.users.SetActive(ctx, id, false)
}

// Restore reactivates an archived user.
func (s *Service) Restore(ctx context.Context, id uuid.UUID) error {
	return s.users.SetActive(ctx, id, true)
}
