// Package organizations implements organization registration, admin approval and membership.
package organizations

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/occasio/backend/internal/clock"
	"github.com/occasio/backend/internal/models"
)

// Store is the organization persistence used by Service.
type Store interface {
	Create(ctx context.Context, o *models.Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	List(ctx context.Context, f ListFilter) ([]models.Organization, error)
	ListPending(ctx context.Context) ([]models.Organization, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Organization, error)
	Update(ctx context.Context, o *models.Organization) error
	SetVerification(ctx context.Context, o *models.Organization) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddMember(ctx context.Context, m *models.OrganizationUser) error
	GetMembership(ctx context.Context, orgID, userID uuid.UUID) (*models.OrganizationUser, error)
	ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationMember, error)
}

// Users resolves accounts by email for AddMember.
type Users interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Transactor runs fn in a transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service implements the organization workflows.
type Service struct {
	store  Store
	users  Users
	tx     Transactor
	clock  clock.Clock
	logger *zap.Logger
}

// NewService creates an organization service.
func NewService(store Store, users Users, tx Transactor, c clock.Clock, logger *zap.Logger) *Service {
	if c == nil {
		c = clock.NewSystem()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, users: users, tx: tx, clock: c, logger: logger}
}

// Profile holds the editable organization fields.
type Profile struct {
	Name        string
	Description string
	Website     string
	Email       string
	Phone       string
	Address     string
	Logo        string
}

// UpdateInput is a partial profile update. It has no status or verification fields.
type UpdateInput struct {
	Name        *string
	Description *string
	Website     *string
	Email       *string
	Phone       *string
	Address     *string
	Logo        *string
}

// Create registers a pending organization with the creator as its primary owner.
func (s *Service) Create(ctx context.Context, creatorID uuid.UUID, p Profile) (*models.Organization, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" || len(p.Name) > 255 {
		return nil, models.Validation("name must be 1-255 characters")
	}
	o := &models.Organization{
		Name:        p.Name,
		Description: p.Description,
		Website:     p.Website,
		Email:       p.Email,
		Phone:       p.Phone,
		Address:     p.Address,
		Logo:        p.Logo,
		Status:      models.OrganizationStatusPending,
	}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, o); err != nil {
			return err
		}
		return s.store.AddMember(ctx, &models.OrganizationUser{
			OrganizationID: o.ID,
			UserID:         creatorID,
			Role:           models.OrgRoleOwner,
			IsPrimary:      true,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("organization created",
		zap.String("organization_id", o.ID.String()), zap.String("created_by", creatorID.String()))
	return o, nil
}

// Get returns an organization.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return s.store.GetByID(ctx, id)
}

// List returns organizations filtered by status and a name/description/email search.
func (s *Service) List(ctx context.Context, status models.OrganizationStatus, search string) ([]models.Organization, error) {
	if status != "" && !status.Valid() {
		return nil, models.Validation("invalid status")
	}
	return nonNil(s.store.List(ctx, ListFilter{Status: status, Search: search}))
}

// ListPending returns organizations awaiting review.
func (s *Service) ListPending(ctx context.Context) ([]models.Organization, error) {
	return nonNil(s.store.ListPending(ctx))
}

// ListForUser returns organizations the user belongs to.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Organization, error) {
	return nonNil(s.store.ListForUser(ctx, userID))
}

func nonNil(list []models.Organization, err error) ([]models.Organization, error) {
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Organization{}
	}
	return list, nil
}

// Verify records the admin review of a pending organization. The rejection reason is
// stored only when rejecting.
func (s *Service) Verify(ctx context.Context, orgID, adminID uuid.UUID, approved bool, reason *string) (*models.Organization, error) {
	o, err := s.store.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if o.Status != models.OrganizationStatusPending {
		return nil, models.Invalid("Organization has already been " + string(o.Status))
	}

	now := s.clock.Now()
	o.VerifiedAt = &now
	o.VerifiedBy = &adminID
	o.RejectionReason = nil
	if approved {
		o.Status = models.OrganizationStatusApproved
	} else {
		o.Status = models.OrganizationStatusRejected
		if reason != nil && strings.TrimSpace(*reason) != "" {
			r := strings.TrimSpace(*reason)
			o.RejectionReason = &r
		}
	}
	if err := s.store.SetVerification(ctx, o); err != nil {
		return nil, err
	}
	s.logger.Info("organization verified",
		zap.String("organization_id", o.ID.String()),
		zap.String("status", string(o.Status)),
		zap.String("verified_by", adminID.String()))
	return o, nil
}

// membership returns the user's membership or nil when there is none.
func (s *Service) membership(ctx context.Context, orgID, userID uuid.UUID) (*models.OrganizationUser, error) {
	m, err := s.store.GetMembership(ctx, orgID, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return m, err
}

// Update applies a profile patch. Only members may update, and only once approved.
func (s *Service) Update(ctx context.Context, orgID, userID uuid.UUID, in UpdateInput) (*models.Organization, error) {
	m, err := s.membership(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, models.Forbidden("You are not authorized to update this organization")
	}
	o, err := s.store.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if o.Status != models.OrganizationStatusApproved {
		return nil, models.Invalid("Organization must be approved before updating")
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || len(name) > 255 {
			return nil, models.Validation("name must be 1-255 characters")
		}
		o.Name = name
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&o.Description, in.Description)
	set(&o.Website, in.Website)
	set(&o.Email, in.Email)
	set(&o.Phone, in.Phone)
	set(&o.Address, in.Address)
	set(&o.Logo, in.Logo)

	if err := s.store.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Delete removes an organization. Callers must be admins.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("organization deleted", zap.String("organization_id", id.String()))
	return nil
}

// CanAccess reports whether actor is a member of the organization or an admin.
func (s *Service) CanAccess(ctx context.Context, orgID uuid.UUID, actor models.Actor) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}
	m, err := s.membership(ctx, orgID, actor.UserID)
	return m != nil, err
}

// ListMembers returns the members of an organization.
func (s *Service) ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationMember, error) {
	list, err := s.store.ListMembers(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.OrganizationMember{}
	}
	return list, nil
}

// AddMember adds the account registered under email as a member. Only the primary
// contact, an owner or an admin may add members.
func (s *Service) AddMember(ctx context.Context, orgID uuid.UUID, actor models.Actor, email string) (*models.OrganizationUser, error) {
	if _, err := s.store.GetByID(ctx, orgID); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		m, err := s.membership(ctx, orgID, actor.UserID)
		if err != nil {
			return nil, err
		}
		if m == nil || (!m.IsPrimary && m.Role != models.OrgRoleOwner) {
			return nil, models.Forbidden("Only the organization owner can add members")
		}
	}
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	member := &models.OrganizationUser{OrganizationID: orgID, UserID: u.ID, Role: models.OrgRoleMember}
	if err := s.store.AddMember(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}
