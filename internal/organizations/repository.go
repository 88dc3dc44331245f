package organizations

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/pkg/database"
)

const (
	constraintName   = "organizations_name_key"
	constraintMember = "organization_users_org_user_key"
)

const orgColumns = `o.id, o.name, COALESCE(o.description, ''), COALESCE(o.website, ''), COALESCE(o.email, ''),
	COALESCE(o.phone, ''), COALESCE(o.address, ''), COALESCE(o.logo, ''), o.status, o.rejection_reason,
	o.verified_at, o.verified_by, o.created_at, o.updated_at`

var (
	errOrgNotFound    = models.NotFound("Organization not found")
	errDuplicateName  = models.Conflict("Organization name already exists")
	errAlreadyMember  = models.Conflict("User is already a member of this organization")
	errMemberNotFound = models.NotFound("Membership not found")
)

// Repository handles organization and organization_user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanOrg(row pgx.Row) (*models.Organization, error) {
	var o models.Organization
	err := row.Scan(&o.ID, &o.Name, &o.Description, &o.Website, &o.Email, &o.Phone, &o.Address, &o.Logo,
		&o.Status, &o.RejectionReason, &o.VerifiedAt, &o.VerifiedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func collectOrgs(rows pgx.Rows) ([]models.Organization, error) {
	defer rows.Close()
	var list []models.Organization
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *o)
	}
	return list, rows.Err()
}

// Create inserts an organization.
func (r *Repository) Create(ctx context.Context, o *models.Organization) error {
	const q = `INSERT INTO organizations (name, description, website, email, phone, address, logo, status)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8)
		RETURNING id, created_at, updated_at`
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q,
		o.Name, o.Description, o.Website, o.Email, o.Phone, o.Address, o.Logo, o.Status,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if database.IsUniqueViolation(err, constraintName) {
		return errDuplicateName
	}
	return err
}

// GetByID returns an organization by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	q := `SELECT ` + orgColumns + ` FROM organizations o WHERE o.id = $1`
	o, err := scanOrg(database.Conn(ctx, r.pool).QueryRow(ctx, q, id))
	if database.IsNoRows(err) {
		return nil, errOrgNotFound
	}
	return o, err
}

// ListFilter narrows List. Zero fields are ignored.
type ListFilter struct {
	Status models.OrganizationStatus
	Search string
}

// List returns organizations, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Organization, error) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		p := len(args)
		conds = append(conds, fmt.Sprintf("(o.name ILIKE $%d OR o.description ILIKE $%d OR o.email ILIKE $%d)", p, p, p))
	}
	q := `SELECT ` + orgColumns + ` FROM organizations o`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY o.created_at DESC"
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return collectOrgs(rows)
}

// ListPending returns organizations awaiting review, oldest first.
func (r *Repository) ListPending(ctx context.Context) ([]models.Organization, error) {
	q := `SELECT ` + orgColumns + ` FROM organizations o WHERE o.status = 'pending' ORDER BY o.created_at ASC`
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list pending organizations: %w", err)
	}
	return collectOrgs(rows)
}

// ListForUser returns organizations the user is a member of.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Organization, error) {
	q := `SELECT ` + orgColumns + ` FROM organizations o
		INNER JOIN organization_users ou ON ou.organization_id = o.id
		WHERE ou.user_id = $1
		ORDER BY o.name`
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list user organizations: %w", err)
	}
	return collectOrgs(rows)
}

// Update writes the profile fields of o.
func (r *Repository) Update(ctx context.Context, o *models.Organization) error {
	const q = `UPDATE organizations SET name = $2, description = NULLIF($3, ''), website = NULLIF($4, ''),
			email = NULLIF($5, ''), phone = NULLIF($6, ''), address = NULLIF($7, ''), logo = NULLIF($8, ''),
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q,
		o.ID, o.Name, o.Description, o.Website, o.Email, o.Phone, o.Address, o.Logo,
	).Scan(&o.UpdatedAt)
	switch {
	case database.IsNoRows(err):
		return errOrgNotFound
	case database.IsUniqueViolation(err, constraintName):
		return errDuplicateName
	}
	return err
}

// SetVerification writes the review outcome of o.
func (r *Repository) SetVerification(ctx context.Context, o *models.Organization) error {
	const q = `UPDATE organizations SET status = $2, rejection_reason = $3, verified_at = $4, verified_by = $5,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q,
		o.ID, o.Status, o.RejectionReason, o.VerifiedAt, o.VerifiedBy,
	).Scan(&o.UpdatedAt)
	if database.IsNoRows(err) {
		return errOrgNotFound
	}
	return err
}

// Delete removes an organization; memberships and owned events cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := database.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errOrgNotFound
	}
	return nil
}

// AddMember inserts a membership row.
func (r *Repository) AddMember(ctx context.Context, m *models.OrganizationUser) error {
	const q = `INSERT INTO organization_users (organization_id, user_id, role, is_primary)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, m.OrganizationID, m.UserID, m.Role, m.IsPrimary).
		Scan(&m.ID, &m.CreatedAt)
	if database.IsUniqueViolation(err, constraintMember) {
		return errAlreadyMember
	}
	return err
}

// GetMembership returns the user's membership row in the organization.
func (r *Repository) GetMembership(ctx context.Context, orgID, userID uuid.UUID) (*models.OrganizationUser, error) {
	const q = `SELECT id, organization_id, user_id, role, is_primary, created_at
		FROM organization_users WHERE organization_id = $1 AND user_id = $2`
	var m models.OrganizationUser
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, orgID, userID).
		Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.IsPrimary, &m.CreatedAt)
	if database.IsNoRows(err) {
		return nil, errMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// IsMember reports whether the user has a membership row in the organization.
func (r *Repository) IsMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM organization_users WHERE organization_id = $1 AND user_id = $2)`
	var ok bool
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, orgID, userID).Scan(&ok)
	return ok, err
}

// ListMembers returns members of an organization with user details.
func (r *Repository) ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationMember, error) {
	const q = `SELECT ou.id, ou.organization_id, ou.user_id, ou.role, ou.is_primary, ou.created_at,
			u.email, u.first_name, u.last_name
		FROM organization_users ou
		INNER JOIN users u ON u.id = ou.user_id
		WHERE ou.organization_id = $1
		ORDER BY ou.is_primary DESC, ou.created_at ASC`
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, orgID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	var list []models.OrganizationMember
	for rows.Next() {
		var m models.OrganizationMember
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.IsPrimary, &m.CreatedAt,
			&m.Email, &m.FirstName, &m.LastName); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
