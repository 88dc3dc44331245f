package auth

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

const constraintEmail = "users_email_key"

const userColumns = `id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at`

var (
	errUserNotFound    = models.NotFound("User not found")
	errEmailRegistered = models.Conflict("An account with this email address already exists.")
)

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FirstName, &u.LastName, &u.Role, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	u, err := scanUser(database.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if database.IsNoRows(err) {
		return nil, errUserNotFound
	}
	return u, err
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByEmail returns a user by email, case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "LOWER(email) = LOWER($1)", strings.TrimSpace(email))
}

// ListFilter narrows List. Zero fields are ignored.
type ListFilter struct {
	Search   string
	Role     models.Role
	IsActive *bool
}

// List returns users matching f, ordered by name.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.User, error) {
	var (
		conds []string
		args  []any
	)
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		p := len(args)
		conds = append(conds, fmt.Sprintf("(email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)", p, p, p))
	}
	if f.Role != "" {
		args = append(args, f.Role)
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		conds = append(conds, fmt.Sprintf("is_active = $%d", len(args)))
	}
	q := `SELECT ` + userColumns + ` FROM users`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY first_name, last_name, email"
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var list []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *u)
	}
	return list, rows.Err()
}

// Create inserts a new user. u.Password must already be hashed.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO users (email, password_hash, first_name, last_name, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q,
		strings.ToLower(strings.TrimSpace(u.Email)), u.Password, u.FirstName, u.LastName, u.Role, u.IsActive,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if database.IsUniqueViolation(err, constraintEmail) {
		return errEmailRegistered
	}
	return err
}

// Update writes the profile fields and role of u.
func (r *Repository) Update(ctx context.Context, u *models.User) error {
	const q = `UPDATE users SET email = $2, first_name = $3, last_name = $4, role = $5, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, u.ID, u.Email, u.FirstName, u.LastName, u.Role).Scan(&u.UpdatedAt)
	switch {
	case database.IsNoRows(err):
		return errUserNotFound
	case database.IsUniqueViolation(err, constraintEmail):
		return errEmailRegistered
	}
	return err
}

// SetActive archives (false) or restores (true) a user.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

// UpdatePassword stores a new password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
}

func (r *Repository) exec(ctx context.Context, q string, args ...any) error {
	tag, err := database.Conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errUserNotFound
	}
	return nil
}
