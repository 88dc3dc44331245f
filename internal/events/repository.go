package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/pkg/database"
	"github.com/occasio/backend/pkg/pagination"
)

const eventColumns = `e.id, e.title, e.description, e.location, e.category, e.event_date, e.start_time, e.end_time,
	e.image, e.status, e.max_attendees, e.organizer_id, e.organization_id, e.created_by, e.created_at, e.updated_at`

const summaryColumns = eventColumns + `,
	(SELECT COUNT(*) FROM event_attendees ea WHERE ea.event_id = e.id AND ea.status <> 'cancelled'),
	COALESCE(o.name, '')`

var errEventNotFound = models.NotFound("Event not found")

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEvent(row pgx.Row, extra ...any) (*models.Event, error) {
	var (
		e                            models.Event
		image                        *string
		organizerID, organizationID *uuid.UUID
	)
	dest := []any{&e.ID, &e.Title, &e.Description, &e.Location, &e.Category, &e.EventDate, &e.StartTime, &e.EndTime,
		&image, &e.Status, &e.MaxAttendees, &organizerID, &organizationID, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if image != nil {
		e.Image = *image
	}
	owner, err := models.OwnerFromColumns(organizerID, organizationID)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", e.ID, err)
	}
	e.Owner = owner
	return &e, nil
}

func scanSummary(row pgx.Row) (*models.EventSummary, error) {
	var s models.EventSummary
	e, err := scanEvent(row, &s.AttendeeCount, &s.OrganizationName)
	if err != nil {
		return nil, err
	}
	s.Event = *e
	return &s, nil
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (title, description, location, category, event_date, start_time, end_time, image,
			status, max_attendees, organizer_id, organization_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`
	organizerID, organizationID := e.Owner.Columns()
	return database.Conn(ctx, r.pool).QueryRow(ctx, q,
		e.Title, e.Description, e.Location, e.Category, e.EventDate, e.StartTime, e.EndTime, e.Image,
		e.Status, e.MaxAttendees, organizerID, organizationID, e.CreatedBy,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events e WHERE e.id = $1`
	e, err := scanEvent(database.Conn(ctx, r.pool).QueryRow(ctx, q, id))
	if database.IsNoRows(err) {
		return nil, errEventNotFound
	}
	return e, err
}

// GetForUpdate returns an event and locks its row until the surrounding transaction ends.
func (r *Repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events e WHERE e.id = $1 FOR UPDATE`
	e, err := scanEvent(database.Conn(ctx, r.pool).QueryRow(ctx, q, id))
	if database.IsNoRows(err) {
		return nil, errEventNotFound
	}
	return e, err
}

// GetSummary returns an event with its active attendee count and organization name.
func (r *Repository) GetSummary(ctx context.Context, id uuid.UUID) (*models.EventSummary, error) {
	q := `SELECT ` + summaryColumns + ` FROM events e LEFT JOIN organizations o ON o.id = e.organization_id WHERE e.id = $1`
	s, err := scanSummary(database.Conn(ctx, r.pool).QueryRow(ctx, q, id))
	if database.IsNoRows(err) {
		return nil, errEventNotFound
	}
	return s, err
}

// ListFilter narrows List. Zero fields are ignored.
type ListFilter struct {
	Status      models.EventStatus
	Category    string
	Search      string
	JoinedBy    *uuid.UUID
	OrganizedBy *uuid.UUID
}

func (f ListFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != "" {
		conds = append(conds, "e.status = "+arg(f.Status))
	}
	if f.Category != "" {
		conds = append(conds, "e.category = "+arg(f.Category))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := arg("%" + s + "%")
		conds = append(conds, fmt.Sprintf("(e.title ILIKE %s OR e.description ILIKE %s OR e.location ILIKE %s)", p, p, p))
	}
	if f.JoinedBy != nil {
		conds = append(conds, fmt.Sprintf(`EXISTS (SELECT 1 FROM event_attendees ja
			WHERE ja.event_id = e.id AND ja.user_id = %s AND ja.status <> 'cancelled')`, arg(*f.JoinedBy)))
	}
	if f.OrganizedBy != nil {
		p := arg(*f.OrganizedBy)
		conds = append(conds, fmt.Sprintf(`(e.organizer_id = %s OR e.organization_id IN
			(SELECT organization_id FROM organization_users WHERE user_id = %s))`, p, p))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns a page of events ordered by date and the total number of matches.
func (r *Repository) List(ctx context.Context, f ListFilter, p pagination.Params) ([]models.EventSummary, int, error) {
	conn := database.Conn(ctx, r.pool)
	where, args := f.where()

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM events e`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	q := `SELECT ` + summaryColumns + ` FROM events e LEFT JOIN organizations o ON o.id = e.organization_id` + where +
		fmt.Sprintf(` ORDER BY e.event_date ASC, e.start_time ASC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := conn.Query(ctx, q, append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var list []models.EventSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *s)
	}
	return list, total, rows.Err()
}

// Update writes the mutable fields of e. A cancelled row keeps its status; e.Status is
// refreshed with the stored value.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET title = $2, description = $3, location = $4, category = $5, event_date = $6,
			start_time = $7, end_time = $8, image = NULLIF($9, ''),
			status = CASE WHEN events.status = 'cancelled' THEN events.status ELSE $10 END,
			max_attendees = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING status, updated_at`
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, e.ID, e.Title, e.Description, e.Location, e.Category,
		e.EventDate, e.StartTime, e.EndTime, e.Image, e.Status, e.MaxAttendees).Scan(&e.Status, &e.UpdatedAt)
	if database.IsNoRows(err) {
		return errEventNotFound
	}
	return err
}

// UpdateStatus refreshes the persisted status. A cancelled row is never overwritten.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error {
	const q = `UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1 AND status <> 'cancelled'`
	_, err := database.Conn(ctx, r.pool).Exec(ctx, q, id, status)
	return err
}

// Cancel marks the event cancelled.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE events SET status = 'cancelled', updated_at = NOW() WHERE id = $1`
	tag, err := database.Conn(ctx, r.pool).Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errEventNotFound
	}
	return nil
}

// UpdateImage sets the banner image URL.
func (r *Repository) UpdateImage(ctx context.Context, id uuid.UUID, url string) error {
	const q = `UPDATE events SET image = $2, updated_at = NOW() WHERE id = $1`
	tag, err := database.Conn(ctx, r.pool).Exec(ctx, q, id, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errEventNotFound
	}
	return nil
}

// Delete removes an event; attendee rows cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := database.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errEventNotFound
	}
	return nil
}
