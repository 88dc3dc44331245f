package attendees

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/pkg/database"
)

const (
	constraintEventUser  = "event_attendees_event_user_key"
	constraintTicketCode = "event_attendees_ticket_code_key"

	attendeeColumns = `a.id, a.event_id, a.user_id, a.status, a.ticket_code, a.qr_code, a.registered_at, a.updated_at`
)

var errAttendeeNotFound = models.NotFound("Attendee not found")

// Repository handles event_attendees persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attendee repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAttendee(row pgx.Row, extra ...any) (*models.Attendee, error) {
	var a models.Attendee
	dest := []any{&a.ID, &a.EventID, &a.UserID, &a.Status, &a.TicketCode, &a.QRCode, &a.RegisteredAt, &a.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &a, nil
}

// mapWriteErr turns unique violations into workflow errors.
func mapWriteErr(err error) error {
	switch {
	case err == nil:
		return nil
	case database.IsUniqueViolation(err, constraintTicketCode):
		return models.ErrTicketCollision
	case database.IsUniqueViolation(err, constraintEventUser):
		return models.ErrAlreadyRegistered
	}
	return err
}

// GetByEventAndUser returns the registration of userID for eventID.
func (r *Repository) GetByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*models.Attendee, error) {
	q := `SELECT ` + attendeeColumns + ` FROM event_attendees a WHERE a.event_id = $1 AND a.user_id = $2`
	a, err := scanAttendee(database.Conn(ctx, r.pool).QueryRow(ctx, q, eventID, userID))
	if database.IsNoRows(err) {
		return nil, errAttendeeNotFound
	}
	return a, err
}

// GetByTicketCode returns the registration holding code, with the user's email.
func (r *Repository) GetByTicketCode(ctx context.Context, code string) (*models.Attendee, error) {
	q := `SELECT ` + attendeeColumns + `, u.email
		FROM event_attendees a
		INNER JOIN users u ON u.id = a.user_id
		WHERE a.ticket_code = $1`
	var email string
	a, err := scanAttendee(database.Conn(ctx, r.pool).QueryRow(ctx, q, code), &email)
	if database.IsNoRows(err) {
		return nil, errAttendeeNotFound
	}
	if err != nil {
		return nil, err
	}
	a.UserEmail = email
	return a, nil
}

// CountActive returns the number of non-cancelled registrations for an event.
func (r *Repository) CountActive(ctx context.Context, eventID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM event_attendees WHERE event_id = $1 AND status <> 'cancelled'`
	var n int
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, eventID).Scan(&n)
	return n, err
}

// Create inserts a registration.
func (r *Repository) Create(ctx context.Context, a *models.Attendee) error {
	const q = `INSERT INTO event_attendees (event_id, user_id, status, ticket_code, qr_code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, registered_at, updated_at`
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, a.EventID, a.UserID, a.Status, a.TicketCode, a.QRCode).
		Scan(&a.ID, &a.RegisteredAt, &a.UpdatedAt)
	return mapWriteErr(err)
}

// Update writes status and ticket fields of a registration.
func (r *Repository) Update(ctx context.Context, a *models.Attendee) error {
	const q = `UPDATE event_attendees SET status = $2, ticket_code = $3, qr_code = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, a.ID, a.Status, a.TicketCode, a.QRCode).Scan(&a.UpdatedAt)
	if database.IsNoRows(err) {
		return errAttendeeNotFound
	}
	return mapWriteErr(err)
}

// UpdateStatus sets the status of a registration.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.AttendeeStatus) error {
	const q = `UPDATE event_attendees SET status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := database.Conn(ctx, r.pool).Exec(ctx, q, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errAttendeeNotFound
	}
	return nil
}

// ListTicketsByUser returns the user's registered or confirmed registrations that hold a ticket,
// with their events, newest first.
func (r *Repository) ListTicketsByUser(ctx context.Context, userID uuid.UUID) ([]models.AttendeeWithEvent, error) {
	q := `SELECT ` + attendeeColumns + `,
			e.id, e.title, e.description, e.location, e.category, e.event_date, e.start_time, e.end_time,
			COALESCE(e.image, ''), e.status, e.max_attendees, e.organizer_id, e.organization_id, e.created_by,
			e.created_at, e.updated_at
		FROM event_attendees a
		INNER JOIN events e ON e.id = a.event_id
		WHERE a.user_id = $1 AND a.status IN ('registered', 'confirmed')
			AND a.ticket_code IS NOT NULL AND a.qr_code IS NOT NULL
		ORDER BY a.registered_at DESC`
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var list []models.AttendeeWithEvent
	for rows.Next() {
		var (
			e                            models.Event
			organizerID, organizationID *uuid.UUID
		)
		a, err := scanAttendee(rows, &e.ID, &e.Title, &e.Description, &e.Location, &e.Category, &e.EventDate,
			&e.StartTime, &e.EndTime, &e.Image, &e.Status, &e.MaxAttendees, &organizerID, &organizationID,
			&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if e.Owner, err = models.OwnerFromColumns(organizerID, organizationID); err != nil {
			return nil, err
		}
		list = append(list, models.AttendeeWithEvent{Attendee: *a, Event: e})
	}
	return list, rows.Err()
}

// ListActiveByEvent returns the non-cancelled registrations of an event with user emails.
func (r *Repository) ListActiveByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error) {
	q := `SELECT ` + attendeeColumns + `, u.email
		FROM event_attendees a
		INNER JOIN users u ON u.id = a.user_id
		WHERE a.event_id = $1 AND a.status <> 'cancelled'
		ORDER BY a.registered_at ASC`
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	var list []models.Attendee
	for rows.Next() {
		var email string
		a, err := scanAttendee(rows, &email)
		if err != nil {
			return nil, err
		}
		a.UserEmail = email
		list = append(list, *a)
	}
	return list, rows.Err()
}

// CountByStatus returns registration counts per status for an event.
func (r *Repository) CountByStatus(ctx context.Context, eventID uuid.UUID) (map[models.AttendeeStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM event_attendees WHERE event_id = $1 GROUP BY status`
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("count attendees: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.AttendeeStatus]int)
	for rows.Next() {
		var (
			status models.AttendeeStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
