package emaillogs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/pkg/database"
)

const logColumns = `id, event_id, attendee_id, email_type, recipient_email, COALESCE(subject, ''), status, payload,
	attempts, sent_at, COALESCE(error_message, ''), created_at`

var errLogNotFound = models.NotFound("Email log not found")

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanLog(row pgx.Row) (*models.EmailLog, error) {
	var l models.EmailLog
	err := row.Scan(&l.ID, &l.EventID, &l.AttendeeID, &l.EmailType, &l.RecipientEmail, &l.Subject, &l.Status,
		&l.Payload, &l.Attempts, &l.SentAt, &l.ErrorMessage, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Create inserts a pending log row.
func (r *Repository) Create(ctx context.Context, l *models.EmailLog) error {
	const q = `INSERT INTO email_logs (event_id, attendee_id, email_type, recipient_email, subject, status, payload)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		RETURNING id, created_at`
	payload := l.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	return database.Conn(ctx, r.pool).QueryRow(ctx, q,
		l.EventID, l.AttendeeID, l.EmailType, l.RecipientEmail, l.Subject, l.Status, payload,
	).Scan(&l.ID, &l.CreatedAt)
}

// GetByID returns a log row.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error) {
	l, err := scanLog(database.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+logColumns+` FROM email_logs WHERE id = $1`, id))
	if database.IsNoRows(err) {
		return nil, errLogNotFound
	}
	return l, err
}

// ListByEvent returns email logs for an event, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.EmailLog, error) {
	q := `SELECT ` + logColumns + ` FROM email_logs WHERE event_id = $1 ORDER BY created_at DESC`
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()
	var list []models.EmailLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *l)
	}
	return list, rows.Err()
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, subject string, at time.Time) error {
	const q = `UPDATE email_logs SET status = 'sent', subject = NULLIF($2, ''), sent_at = $3,
			attempts = attempts + 1, error_message = NULL
		WHERE id = $1`
	return r.exec(ctx, q, id, subject, at)
}

// MarkFailed records a failed delivery attempt.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	const q = `UPDATE email_logs SET status = 'failed', attempts = attempts + 1, error_message = $2 WHERE id = $1`
	return r.exec(ctx, q, id, reason)
}

// MarkPending resets a row before it is queued again.
func (r *Repository) MarkPending(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `UPDATE email_logs SET status = 'pending', error_message = NULL WHERE id = $1`, id)
}

func (r *Repository) exec(ctx context.Context, q string, args ...any) error {
	tag, err := database.Conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errLogNotFound
	}
	return nil
}

// CountByStatus returns the number of logs per delivery status for an event.
func (r *Repository) CountByStatus(ctx context.Context, eventID uuid.UUID) (map[string]int, error) {
	const q = `SELECT status, COUNT(*) FROM email_logs WHERE event_id = $1 GROUP BY status`
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("count email logs: %w", err)
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
