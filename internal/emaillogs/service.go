// Package emaillogs exposes the email delivery log of an event and re-queues logged emails.
package emaillogs

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/pkg/queue"
)

// Store is the email log persistence used by Service.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.EmailLog, error)
	MarkPending(ctx context.Context, id uuid.UUID) error
}

// Enqueuer queues email jobs.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, p queue.EmailPayload) error
}

// Service lists and resends logged emails.
type Service struct {
	store  Store
	queue  Enqueuer
	logger *zap.Logger
}

// NewService creates an email log service. q may be nil when Redis is not configured.
func NewService(store Store, q Enqueuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, queue: q, logger: logger}
}

// ListByEvent returns the event's email logs, newest first.
func (s *Service) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.EmailLog, error) {
	list, err := s.store.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.EmailLog{}
	}
	return list, nil
}

// Resend queues a logged email of the event for delivery again.
func (s *Service) Resend(ctx context.Context, eventID, logID uuid.UUID) (*models.EmailLog, error) {
	if s.queue == nil {
		return nil, models.Invalid("Email service is not configured")
	}
	l, err := s.store.GetByID(ctx, logID)
	if err != nil {
		return nil, err
	}
	if l.EventID == nil || *l.EventID != eventID {
		return nil, errLogNotFound
	}
	if err := s.store.MarkPending(ctx, l.ID); err != nil {
		return nil, err
	}
	err = s.queue.EnqueueEmail(ctx, queue.EmailPayload{
		EmailLogID:     l.ID,
		EmailType:      l.EmailType,
		RecipientEmail: l.RecipientEmail,
	})
	if err != nil {
		return nil, err
	}
	l.Status = models.EmailLogStatusPending
	l.ErrorMessage = ""
	s.logger.Info("email resend queued",
		zap.String("email_log_id", l.ID.String()), zap.String("event_id", eventID.String()))
	return l, nil
}
