// Package notifications turns domain events into logged, queued emails.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/occasio/backend/internal/mailer"
	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/pkg/queue"
)

// LogStore records queued emails.
type LogStore interface {
	Create(ctx context.Context, l *models.EmailLog) error
}

// Enqueuer queues email jobs for the worker.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, p queue.EmailPayload) error
}

// Renderer renders an email template set.
type Renderer interface {
	Render(name string, data any) (subject, htmlBody, textBody string, err error)
}

// Sender writes a pending email log and enqueues a delivery job for it. Delivery happens in the worker.
type Sender struct {
	logs     LogStore
	queue    Enqueuer
	renderer Renderer
	enabled  bool
	logger   *zap.Logger
}

// NewSender creates a notification sender. enabled reports whether a real mail provider is configured.
func NewSender(logs LogStore, q Enqueuer, r Renderer, enabled bool, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{logs: logs, queue: q, renderer: r, enabled: enabled, logger: logger}
}

// Enabled reports whether emails are actually delivered.
func (s *Sender) Enabled() bool { return s.enabled }

type message struct {
	emailType  string
	to         string
	eventID    *uuid.UUID
	attendeeID *uuid.UUID
	data       any
}

func (s *Sender) send(ctx context.Context, m message) error {
	subject, _, _, err := s.renderer.Render(m.emailType, m.data)
	if err != nil {
		return fmt.Errorf("render %s: %w", m.emailType, err)
	}
	payload, err := json.Marshal(m.data)
	if err != nil {
		return fmt.Errorf("marshal %s data: %w", m.emailType, err)
	}
	l := &models.EmailLog{
		EventID:        m.eventID,
		AttendeeID:     m.attendeeID,
		EmailType:      m.emailType,
		RecipientEmail: m.to,
		Subject:        subject,
		Status:         models.EmailLogStatusPending,
		Payload:        payload,
	}
	if err := s.logs.Create(ctx, l); err != nil {
		return fmt.Errorf("create email log: %w", err)
	}
	err = s.queue.EnqueueEmail(ctx, queue.EmailPayload{
		EmailLogID:     l.ID,
		EmailType:      m.emailType,
		RecipientEmail: m.to,
	})
	if err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	s.logger.Debug("email queued",
		zap.String("email_type", m.emailType), zap.String("email_log_id", l.ID.String()))
	return nil
}

func ticketCode(a *models.Attendee) string {
	if a.TicketCode == nil {
		return ""
	}
	return *a.TicketCode
}

func eventTime(e *models.Event) string {
	if e.EndTime != nil && *e.EndTime != "" {
		return e.StartTime + " - " + *e.EndTime
	}
	return e.StartTime
}

// JoinConfirmation queues the registration confirmation for a new or returning attendee.
func (s *Sender) JoinConfirmation(ctx context.Context, u *models.User, e *models.Event, a *models.Attendee) error {
	return s.send(ctx, message{
		emailType:  models.EmailTypeJoinConfirmation,
		to:         u.Email,
		eventID:    &e.ID,
		attendeeID: &a.ID,
		data: mailer.JoinConfirmationData{
			Name:       u.DisplayName(),
			EventTitle: e.Title,
			EventDate:  e.EventDate.Format(models.DateLayout),
			EventTime:  eventTime(e),
			Location:   e.Location,
			TicketCode: ticketCode(a),
		},
	})
}

// EventReminder queues a reminder for one attendee. a.UserEmail must be set.
func (s *Sender) EventReminder(ctx context.Context, e *models.Event, a models.Attendee) error {
	return s.send(ctx, message{
		emailType:  models.EmailTypeEventReminder,
		to:         a.UserEmail,
		eventID:    &e.ID,
		attendeeID: &a.ID,
		data: mailer.EventReminderData{
			Name:       a.UserEmail,
			EventTitle: e.Title,
			EventDate:  e.EventDate.Format(models.DateLayout),
			EventTime:  eventTime(e),
			Location:   e.Location,
			TicketCode: ticketCode(&a),
		},
	})
}

// OTP queues an email verification code.
func (s *Sender) OTP(ctx context.Context, email, code string, ttl time.Duration) error {
	return s.send(ctx, message{
		emailType: models.EmailTypeOTP,
		to:        email,
		data:      mailer.OTPData{Code: code, ExpiresInMinutes: int(ttl.Minutes())},
	})
}

// PasswordReset queues a password reset link.
func (s *Sender) PasswordReset(ctx context.Context, u *models.User, link string, ttl time.Duration) error {
	return s.send(ctx, message{
		emailType: models.EmailTypePasswordReset,
		to:        u.Email,
		data: mailer.PasswordResetData{
			Name:             u.DisplayName(),
			ResetLink:        link,
			ExpiresInMinutes: int(ttl.Minutes()),
		},
	})
}
