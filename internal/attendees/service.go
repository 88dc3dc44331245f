// Package attendees implements event registration, tickets and check-in verification.
package attendees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/occasio/backend/internal/events"
	"github.com/occasio/backend/internal/models"
)

// maxJoinAttempts bounds retries of a join whose generated ticket code collided.
const maxJoinAttempts = 3

// Realtime message kinds.
const (
	MessageAttendeeJoined   = "attendee_joined"
	MessageAttendeeLeft     = "attendee_left"
	MessageAttendeeVerified = "attendee_verified"
)

// Store is the attendee persistence used by Service.
type Store interface {
	GetByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*models.Attendee, error)
	GetByTicketCode(ctx context.Context, code string) (*models.Attendee, error)
	CountActive(ctx context.Context, eventID uuid.UUID) (int, error)
	Create(ctx context.Context, a *models.Attendee) error
	Update(ctx context.Context, a *models.Attendee) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.AttendeeStatus) error
	ListTicketsByUser(ctx context.Context, userID uuid.UUID) ([]models.AttendeeWithEvent, error)
	ListActiveByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error)
}

// EventStore reads events.
type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Transactor runs fn in a transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CodeGenerator issues ticket codes.
type CodeGenerator interface {
	Code(eventID, userID uuid.UUID) string
}

// QREncoder renders a ticket code as an image data URI.
type QREncoder interface {
	Encode(content string) (string, error)
}

// Users looks up registrants for notifications.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Notifier sends the join confirmation.
type Notifier interface {
	JoinConfirmation(ctx context.Context, u *models.User, e *models.Event, a *models.Attendee) error
}

// Broadcaster publishes check-in feed messages for an event.
type Broadcaster interface {
	Publish(ctx context.Context, eventID uuid.UUID, kind string, data any) error
}

// Deps groups the collaborators of Service. Users, Notifier and Broadcaster may be nil.
type Deps struct {
	Store       Store
	Events      EventStore
	Tx          Transactor
	Codes       CodeGenerator
	QR          QREncoder
	Status      *events.StatusResolver
	Users       Users
	Notifier    Notifier
	Broadcaster Broadcaster
}

// Service implements the registration and verification workflows.
type Service struct {
	store  Store
	events EventStore
	tx     Transactor
	codes  CodeGenerator
	qr     QREncoder
	status *events.StatusResolver
	users  Users
	notify Notifier
	feed   Broadcaster
	logger *zap.Logger
}

// NewService creates an attendee service.
func NewService(d Deps, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  d.Store,
		events: d.Events,
		tx:     d.Tx,
		codes:  d.Codes,
		qr:     d.QR,
		status: d.Status,
		users:  d.Users,
		notify: d.Notifier,
		feed:   d.Broadcaster,
		logger: logger,
	}
}

// JoinResult is returned by Join.
type JoinResult struct {
	Message string        `json:"message"`
	Ticket  models.Ticket `json:"ticket"`

	Attendee *models.Attendee `json:"-"`
	Rejoined bool             `json:"-"`
}

// Join registers userID for eventID and issues a ticket. The event row is locked for the
// capacity check; a ticket code collision retries the whole transaction.
func (s *Service) Join(ctx context.Context, eventID, userID uuid.UUID) (*JoinResult, error) {
	var (
		res   *JoinResult
		event *models.Event
		err   error
	)
	for attempt := 1; attempt <= maxJoinAttempts; attempt++ {
		err = s.tx.WithTx(ctx, func(ctx context.Context) error {
			var txErr error
			res, event, txErr = s.join(ctx, eventID, userID)
			return txErr
		})
		if !errors.Is(err, models.ErrTicketCollision) {
			break
		}
		s.logger.Warn("ticket code collision, retrying join",
			zap.String("event_id", eventID.String()), zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("attendee joined",
		zap.String("event_id", eventID.String()),
		zap.String("user_id", userID.String()),
		zap.Bool("rejoined", res.Rejoined))
	s.sendConfirmation(ctx, event, res.Attendee)
	s.publish(ctx, eventID, MessageAttendeeJoined, res.Attendee.ToPublic())
	return res, nil
}

func (s *Service) join(ctx context.Context, eventID, userID uuid.UUID) (*JoinResult, *models.Event, error) {
	e, err := s.events.GetForUpdate(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	if organizer, ok := e.Owner.UserID(); ok && organizer == userID {
		return nil, nil, models.Invalid("You cannot join your own event")
	}
	switch s.status.Resolve(e) {
	case models.EventStatusCancelled:
		return nil, nil, models.Invalid("This event has been cancelled")
	case models.EventStatusCompleted:
		return nil, nil, models.Invalid("This event has already ended")
	}

	existing, err := s.store.GetByEventAndUser(ctx, eventID, userID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, nil, err
	}
	if existing != nil && existing.Status.Active() {
		return nil, nil, models.ErrAlreadyRegistered
	}

	if e.MaxAttendees != nil {
		n, err := s.store.CountActive(ctx, eventID)
		if err != nil {
			return nil, nil, fmt.Errorf("count attendees: %w", err)
		}
		if n >= *e.MaxAttendees {
			return nil, nil, models.ErrEventFull
		}
	}

	if existing != nil {
		existing.Status = models.AttendeeStatusRegistered
		if !existing.HasTicket() {
			if err := s.issueTicket(existing); err != nil {
				return nil, nil, err
			}
		}
		if err := s.store.Update(ctx, existing); err != nil {
			return nil, nil, err
		}
		return newJoinResult("Successfully re-joined the event", existing, true), e, nil
	}

	a := &models.Attendee{EventID: eventID, UserID: userID, Status: models.AttendeeStatusRegistered}
	if err := s.issueTicket(a); err != nil {
		return nil, nil, err
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, nil, err
	}
	return newJoinResult("Successfully joined the event", a, false), e, nil
}

func newJoinResult(msg string, a *models.Attendee, rejoined bool) *JoinResult {
	return &JoinResult{
		Message:  msg,
		Ticket:   models.Ticket{TicketCode: *a.TicketCode, QRCode: *a.QRCode},
		Attendee: a,
		Rejoined: rejoined,
	}
}

func (s *Service) issueTicket(a *models.Attendee) error {
	code := s.codes.Code(a.EventID, a.UserID)
	qr, err := s.qr.Encode(code)
	if err != nil {
		return fmt.Errorf("render ticket: %w", err)
	}
	a.TicketCode = &code
	a.QRCode = &qr
	return nil
}

func (s *Service) sendConfirmation(ctx context.Context, e *models.Event, a *models.Attendee) {
	if s.notify == nil || s.users == nil {
		return
	}
	u, err := s.users.GetByID(ctx, a.UserID)
	if err == nil {
		err = s.notify.JoinConfirmation(ctx, u, e, a)
	}
	if err != nil {
		s.logger.Warn("join confirmation not sent",
			zap.String("event_id", e.ID.String()),
			zap.String("attendee_id", a.ID.String()),
			zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, eventID uuid.UUID, kind string, data any) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, eventID, kind, data); err != nil {
		s.logger.Warn("realtime publish failed",
			zap.String("event_id", eventID.String()), zap.String("kind", kind), zap.Error(err))
	}
}

// registration returns the attendee row for (eventID, userID) with the "not registered" message.
func (s *Service) registration(ctx context.Context, eventID, userID uuid.UUID) (*models.Attendee, error) {
	a, err := s.store.GetByEventAndUser(ctx, eventID, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.NotFound("You are not registered for this event")
	}
	return a, err
}

// Leave cancels the user's registration. Ticket fields are kept.
func (s *Service) Leave(ctx context.Context, eventID, userID uuid.UUID) (string, error) {
	a, err := s.registration(ctx, eventID, userID)
	if err != nil {
		return "", err
	}
	if a.Status == models.AttendeeStatusCancelled {
		return "", models.Invalid("You have already left this event")
	}
	if err := s.store.UpdateStatus(ctx, a.ID, models.AttendeeStatusCancelled); err != nil {
		return "", fmt.Errorf("leave event: %w", err)
	}
	a.Status = models.AttendeeStatusCancelled
	s.publish(ctx, eventID, MessageAttendeeLeft, a.ToPublic())
	return "Successfully left the event", nil
}

// TicketView is a ticket with the event details shown to its holder.
type TicketView struct {
	EventID          uuid.UUID             `json:"event_id"`
	TicketCode       string                `json:"ticket_code"`
	QRCode           string                `json:"qr_code"`
	EventTitle       string                `json:"event_title"`
	EventDescription string                `json:"event_description,omitempty"`
	EventDate        string                `json:"event_date"`
	EventTime        string                `json:"event_time"`
	EndTime          *string               `json:"end_time,omitempty"`
	Location         string                `json:"location"`
	Category         string                `json:"category,omitempty"`
	Image            string                `json:"image,omitempty"`
	EventStatus      models.EventStatus    `json:"event_status"`
	Status           models.AttendeeStatus `json:"status"`
	RegisteredAt     time.Time             `json:"registered_at"`
}

func newTicketView(a *models.Attendee, e *models.Event) TicketView {
	return TicketView{
		EventID:          e.ID,
		TicketCode:       *a.TicketCode,
		QRCode:           *a.QRCode,
		EventTitle:       e.Title,
		EventDescription: e.Description,
		EventDate:        e.EventDate.Format(models.DateLayout),
		EventTime:        e.StartTime,
		EndTime:          e.EndTime,
		Location:         e.Location,
		Category:         e.Category,
		Image:            e.Image,
		EventStatus:      e.Status,
		Status:           a.Status,
		RegisteredAt:     a.RegisteredAt,
	}
}

// GetTicket returns the user's ticket for an event. Tickets of completed events are hidden.
func (s *Service) GetTicket(ctx context.Context, eventID, userID uuid.UUID) (*TicketView, error) {
	a, err := s.registration(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if a.Status == models.AttendeeStatusCancelled {
		return nil, models.Invalid("Your registration has been cancelled for this event")
	}
	if !a.HasTicket() {
		return nil, models.NotFound("Ticket not found for this registration")
	}
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if s.status.Resolve(e) == models.EventStatusCompleted {
		return nil, models.NotFound("This event has completed. Tickets are no longer available.")
	}
	v := newTicketView(a, e)
	return &v, nil
}

// ListTickets returns the user's active tickets for events that have not completed.
func (s *Service) ListTickets(ctx context.Context, userID uuid.UUID) ([]TicketView, error) {
	rows, err := s.store.ListTicketsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]TicketView, 0, len(rows))
	for i := range rows {
		a, e := &rows[i].Attendee, &rows[i].Event
		if !a.HasTicket() {
			continue
		}
		if s.status.Resolve(e) == models.EventStatusCompleted {
			continue
		}
		out = append(out, newTicketView(a, e))
	}
	return out, nil
}

// VerifyResult is returned by VerifyAttendee.
type VerifyResult struct {
	Attendee models.AttendeePublic `json:"attendee"`
}

// VerifyAttendee checks a presented ticket in. It succeeds only while the event is ongoing
// and moves registered attendees to confirmed; confirmed attendees verify again unchanged.
func (s *Service) VerifyAttendee(ctx context.Context, eventID uuid.UUID, ticketCode string) (*VerifyResult, error) {
	a, err := s.store.GetByTicketCode(ctx, ticketCode)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.NotFound("Ticket not found or invalid")
	}
	if err != nil {
		return nil, err
	}
	if a.EventID != eventID {
		return nil, models.Invalid("Ticket does not belong to this event")
	}
	if a.Status == models.AttendeeStatusCancelled {
		return nil, models.Invalid("This ticket has been cancelled")
	}

	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	switch s.status.Resolve(e) {
	case models.EventStatusOngoing:
	case models.EventStatusCompleted:
		return nil, models.Invalid("This event has already completed. QR code verification is only allowed during the event.")
	case models.EventStatusCancelled:
		return nil, models.Invalid("This event has been cancelled. QR code is no longer valid.")
	case models.EventStatusUpcoming:
		return nil, models.Invalid("This event has not started yet. QR code verification is only allowed during the event.")
	default:
		return nil, models.Invalid("QR code verification is only allowed when the event is ongoing.")
	}

	if a.Status == models.AttendeeStatusRegistered {
		if err := s.store.UpdateStatus(ctx, a.ID, models.AttendeeStatusConfirmed); err != nil {
			return nil, fmt.Errorf("confirm attendee: %w", err)
		}
		a.Status = models.AttendeeStatusConfirmed
	}
	pub := a.ToPublic()
	s.publish(ctx, eventID, MessageAttendeeVerified, pub)
	return &VerifyResult{Attendee: pub}, nil
}

// ListByEvent returns the non-cancelled attendees of an event.
func (s *Service) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.AttendeePublic, error) {
	list, err := s.store.ListActiveByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := make([]models.AttendeePublic, 0, len(list))
	for i := range list {
		out = append(out, list[i].ToPublic())
	}
	return out, nil
}
