// Package analytics reports per-event attendance statistics.
package analytics

import (
	"context"

	"github.com/google/uuid"

	"github.com/occasio/backend/internal/models"
)

// AttendeeCounter counts registrations by status.
type AttendeeCounter interface {
	CountByStatus(ctx context.Context, eventID uuid.UUID) (map[models.AttendeeStatus]int, error)
}

// EmailCounter counts email logs by delivery status.
type EmailCounter interface {
	CountByStatus(ctx context.Context, eventID uuid.UUID) (map[string]int, error)
}

// StatusSource computes the live status of an event.
type StatusSource interface {
	Resolve(e *models.Event) models.EventStatus
}

// Watchers reports how many managers are watching the live feed.
type Watchers interface {
	Watchers(eventID uuid.UUID) int
}

// Stats is the JSON shape of GET /events/:id/stats.
type Stats struct {
	EventID        uuid.UUID          `json:"event_id"`
	Status         models.EventStatus `json:"status"`
	Registered     int                `json:"registered"`
	Confirmed      int                `json:"confirmed"`
	Cancelled      int                `json:"cancelled"`
	Attended       int                `json:"attended"`
	Active         int                `json:"active"`
	Capacity       *int               `json:"capacity"`
	RemainingSeats *int               `json:"remaining_seats"`
	CheckInRate    float64            `json:"check_in_rate"`
	EmailsSent     int                `json:"emails_sent"`
	EmailsFailed   int                `json:"emails_failed"`
	EmailsPending  int                `json:"emails_pending"`
	LiveWatchers   int                `json:"live_watchers"`
}

// Service builds event statistics.
type Service struct {
	attendees AttendeeCounter
	emails    EmailCounter
	status    StatusSource
	watchers  Watchers
}

// NewService creates an analytics service. emails and watchers may be nil.
func NewService(attendees AttendeeCounter, emails EmailCounter, status StatusSource, watchers Watchers) *Service {
	return &Service{attendees: attendees, emails: emails, status: status, watchers: watchers}
}

// EventStats returns the statistics of e.
func (s *Service) EventStats(ctx context.Context, e *models.Event) (*Stats, error) {
	counts, err := s.attendees.CountByStatus(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	st := &Stats{
		EventID:    e.ID,
		Status:     s.status.Resolve(e),
		Registered: counts[models.AttendeeStatusRegistered],
		Confirmed:  counts[models.AttendeeStatusConfirmed],
		Cancelled:  counts[models.AttendeeStatusCancelled],
		Attended:   counts[models.AttendeeStatusAttended],
		Capacity:   e.MaxAttendees,
	}
	st.Active = st.Registered + st.Confirmed + st.Attended
	if e.MaxAttendees != nil {
		left := *e.MaxAttendees - st.Active
		if left < 0 {
			left = 0
		}
		st.RemainingSeats = &left
	}
	if st.Active > 0 {
		st.CheckInRate = float64(st.Confirmed+st.Attended) / float64(st.Active)
	}

	if s.emails != nil {
		ec, err := s.emails.CountByStatus(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		st.EmailsSent = ec[models.EmailLogStatusSent]
		st.EmailsFailed = ec[models.EmailLogStatusFailed]
		st.EmailsPending = ec[models.EmailLogStatusPending]
	}
	if s.watchers != nil {
		st.LiveWatchers = s.watchers.Watchers(e.ID)
	}
	return st, nil
}
