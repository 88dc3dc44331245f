package models

import (
	"time"

	"github.com/google/uuid"
)

// AttendeeStatus is the state of a registration.
type AttendeeStatus string

const (
	AttendeeStatusRegistered AttendeeStatus = "registered"
	AttendeeStatusConfirmed  AttendeeStatus = "confirmed"
	AttendeeStatusCancelled  AttendeeStatus = "cancelled"
	// AttendeeStatusAttended is part of the schema but no workflow sets it yet.
	AttendeeStatusAttended AttendeeStatus = "attended"
)

// Active reports whether the registration counts toward capacity.
func (s AttendeeStatus) Active() bool { return s != AttendeeStatusCancelled }

// Attendee is the registration record linking one user to one event.
type Attendee struct {
	ID           uuid.UUID      `json:"id"`
	EventID      uuid.UUID      `json:"event_id"`
	UserID       uuid.UUID      `json:"user_id"`
	Status       AttendeeStatus `json:"status"`
	TicketCode   *string        `json:"ticket_code,omitempty"`
	QRCode       *string        `json:"qr_code,omitempty"`
	RegisteredAt time.Time      `json:"registered_at"`
	UpdatedAt    time.Time      `json:"updated_at"`

	// UserEmail is filled by queries that join users.
	UserEmail string `json:"-"`
}

// HasTicket reports whether both ticket fields are issued.
func (a *Attendee) HasTicket() bool {
	return a.TicketCode != nil && *a.TicketCode != "" && a.QRCode != nil && *a.QRCode != ""
}

// Ticket is the (code, QR image) pair issued to a registration.
type Ticket struct {
	TicketCode string `json:"ticket_code"`
	QRCode     string `json:"qr_code"`
}

// AttendeePublic is the public-safe projection of an attendee.
type AttendeePublic struct {
	ID           uuid.UUID      `json:"id"`
	UserID       uuid.UUID      `json:"user_id"`
	Status       AttendeeStatus `json:"status"`
	RegisteredAt time.Time      `json:"registered_at"`
	User         *AttendeeUser  `json:"user"`
}

// AttendeeUser is the user part of AttendeePublic.
type AttendeeUser struct {
	Email string `json:"email"`
}

// ToPublic converts Attendee to AttendeePublic.
func (a *Attendee) ToPublic() AttendeePublic {
	p := AttendeePublic{ID: a.ID, UserID: a.UserID, Status: a.Status, RegisteredAt: a.RegisteredAt}
	if a.UserEmail != "" {
		p.User = &AttendeeUser{Email: a.UserEmail}
	}
	return p
}

// AttendeeWithEvent is a registration joined with its event.
type AttendeeWithEvent struct {
	Attendee Attendee
	Event    Event
}
