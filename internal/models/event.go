package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle state of an event. The persisted value is a cache of the computed one.
type EventStatus string

const (
	EventStatusUpcoming  EventStatus = "upcoming"
	EventStatusOngoing   EventStatus = "ongoing"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

// Valid reports whether s is a known event status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusUpcoming, EventStatusOngoing, EventStatusCompleted, EventStatusCancelled:
		return true
	}
	return false
}

// OwnerKind discriminates the Owner union.
type OwnerKind string

const (
	OwnerIndividual   OwnerKind = "individual"
	OwnerOrganization OwnerKind = "organization"
)

// Owner is either an individual user or an organization. Exactly one is set.
type Owner struct {
	Kind OwnerKind `json:"type"`
	ID   uuid.UUID `json:"id"`
}

// IndividualOwner returns an owner referencing a user.
func IndividualOwner(userID uuid.UUID) Owner { return Owner{Kind: OwnerIndividual, ID: userID} }

// OrganizationOwner returns an owner referencing an organization.
func OrganizationOwner(orgID uuid.UUID) Owner { return Owner{Kind: OwnerOrganization, ID: orgID} }

// UserID returns the organizer user id when the owner is an individual.
func (o Owner) UserID() (uuid.UUID, bool) {
	if o.Kind == OwnerIndividual {
		return o.ID, true
	}
	return uuid.Nil, false
}

// OrganizationID returns the organization id when the owner is an organization.
func (o Owner) OrganizationID() (uuid.UUID, bool) {
	if o.Kind == OwnerOrganization {
		return o.ID, true
	}
	return uuid.Nil, false
}

// Columns splits the owner into the nullable organizer_id / organization_id pair.
func (o Owner) Columns() (organizerID, organizationID *uuid.UUID) {
	id := o.ID
	if o.Kind == OwnerOrganization {
		return nil, &id
	}
	return &id, nil
}

// OwnerFromColumns rebuilds an Owner from the two nullable columns.
func OwnerFromColumns(organizerID, organizationID *uuid.UUID) (Owner, error) {
	switch {
	case organizerID != nil && organizationID == nil:
		return IndividualOwner(*organizerID), nil
	case organizerID == nil && organizationID != nil:
		return OrganizationOwner(*organizationID), nil
	default:
		return Owner{}, fmt.Errorf("event must have exactly one owner")
	}
}

// Event is a scheduled event. EventDate is a calendar date; StartTime and EndTime are "HH:MM" wall-clock strings.
type Event struct {
	ID           uuid.UUID   `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Location     string      `json:"location"`
	Category     string      `json:"category"`
	EventDate    time.Time   `json:"-"`
	StartTime    string      `json:"start_time"`
	EndTime      *string     `json:"end_time,omitempty"`
	Image        string      `json:"image,omitempty"`
	Status       EventStatus `json:"status"`
	MaxAttendees *int        `json:"max_attendees,omitempty"`
	Owner        Owner       `json:"owner"`
	CreatedBy    uuid.UUID   `json:"created_by"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// DateLayout is the wire format of EventDate.
const DateLayout = "2006-01-02"

// MarshalJSON renders EventDate as a plain date.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(struct {
		alias
		EventDate string `json:"event_date"`
	}{alias: alias(e), EventDate: e.EventDate.Format(DateLayout)})
}

// EventSummary is an event as returned by list/detail endpoints, with live counters.
type EventSummary struct {
	Event
	AttendeeCount    int    `json:"attendee_count"`
	OrganizationName string `json:"organization_name,omitempty"`
}

// MarshalJSON keeps the embedded Event's date formatting.
func (s EventSummary) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(struct {
		alias
		EventDate        string `json:"event_date"`
		AttendeeCount    int    `json:"attendee_count"`
		OrganizationName string `json:"organization_name,omitempty"`
	}{
		alias:            alias(s.Event),
		EventDate:        s.EventDate.Format(DateLayout),
		AttendeeCount:    s.AttendeeCount,
		OrganizationName: s.OrganizationName,
	})
}
