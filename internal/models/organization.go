package models

import (
	"time"

	"github.com/google/uuid"
)

// OrganizationStatus is the approval state of an organization.
type OrganizationStatus string

const (
	OrganizationStatusPending  OrganizationStatus = "pending"
	OrganizationStatusApproved OrganizationStatus = "approved"
	OrganizationStatusRejected OrganizationStatus = "rejected"
)

// Valid reports whether s is a known organization status.
func (s OrganizationStatus) Valid() bool {
	switch s {
	case OrganizationStatusPending, OrganizationStatusApproved, OrganizationStatusRejected:
		return true
	}
	return false
}

// Organization is an event-publishing organization subject to admin approval.
type Organization struct {
	ID              uuid.UUID          `json:"id"`
	Name            string             `json:"name"`
	Description     string             `json:"description,omitempty"`
	Website         string             `json:"website,omitempty"`
	Email           string             `json:"email,omitempty"`
	Phone           string             `json:"phone,omitempty"`
	Address         string             `json:"address,omitempty"`
	Logo            string             `json:"logo,omitempty"`
	Status          OrganizationStatus `json:"status"`
	RejectionReason *string            `json:"rejection_reason,omitempty"`
	VerifiedAt      *time.Time         `json:"verified_at,omitempty"`
	VerifiedBy      *uuid.UUID         `json:"verified_by,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Organization member roles.
const (
	OrgRoleOwner  = "owner"
	OrgRoleMember = "member"
)

// OrganizationUser links a user to an organization.
type OrganizationUser struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           string    `json:"role"`
	IsPrimary      bool      `json:"is_primary"`
	CreatedAt      time.Time `json:"created_at"`
}

// OrganizationMember is a membership row with user details.
type OrganizationMember struct {
	OrganizationUser
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
