package models

import "github.com/google/uuid"

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	UserID uuid.UUID
	Email  string
	Role   Role
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
