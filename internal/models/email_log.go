package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Email types; each maps to an embedded template of the same name.
const (
	EmailTypeJoinConfirmation = "join_confirmation"
	EmailTypeEventReminder    = "event_reminder"
	EmailTypeOTP              = "otp"
	EmailTypePasswordReset    = "password_reset"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records queued and delivered emails.
type EmailLog struct {
	ID             uuid.UUID       `json:"id"`
	EventID        *uuid.UUID      `json:"event_id,omitempty"`
	AttendeeID     *uuid.UUID      `json:"attendee_id,omitempty"`
	EmailType      string          `json:"email_type"`
	RecipientEmail string          `json:"recipient_email"`
	Subject        string          `json:"subject,omitempty"`
	Status         string          `json:"status"`
	Payload        json.RawMessage `json:"-"`
	Attempts       int             `json:"attempts"`
	SentAt         *time.Time      `json:"sent_at,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
