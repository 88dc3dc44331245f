package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occasio/backend/internal/mailer"
	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/pkg/queue"
)

type fakeLogs struct {
	created []*models.EmailLog
	err     error
}

func (f *fakeLogs) Create(_ context.Context, l *models.EmailLog) error {
	if f.err != nil {
		return f.err
	}
	l.ID = uuid.New()
	f.created = append(f.created, l)
	return nil
}

type fakeQueue struct{ jobs []queue.EmailPayload }

func (q *fakeQueue) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	q.jobs = append(q.jobs, p)
	return nil
}

func strptr(s string) *string { return &s }

func TestJoinConfirmation_LogsAndQueues(t *testing.T) {
	logs, q := &fakeLogs{}, &fakeQueue{}
	s := NewSender(logs, q, mailer.NewRenderer(), true, nil)

	u := &models.User{ID: uuid.New(), Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}
	e := &models.Event{
		ID: uuid.New(), Title: "GopherCon", Location: "Hall A",
		EventDate: time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC), StartTime: "09:00", EndTime: strptr("17:00"),
	}
	a := &models.Attendee{ID: uuid.New(), TicketCode: strptr("ABCD1234")}

	require.NoError(t, s.JoinConfirmation(context.Background(), u, e, a))
	require.Len(t, logs.created, 1)
	l := logs.created[0]
	assert.Equal(t, models.EmailTypeJoinConfirmation, l.EmailType)
	assert.Equal(t, models.EmailLogStatusPending, l.Status)
	assert.Equal(t, "You're registered for GopherCon", l.Subject)
	assert.Equal(t, e.ID, *l.EventID)
	assert.Equal(t, a.ID, *l.AttendeeID)

	var data map[string]any
	require.NoError(t, json.Unmarshal(l.Payload, &data))
	assert.Equal(t, "Ada Lovelace", data["Name"])
	assert.Equal(t, "2026-11-02", data["EventDate"])
	assert.Equal(t, "09:00 - 17:00", data["EventTime"])
	assert.Equal(t, "ABCD1234", data["TicketCode"])

	require.Len(t, q.jobs, 1)
	assert.Equal(t, queue.EmailPayload{
		EmailLogID: l.ID, EmailType: models.EmailTypeJoinConfirmation, RecipientEmail: "ada@example.com",
	}, q.jobs[0])
}

func TestOTP_HasNoEvent(t *testing.T) {
	logs, q := &fakeLogs{}, &fakeQueue{}
	s := NewSender(logs, q, mailer.NewRenderer(), false, nil)
	assert.False(t, s.Enabled())

	require.NoError(t, s.OTP(context.Background(), "new@example.com", "123456", 10*time.Minute))
	require.Len(t, logs.created, 1)
	assert.Nil(t, logs.created[0].EventID)
	var data map[string]any
	require.NoError(t, json.Unmarshal(logs.created[0].Payload, &data))
	assert.Equal(t, "123456", data["Code"])
	assert.EqualValues(t, 10, data["ExpiresInMinutes"])
	assert.Len(t, q.jobs, 1)
}

func TestSend_LogFailureSkipsQueue(t *testing.T) {
	logs, q := &fakeLogs{err: errors.New("db down")}, &fakeQueue{}
	s := NewSender(logs, q, mailer.NewRenderer(), true, nil)

	u := &models.User{ID: uuid.New(), Email: "ada@example.com"}
	err := s.PasswordReset(context.Background(), u, "https://app.example.com/reset?token=x", 30*time.Minute)
	require.Error(t, err)
	assert.Empty(t, q.jobs)
}

func TestEventReminder_UsesAttendeeEmail(t *testing.T) {
	logs, q := &fakeLogs{}, &fakeQueue{}
	s := NewSender(logs, q, mailer.NewRenderer(), true, nil)
	e := &models.Event{ID: uuid.New(), Title: "Meetup", EventDate: time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC), StartTime: "18:00"}
	a := models.Attendee{ID: uuid.New(), UserEmail: "bob@example.com"}

	require.NoError(t, s.EventReminder(context.Background(), e, a))
	require.Len(t, q.jobs, 1)
	assert.Equal(t, "bob@example.com", q.jobs[0].RecipientEmail)
	assert.Equal(t, models.EmailTypeEventReminder, q.jobs[0].EmailType)
}
