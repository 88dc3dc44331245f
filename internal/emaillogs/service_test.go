package emaillogs

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/pkg/queue"
)

type fakeStore struct {
	logs map[uuid.UUID]*models.EmailLog
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.EmailLog, error) {
	l, ok := s.logs[id]
	if !ok {
		return nil, errLogNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *fakeStore) ListByEvent(_ context.Context, eventID uuid.UUID) ([]models.EmailLog, error) {
	var out []models.EmailLog
	for _, l := range s.logs {
		if l.EventID != nil && *l.EventID == eventID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkPending(_ context.Context, id uuid.UUID) error {
	s.logs[id].Status = models.EmailLogStatusPending
	s.logs[id].ErrorMessage = ""
	return nil
}

type fakeQueue struct{ jobs []queue.EmailPayload }

func (q *fakeQueue) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	q.jobs = append(q.jobs, p)
	return nil
}

func TestResend(t *testing.T) {
	eventID := uuid.New()
	failed := &models.EmailLog{
		ID: uuid.New(), EventID: &eventID, EmailType: models.EmailTypeEventReminder,
		RecipientEmail: "ada@example.com", Status: models.EmailLogStatusFailed, ErrorMessage: "throttled",
	}
	store := &fakeStore{logs: map[uuid.UUID]*models.EmailLog{failed.ID: failed}}
	q := &fakeQueue{}
	svc := NewService(store, q, nil)

	l, err := svc.Resend(context.Background(), eventID, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EmailLogStatusPending, l.Status)
	require.Len(t, q.jobs, 1)
	assert.Equal(t, failed.ID, q.jobs[0].EmailLogID)
	assert.Equal(t, "ada@example.com", q.jobs[0].RecipientEmail)
	assert.Equal(t, models.EmailLogStatusPending, store.logs[failed.ID].Status)

	// A log of another event is not visible through this event.
	_, err = svc.Resend(context.Background(), uuid.New(), failed.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.Resend(context.Background(), eventID, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestResend_WithoutQueue(t *testing.T) {
	svc := NewService(&fakeStore{logs: map[uuid.UUID]*models.EmailLog{}}, nil, nil)
	_, err := svc.Resend(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, models.ErrInvalidOperation)
}

func TestListByEvent_Empty(t *testing.T) {
	svc := NewService(&fakeStore{logs: map[uuid.UUID]*models.EmailLog{}}, &fakeQueue{}, nil)
	list, err := svc.ListByEvent(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
