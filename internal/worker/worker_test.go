package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occasio/backend/internal/clock"
	"github.com/occasio/backend/internal/mailer"
	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/pkg/queue"
)

type fakeLogs struct {
	logs map[uuid.UUID]*models.EmailLog
}

func (f *fakeLogs) GetByID(_ context.Context, id uuid.UUID) (*models.EmailLog, error) {
	l, ok := f.logs[id]
	if !ok {
		return nil, models.NotFound("Email log not found")
	}
	cp := *l
	return &cp, nil
}

func (f *fakeLogs) MarkSent(_ context.Context, id uuid.UUID, subject string, at time.Time) error {
	l := f.logs[id]
	l.Status, l.Subject, l.SentAt = models.EmailLogStatusSent, subject, &at
	l.Attempts++
	return nil
}

func (f *fakeLogs) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	l := f.logs[id]
	l.Status, l.ErrorMessage = models.EmailLogStatusFailed, reason
	l.Attempts++
	return nil
}

type sent struct{ to, subject, html string }

type fakeMailer struct {
	sent []sent
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, html, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sent{to, subject, html})
	return nil
}

var now = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func newLog(t *testing.T, data any) *models.EmailLog {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return &models.EmailLog{
		ID: uuid.New(), EmailType: models.EmailTypeOTP, RecipientEmail: "ada@example.com",
		Status: models.EmailLogStatusPending, Payload: raw,
	}
}

func emailJob(t *testing.T, l *models.EmailLog) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(queue.EmailPayload{EmailLogID: l.ID, EmailType: l.EmailType, RecipientEmail: l.RecipientEmail})
	require.NoError(t, err)
	return &queue.Job{ID: "j1", Type: queue.JobTypeEmail, Payload: raw}
}

func TestProcess_SendsAndMarksSent(t *testing.T) {
	l := newLog(t, mailer.OTPData{Code: "424242", ExpiresInMinutes: 10})
	logs := &fakeLogs{logs: map[uuid.UUID]*models.EmailLog{l.ID: l}}
	m := &fakeMailer{}
	p := NewEmailProcessor(logs, m, mailer.NewRenderer(), nil, clock.NewFixed(now), nil)

	require.NoError(t, p.Process(context.Background(), emailJob(t, l)))
	require.Len(t, m.sent, 1)
	assert.Equal(t, "ada@example.com", m.sent[0].to)
	assert.Contains(t, m.sent[0].html, "424242")
	assert.Equal(t, models.EmailLogStatusSent, l.Status)
	assert.Equal(t, now, *l.SentAt)
	assert.NotEmpty(t, l.Subject)
}

func TestProcess_SkipsAlreadySent(t *testing.T) {
	l := newLog(t, mailer.OTPData{Code: "1"})
	l.Status = models.EmailLogStatusSent
	logs := &fakeLogs{logs: map[uuid.UUID]*models.EmailLog{l.ID: l}}
	m := &fakeMailer{}
	p := NewEmailProcessor(logs, m, mailer.NewRenderer(), nil, clock.NewFixed(now), nil)

	require.NoError(t, p.Process(context.Background(), emailJob(t, l)))
	assert.Empty(t, m.sent)
}

func TestProcess_SendFailureMarksFailed(t *testing.T) {
	l := newLog(t, mailer.OTPData{Code: "1"})
	logs := &fakeLogs{logs: map[uuid.UUID]*models.EmailLog{l.ID: l}}
	m := &fakeMailer{err: errors.New("throttled")}
	p := NewEmailProcessor(logs, m, mailer.NewRenderer(), nil, clock.NewFixed(now), nil)

	err := p.Process(context.Background(), emailJob(t, l))
	require.Error(t, err)
	assert.Equal(t, models.EmailLogStatusFailed, l.Status)
	assert.Contains(t, l.ErrorMessage, "throttled")
	assert.Equal(t, 1, l.Attempts)
}

func TestProcess_RejectsUnknownJobType(t *testing.T) {
	p := NewEmailProcessor(&fakeLogs{}, &fakeMailer{}, mailer.NewRenderer(), nil, clock.NewFixed(now), nil)
	err := p.Process(context.Background(), &queue.Job{Type: "recording_upload"})
	assert.Error(t, err)
}

func TestRun_DeadLettersAfterRetries(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	q := queue.NewQueue(rdb, nil)

	l := newLog(t, mailer.OTPData{Code: "1"})
	logs := &fakeLogs{logs: map[uuid.UUID]*models.EmailLog{l.ID: l}}
	m := &fakeMailer{err: errors.New("smtp down")}
	p := NewEmailProcessor(logs, m, mailer.NewRenderer(), q, clock.NewFixed(now), nil)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.EnqueueEmail(ctx, queue.EmailPayload{EmailLogID: l.ID, EmailType: l.EmailType}))

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		n, err := q.Len(context.Background(), queue.QueueDLQ)
		return err == nil && n == 1
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, queue.MaxRetries, l.Attempts)
	assert.Equal(t, models.EmailLogStatusFailed, l.Status)
}
