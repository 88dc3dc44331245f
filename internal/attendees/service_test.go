package attendees

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occasio/backend/internal/clock"
	"github.com/occasio/backend/internal/events"
	"github.com/occasio/backend/internal/models"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	rows   map[uuid.UUID]*models.Attendee
	events *fakeEvents

	// collisions makes the next N Create/Update calls fail with ErrTicketCollision.
	collisions int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[uuid.UUID]*models.Attendee{}}
}

func (s *fakeStore) GetByEventAndUser(_ context.Context, eventID, userID uuid.UUID) (*models.Attendee, error) {
	for _, a := range s.rows {
		if a.EventID == eventID && a.UserID == userID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, models.NotFound("Attendee not found")
}

func (s *fakeStore) GetByTicketCode(_ context.Context, code string) (*models.Attendee, error) {
	for _, a := range s.rows {
		if a.TicketCode != nil && *a.TicketCode == code {
			cp := *a
			cp.UserEmail = "guest@example.com"
			return &cp, nil
		}
	}
	return nil, models.NotFound("Attendee not found")
}

func (s *fakeStore) CountActive(_ context.Context, eventID uuid.UUID) (int, error) {
	n := 0
	for _, a := range s.rows {
		if a.EventID == eventID && a.Status.Active() {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) Create(_ context.Context, a *models.Attendee) error {
	if s.collisions > 0 {
		s.collisions--
		return models.ErrTicketCollision
	}
	a.ID = uuid.New()
	a.RegisteredAt = testNow
	cp := *a
	s.rows[a.ID] = &cp
	return nil
}

func (s *fakeStore) Update(_ context.Context, a *models.Attendee) error {
	if s.collisions > 0 {
		s.collisions--
		return models.ErrTicketCollision
	}
	cp := *a
	s.rows[a.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.AttendeeStatus) error {
	a, ok := s.rows[id]
	if !ok {
		return models.NotFound("Attendee not found")
	}
	a.Status = status
	return nil
}

func (s *fakeStore) ListTicketsByUser(_ context.Context, userID uuid.UUID) ([]models.AttendeeWithEvent, error) {
	var out []models.AttendeeWithEvent
	for _, a := range s.rows {
		if a.UserID != userID || !a.Status.Active() || !a.HasTicket() {
			continue
		}
		e, ok := s.events.events[a.EventID]
		if !ok {
			continue
		}
		out = append(out, models.AttendeeWithEvent{Attendee: *a, Event: *e})
	}
	return out, nil
}

func (s *fakeStore) ListActiveByEvent(_ context.Context, eventID uuid.UUID) ([]models.Attendee, error) {
	var out []models.Attendee
	for _, a := range s.rows {
		if a.EventID == eventID && a.Status.Active() {
			out = append(out, *a)
		}
	}
	return out, nil
}

type fakeEvents struct {
	events map[uuid.UUID]*models.Event
	locked int
}

func (f *fakeEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, models.NotFound("Event not found")
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEvents) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	f.locked++
	return f.GetByID(ctx, id)
}

type fakeTx struct{ calls int }

func (t *fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type seqCodes struct{ n int }

func (g *seqCodes) Code(eventID, _ uuid.UUID) string {
	g.n++
	return fmt.Sprintf("TKT-%s-%08X", eventID, g.n)
}

type fakeQR struct{ err error }

func (q fakeQR) Encode(content string) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	return "data:image/png;base64," + content, nil
}

type fakeUsers struct{}

func (fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return &models.User{ID: id, Email: "guest@example.com"}, nil
}

type fakeNotifier struct {
	sent int
	err  error
}

func (n *fakeNotifier) JoinConfirmation(context.Context, *models.User, *models.Event, *models.Attendee) error {
	n.sent++
	return n.err
}

type published struct {
	eventID uuid.UUID
	kind    string
}

type fakeFeed struct{ msgs []published }

func (f *fakeFeed) Publish(_ context.Context, eventID uuid.UUID, kind string, _ any) error {
	f.msgs = append(f.msgs, published{eventID, kind})
	return nil
}

type fixture struct {
	svc      *Service
	store    *fakeStore
	events   *fakeEvents
	tx       *fakeTx
	notifier *fakeNotifier
	feed     *fakeFeed
}

func newFixture() *fixture {
	f := &fixture{
		store:    newFakeStore(),
		events:   &fakeEvents{events: map[uuid.UUID]*models.Event{}},
		tx:       &fakeTx{},
		notifier: &fakeNotifier{},
		feed:     &fakeFeed{},
	}
	f.store.events = f.events
	policy := events.StatusPolicy{DefaultDuration: events.DefaultDuration, Location: time.UTC}
	f.svc = NewService(Deps{
		Store:       f.store,
		Events:      f.events,
		Tx:          f.tx,
		Codes:       &seqCodes{},
		QR:          fakeQR{},
		Status:      events.NewStatusResolver(policy, clock.NewFixed(testNow), nil, false, nil),
		Users:       fakeUsers{},
		Notifier:    f.notifier,
		Broadcaster: f.feed,
	}, nil)
	return f
}

// event adds an individually organized event starting at date/start.
func (f *fixture) event(date, start string, capacity *int) *models.Event {
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		panic(err)
	}
	e := &models.Event{
		ID:           uuid.New(),
		Title:        "Launch party",
		EventDate:    d,
		StartTime:    start,
		Status:       models.EventStatusUpcoming,
		MaxAttendees: capacity,
		Owner:        models.IndividualOwner(uuid.New()),
	}
	f.events.events[e.ID] = e
	return e
}

func intp(n int) *int { return &n }

func TestJoin_IssuesTicket(t *testing.T) {
	f := newFixture()
	e := f.event("2026-05-12", "18:00", nil)
	userID := uuid.New()

	res, err := f.svc.Join(context.Background(), e.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, "Successfully joined the event", res.Message)
	assert.False(t, res.Rejoined)
	assert.Contains(t, res.Ticket.TicketCode, e.ID.String())
	assert.Equal(t, "data:image/png;base64,"+res.Ticket.TicketCode, res.Ticket.QRCode)
	assert.Equal(t, 1, f.events.locked)
	assert.Equal(t, 1, f.notifier.sent)
	require.Len(t, f.feed.msgs, 1)
	assert.Equal(t, MessageAttendeeJoined, f.feed.msgs[0].kind)

	n, _ := f.store.CountActive(context.Background(), e.ID)
	assert.Equal(t, 1, n)
}

func TestJoin_DoubleJoinConflicts(t *testing.T) {
	f := newFixture()
	e := f.event("2026-05-12", "18:00", nil)
	userID := uuid.New()

	_, err := f.svc.Join(context.Background(), e.ID, userID)
	require.NoError(t, err)
	_, err = f.svc.Join(context.Background(), e.ID, userID)
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Equal(t, "You have already joined this event", err.Error())
}

func TestJoin_Rejections(t *testing.T) {
	f := newFixture()
	upcoming := f.event("2026-05-12", "18:00", nil)
	ended := f.event("2026-05-01", "10:00", nil)
	cancelled := f.event("2026-05-12", "18:00", nil)
	cancelled.Status = models.EventStatusCancelled
	organizer, _ := upcoming.Owner.UserID()

	tests := []struct {
		name    string
		eventID uuid.UUID
		userID  uuid.UUID
		kind    error
		msg     string
	}{
		{"missing event", uuid.New(), uuid.New(), models.ErrNotFound, "Event not found"},
		{"organizer", upcoming.ID, organizer, models.ErrInvalidOperation, "You cannot join your own event"},
		{"cancelled", cancelled.ID, uuid.New(), models.ErrInvalidOperation, "This event has been cancelled"},
		{"completed", ended.ID, uuid.New(), models.ErrInvalidOperation, "This event has already ended"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Join(context.Background(), tt.eventID, tt.userID)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.msg, err.Error())
		})
	}
	assert.Empty(t, f.store.rows)
}

func TestJoin_Capacity(t *testing.T) {
	f := newFixture()
	e := f.event("2026-05-12", "18:00", intp(2))
	ctx := context.Background()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	_, err := f.svc.Join(ctx, e.ID, a)
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, e.ID, b)
	require.NoError(t, err)

	_, err = f.svc.Join(ctx, e.ID, c)
	assert.ErrorIs(t, err, models.ErrEventFull)
	assert.Equal(t, "This event is full", err.Error())

	_, err = f.svc.Leave(ctx, e.ID, a)
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, e.ID, c)
	require.NoError(t, err)

	// a's cancelled row does not bypass the capacity check on re-join.
	_, err = f.svc.Join(ctx, e.ID, a)
	assert.ErrorIs(t, err, models.ErrEventFull)
}

func TestLeaveAndRejoin_KeepsTicket(t *testing.T) {
	f := newFixture()
	e := f.event("2026-05-12", "18:00", nil)
	ctx := context.Background()
	userID := uuid.New()

	first, err := f.svc.Join(ctx, e.ID, userID)
	require.NoError(t, err)

	msg, err := f.svc.Leave(ctx, e.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, "Successfully left the event", msg)

	_, err = f.svc.Leave(ctx, e.ID, userID)
	assert.ErrorIs(t, err, models.ErrInvalidOperation)
	assert.Equal(t, "You have already left this event", err.Error())

	_, err = f.svc.GetTicket(ctx, e.ID, userID)
	assert.Equal(t, "Your registration has been cancelled for this event", err.Error())

	again, err := f.svc.Join(ctx, e.ID, userID)
	require.NoError(t, err)
	assert.True(t, again.Rejoined)
	assert.Equal(t, "Successfully re-joined the event", again.Message)
	assert.Equal(t, first.Ticket, again.Ticket)
	assert.Len(t, f.store.rows, 1)
}

func TestLeave_NotRegistered(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Leave(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, "You are not registered for this event", err.Error())
}

func TestJoin_RetriesTicketCollision(t *testing.T) {
	f := newFixture()
	e := f.event("2026-05-12", "18:00", nil)
	f.store.collisions = 2

	res, err := f.svc.Join(context.Background(), e.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 3, f.tx.calls)
	assert.NotEmpty(t, res.Ticket.TicketCode)
}

func TestJoin_GivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newFixture()
	e := f.event("2026-05-12", "18:00", nil)
	f.store.collisions = maxJoinAttempts

	_, err := f.svc.Join(context.Background(), e.ID, uuid.New())
	assert.ErrorIs(t, err, models.ErrTicketCollision)
	assert.Equal(t, maxJoinAttempts, f.tx.calls)
}

func TestJoin_NotificationFailureIsIgnored(t *testing.T) {
	f := newFixture()
	f.notifier.err = errors.New("redis down")
	e := f.event("2026-05-12", "18:00", nil)

	_, err := f.svc.Join(context.Background(), e.ID, uuid.New())
	assert.NoError(t, err)
}

func TestGetTicket(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e := f.event("2026-05-12", "18:00", nil)
	userID := uuid.New()
	joined, err := f.svc.Join(ctx, e.ID, userID)
	require.NoError(t, err)

	v, err := f.svc.GetTicket(ctx, e.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, joined.Ticket.TicketCode, v.TicketCode)
	assert.Equal(t, "Launch party", v.EventTitle)
	assert.Equal(t, "2026-05-12", v.EventDate)
	assert.Equal(t, models.EventStatusUpcoming, v.EventStatus)

	_, err = f.svc.GetTicket(ctx, e.ID, uuid.New())
	assert.Equal(t, "You are not registered for this event", err.Error())

	// A completed event hides its tickets.
	f.events.events[e.ID].EventDate = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.GetTicket(ctx, e.ID, userID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, "This event has completed. Tickets are no longer available.", err.Error())
}

func TestGetTicket_MissingTicket(t *testing.T) {
	f := newFixture()
	e := f.event("2026-05-12", "18:00", nil)
	userID := uuid.New()
	require.NoError(t, f.store.Create(context.Background(), &models.Attendee{
		EventID: e.ID, UserID: userID, Status: models.AttendeeStatusRegistered,
	}))

	_, err := f.svc.GetTicket(context.Background(), e.ID, userID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, "Ticket not found for this registration", err.Error())
}

// ongoingEvent returns an event whose window contains testNow.
func (f *fixture) ongoingEvent() *models.Event {
	return f.event("2026-05-10", "11:00", nil)
}

func TestVerifyAttendee_ConfirmsAndIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e := f.ongoingEvent()
	userID := uuid.New()
	joined, err := f.svc.Join(ctx, e.ID, userID)
	require.NoError(t, err)

	res, err := f.svc.VerifyAttendee(ctx, e.ID, joined.Ticket.TicketCode)
	require.NoError(t, err)
	assert.Equal(t, models.AttendeeStatusConfirmed, res.Attendee.Status)
	assert.Equal(t, userID, res.Attendee.UserID)
	require.NotNil(t, res.Attendee.User)
	assert.Equal(t, "guest@example.com", res.Attendee.User.Email)

	again, err := f.svc.VerifyAttendee(ctx, e.ID, joined.Ticket.TicketCode)
	require.NoError(t, err)
	assert.Equal(t, models.AttendeeStatusConfirmed, again.Attendee.Status)
	assert.Equal(t, res.Attendee.ID, again.Attendee.ID)

	var verified int
	for _, m := range f.feed.msgs {
		if m.kind == MessageAttendeeVerified {
			verified++
		}
	}
	assert.Equal(t, 2, verified)
}

func TestVerifyAttendee_Rejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e := f.event("2026-05-12", "18:00", nil)
	other := f.event("2026-05-12", "18:00", nil)
	userID := uuid.New()
	joined, err := f.svc.Join(ctx, e.ID, userID)
	require.NoError(t, err)
	code := joined.Ticket.TicketCode

	_, err = f.svc.VerifyAttendee(ctx, e.ID, "TKT-unknown")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, "Ticket not found or invalid", err.Error())

	_, err = f.svc.VerifyAttendee(ctx, other.ID, code)
	assert.ErrorIs(t, err, models.ErrInvalidOperation)
	assert.Equal(t, "Ticket does not belong to this event", err.Error())

	_, err = f.svc.VerifyAttendee(ctx, e.ID, code)
	assert.Equal(t, "This event has not started yet. QR code verification is only allowed during the event.", err.Error())

	f.events.events[e.ID].EventDate = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.VerifyAttendee(ctx, e.ID, code)
	assert.Equal(t, "This event has already completed. QR code verification is only allowed during the event.", err.Error())

	f.events.events[e.ID].Status = models.EventStatusCancelled
	_, err = f.svc.VerifyAttendee(ctx, e.ID, code)
	assert.Equal(t, "This event has been cancelled. QR code is no longer valid.", err.Error())

	_, err = f.svc.Leave(ctx, e.ID, userID)
	require.NoError(t, err)
	_, err = f.svc.VerifyAttendee(ctx, e.ID, code)
	assert.Equal(t, "This ticket has been cancelled", err.Error())

	a, _ := f.store.GetByEventAndUser(ctx, e.ID, userID)
	assert.Equal(t, models.AttendeeStatusCancelled, a.Status)
}

func TestListByEvent_SkipsCancelled(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e := f.event("2026-05-12", "18:00", nil)
	stay, leave := uuid.New(), uuid.New()
	_, err := f.svc.Join(ctx, e.ID, stay)
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, e.ID, leave)
	require.NoError(t, err)
	_, err = f.svc.Leave(ctx, e.ID, leave)
	require.NoError(t, err)

	list, err := f.svc.ListByEvent(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, stay, list[0].UserID)
}

func TestListTickets_HidesCancelledAndCompleted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()

	ongoing := f.event("2026-05-10", "11:00", nil)
	ended := f.event("2026-05-12", "18:00", nil)
	left := f.event("2026-05-12", "18:00", nil)
	for _, e := range []*models.Event{ongoing, ended, left} {
		_, err := f.svc.Join(ctx, e.ID, userID)
		require.NoError(t, err)
	}
	_, err := f.svc.Leave(ctx, left.ID, userID)
	require.NoError(t, err)
	f.events.events[ended.ID].EventDate = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	list, err := f.svc.ListTickets(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ongoing.ID, list[0].EventID)
	assert.Equal(t, models.EventStatusOngoing, list[0].EventStatus)

	none, err := f.svc.ListTickets(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}
