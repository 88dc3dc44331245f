package attendees

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/internal/testutil"
	"github.com/occasio/backend/pkg/database"
)

func strp(s string) *string { return &s }

func TestRepository_Postgres(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	repo := NewRepository(pool)

	organizer := testutil.InsertUser(t, pool, "org@example.com")
	ada := testutil.InsertUser(t, pool, "ada@example.com")
	bob := testutil.InsertUser(t, pool, "bob@example.com")
	eventID := testutil.InsertEvent(t, pool, organizer, time.Now().AddDate(0, 0, 7), nil)

	a := &models.Attendee{EventID: eventID, UserID: ada, Status: models.AttendeeStatusRegistered,
		TicketCode: strp("CODE-A"), QRCode: strp("data:image/png;base64,AA==")}
	require.NoError(t, repo.Create(ctx, a))

	dup := &models.Attendee{EventID: eventID, UserID: ada, Status: models.AttendeeStatusRegistered}
	assert.ErrorIs(t, repo.Create(ctx, dup), models.ErrAlreadyRegistered)

	clash := &models.Attendee{EventID: eventID, UserID: bob, Status: models.AttendeeStatusRegistered, TicketCode: strp("CODE-A")}
	assert.ErrorIs(t, repo.Create(ctx, clash), models.ErrTicketCollision)

	got, err := repo.GetByTicketCode(ctx, "CODE-A")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "ada@example.com", got.UserEmail)

	n, err := repo.CountActive(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.UpdateStatus(ctx, a.ID, models.AttendeeStatusCancelled))
	n, err = repo.CountActive(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	counts, err := repo.CountByStatus(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.AttendeeStatusCancelled])

	_, err = repo.GetByEventAndUser(ctx, eventID, bob)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRepository_TxRollback(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	repo := NewRepository(pool)
	txm := database.NewTxManager(pool)

	organizer := testutil.InsertUser(t, pool, "org@example.com")
	ada := testutil.InsertUser(t, pool, "ada@example.com")
	eventID := testutil.InsertEvent(t, pool, organizer, time.Now().AddDate(0, 0, 7), nil)

	err := txm.WithTx(ctx, func(ctx context.Context) error {
		if err := repo.Create(ctx, &models.Attendee{EventID: eventID, UserID: ada, Status: models.AttendeeStatusRegistered}); err != nil {
			return err
		}
		return models.ErrEventFull
	})
	require.ErrorIs(t, err, models.ErrEventFull)

	n, err := repo.CountActive(ctx, eventID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
