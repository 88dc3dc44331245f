package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/internal/testutil"
)

func TestRepository_UpdateKeepsCancellation(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	repo := NewRepository(pool)

	organizer := testutil.InsertUser(t, pool, "org@example.com")
	id := testutil.InsertEvent(t, pool, organizer, time.Now().AddDate(0, 0, 7), nil)

	// An update prepared before the cancel lands must not revive the event.
	stale, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NoError(t, repo.Cancel(ctx, id))

	stale.Title = "Renamed"
	stale.Status = models.EventStatusUpcoming
	require.NoError(t, repo.Update(ctx, stale))
	assert.Equal(t, models.EventStatusCancelled, stale.Status)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, models.EventStatusCancelled, got.Status)

	require.NoError(t, repo.UpdateStatus(ctx, id, models.EventStatusOngoing))
	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusCancelled, got.Status)
}
