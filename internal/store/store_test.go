package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"booking-backend/internal/model"
)

func newTestStore(t *testing.T) Store {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Resource{},
		&model.Allocation{},
		&model.Reservation{},
		&model.PushSubscription{},
	))

	return NewGormStore(db)
}

func newAllocation(resource, mirrorOf, group string, start, end time.Time) model.Allocation {
	return model.Allocation{
		Resource: resource,
		MirrorOf: mirrorOf,
		Group:    group,
		Start:    start,
		End:      end,
		Quota:    1,
	}
}

func TestMastersOverlapping(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	logical := uuid.NewString()
	mirror := uuid.NewString()
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	allocations := []model.Allocation{
		newAllocation(logical, logical, uuid.NewString(), day.Add(9*time.Hour), day.Add(10*time.Hour)),
		newAllocation(mirror, logical, uuid.NewString(), day.Add(9*time.Hour), day.Add(10*time.Hour)),
		newAllocation(logical, logical, uuid.NewString(), day.Add(14*time.Hour), day.Add(15*time.Hour)),
	}
	require.NoError(t, st.CreateAllocations(ctx, allocations))

	got, err := st.MastersOverlapping(ctx, logical, day.Add(9*time.Hour), day.Add(10*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1, "mirrors must not be listed")
	assert.True(t, got[0].IsMaster())

	// Touching an endpoint counts as overlapping.
	got, err = st.MastersOverlapping(ctx, logical, day.Add(10*time.Hour), day.Add(11*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = st.MastersOverlapping(ctx, logical, day.Add(11*time.Hour), day.Add(12*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMirrorsOfSlot(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	logical := uuid.NewString()
	group := uuid.NewString()
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	allocations := []model.Allocation{
		newAllocation(logical, logical, group, start, end),
		newAllocation(uuid.NewString(), logical, group, start, end),
		newAllocation(uuid.NewString(), logical, group, start, end),
		// A different slot of the same resource.
		newAllocation(logical, logical, uuid.NewString(), start.Add(2*time.Hour), end.Add(2*time.Hour)),
	}
	require.NoError(t, st.CreateAllocations(ctx, allocations))

	got, err := st.MirrorsOfSlot(ctx, logical, start)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].IsMaster(), "the primary mirror is created first and sorts first")
}

func TestMastersByGroup(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	logical := uuid.NewString()
	group := uuid.NewString()
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	allocations := []model.Allocation{
		newAllocation(logical, logical, group, day.Add(9*time.Hour), day.Add(10*time.Hour)),
		newAllocation(uuid.NewString(), logical, group, day.Add(9*time.Hour), day.Add(10*time.Hour)),
		newAllocation(logical, logical, group, day.Add(33*time.Hour), day.Add(34*time.Hour)),
		newAllocation(logical, logical, uuid.NewString(), day.Add(14*time.Hour), day.Add(15*time.Hour)),
	}
	require.NoError(t, st.CreateAllocations(ctx, allocations))

	got, err := st.MastersByGroup(ctx, group)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, a := range got {
		assert.True(t, a.IsMaster())
		assert.Equal(t, group, a.Group)
	}
}

func TestReservationsByTargetOrdering(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	target := uuid.NewString()
	resource := uuid.NewString()
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	pending := model.Reservation{
		Token: uuid.NewString(), Target: target, TargetType: model.TargetAllocation,
		Resource: resource, Start: start, End: start.Add(time.Hour),
		Status: model.StatusPending,
	}
	require.NoError(t, st.CreateReservation(ctx, &pending))

	confirmed := model.Reservation{
		Token: uuid.NewString(), Target: target, TargetType: model.TargetAllocation,
		Resource: resource, Start: start, End: start.Add(time.Hour),
		Status: model.StatusConfirmed,
	}
	require.NoError(t, st.CreateReservation(ctx, &confirmed))

	got, err := st.ReservationsByTargets(ctx, []string{target})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.StatusConfirmed, got[0].Status, "confirmed sorts before pending")

	onlyPending, err := st.ReservationsByTarget(ctx, target, model.StatusPending)
	require.NoError(t, err)
	require.Len(t, onlyPending, 1)
	assert.Equal(t, pending.ID, onlyPending[0].ID)

	count, err := st.CountReservations(ctx, target, model.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEarliestPending(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	target := uuid.NewString()
	resource := uuid.NewString()
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	got, err := st.EarliestPending(ctx, target)
	require.NoError(t, err)
	assert.Nil(t, got, "no pending reservations yet")

	first := model.Reservation{
		Token: uuid.NewString(), Target: target, TargetType: model.TargetAllocation,
		Resource: resource, Start: start, End: start.Add(time.Hour),
		Status: model.StatusPending, CreatedAt: start,
	}
	require.NoError(t, st.CreateReservation(ctx, &first))

	second := model.Reservation{
		Token: uuid.NewString(), Target: target, TargetType: model.TargetAllocation,
		Resource: resource, Start: start, End: start.Add(time.Hour),
		Status: model.StatusPending, CreatedAt: start.Add(time.Minute),
	}
	require.NoError(t, st.CreateReservation(ctx, &second))

	got, err = st.EarliestPending(ctx, target)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
}

func TestDeleteReservationNotFound(t *testing.T) {
	st := newTestStore(t)

	err := st.DeleteReservation(context.Background(), 12345)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestGetResourceNotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetResource(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestTransactionRollsBack(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	resource := uuid.NewString()
	boom := errors.New("boom")
	err := st.Transaction(ctx, func(tx Store) error {
		if err := tx.CreateResource(ctx, &model.Resource{ID: resource, Title: "Gym"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = st.GetResource(ctx, resource)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
