package internal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"booking-backend/internal/model"
	"booking-backend/internal/scheduler"
	"booking-backend/internal/store"
)

// TestBookingLifecycle simulates the entire lifecycle of an approval-gated
// slot, from allocation through the waiting list to confirmation and
// cancellation, and verifies the database state at each step.
func TestBookingLifecycle(t *testing.T) {
	// --- Test Setup ---

	// 1. Setup an in-memory SQLite database for testing.
	testDB, err := gorm.Open(sqlite.Open("file:booking_lifecycle?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to the in-memory database: %v", err)
	}
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()

	err = testDB.AutoMigrate(&model.Resource{}, &model.Allocation{}, &model.Reservation{}, &model.PushSubscription{})
	assert.NoError(t, err)

	// 2. Instantiate the store and scheduler.
	gormStore := store.NewGormStore(testDB)
	resourceID := uuid.NewString()
	err = gormStore.CreateResource(context.Background(), &model.Resource{
		ID:    resourceID,
		Title: "Sauna",
	})
	assert.NoError(t, err)

	sched := scheduler.New(gormStore, resourceID)
	ctx := context.Background()

	start := time.Date(2025, 7, 7, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	var firstToken, secondToken string
	var firstID, secondID int64

	// --- Stage 1: Allocate an approval-gated slot ---
	t.Run("Stage 1: Allocate Approval-Gated Slot", func(t *testing.T) {
		allocations, err := sched.Allocate(ctx, start, end, scheduler.AllocateOptions{
			Quota:            1,
			Approve:          true,
			WaitinglistSpots: 2,
		})
		assert.NoError(t, err)
		assert.Len(t, allocations, 1, "quota one creates no extra mirrors")

		var count int64
		testDB.Model(&model.Allocation{}).Where("mirror_of = ?", resourceID).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	// --- Stage 2: Two requests join the waiting list ---
	t.Run("Stage 2: Requests Join Waiting List", func(t *testing.T) {
		first, err := sched.Reserve(ctx, start, end, model.JSONMap{"name": "Ada"})
		assert.NoError(t, err)
		assert.Len(t, first, 1)
		assert.Equal(t, model.StatusPending, first[0].Status)
		firstToken, firstID = first[0].Token, first[0].ID

		second, err := sched.Reserve(ctx, start, end, model.JSONMap{"name": "Grace"})
		assert.NoError(t, err)
		assert.Equal(t, model.StatusPending, second[0].Status)
		secondToken, secondID = second[0].Token, second[0].ID
		assert.NotEqual(t, firstToken, secondToken)

		// The waiting list is full now.
		_, err = sched.Reserve(ctx, start, end, nil)
		assert.ErrorIs(t, err, model.ErrCapacityExceeded)

		var pendingCount int64
		testDB.Model(&model.Reservation{}).Where("status = ?", model.StatusPending).Count(&pendingCount)
		assert.Equal(t, int64(2), pendingCount)
	})

	// --- Stage 3: First request gets approved ---
	t.Run("Stage 3: Confirmation Claims The Spot", func(t *testing.T) {
		confirmed, err := sched.Confirm(ctx, firstID)
		assert.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, confirmed.Status)
		assert.Equal(t, resourceID, confirmed.Mirror, "quota one maps onto the primary mirror")

		// The spot is taken, the second request cannot be approved.
		_, err = sched.Confirm(ctx, secondID)
		assert.ErrorIs(t, err, model.ErrCapacityExceeded)

		availability, err := sched.Availability(ctx, start, end)
		assert.NoError(t, err)
		assert.InDelta(t, 0.0, availability, 0.01)
	})

	// --- Stage 4: Cancellation frees the spot for the waiting list ---
	t.Run("Stage 4: Cancellation Promotes The Waiting List", func(t *testing.T) {
		promotable, err := sched.Cancel(ctx, firstID)
		assert.NoError(t, err)
		if assert.NotNil(t, promotable, "the remaining pending reservation is eligible") {
			assert.Equal(t, secondID, promotable.ID)
		}

		availability, err := sched.Availability(ctx, start, end)
		assert.NoError(t, err)
		assert.InDelta(t, 100.0, availability, 0.01)

		confirmed, err := sched.Confirm(ctx, secondID)
		assert.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, confirmed.Status)

		var remaining []model.Reservation
		testDB.Find(&remaining)
		assert.Len(t, remaining, 1)
		assert.Equal(t, secondToken, remaining[0].Token)
	})
}
