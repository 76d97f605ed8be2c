package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"booking-backend/internal/mirror"
	"booking-backend/internal/model"
	"booking-backend/internal/store"
)

// AllocateOptions control how a new time slot is created.
type AllocateOptions struct {
	// Quota is the number of parallel independent bookings for the slot.
	// Values below 1 mean 1.
	Quota int
	// Group joins the slot to an existing allocation group. Empty creates
	// a new single-slot group.
	Group            string
	PartlyAvailable  bool
	Approve          bool
	WaitinglistSpots int
}

// Allocate defines a new bookable slot for this resource: one primary
// allocation plus quota-1 mirror allocations sharing start, end and group.
func (s *Scheduler) Allocate(ctx context.Context, start, end time.Time, opts AllocateOptions) ([]model.Allocation, error) {
	if !start.Before(end) {
		return nil, model.ErrInvalidRange
	}

	logical, err := uuid.Parse(s.resource)
	if err != nil {
		return nil, model.ErrNotFound
	}

	quota := opts.Quota
	if quota < 1 {
		quota = 1
	}
	group := opts.Group
	if group == "" {
		group = uuid.NewString()
	}

	identities := mirror.Set(logical, quota)
	allocations := make([]model.Allocation, 0, quota)
	for _, id := range identities {
		allocations = append(allocations, model.Allocation{
			Resource:         id.String(),
			MirrorOf:         s.resource,
			Start:            start,
			End:              end,
			Group:            group,
			Quota:            quota,
			PartlyAvailable:  opts.PartlyAvailable,
			Approve:          opts.Approve,
			WaitinglistSpots: opts.WaitinglistSpots,
		})
	}

	err = s.mutate(ctx, func(tx store.Store) error {
		return tx.CreateAllocations(ctx, allocations)
	})
	if err != nil {
		return nil, err
	}
	return allocations, nil
}

// IsGroupAllocation reports whether the allocation's group holds more than
// one slot, i.e. whether booking the group claims multiple allocations.
func (s *Scheduler) IsGroupAllocation(ctx context.Context, a *model.Allocation) (bool, error) {
	masters, err := s.store.MastersByGroup(ctx, a.Group)
	if err != nil {
		return false, err
	}
	return len(masters) > 1, nil
}
