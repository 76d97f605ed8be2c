// Package scheduler is the operational façade of the booking core. A
// Scheduler is scoped to one logical resource: it computes availability,
// creates, confirms and cancels reservations, and enforces quota and
// waiting-list rules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"booking-backend/internal/clock"
	"booking-backend/internal/model"
	"booking-backend/internal/store"
	"booking-backend/internal/timespan"
)

const defaultMaxRetries = 3

// Scheduler performs all reservation mutations for one logical resource.
// Mutating calls are serialized per resource and retried on transient
// serialization conflicts.
type Scheduler struct {
	store      store.Store
	resource   string
	clock      clock.Clock
	translate  Translator
	maxRetries int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithTranslator installs the message-key translation hook used by
// DescribeAvailability. The default returns the key unchanged.
func WithTranslator(t Translator) Option {
	return func(s *Scheduler) {
		if t != nil {
			s.translate = t
		}
	}
}

// WithMaxRetries bounds the conflict retry budget of mutating calls.
func WithMaxRetries(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// New creates a Scheduler for the given logical resource identifier.
func New(st store.Store, resource string, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:      st,
		resource:   resource,
		clock:      clock.System{},
		translate:  identityTranslator,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resource returns the logical resource identifier this scheduler serves.
func (s *Scheduler) Resource() string {
	return s.resource
}

// mutate runs fn in one transaction while holding the per-resource lock,
// retrying serialization conflicts up to the retry budget. Exhausted retries
// surface as ErrCapacityExceeded: the caller should treat the slot as taken
// and try again later.
func (s *Scheduler) mutate(ctx context.Context, fn func(tx store.Store) error) error {
	mu := lockFor(s.resource)
	mu.Lock()
	defer mu.Unlock()

	var err error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err = s.store.Transaction(ctx, fn)
		if !errors.Is(err, model.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("%w: %d serialization conflicts in a row", model.ErrCapacityExceeded, s.maxRetries)
}

// Reserve claims [start, end] on this resource. One reservation is created
// per overlapping allocation, all sharing a token. Approval-gated
// allocations yield pending reservations counted against the waiting list;
// everything else is confirmed immediately, provided a mirror has room.
func (s *Scheduler) Reserve(ctx context.Context, start, end time.Time, data model.JSONMap) ([]model.Reservation, error) {
	if !start.Before(end) {
		return nil, model.ErrInvalidRange
	}

	token := uuid.NewString()
	now := s.clock.Now()

	var created []model.Reservation
	err := s.mutate(ctx, func(tx store.Store) error {
		created = created[:0]

		masters, err := tx.MastersOverlapping(ctx, s.resource, start, end)
		if err != nil {
			return err
		}

		// An allocation touching the request at a single endpoint carries
		// no bookable duration and is not claimed; availability accounting
		// skips such allocations the same way.
		n := 0
		for i := range masters {
			if overlapSeconds(masters[i].Start, masters[i].End, start, end) > 0 {
				masters[n] = masters[i]
				n++
			}
		}
		masters = masters[:n]
		if len(masters) == 0 {
			return model.ErrInvalidRange
		}

		for i := range masters {
			a := &masters[i]
			span := reservedSpan(a, start, end)

			r := model.Reservation{
				Token:      token,
				Target:     a.Group,
				TargetType: model.TargetAllocation,
				Resource:   a.MirrorOf,
				Start:      span.Start,
				End:        span.End,
				Data:       data,
				CreatedAt:  now,
			}

			if a.Approve {
				open, err := openSpots(ctx, tx, a)
				if err != nil {
					return err
				}
				if open <= 0 {
					return model.ErrCapacityExceeded
				}
				r.Status = model.StatusPending
			} else {
				free, err := findFreeMirror(ctx, tx, a, span)
				if err != nil {
					return err
				}
				r.Status = model.StatusConfirmed
				r.Mirror = free.Resource
			}

			if err := tx.CreateReservation(ctx, &r); err != nil {
				return err
			}
			created = append(created, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ReserveGroup claims every allocation of a group as one unit. The created
// reservation spans the whole group and is expanded across all group
// allocations by availability accounting and reports.
func (s *Scheduler) ReserveGroup(ctx context.Context, group string, data model.JSONMap) (*model.Reservation, error) {
	now := s.clock.Now()

	var created model.Reservation
	err := s.mutate(ctx, func(tx store.Store) error {
		masters, err := tx.MastersByGroup(ctx, group)
		if err != nil {
			return err
		}
		if len(masters) == 0 || masters[0].MirrorOf != s.resource {
			return model.ErrNotFound
		}

		first := masters[0]
		last := masters[len(masters)-1]

		created = model.Reservation{
			Token:      uuid.NewString(),
			Target:     group,
			TargetType: model.TargetGroup,
			Resource:   s.resource,
			Start:      first.Start,
			End:        last.End,
			Data:       data,
			CreatedAt:  now,
		}

		// Group allocations share the booking flags; the first one decides.
		if first.Approve {
			open, err := openSpots(ctx, tx, &first)
			if err != nil {
				return err
			}
			if open <= 0 {
				return model.ErrCapacityExceeded
			}
			created.Status = model.StatusPending
		} else {
			for i := range masters {
				a := &masters[i]
				if _, err := findFreeMirror(ctx, tx, a, a.Span()); err != nil {
					return err
				}
			}
			created.Status = model.StatusConfirmed
		}

		return tx.CreateReservation(ctx, &created)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Confirm transitions a pending reservation to confirmed. Confirming an
// already confirmed reservation is reported, not ignored. Confirmation
// assigns the reservation to a free mirror; when every mirror is taken the
// confirmation fails with ErrCapacityExceeded.
func (s *Scheduler) Confirm(ctx context.Context, reservationID int64) (*model.Reservation, error) {
	var confirmed *model.Reservation
	err := s.mutate(ctx, func(tx store.Store) error {
		r, err := tx.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if r.Status == model.StatusConfirmed {
			return model.ErrAlreadyConfirmed
		}

		switch {
		case r.TargetType == model.TargetAllocation && r.Mirror == "":
			a, err := slotOf(ctx, tx, r)
			if err != nil {
				return err
			}
			free, err := findFreeMirror(ctx, tx, a, timespan.Span{Start: r.Start, End: r.End})
			if err != nil {
				return err
			}
			r.Mirror = free.Resource
		case r.TargetType == model.TargetGroup:
			// A confirmed group reservation occupies one capacity unit on
			// every slot of its group; each slot must still have room.
			masters, err := tx.MastersByGroup(ctx, r.Target)
			if err != nil {
				return err
			}
			for i := range masters {
				a := &masters[i]
				if _, err := findFreeMirror(ctx, tx, a, a.Span()); err != nil {
					return err
				}
			}
		}

		r.Status = model.StatusConfirmed
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return err
		}
		confirmed = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// Cancel removes a reservation. When a confirmed reservation is cancelled
// and a pending one waits on the same target, the earliest pending
// reservation is returned as promotion-eligible. Promotion itself is left to
// the caller.
func (s *Scheduler) Cancel(ctx context.Context, reservationID int64) (*model.Reservation, error) {
	var promotable *model.Reservation
	err := s.mutate(ctx, func(tx store.Store) error {
		promotable = nil

		r, err := tx.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := tx.DeleteReservation(ctx, reservationID); err != nil {
			return err
		}

		if r.Status == model.StatusConfirmed {
			promotable, err = tx.EarliestPending(ctx, r.Target)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return promotable, nil
}

// OpenWaitinglistSpots returns how many pending reservations the
// allocation's waiting list can still take, floored at zero.
func (s *Scheduler) OpenWaitinglistSpots(ctx context.Context, a *model.Allocation) (int, error) {
	return openSpots(ctx, s.store, a)
}

func openSpots(ctx context.Context, st store.Store, a *model.Allocation) (int, error) {
	pending, err := st.CountReservations(ctx, a.Group, model.StatusPending)
	if err != nil {
		return 0, err
	}
	open := a.WaitinglistSpots - int(pending)
	if open < 0 {
		open = 0
	}
	return open, nil
}

// reservedSpan returns the effective reserved range on an allocation: the
// requested sub-range for partly available allocations, the whole slot
// otherwise.
func reservedSpan(a *model.Allocation, start, end time.Time) timespan.Span {
	if !a.PartlyAvailable {
		return a.Span()
	}
	span := timespan.Span{Start: start, End: end}
	if span.Start.Before(a.Start) {
		span.Start = a.Start
	}
	if span.End.After(a.End) {
		span.End = a.End
	}
	return span
}

// slotOf resolves the primary allocation a single-slot reservation claims.
func slotOf(ctx context.Context, tx store.Store, r *model.Reservation) (*model.Allocation, error) {
	masters, err := tx.MastersByGroup(ctx, r.Target)
	if err != nil {
		return nil, err
	}
	for i := range masters {
		if masters[i].Overlaps(r.Start, r.End) {
			return &masters[i], nil
		}
	}
	return nil, model.ErrNotFound
}

// findFreeMirror picks the first mirror of the slot with room for span.
// Non-partly-available slots hold one confirmed reservation per mirror;
// partly available ones hold any number of non-overlapping sub-ranges.
func findFreeMirror(ctx context.Context, tx store.Store, a *model.Allocation, span timespan.Span) (*model.Allocation, error) {
	mirrors, err := tx.MirrorsOfSlot(ctx, a.MirrorOf, a.Start)
	if err != nil {
		return nil, err
	}

	confirmed, err := tx.ReservationsByTarget(ctx, a.Group, model.StatusConfirmed)
	if err != nil {
		return nil, err
	}

	// Reservations without a mirror assignment (group bookings) occupy one
	// capacity unit on every slot of the group.
	var unassigned int
	byMirror := make(map[string][]timespan.Span)
	for i := range confirmed {
		r := &confirmed[i]
		if !timespan.Overlaps(r.Start, r.End, a.Start, a.End) {
			continue
		}
		if r.Mirror == "" {
			unassigned++
			continue
		}
		byMirror[r.Mirror] = append(byMirror[r.Mirror], timespan.Span{Start: r.Start, End: r.End})
	}

	if !a.PartlyAvailable {
		if len(byMirror)+unassigned >= a.Quota {
			return nil, model.ErrCapacityExceeded
		}
		for i := range mirrors {
			if _, taken := byMirror[mirrors[i].Resource]; !taken {
				return &mirrors[i], nil
			}
		}
		return nil, model.ErrCapacityExceeded
	}

	// Mirrors claimed by whole-group bookings are taken off the end.
	usable := len(mirrors) - unassigned
	for i := 0; i < usable; i++ {
		free := true
		for _, busy := range byMirror[mirrors[i].Resource] {
			if timespan.Overlaps(busy.Start, busy.End, span.Start, span.End) {
				free = false
				break
			}
		}
		if free {
			return &mirrors[i], nil
		}
	}
	return nil, model.ErrCapacityExceeded
}
