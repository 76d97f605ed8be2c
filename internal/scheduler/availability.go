package scheduler

import (
	"context"
	"errors"
	"time"

	"booking-backend/internal/model"
	"booking-backend/internal/timespan"
)

// Availability returns the fraction of capacity still unreserved across all
// mirrors overlapping [start, end], as a percentage in [0, 100]. The value
// is real-valued; rounding happens at presentation time only.
//
// Non-partly-available slots count confirmed reservations against the quota.
// Partly available ones measure the reserved share of the requested
// sub-range by interval arithmetic. Slots overlapping the request are
// weighted by their overlap duration.
func (s *Scheduler) Availability(ctx context.Context, start, end time.Time) (float64, error) {
	if !start.Before(end) {
		return 0, model.ErrInvalidRange
	}

	masters, err := s.store.MastersOverlapping(ctx, s.resource, start, end)
	if err != nil {
		return 0, err
	}
	if len(masters) == 0 {
		return 0, model.ErrNotFound
	}

	var capacity, free float64
	for i := range masters {
		a := &masters[i]

		overlap := overlapSeconds(a.Start, a.End, start, end)
		if overlap <= 0 {
			// Touching endpoints carry no bookable duration.
			continue
		}

		confirmed, err := s.store.ReservationsByTarget(ctx, a.Group, model.StatusConfirmed)
		if err != nil {
			return 0, err
		}

		slotCap := float64(a.Quota) * overlap
		capacity += slotCap

		if !a.PartlyAvailable {
			count := 0
			for j := range confirmed {
				if timespan.Overlaps(confirmed[j].Start, confirmed[j].End, a.Start, a.End) {
					count++
				}
			}
			if count > a.Quota {
				count = a.Quota
			}
			free += float64(a.Quota-count) * overlap
			continue
		}

		span := reservedSpan(a, start, end)
		busy := 0.0
		for j := range confirmed {
			r := &confirmed[j]
			if r.Mirror == "" {
				// Whole-group booking: occupies the full slot on one mirror.
				busy += overlap
				continue
			}
			busy += overlapSeconds(r.Start, r.End, span.Start, span.End)
		}
		if busy > slotCap {
			busy = slotCap
		}
		free += slotCap - busy
	}

	if capacity == 0 {
		return 0, model.ErrNotFound
	}
	return free / capacity * 100, nil
}

// FreeSpans returns the sub-ranges of an allocation still open for booking,
// merged and ordered by start. A sub-range is open when at least one mirror
// has no confirmed reservation covering it. Non-partly-available slots are
// all or nothing: either the whole span or no spans at all.
func (s *Scheduler) FreeSpans(ctx context.Context, a *model.Allocation) ([]timespan.Span, error) {
	if !a.PartlyAvailable {
		if _, err := findFreeMirror(ctx, s.store, a, a.Span()); err != nil {
			if errors.Is(err, model.ErrCapacityExceeded) {
				return nil, nil
			}
			return nil, err
		}
		return []timespan.Span{a.Span()}, nil
	}

	mirrors, err := s.store.MirrorsOfSlot(ctx, a.MirrorOf, a.Start)
	if err != nil {
		return nil, err
	}
	confirmed, err := s.store.ReservationsByTarget(ctx, a.Group, model.StatusConfirmed)
	if err != nil {
		return nil, err
	}

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

	// Mirrors claimed by whole-group bookings are taken off the end.
	usable := len(mirrors) - unassigned
	var free []timespan.Span
	for i := 0; i < usable; i++ {
		free = append(free, timespan.Subtract(a.Start, a.End, byMirror[mirrors[i].Resource])...)
	}
	return timespan.Merge(free), nil
}

func overlapSeconds(aStart, aEnd, bStart, bEnd time.Time) float64 {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !start.Before(end) {
		return 0
	}
	return timespan.Span{Start: start, End: end}.Duration().Seconds()
}
