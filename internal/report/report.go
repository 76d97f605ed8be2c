// Package report aggregates booking history into a day-by-resource matrix
// for one calendar month, ready for presentation.
package report

import (
	"context"
	"errors"
	"sort"
	"time"

	"booking-backend/internal/model"
	"booking-backend/internal/store"
)

// TitleResolver maps a resource identifier to a human-readable title.
// Implemented by the content layer; the store-backed default lives in the
// api package.
type TitleResolver interface {
	ResolveResourceTitle(ctx context.Context, resourceID string) (string, error)
}

// Span is one reservation entry in a report bucket.
type Span struct {
	ReservationID int64         `json:"reservation_id"`
	Token         string        `json:"token"`
	Start         time.Time     `json:"start"`
	End           time.Time     `json:"end"`
	Data          model.JSONMap `json:"data"`
}

// Bucket collects the reservations of one resource on one day, approved and
// pending kept apart and each ordered by span start.
type Bucket struct {
	Title    string `json:"title"`
	Approved []Span `json:"approved"`
	Pending  []Span `json:"pending"`
}

// Monthly maps day of month to resource identifier to bucket.
type Monthly map[int]map[string]*Bucket

// insert keeps the slice ordered by start while adding the span, so partial
// renders of a bucket stay sorted.
func insert(spans []Span, s Span) []Span {
	i := sort.Search(len(spans), func(i int) bool {
		return spans[i].Start.After(s.Start)
	})
	spans = append(spans, Span{})
	copy(spans[i+1:], spans[i:])
	spans[i] = s
	return spans
}

func (b *Bucket) add(status model.ReservationStatus, s Span) {
	if status == model.StatusPending {
		b.Pending = insert(b.Pending, s)
		return
	}
	b.Approved = insert(b.Approved, s)
}

// BuildMonthly builds the report for one month. Group reservations are
// expanded across every allocation of their group, so a multi-day booking
// shows up on each of its days. Resources whose identifier cannot be
// resolved anymore are omitted rather than failing the whole report.
func BuildMonthly(ctx context.Context, st store.Store, titles TitleResolver, year int, month time.Month, resourceIDs []string) (Monthly, error) {
	resolved := make(map[string]string, len(resourceIDs))
	var included []string
	for _, id := range resourceIDs {
		title, err := titles.ResolveResourceTitle(ctx, id)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			return nil, err
		}
		resolved[id] = title
		included = append(included, id)
	}

	// Pre-seed every day a six-row calendar grid can show, then trim to
	// the month's real last day.
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	result := make(Monthly, lastDay)
	for day := 1; day <= 31; day++ {
		if day > lastDay {
			break
		}
		result[day] = make(map[string]*Bucket, len(included))
		for _, id := range included {
			result[day][id] = &Bucket{Title: resolved[id]}
		}
	}

	if len(included) == 0 {
		return result, nil
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Second)

	allocations, err := st.MastersInPeriod(ctx, included, first, last)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]model.Allocation)
	var groupIDs []string
	for _, a := range allocations {
		if _, seen := groups[a.Group]; !seen {
			groupIDs = append(groupIDs, a.Group)
		}
		groups[a.Group] = append(groups[a.Group], a)
	}

	// Ordered so confirmed sorts before pending; the buckets separate them
	// anyway, the ordering is a fetch-time convenience.
	reservations, err := st.ReservationsByTargets(ctx, groupIDs)
	if err != nil {
		return nil, err
	}

	add := func(resource string, day int, status model.ReservationStatus, s Span) {
		buckets, ok := result[day]
		if !ok {
			return
		}
		bucket, ok := buckets[resource]
		if !ok {
			return
		}
		bucket.add(status, s)
	}

	for i := range reservations {
		r := &reservations[i]
		if r.TargetType == model.TargetAllocation {
			span := Span{
				ReservationID: r.ID,
				Token:         r.Token,
				Start:         r.Start,
				End:           r.End,
				Data:          r.Data,
			}
			// A reservation covering its whole slot stands for the slot;
			// only sub-range bookings keep their own bounds.
			for j := range groups[r.Target] {
				a := &groups[r.Target][j]
				if a.Overlaps(r.Start, r.End) && r.CoversWholeAllocation(a) {
					span.Start, span.End = a.Start, a.End
					break
				}
			}
			add(r.Resource, span.Start.Day(), r.Status, span)
			continue
		}

		// Group reservation: one entry per allocation of the group.
		for _, a := range groups[r.Target] {
			add(a.MirrorOf, a.Start.Day(), r.Status, Span{
				ReservationID: r.ID,
				Token:         r.Token,
				Start:         a.Start,
				End:           a.End,
				Data:          r.Data,
			})
		}
	}

	return result, nil
}
