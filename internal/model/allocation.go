package model

import (
	"time"

	"booking-backend/internal/timespan"
)

// Allocation is the bookable time unit of one resource, or of one quota
// mirror thereof. Mirrors of the same logical slot share Start, End, Group,
// MirrorOf and the booking flags and differ only in Resource and ID.
type Allocation struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Resource         string    `gorm:"size:36;not null;uniqueIndex:idx_allocation_slot,priority:1;index" json:"resource"`
	MirrorOf         string    `gorm:"size:36;not null;index" json:"mirror_of"`
	Start            time.Time `gorm:"not null;uniqueIndex:idx_allocation_slot,priority:2;index" json:"start"`
	End              time.Time `gorm:"not null;uniqueIndex:idx_allocation_slot,priority:3" json:"end"`
	Group            string    `gorm:"size:36;not null;index" json:"group"`
	Quota            int       `gorm:"not null;default:1" json:"quota"`
	PartlyAvailable  bool      `gorm:"not null;default:false" json:"partly_available"`
	Approve          bool      `gorm:"not null;default:false" json:"approve"`
	WaitinglistSpots int       `gorm:"not null;default:0" json:"waitinglist_spots"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}

// IsMaster reports whether this allocation is the primary mirror of its
// logical slot.
func (a *Allocation) IsMaster() bool {
	return a.Resource == a.MirrorOf
}

// Span returns the full time range of the allocation.
func (a *Allocation) Span() timespan.Span {
	return timespan.Span{Start: a.Start, End: a.End}
}

// Overlaps reports whether the allocation's range shares an instant with
// [start, end]. Endpoints are inclusive, see timespan.Overlaps.
func (a *Allocation) Overlaps(start, end time.Time) bool {
	return timespan.Overlaps(a.Start, a.End, start, end)
}

// Contains reports whether [start, end] lies fully within the allocation.
func (a *Allocation) Contains(start, end time.Time) bool {
	return !start.Before(a.Start) && !end.After(a.End)
}
