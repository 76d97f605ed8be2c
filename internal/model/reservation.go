package model

import "time"

// ReservationStatus is the lifecycle state of a reservation. A pending
// reservation occupies a waiting-list spot, a confirmed one a capacity spot.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
)

// TargetType says whether a reservation claims a single allocation slot or
// every allocation of a group.
type TargetType string

const (
	TargetAllocation TargetType = "allocation"
	TargetGroup      TargetType = "group"
)

// Reservation is a pending or confirmed claim against one allocation or one
// allocation group. All reservations created by a single booking request
// share a token.
type Reservation struct {
	ID         int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	Token      string            `gorm:"size:36;not null;index:idx_status_token,priority:2" json:"token"`
	Target     string            `gorm:"size:36;not null;index" json:"target"`
	TargetType TargetType        `gorm:"size:16;not null" json:"target_type"`
	Resource   string            `gorm:"size:36;not null;index" json:"resource"`
	Mirror     string            `gorm:"size:36;not null;default:''" json:"mirror"`
	Start      time.Time         `gorm:"not null" json:"start"`
	End        time.Time         `gorm:"not null" json:"end"`
	Status     ReservationStatus `gorm:"size:16;not null;index:idx_status_token,priority:1" json:"status"`
	Data       JSONMap           `gorm:"type:text" json:"data"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

// CoversWholeAllocation reports whether the reserved range spans the
// allocation's full range. Used during report expansion to decide whether a
// reservation stands for the slot or for a sub-range of it.
func (r *Reservation) CoversWholeAllocation(a *Allocation) bool {
	return !r.Start.After(a.Start) && !r.End.Before(a.End)
}
