package model

import "time"

// Resource represents a bookable resource (a room, a court, a machine).
// Mirror identities derived for quota slots reference this record through
// Allocation.MirrorOf; only the logical resource is stored here.
type Resource struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Title     string    `gorm:"size:256;not null" json:"title"`
	CreatedAt time.Time `gorm:"not null" json:"-"`
	UpdatedAt time.Time `gorm:"not null" json:"-"`

	// Associations
	Allocations []Allocation `gorm:"foreignKey:MirrorOf;references:ID" json:"-"`
}
