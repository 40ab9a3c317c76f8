package models

import (
	"time"

	"github.com/uptrace/bun"
)

// QueueSlot is a bookable window at a temple. BookedCount stays within [0, MaxCapacity].
type QueueSlot struct {
	bun.BaseModel `bun:"table:queue_slots"`

	ID          string    `bun:"id,pk" json:"id"`
	TempleID    string    `bun:"temple_id,notnull" json:"templeId"`
	SlotID      string    `bun:"slot_id,notnull,unique" json:"slotId"`
	StartTime   string    `bun:"start_time" json:"startTime"`
	EndTime     string    `bun:"end_time" json:"endTime"`
	MaxCapacity int       `bun:"max_capacity,notnull" json:"maxCapacity"`
	BookedCount int       `bun:"booked_count,notnull" json:"bookedCount"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt   time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// Available is the number of places left in the slot.
func (s *QueueSlot) Available() int {
	if s.BookedCount >= s.MaxCapacity {
		return 0
	}
	return s.MaxCapacity - s.BookedCount
}

type CreateSlotRequest struct {
	TempleID    string `json:"templeId"`
	SlotID      string `json:"slotId"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	MaxCapacity int    `json:"maxCapacity"`
}

// UpdateSlotRequest carries optional slot changes; nil fields are left alone.
type UpdateSlotRequest struct {
	StartTime   *string `json:"startTime"`
	EndTime     *string `json:"endTime"`
	MaxCapacity *int    `json:"maxCapacity"`
}
