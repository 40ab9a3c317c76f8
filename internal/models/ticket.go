package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketPending   TicketStatus = "pending"
	TicketConfirmed TicketStatus = "confirmed"
	TicketCompleted TicketStatus = "completed"
	TicketCancelled TicketStatus = "cancelled"
	TicketNoShow    TicketStatus = "no-show"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketPending, TicketConfirmed, TicketCompleted, TicketCancelled, TicketNoShow:
		return true
	}
	return false
}

// Active reports whether the ticket still holds a place in its slot.
func (s TicketStatus) Active() bool {
	return s == TicketPending || s == TicketConfirmed
}

type DarshanType string

const (
	DarshanRegular DarshanType = "regular"
	DarshanVIP     DarshanType = "vip"
	DarshanSpecial DarshanType = "special"
)

func (d DarshanType) Valid() bool {
	return d == DarshanRegular || d == DarshanVIP || d == DarshanSpecial
}

type PriorityCategory string

const (
	PriorityNone             PriorityCategory = "none"
	PriorityElderly          PriorityCategory = "elderly"
	PriorityDifferentlyAbled PriorityCategory = "differently-abled"
	PriorityPregnant         PriorityCategory = "pregnant"
	PriorityChild            PriorityCategory = "child"
)

func (p PriorityCategory) Valid() bool {
	switch p {
	case PriorityNone, PriorityElderly, PriorityDifferentlyAbled, PriorityPregnant, PriorityChild:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

const (
	MinPartySize = 1
	MaxPartySize = 10
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketID            string           `bun:"ticket_id,pk" json:"id"`
	UserID              string           `bun:"user_id,notnull" json:"userId"`
	TempleID            string           `bun:"temple_id,notnull" json:"templeId"`
	DarshanType         DarshanType      `bun:"darshan_type,notnull" json:"darshanType"`
	SlotTime            time.Time        `bun:"slot_time,notnull" json:"slotTime"`
	NumberOfPeople      int              `bun:"number_of_people,notnull" json:"numberOfPeople"`
	PriorityCategory    PriorityCategory `bun:"priority_category,notnull" json:"priorityCategory"`
	Status              TicketStatus     `bun:"status,notnull" json:"status"`
	QueueNumber         int              `bun:"queue_number,notnull" json:"queueNumber"`
	QRCode              string           `bun:"qr_code" json:"qrCode,omitempty"`
	CheckInTime         *time.Time       `bun:"check_in_time,nullzero" json:"checkInTime"`
	CompletedTime       *time.Time       `bun:"completed_time,nullzero" json:"completedTime"`
	Amount              float64          `bun:"amount,notnull" json:"amount"`
	PaymentStatus       PaymentStatus    `bun:"payment_status,notnull" json:"paymentStatus"`
	SpecialRequirements string           `bun:"special_requirements" json:"specialRequirements,omitempty"`
	CreatedAt           time.Time        `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt           time.Time        `bun:"updated_at,notnull" json:"updatedAt"`
}

type BookTicketRequest struct {
	TempleID            string           `json:"templeId"`
	DarshanType         DarshanType      `json:"darshanType"`
	SlotTime            string           `json:"slotTime"`
	NumberOfPeople      int              `json:"numberOfPeople"`
	PriorityCategory    PriorityCategory `json:"priorityCategory"`
	SpecialRequirements string           `json:"specialRequirements"`
}

// TicketFilter narrows a user's ticket listing.
type TicketFilter struct {
	Status   TicketStatus
	FromTime *time.Time
}

// QRPayload is what the ticket QR code encodes.
type QRPayload struct {
	TicketID    string `json:"ticketId"`
	UserID      string `json:"userId"`
	QueueNumber int    `json:"queueNumber"`
}

// SlotAvailability is one cell of the bookable-day grid.
type SlotAvailability struct {
	Time        time.Time `json:"time"`
	Available   int       `json:"available"`
	Total       int       `json:"total"`
	IsAvailable bool      `json:"isAvailable"`
}

// QueueStatus summarises the current hour's queue at a temple.
type QueueStatus struct {
	TotalInQueue      int      `json:"totalInQueue"`
	PriorityQueue     int      `json:"priorityQueue"`
	RegularQueue      int      `json:"regularQueue"`
	EstimatedWaitTime int      `json:"estimatedWaitTime"`
	Queue             []Ticket `json:"queue"`
}
