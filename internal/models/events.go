package models

import "time"

// DomainEvent is the envelope published to Kafka for every state change.
type DomainEvent struct {
	Type       string      `json:"type"`
	TempleID   string      `json:"templeId,omitempty"`
	EntityID   string      `json:"entityId"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload,omitempty"`
}

const (
	EventTicketBooked    = "ticket.booked"
	EventTicketCancelled = "ticket.cancelled"
	EventTicketCheckedIn = "ticket.checked_in"
	EventTicketCompleted = "ticket.completed"
	EventTicketNoShow    = "ticket.no_show"
	EventSlotUpdated     = "slot.updated"
	EventSOSRaised       = "sos.raised"
	EventSOSUpdated      = "sos.updated"
	EventCrowdRecorded   = "crowd.recorded"
)
