package tickets

import (
	"time"

	"ms-darshan/internal/apperrors"
	"ms-darshan/internal/models"
)

// CancelTransition cancels any ticket that is not already completed or cancelled.
func CancelTransition(t models.Ticket, now time.Time) (models.Ticket, error) {
	if t.Status == models.TicketCompleted || t.Status == models.TicketCancelled {
		return t, apperrors.InvalidTransition("Cannot cancel this ticket")
	}
	t.Status = models.TicketCancelled
	t.UpdatedAt = now
	return t, nil
}

// CheckInTransition confirms a pending ticket at the gate.
func CheckInTransition(t models.Ticket, now time.Time) (models.Ticket, error) {
	if t.Status != models.TicketPending {
		return t, apperrors.InvalidTransition("Only pending tickets can be checked in")
	}
	t.Status = models.TicketConfirmed
	t.CheckInTime = &now
	t.UpdatedAt = now
	return t, nil
}

func CompleteTransition(t models.Ticket, now time.Time) (models.Ticket, error) {
	if t.Status != models.TicketConfirmed {
		return t, apperrors.InvalidTransition("Only checked-in tickets can be completed")
	}
	t.Status = models.TicketCompleted
	t.CompletedTime = &now
	t.UpdatedAt = now
	return t, nil
}

// NoShowTransition releases an active ticket whose holder never arrived.
func NoShowTransition(t models.Ticket, now time.Time) (models.Ticket, error) {
	if !t.Status.Active() {
		return t, apperrors.InvalidTransition("Only active tickets can be marked as no-show")
	}
	t.Status = models.TicketNoShow
	t.UpdatedAt = now
	return t, nil
}
