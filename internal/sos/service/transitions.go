package sos

import (
	"time"

	"ms-darshan/internal/apperrors"
	"ms-darshan/internal/models"
)

// PriorityFor rates life-safety alerts critical and everything else high.
func PriorityFor(t models.SOSType) models.SOSPriority {
	switch t {
	case models.SOSMedical, models.SOSFire, models.SOSSecurity:
		return models.PriorityCritical
	}
	return models.PriorityHigh
}

// Acknowledge assigns an active alert to adminID and records the response time in seconds.
func Acknowledge(a models.SOS, adminID string, now time.Time) (models.SOS, error) {
	if a.Status != models.SOSActive {
		return a, apperrors.InvalidTransition("Only active alerts can be acknowledged")
	}
	a.Status = models.SOSAcknowledged
	a.AssignedTo = adminID
	a.AcknowledgedAt = &now
	secs := int64(now.Sub(a.CreatedAt) / time.Second)
	if secs < 0 {
		secs = 0
	}
	a.ResponseTime = &secs
	a.UpdatedAt = now
	return a, nil
}

func MarkInProgress(a models.SOS, now time.Time) (models.SOS, error) {
	if a.Status != models.SOSActive && a.Status != models.SOSAcknowledged {
		return a, apperrors.InvalidTransition("Alert cannot be moved to in-progress")
	}
	a.Status = models.SOSInProgress
	a.UpdatedAt = now
	return a, nil
}

func Resolve(a models.SOS, notes string, now time.Time) (models.SOS, error) {
	if !a.Status.Open() {
		return a, apperrors.InvalidTransition("Alert is already closed")
	}
	a.Status = models.SOSResolved
	a.ResolvedAt = &now
	a.ResolutionNotes = notes
	a.UpdatedAt = now
	return a, nil
}

// Cancel withdraws an alert its owner raised, as long as nobody has picked it up.
func Cancel(a models.SOS, userID string, now time.Time) (models.SOS, error) {
	if a.UserID != userID {
		return a, apperrors.NotFound("SOS alert not found")
	}
	if a.Status != models.SOSActive {
		return a, apperrors.InvalidTransition("Only active alerts can be cancelled")
	}
	a.Status = models.SOSCancelled
	a.UpdatedAt = now
	return a, nil
}
