package slots

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-darshan/internal/apperrors"
	"ms-darshan/internal/config"
	"ms-darshan/internal/logger"
	"ms-darshan/internal/models"

	"github.com/google/uuid"
)

type SlotDBLayer interface {
	CreateSlot(ctx context.Context, slot *models.QueueSlot) error
	GetSlotByID(ctx context.Context, id string) (*models.QueueSlot, error)
	GetSlotBySlotID(ctx context.Context, slotID string) (*models.QueueSlot, error)
	ListSlotsByTemple(ctx context.Context, templeID string) ([]models.QueueSlot, error)
	UpdateSlot(ctx context.Context, slot *models.QueueSlot) error
	DeleteSlot(ctx context.Context, id string) error
	IncrementBooked(ctx context.Context, slotID string, now time.Time) (*models.QueueSlot, error)
	DecrementBooked(ctx context.Context, slotID string, now time.Time) (*models.QueueSlot, error)
}

type EventPublisher interface {
	PublishSlotEvent(ctx context.Context, eventType string, s models.QueueSlot) error
}

type SlotService struct {
	DB      SlotDBLayer
	Events  EventPublisher
	Booking config.BookingConfig
	Logger  *logger.Logger
	Now     func() time.Time
}

func NewSlotService(db SlotDBLayer, events EventPublisher, booking config.BookingConfig, log *logger.Logger) *SlotService {
	return &SlotService{DB: db, Events: events, Booking: booking, Logger: log, Now: time.Now}
}

func (s *SlotService) now() time.Time {
	return s.Now().UTC().Truncate(time.Second)
}

func (s *SlotService) CreateSlot(ctx context.Context, req models.CreateSlotRequest) (*models.QueueSlot, error) {
	req.SlotID = strings.TrimSpace(req.SlotID)
	if req.SlotID == "" {
		return nil, apperrors.Validation("slotId is required")
	}
	if !s.Booking.IsKnownTemple(req.TempleID) {
		return nil, apperrors.Validation("unknown templeId %q", req.TempleID)
	}
	if req.MaxCapacity < 0 {
		return nil, apperrors.Validation("maxCapacity must be positive")
	}
	if req.MaxCapacity == 0 {
		req.MaxCapacity = s.Booking.DefaultSlotCapacity
	}

	_, err := s.DB.GetSlotBySlotID(ctx, req.SlotID)
	if err == nil {
		return nil, apperrors.Validation("slot %s already exists", req.SlotID)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check slot %s: %w", req.SlotID, err)
	}

	now := s.now()
	slot := &models.QueueSlot{
		ID:          uuid.NewString(),
		TempleID:    req.TempleID,
		SlotID:      req.SlotID,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		MaxCapacity: req.MaxCapacity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.DB.CreateSlot(ctx, slot); err != nil {
		return nil, fmt.Errorf("create slot %s: %w", req.SlotID, err)
	}
	s.Logger.LogBooking("SLOT_CREATED", slot.SlotID, fmt.Sprintf("temple=%s capacity=%d", slot.TempleID, slot.MaxCapacity))
	s.publish(ctx, *slot)
	return slot, nil
}

func (s *SlotService) GetSlot(ctx context.Context, id string) (*models.QueueSlot, error) {
	return s.DB.GetSlotByID(ctx, id)
}

func (s *SlotService) ListTempleSlots(ctx context.Context, templeID string) ([]models.QueueSlot, error) {
	slots, err := s.DB.ListSlotsByTemple(ctx, templeID)
	if err != nil {
		return nil, fmt.Errorf("list slots for %s: %w", templeID, err)
	}
	return slots, nil
}

func (s *SlotService) UpdateSlot(ctx context.Context, id string, req models.UpdateSlotRequest) (*models.QueueSlot, error) {
	slot, err := s.DB.GetSlotByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.StartTime != nil {
		slot.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		slot.EndTime = *req.EndTime
	}
	if req.MaxCapacity != nil {
		if *req.MaxCapacity <= 0 {
			return nil, apperrors.Validation("maxCapacity must be positive")
		}
		slot.MaxCapacity = *req.MaxCapacity
	}
	slot.UpdatedAt = s.now()

	if err := s.DB.UpdateSlot(ctx, slot); err != nil {
		return nil, err
	}
	s.publish(ctx, *slot)
	return slot, nil
}

func (s *SlotService) DeleteSlot(ctx context.Context, id string) error {
	if err := s.DB.DeleteSlot(ctx, id); err != nil {
		return err
	}
	s.Logger.LogBooking("SLOT_DELETED", id, "slot removed by admin")
	return nil
}

// AddBooking takes one place in the slot, failing with CapacityExceeded when it is full.
func (s *SlotService) AddBooking(ctx context.Context, slotID string) (*models.QueueSlot, error) {
	slot, err := s.DB.IncrementBooked(ctx, slotID, s.now())
	if err != nil {
		return nil, err
	}
	s.Logger.LogBooking("SLOT_ADD", slotID, fmt.Sprintf("%d/%d booked", slot.BookedCount, slot.MaxCapacity))
	s.publish(ctx, *slot)
	return slot, nil
}

// RemoveBooking releases one place. Removing from an empty slot succeeds without change.
func (s *SlotService) RemoveBooking(ctx context.Context, slotID string) (*models.QueueSlot, error) {
	slot, err := s.DB.DecrementBooked(ctx, slotID, s.now())
	if err != nil {
		return nil, err
	}
	s.Logger.LogBooking("SLOT_REMOVE", slotID, fmt.Sprintf("%d/%d booked", slot.BookedCount, slot.MaxCapacity))
	s.publish(ctx, *slot)
	return slot, nil
}

// SeedDefaultSlots creates the hourly slot grid for every configured temple,
// skipping slot ids that already exist. It returns the number of slots created.
func (s *SlotService) SeedDefaultSlots(ctx context.Context) (int, error) {
	created := 0
	for _, templeID := range s.Booking.TempleIDs {
		for i, hour := 1, s.Booking.OpeningHour; hour < s.Booking.ClosingHour; i, hour = i+1, hour+1 {
			slotID := fmt.Sprintf("slot%d", i)
			if len(s.Booking.TempleIDs) > 1 {
				slotID = fmt.Sprintf("%s-slot%d", templeID, i)
			}
			_, err := s.CreateSlot(ctx, models.CreateSlotRequest{
				TempleID:  templeID,
				SlotID:    slotID,
				StartTime: fmt.Sprintf("%02d:00", hour),
				EndTime:   fmt.Sprintf("%02d:00", hour+1),
			})
			if errors.Is(err, apperrors.ErrValidation) {
				continue
			}
			if err != nil {
				return created, err
			}
			created++
		}
	}
	return created, nil
}

func (s *SlotService) publish(ctx context.Context, slot models.QueueSlot) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishSlotEvent(ctx, models.EventSlotUpdated, slot); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("slot event for %s not published: %v", slot.SlotID, err))
	}
}
