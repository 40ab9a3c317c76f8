package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-darshan/internal/apperrors"
	"ms-darshan/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func slotNotFound() error { return apperrors.NotFound("Slot not found") }

func (d *DB) CreateSlot(ctx context.Context, slot *models.QueueSlot) error {
	_, err := d.Bun.NewInsert().Model(slot).Exec(ctx)
	return err
}

func (d *DB) GetSlotByID(ctx context.Context, id string) (*models.QueueSlot, error) {
	var slot models.QueueSlot
	err := d.Bun.NewSelect().Model(&slot).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, slotNotFound()
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (d *DB) GetSlotBySlotID(ctx context.Context, slotID string) (*models.QueueSlot, error) {
	var slot models.QueueSlot
	err := d.Bun.NewSelect().Model(&slot).Where("slot_id = ?", slotID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, slotNotFound()
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (d *DB) ListSlotsByTemple(ctx context.Context, templeID string) ([]models.QueueSlot, error) {
	slots := make([]models.QueueSlot, 0)
	err := d.Bun.NewSelect().
		Model(&slots).
		Where("temple_id = ?", templeID).
		Order("start_time ASC", "slot_id ASC").
		Scan(ctx)
	return slots, err
}

// UpdateSlot writes the editable columns. The capacity may not drop below the
// current booked count; the check runs in the same statement as the write.
func (d *DB) UpdateSlot(ctx context.Context, slot *models.QueueSlot) error {
	res, err := d.Bun.NewUpdate().
		Model(slot).
		Column("start_time", "end_time", "max_capacity", "updated_at").
		WherePK().
		Where("booked_count <= ?", slot.MaxCapacity).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		current, err := d.GetSlotByID(ctx, slot.ID)
		if err != nil {
			return err
		}
		return apperrors.Validation("maxCapacity cannot be below the %d places already booked", current.BookedCount)
	}
	return nil
}

func (d *DB) DeleteSlot(ctx context.Context, id string) error {
	res, err := d.Bun.NewDelete().Model((*models.QueueSlot)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return slotNotFound()
	}
	return nil
}

// IncrementBooked adds one booking in a single conditional UPDATE, so concurrent
// callers can never push booked_count past max_capacity.
func (d *DB) IncrementBooked(ctx context.Context, slotID string, now time.Time) (*models.QueueSlot, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.QueueSlot)(nil)).
		Set("booked_count = booked_count + 1").
		Set("updated_at = ?", now).
		Where("slot_id = ?", slotID).
		Where("booked_count < max_capacity").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("increment booked_count: %w", err)
	}

	slot, err := d.GetSlotBySlotID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return slot, apperrors.CapacityExceeded("Slot is full")
	}
	return slot, nil
}

// DecrementBooked removes one booking, flooring at zero. A slot already at zero is returned unchanged.
func (d *DB) DecrementBooked(ctx context.Context, slotID string, now time.Time) (*models.QueueSlot, error) {
	_, err := d.Bun.NewUpdate().
		Model((*models.QueueSlot)(nil)).
		Set("booked_count = booked_count - 1").
		Set("updated_at = ?", now).
		Where("slot_id = ?", slotID).
		Where("booked_count > 0").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("decrement booked_count: %w", err)
	}
	return d.GetSlotBySlotID(ctx, slotID)
}
