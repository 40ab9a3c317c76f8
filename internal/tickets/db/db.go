package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-darshan/internal/apperrors"
	"ms-darshan/internal/models"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

const (
	maxBookingAttempts = 5
	retryBackoff       = 20 * time.Millisecond
)

// ErrRetriesExhausted means every booking attempt lost a serialization conflict.
var ErrRetriesExhausted = errors.New("booking retries exhausted")

// SlotFullMessage is returned when a slot time has no places left.
const SlotFullMessage = "This slot is fully booked. Please choose another time."

var activeStatuses = []models.TicketStatus{models.TicketPending, models.TicketConfirmed}

type DB struct {
	Bun *bun.DB
}

func ticketNotFound() error { return apperrors.NotFound("Ticket not found") }

// CreateWithQueueNumber checks capacity, assigns the next queue number and inserts
// the ticket in one transaction. On Postgres the transaction is SERIALIZABLE and is
// retried on serialization failures, so concurrent bookings cannot overshoot capacity
// or share a queue number. prepare runs after the number is assigned and before the
// insert; it fills fields derived from the number.
func (d *DB) CreateWithQueueNumber(ctx context.Context, t *models.Ticket, capacity int, prepare func(*models.Ticket) error) error {
	opts := &sql.TxOptions{}
	if d.Bun.Dialect().Name() == dialect.PG {
		opts.Isolation = sql.LevelSerializable
	}

	var err error
	for attempt := 1; attempt <= maxBookingAttempts; attempt++ {
		err = d.Bun.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
			active, err := tx.NewSelect().
				Model((*models.Ticket)(nil)).
				Where("temple_id = ?", t.TempleID).
				Where("slot_time = ?", t.SlotTime).
				Where("status IN (?)", bun.In(activeStatuses)).
				Count(ctx)
			if err != nil {
				return fmt.Errorf("count active tickets: %w", err)
			}
			if active >= capacity {
				return apperrors.SlotFull(SlotFullMessage)
			}

			issued, err := tx.NewSelect().
				Model((*models.Ticket)(nil)).
				Where("temple_id = ?", t.TempleID).
				Where("slot_time = ?", t.SlotTime).
				Where("status != ?", models.TicketCancelled).
				Count(ctx)
			if err != nil {
				return fmt.Errorf("count issued tickets: %w", err)
			}
			t.QueueNumber = issued + 1

			if prepare != nil {
				if err := prepare(t); err != nil {
					return err
				}
			}
			_, err = tx.NewInsert().Model(t).Exec(ctx)
			return err
		})
		if err == nil || !isSerializationFailure(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, maxBookingAttempts, err)
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().Model(&ticket).Where("ticket_id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ticketNotFound()
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// GetTicketForUser only finds tickets owned by userID.
func (d *DB) GetTicketForUser(ctx context.Context, id, userID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ticket_id = ?", id).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ticketNotFound()
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// UpdateTicketStatus persists a transition. The write only applies while the row is
// still in status from; a concurrent transition makes it fail with InvalidTransition.
func (d *DB) UpdateTicketStatus(ctx context.Context, t *models.Ticket, from models.TicketStatus) error {
	res, err := d.Bun.NewUpdate().
		Model(t).
		Column("status", "check_in_time", "completed_time", "updated_at").
		Where("ticket_id = ?", t.TicketID).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := d.GetTicketByID(ctx, t.TicketID); err != nil {
			return err
		}
		return apperrors.InvalidTransition("Ticket was updated by another request")
	}
	return nil
}

func (d *DB) ListTicketsByUser(ctx context.Context, userID string, filter models.TicketFilter) ([]models.Ticket, error) {
	tickets := make([]models.Ticket, 0)
	q := d.Bun.NewSelect().Model(&tickets).Where("user_id = ?", userID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.FromTime != nil {
		q = q.Where("slot_time >= ?", filter.FromTime.UTC())
	}
	err := q.Order("slot_time DESC").Scan(ctx)
	return tickets, err
}

// ListActiveInWindow returns pending and confirmed tickets with from <= slot_time < to, by queue number.
func (d *DB) ListActiveInWindow(ctx context.Context, templeID string, from, to time.Time) ([]models.Ticket, error) {
	tickets := make([]models.Ticket, 0)
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("temple_id = ?", templeID).
		Where("slot_time >= ?", from.UTC()).
		Where("slot_time < ?", to.UTC()).
		Where("status IN (?)", bun.In(activeStatuses)).
		Order("queue_number ASC", "created_at ASC").
		Scan(ctx)
	return tickets, err
}

// CountActiveBySlot counts pending and confirmed tickets per slot time in [from, to).
func (d *DB) CountActiveBySlot(ctx context.Context, templeID string, from, to time.Time) (map[time.Time]int, error) {
	var rows []models.Ticket
	err := d.Bun.NewSelect().
		Model(&rows).
		Column("slot_time").
		Where("temple_id = ?", templeID).
		Where("slot_time >= ?", from.UTC()).
		Where("slot_time < ?", to.UTC()).
		Where("status IN (?)", bun.In(activeStatuses)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[time.Time]int, len(rows))
	for _, r := range rows {
		counts[r.SlotTime.UTC()]++
	}
	return counts, nil
}
