package analytics

import (
	"context"
	"time"

	"ms-darshan/internal/models"

	"github.com/uptrace/bun"
)

// DB reads the ticket columns the booking reports aggregate over.
type DB struct {
	Bun *bun.DB
}

func NewDB(db *bun.DB) *DB {
	return &DB{Bun: db}
}

// TicketsInRange returns tickets of the given temples with from <= slot_time < to.
func (d *DB) TicketsInRange(ctx context.Context, templeIDs []string, from, to time.Time) ([]models.Ticket, error) {
	tickets := make([]models.Ticket, 0)
	err := d.Bun.NewSelect().
		Model(&tickets).
		Column("ticket_id", "temple_id", "darshan_type", "slot_time", "number_of_people", "priority_category", "status", "amount").
		Where("temple_id IN (?)", bun.In(templeIDs)).
		Where("slot_time >= ?", from.UTC()).
		Where("slot_time < ?", to.UTC()).
		Order("slot_time ASC").
		Scan(ctx)
	return tickets, err
}
