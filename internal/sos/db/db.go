package db

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"ms-darshan/internal/apperrors"
	"ms-darshan/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func alertNotFound() error { return apperrors.NotFound("SOS alert not found") }

func (d *DB) CreateAlert(ctx context.Context, a *models.SOS) error {
	_, err := d.Bun.NewInsert().Model(a).Exec(ctx)
	return err
}

func (d *DB) GetAlert(ctx context.Context, id string) (*models.SOS, error) {
	var a models.SOS
	err := d.Bun.NewSelect().Model(&a).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, alertNotFound()
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAlert persists a transition while the alert is still in status from.
func (d *DB) UpdateAlert(ctx context.Context, a *models.SOS, from models.SOSStatus) error {
	res, err := d.Bun.NewUpdate().
		Model(a).
		Column("status", "assigned_to", "acknowledged_at", "resolved_at", "response_time", "resolution_notes", "updated_at").
		Where("id = ?", a.ID).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := d.GetAlert(ctx, a.ID); err != nil {
			return err
		}
		return apperrors.InvalidTransition("SOS alert was updated by another request")
	}
	return nil
}

// ListAlerts pages through alerts matching f, most urgent and then newest first.
func (d *DB) ListAlerts(ctx context.Context, f models.SOSFilter) ([]models.SOS, int, error) {
	alerts := make([]models.SOS, 0)
	q := d.Bun.NewSelect().Model(&alerts)
	if len(f.Statuses) > 0 {
		q = q.Where("status IN (?)", bun.In(f.Statuses))
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	total, err := q.
		Order("priority_rank DESC", "created_at DESC").
		Limit(f.Limit).
		Offset((f.Page - 1) * f.Limit).
		ScanAndCount(ctx)
	return alerts, total, err
}

func (d *DB) ListByUser(ctx context.Context, userID string) ([]models.SOS, error) {
	alerts := make([]models.SOS, 0)
	err := d.Bun.NewSelect().
		Model(&alerts).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	return alerts, err
}

func (d *DB) CountOpen(ctx context.Context) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.SOS)(nil)).
		Where("status IN (?)", bun.In(models.OpenSOSStatuses)).
		Count(ctx)
}

func (d *DB) CountSince(ctx context.Context, since time.Time) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.SOS)(nil)).
		Where("created_at >= ?", since.UTC()).
		Count(ctx)
}

// AvgResponseTime is the mean acknowledgement delay in whole seconds, 0 with no data.
func (d *DB) AvgResponseTime(ctx context.Context) (int64, error) {
	var avg sql.NullFloat64
	err := d.Bun.NewSelect().
		Model((*models.SOS)(nil)).
		ColumnExpr("AVG(response_time)").
		Where("response_time IS NOT NULL").
		Scan(ctx, &avg)
	if err != nil || !avg.Valid {
		return 0, err
	}
	return int64(math.Round(avg.Float64)), nil
}

func (d *DB) CountByTypeSince(ctx context.Context, since time.Time) ([]models.SOSTypeCount, error) {
	counts := make([]models.SOSTypeCount, 0)
	err := d.Bun.NewSelect().
		Model((*models.SOS)(nil)).
		ColumnExpr("type").
		ColumnExpr("COUNT(*) AS count").
		Where("created_at >= ?", since.UTC()).
		Group("type").
		Order("type ASC").
		Scan(ctx, &counts)
	return counts, err
}
