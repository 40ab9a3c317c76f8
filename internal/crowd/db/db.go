package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-darshan/internal/apperrors"
	"ms-darshan/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// InsertSample appends an observation; samples are never updated.
func (d *DB) InsertSample(ctx context.Context, c *models.CrowdData) error {
	_, err := d.Bun.NewInsert().Model(c).Exec(ctx)
	return err
}

func (d *DB) LatestSample(ctx context.Context, templeID, zone string) (*models.CrowdData, error) {
	var sample models.CrowdData
	err := d.Bun.NewSelect().
		Model(&sample).
		Where("temple_id = ?", templeID).
		Where("zone = ?", zone).
		OrderExpr("? DESC", bun.Ident("timestamp")).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("No crowd data available")
	}
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

// SamplesBetween returns samples with from <= timestamp < to, oldest first.
func (d *DB) SamplesBetween(ctx context.Context, templeID string, from, to time.Time) ([]models.CrowdData, error) {
	samples := make([]models.CrowdData, 0)
	err := d.Bun.NewSelect().
		Model(&samples).
		Where("temple_id = ?", templeID).
		Where("? >= ?", bun.Ident("timestamp"), from.UTC()).
		Where("? < ?", bun.Ident("timestamp"), to.UTC()).
		OrderExpr("? ASC", bun.Ident("timestamp")).
		Scan(ctx)
	return samples, err
}
