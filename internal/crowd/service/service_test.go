package crowd_test

import (
	"context"
	"testing"
	"time"

	"ms-darshan/internal/apperrors"
	"ms-darshan/internal/config"
	crowddb "ms-darshan/internal/crowd/db"
	crowd "ms-darshan/internal/crowd/service"
	"ms-darshan/internal/database/dbtest"
	"ms-darshan/internal/logger"
	"ms-darshan/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type liveRecorder struct {
	temples []string
}

func (l *liveRecorder) EmitCrowd(templeID string, data interface{}) {
	l.temples = append(l.temples, templeID)
}

var clock = time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)

func newService(t *testing.T) (*crowd.CrowdService, *liveRecorder) {
	store := &crowddb.DB{Bun: dbtest.NewSQLite(t, (*models.CrowdData)(nil))}
	live := &liveRecorder{}
	svc := crowd.NewCrowdService(store, nil, live, config.BookingConfig{TempleIDs: []string{"kedarnath"}}, logger.NewNopLogger())
	svc.Now = func() time.Time { return clock }
	return svc, live
}

func record(t *testing.T, svc *crowd.CrowdService, at time.Time, count int) {
	t.Helper()
	_, err := svc.RecordSample(context.Background(), models.CrowdSampleRequest{
		TempleID:   "kedarnath",
		CrowdCount: &count,
		Timestamp:  &at,
	})
	require.NoError(t, err)
}

func TestCategorizeDensity(t *testing.T) {
	cases := map[int]models.DensityLevel{
		0:    models.DensityLow,
		49:   models.DensityLow,
		50:   models.DensityModerate,
		149:  models.DensityModerate,
		150:  models.DensityHigh,
		299:  models.DensityHigh,
		300:  models.DensityCritical,
		5000: models.DensityCritical,
	}
	for count, want := range cases {
		assert.Equal(t, want, crowd.CategorizeDensity(count), count)
	}
}

func TestRecordSample_Defaults(t *testing.T) {
	svc, live := newService(t)
	count := 180

	sample, err := svc.RecordSample(context.Background(), models.CrowdSampleRequest{TempleID: "kedarnath", CrowdCount: &count})
	require.NoError(t, err)
	assert.Equal(t, models.DensityHigh, sample.DensityLevel)
	assert.Equal(t, models.DefaultZone, sample.Zone)
	assert.Equal(t, models.SourceAIModel, sample.Source)
	assert.Equal(t, clock, sample.Timestamp)
	assert.Equal(t, []string{"kedarnath"}, live.temples)

	current, err := svc.Current(context.Background(), "kedarnath", "")
	require.NoError(t, err)
	assert.Equal(t, 180, current.CrowdCount)
}

func TestRecordSample_Validation(t *testing.T) {
	svc, _ := newService(t)
	negative := -1
	ok := 10

	_, err := svc.RecordSample(context.Background(), models.CrowdSampleRequest{TempleID: "kedarnath"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.RecordSample(context.Background(), models.CrowdSampleRequest{TempleID: "kedarnath", CrowdCount: &negative})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.RecordSample(context.Background(), models.CrowdSampleRequest{TempleID: "kedarnath", CrowdCount: &ok, DensityLevel: "packed"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.RecordSample(context.Background(), models.CrowdSampleRequest{TempleID: "kedarnath", CrowdCount: &ok, Confidence: 1.5})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.RecordSample(context.Background(), models.CrowdSampleRequest{TempleID: "somnath", CrowdCount: &ok})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCurrent_NoData(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Current(context.Background(), "kedarnath", "main")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, "No crowd data available", apperrors.MessageFor(err))
}

func TestIngestSample(t *testing.T) {
	svc, _ := newService(t)
	require.NoError(t, svc.IngestSample(context.Background(), []byte(`{"templeId":"kedarnath","crowdCount":75,"zone":"entrance"}`)))

	sample, err := svc.Current(context.Background(), "kedarnath", "entrance")
	require.NoError(t, err)
	assert.Equal(t, models.SourceSensor, sample.Source)
	assert.Equal(t, models.DensityModerate, sample.DensityLevel)

	assert.ErrorIs(t, svc.IngestSample(context.Background(), []byte(`{`)), apperrors.ErrValidation)
}

func TestTodayHourly(t *testing.T) {
	svc, _ := newService(t)
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	record(t, svc, day.Add(9*time.Hour), 40)
	record(t, svc, day.Add(9*time.Hour+20*time.Minute), 61)
	record(t, svc, day.Add(11*time.Hour), 320)
	record(t, svc, day.Add(-time.Hour), 999)

	hourly, err := svc.TodayHourly(context.Background(), "kedarnath")
	require.NoError(t, err)
	require.Len(t, hourly, 2)

	assert.Equal(t, 9, hourly[0].Hour)
	assert.Equal(t, "9:00", hourly[0].HourLabel)
	assert.Equal(t, 51, hourly[0].AvgCount)
	assert.Equal(t, 61, hourly[0].MaxCount)
	assert.Equal(t, 40, hourly[0].MinCount)
	assert.Equal(t, models.DensityModerate, hourly[0].DensityLevel)
	assert.Equal(t, models.DensityCritical, hourly[1].DensityLevel)
}

func TestAnalytics_PeakDensityByRank(t *testing.T) {
	svc, _ := newService(t)
	at := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	record(t, svc, at, 200)
	record(t, svc, at.Add(10*time.Minute), 20)
	record(t, svc, at.Add(24*time.Hour), 60)

	rows, err := svc.Analytics(context.Background(), "kedarnath", nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-03-09", rows[0].Date)
	assert.Equal(t, 10, rows[0].Hour)
	assert.Equal(t, 110.0, rows[0].AvgCount)
	assert.Equal(t, 200, rows[0].MaxCount)
	assert.Equal(t, models.DensityHigh, rows[0].PeakDensity)
	assert.Equal(t, "2024-03-10", rows[1].Date)

	from := clock
	to := clock.Add(-time.Hour)
	_, err = svc.Analytics(context.Background(), "kedarnath", &from, &to)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestHourlyAverages(t *testing.T) {
	svc, _ := newService(t)
	at := time.Date(2024, 3, 8, 6, 0, 0, 0, time.UTC)
	record(t, svc, at, 100)
	record(t, svc, at.Add(24*time.Hour), 200)
	record(t, svc, at.Add(2*time.Hour), 10)

	avgs, err := svc.HourlyAverages(context.Background(), "kedarnath", clock.Add(-7*24*time.Hour), clock)
	require.NoError(t, err)
	assert.Equal(t, 150.0, avgs[6])
	assert.Equal(t, 10.0, avgs[8])
	_, ok := avgs[7]
	assert.False(t, ok)
}
