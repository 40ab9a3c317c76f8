package crowd

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"ms-darshan/internal/apperrors"
	"ms-darshan/internal/config"
	"ms-darshan/internal/logger"
	"ms-darshan/internal/models"
	"ms-darshan/internal/utils"

	"github.com/google/uuid"
)

type CrowdDBLayer interface {
	InsertSample(ctx context.Context, c *models.CrowdData) error
	LatestSample(ctx context.Context, templeID, zone string) (*models.CrowdData, error)
	SamplesBetween(ctx context.Context, templeID string, from, to time.Time) ([]models.CrowdData, error)
}

type EventPublisher interface {
	PublishCrowdEvent(ctx context.Context, eventType string, c models.CrowdData) error
}

// Broadcaster pushes recorded samples to live dashboards.
type Broadcaster interface {
	EmitCrowd(templeID string, data interface{})
}

type CrowdService struct {
	DB      CrowdDBLayer
	Events  EventPublisher
	Live    Broadcaster
	Booking config.BookingConfig
	Logger  *logger.Logger
	Now     func() time.Time
}

func NewCrowdService(db CrowdDBLayer, events EventPublisher, live Broadcaster, booking config.BookingConfig, log *logger.Logger) *CrowdService {
	return &CrowdService{DB: db, Events: events, Live: live, Booking: booking, Logger: log, Now: time.Now}
}

func (s *CrowdService) now() time.Time {
	return s.Now().UTC().Truncate(time.Second)
}

// CategorizeDensity maps a head count to a density level.
func CategorizeDensity(count int) models.DensityLevel {
	switch {
	case count < 50:
		return models.DensityLow
	case count < 150:
		return models.DensityModerate
	case count < 300:
		return models.DensityHigh
	default:
		return models.DensityCritical
	}
}

// RecordSample validates and stores one observation. Zone defaults to main,
// source to ai-model, and the density level is derived from the count when absent.
func (s *CrowdService) RecordSample(ctx context.Context, req models.CrowdSampleRequest) (*models.CrowdData, error) {
	req.TempleID = strings.TrimSpace(req.TempleID)
	if req.TempleID == "" || req.CrowdCount == nil {
		return nil, apperrors.Validation("Temple ID and crowd count are required")
	}
	if !s.Booking.IsKnownTemple(req.TempleID) {
		return nil, apperrors.Validation("unknown templeId %q", req.TempleID)
	}
	if *req.CrowdCount < 0 {
		return nil, apperrors.Validation("crowdCount must not be negative")
	}
	if req.DensityLevel == "" {
		req.DensityLevel = CategorizeDensity(*req.CrowdCount)
	}
	if !req.DensityLevel.Valid() {
		return nil, apperrors.Validation("invalid densityLevel %q", req.DensityLevel)
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return nil, apperrors.Validation("confidence must be between 0 and 1")
	}
	if req.Source == "" {
		req.Source = models.SourceAIModel
	}
	if !req.Source.Valid() {
		return nil, apperrors.Validation("invalid source %q", req.Source)
	}
	if req.Zone == "" {
		req.Zone = models.DefaultZone
	}

	now := s.now()
	at := now
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		at = req.Timestamp.UTC().Truncate(time.Second)
	}
	sample := &models.CrowdData{
		ID:            uuid.NewString(),
		TempleID:      req.TempleID,
		Timestamp:     at,
		CrowdCount:    *req.CrowdCount,
		DensityLevel:  req.DensityLevel,
		Zone:          req.Zone,
		CameraID:      req.CameraID,
		ImageURL:      req.ImageURL,
		Confidence:    req.Confidence,
		NextHourCount: req.NextHourCount,
		Source:        req.Source,
		CreatedAt:     now,
	}
	if err := s.DB.InsertSample(ctx, sample); err != nil {
		return nil, fmt.Errorf("record crowd sample: %w", err)
	}

	s.Logger.Debug("CROWD", fmt.Sprintf("%s/%s: %d people (%s, %s)", sample.TempleID, sample.Zone, sample.CrowdCount, sample.DensityLevel, sample.Source))
	if s.Live != nil {
		s.Live.EmitCrowd(sample.TempleID, sample)
	}
	if s.Events != nil {
		if err := s.Events.PublishCrowdEvent(ctx, models.EventCrowdRecorded, *sample); err != nil {
			s.Logger.Warn("CROWD", fmt.Sprintf("crowd event for %s not published: %v", sample.TempleID, err))
		}
	}
	return sample, nil
}

// IngestSample records a sample arriving as JSON from the sensors topic.
func (s *CrowdService) IngestSample(ctx context.Context, payload []byte) error {
	var req models.CrowdSampleRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return apperrors.Validation("malformed crowd sample: %v", err)
	}
	if req.Source == "" {
		req.Source = models.SourceSensor
	}
	_, err := s.RecordSample(ctx, req)
	return err
}

func (s *CrowdService) Current(ctx context.Context, templeID, zone string) (*models.CrowdData, error) {
	if zone == "" {
		zone = models.DefaultZone
	}
	return s.DB.LatestSample(ctx, templeID, zone)
}

// TodayHourly summarises today's samples per hour of day (UTC). The density level
// of an hour is that of its last sample.
func (s *CrowdService) TodayHourly(ctx context.Context, templeID string) ([]models.HourlyCrowd, error) {
	start := utils.DayStart(s.now())
	samples, err := s.DB.SamplesBetween(ctx, templeID, start, start.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("today's crowd for %s: %w", templeID, err)
	}

	type acc struct {
		sum, n, max, min int
		last             models.DensityLevel
	}
	var hours [24]*acc
	for _, c := range samples {
		h := c.Timestamp.UTC().Hour()
		a := hours[h]
		if a == nil {
			a = &acc{max: c.CrowdCount, min: c.CrowdCount}
			hours[h] = a
		}
		a.sum += c.CrowdCount
		a.n++
		if c.CrowdCount > a.max {
			a.max = c.CrowdCount
		}
		if c.CrowdCount < a.min {
			a.min = c.CrowdCount
		}
		a.last = c.DensityLevel
	}

	out := make([]models.HourlyCrowd, 0)
	for h, a := range hours {
		if a == nil {
			continue
		}
		out = append(out, models.HourlyCrowd{
			Hour:         h,
			HourLabel:    utils.HourLabel(h),
			AvgCount:     int(math.Round(float64(a.sum) / float64(a.n))),
			MaxCount:     a.max,
			MinCount:     a.min,
			DensityLevel: a.last,
		})
	}
	return out, nil
}

// Analytics groups samples in [from, to) by date and hour. from and to default to
// the trailing seven days.
func (s *CrowdService) Analytics(ctx context.Context, templeID string, from, to *time.Time) ([]models.CrowdAnalytics, error) {
	end := s.now()
	if to != nil {
		end = to.UTC()
	}
	start := end.Add(-7 * 24 * time.Hour)
	if from != nil {
		start = from.UTC()
	}
	if !start.Before(end) {
		return nil, apperrors.Validation("startDate must be before endDate")
	}

	samples, err := s.DB.SamplesBetween(ctx, templeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("crowd analytics for %s: %w", templeID, err)
	}

	type key struct {
		date string
		hour int
	}
	type acc struct {
		sum, n, max int
		peak        models.DensityLevel
	}
	groups := make(map[key]*acc)
	order := make([]key, 0)
	for _, c := range samples {
		ts := c.Timestamp.UTC()
		k := key{date: ts.Format("2006-01-02"), hour: ts.Hour()}
		a, ok := groups[k]
		if !ok {
			a = &acc{max: c.CrowdCount, peak: c.DensityLevel}
			groups[k] = a
			order = append(order, k)
		}
		a.sum += c.CrowdCount
		a.n++
		if c.CrowdCount > a.max {
			a.max = c.CrowdCount
		}
		if c.DensityLevel.Rank() > a.peak.Rank() {
			a.peak = c.DensityLevel
		}
	}

	out := make([]models.CrowdAnalytics, 0, len(order))
	for _, k := range order {
		a := groups[k]
		out = append(out, models.CrowdAnalytics{
			Date:        k.date,
			Hour:        k.hour,
			AvgCount:    float64(a.sum) / float64(a.n),
			MaxCount:    a.max,
			PeakDensity: a.peak,
		})
	}
	return out, nil
}

// HourlyAverages returns the mean crowd count per hour of day over samples in
// [since, until). Hours without samples are absent from the map.
func (s *CrowdService) HourlyAverages(ctx context.Context, templeID string, since, until time.Time) (map[int]float64, error) {
	samples, err := s.DB.SamplesBetween(ctx, templeID, since, until)
	if err != nil {
		return nil, fmt.Errorf("crowd history for %s: %w", templeID, err)
	}
	sums := make(map[int]int)
	counts := make(map[int]int)
	for _, c := range samples {
		h := c.Timestamp.UTC().Hour()
		sums[h] += c.CrowdCount
		counts[h]++
	}
	avgs := make(map[int]float64, len(sums))
	for h, sum := range sums {
		avgs[h] = float64(sum) / float64(counts[h])
	}
	return avgs, nil
}
