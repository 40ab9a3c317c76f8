package sos

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"ms-darshan/internal/apperrors"
	"ms-darshan/internal/logger"
	"ms-darshan/internal/models"
	"ms-darshan/internal/utils"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	adminAlertEvent   = "sos-alert"
	adminUpdatedEvent = "sos-updated"
)

type SOSDBLayer interface {
	CreateAlert(ctx context.Context, a *models.SOS) error
	GetAlert(ctx context.Context, id string) (*models.SOS, error)
	UpdateAlert(ctx context.Context, a *models.SOS, from models.SOSStatus) error
	ListAlerts(ctx context.Context, f models.SOSFilter) ([]models.SOS, int, error)
	ListByUser(ctx context.Context, userID string) ([]models.SOS, error)
	CountOpen(ctx context.Context) (int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
	AvgResponseTime(ctx context.Context) (int64, error)
	CountByTypeSince(ctx context.Context, since time.Time) ([]models.SOSTypeCount, error)
}

type EventPublisher interface {
	PublishSOSEvent(ctx context.Context, eventType string, s models.SOS) error
}

// AdminNotifier pushes alert changes to connected admin dashboards.
type AdminNotifier interface {
	EmitAdmin(event string, data interface{})
}

type SOSService struct {
	DB     SOSDBLayer
	Events EventPublisher
	Admins AdminNotifier
	Logger *logger.Logger
	Now    func() time.Time
}

func NewSOSService(db SOSDBLayer, events EventPublisher, admins AdminNotifier, log *logger.Logger) *SOSService {
	return &SOSService{DB: db, Events: events, Admins: admins, Logger: log, Now: time.Now}
}

func (s *SOSService) now() time.Time {
	return s.Now().UTC().Truncate(time.Second)
}

// Create raises a new alert for userID. Location is mandatory; zero coordinates are accepted.
func (s *SOSService) Create(ctx context.Context, userID string, req models.CreateSOSRequest) (*models.SOS, error) {
	if req.Type == "" || req.Latitude == nil || req.Longitude == nil {
		return nil, apperrors.Validation("Type and location are required")
	}
	if !req.Type.Valid() {
		return nil, apperrors.Validation("invalid SOS type %q", req.Type)
	}
	if *req.Latitude < -90 || *req.Latitude > 90 || *req.Longitude < -180 || *req.Longitude > 180 {
		return nil, apperrors.Validation("location is out of range")
	}

	now := s.now()
	priority := PriorityFor(req.Type)
	alert := &models.SOS{
		ID:           uuid.NewString(),
		UserID:       userID,
		Type:         req.Type,
		Description:  strings.TrimSpace(req.Description),
		Latitude:     *req.Latitude,
		Longitude:    *req.Longitude,
		TempleZone:   req.TempleZone,
		Status:       models.SOSActive,
		Priority:     priority,
		PriorityRank: priority.Rank(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.DB.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("create sos alert: %w", err)
	}

	s.Logger.LogSecurity("SOS_RAISED", fmt.Sprintf("%s alert %s from user %s (%s)", alert.Type, alert.ID, userID, alert.Priority))
	s.notify(ctx, models.EventSOSRaised, adminAlertEvent, *alert)
	return alert, nil
}

func (s *SOSService) Acknowledge(ctx context.Context, id, adminID string) (*models.SOS, error) {
	return s.apply(ctx, id, func(a models.SOS, now time.Time) (models.SOS, error) {
		return Acknowledge(a, adminID, now)
	})
}

func (s *SOSService) MarkInProgress(ctx context.Context, id string) (*models.SOS, error) {
	return s.apply(ctx, id, MarkInProgress)
}

func (s *SOSService) Resolve(ctx context.Context, id, notes string) (*models.SOS, error) {
	return s.apply(ctx, id, func(a models.SOS, now time.Time) (models.SOS, error) {
		return Resolve(a, strings.TrimSpace(notes), now)
	})
}

func (s *SOSService) Cancel(ctx context.Context, id, userID string) (*models.SOS, error) {
	return s.apply(ctx, id, func(a models.SOS, now time.Time) (models.SOS, error) {
		return Cancel(a, userID, now)
	})
}

func (s *SOSService) apply(ctx context.Context, id string, transition func(models.SOS, time.Time) (models.SOS, error)) (*models.SOS, error) {
	current, err := s.DB.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := transition(*current, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.DB.UpdateAlert(ctx, &next, current.Status); err != nil {
		return nil, err
	}
	s.Logger.LogSecurity("SOS_UPDATED", fmt.Sprintf("alert %s %s -> %s", id, current.Status, next.Status))
	s.notify(ctx, models.EventSOSUpdated, adminUpdatedEvent, next)
	return &next, nil
}

func (s *SOSService) notify(ctx context.Context, eventType, adminEvent string, a models.SOS) {
	if s.Admins != nil {
		s.Admins.EmitAdmin(adminEvent, a)
	}
	if s.Events != nil {
		if err := s.Events.PublishSOSEvent(ctx, eventType, a); err != nil {
			s.Logger.Warn("SOS", fmt.Sprintf("sos event for %s not published: %v", a.ID, err))
		}
	}
}

// List returns one page of alerts. Without a status filter only open alerts are listed.
func (s *SOSService) List(ctx context.Context, f models.SOSFilter) (*models.SOSPage, error) {
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, apperrors.Validation("invalid status %q", st)
		}
	}
	if len(f.Statuses) == 0 {
		f.Statuses = models.OpenSOSStatuses
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return nil, apperrors.Validation("invalid priority %q", f.Priority)
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, apperrors.Validation("invalid SOS type %q", f.Type)
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}

	alerts, total, err := s.DB.ListAlerts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list sos alerts: %w", err)
	}
	return &models.SOSPage{
		Alerts: alerts,
		Total:  total,
		Page:   f.Page,
		Pages:  int(math.Ceil(float64(total) / float64(f.Limit))),
	}, nil
}

func (s *SOSService) MyAlerts(ctx context.Context, userID string) ([]models.SOS, error) {
	return s.DB.ListByUser(ctx, userID)
}

// Stats summarises open alerts, today's volume (UTC) and the mean response time.
func (s *SOSService) Stats(ctx context.Context) (*models.SOSStats, error) {
	today := utils.DayStart(s.now())
	var (
		stats models.SOSStats
		err   error
	)
	if stats.ActiveAlerts, err = s.DB.CountOpen(ctx); err != nil {
		return nil, fmt.Errorf("sos stats: %w", err)
	}
	if stats.TodayTotal, err = s.DB.CountSince(ctx, today); err != nil {
		return nil, fmt.Errorf("sos stats: %w", err)
	}
	if stats.AvgResponseTime, err = s.DB.AvgResponseTime(ctx); err != nil {
		return nil, fmt.Errorf("sos stats: %w", err)
	}
	if stats.ByType, err = s.DB.CountByTypeSince(ctx, today); err != nil {
		return nil, fmt.Errorf("sos stats: %w", err)
	}
	return &stats, nil
}
