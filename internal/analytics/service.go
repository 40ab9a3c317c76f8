package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"ms-darshan/internal/apperrors"
	"ms-darshan/internal/config"
	"ms-darshan/internal/logger"
	"ms-darshan/internal/models"
	"ms-darshan/internal/utils"

	"github.com/go-redis/redis/v8"
)

const (
	defaultRange = 30 * 24 * time.Hour
	maxRange     = 366 * 24 * time.Hour
)

type TicketSource interface {
	TicketsInRange(ctx context.Context, templeIDs []string, from, to time.Time) ([]models.Ticket, error)
}

// Service builds booking reports for admins. Reports are cached in Redis when a
// client is configured.
type Service struct {
	DB      TicketSource
	Cache   *redis.Client
	TTL     time.Duration
	Booking config.BookingConfig
	Logger  *logger.Logger
	Now     func() time.Time
}

func NewService(db TicketSource, cache *redis.Client, ttl time.Duration, booking config.BookingConfig, log *logger.Logger) *Service {
	return &Service{DB: db, Cache: cache, TTL: ttl, Booking: booking, Logger: log, Now: time.Now}
}

// BookingAnalytics aggregates the tickets of one or more temples over a slot-time range.
// Cancelled tickets only appear in ByStatus.
type BookingAnalytics struct {
	TempleIDs     []string              `json:"templeIds"`
	From          time.Time             `json:"from"`
	To            time.Time             `json:"to"`
	TotalTickets  int                   `json:"totalTickets"`
	TotalVisitors int                   `json:"totalVisitors"`
	Revenue       float64               `json:"revenue"`
	PriorityShare float64               `json:"priorityShare"`
	NoShowRate    float64               `json:"noShowRate"`
	Daily         []DailyBookingMetrics `json:"daily"`
	ByDarshanType []DarshanTypeMetrics  `json:"byDarshanType"`
	ByStatus      map[string]int        `json:"byStatus"`
}

type DailyBookingMetrics struct {
	Date     string `json:"date"`
	Tickets  int    `json:"tickets"`
	Visitors int    `json:"visitors"`
}

type DarshanTypeMetrics struct {
	DarshanType models.DarshanType `json:"darshanType"`
	Tickets     int                `json:"tickets"`
	Visitors    int                `json:"visitors"`
	Revenue     float64            `json:"revenue"`
}

// Range resolves optional bounds to [from, to). Without bounds the range is the
// 30 days ending with today.
func (s *Service) Range(from, to *time.Time) (time.Time, time.Time, error) {
	end := utils.DayStart(s.Now()).Add(24 * time.Hour)
	if to != nil {
		end = to.UTC()
	}
	start := end.Add(-defaultRange)
	if from != nil {
		start = from.UTC()
	}
	if !start.Before(end) {
		return start, end, apperrors.Validation("startDate must be before endDate")
	}
	if end.Sub(start) > maxRange {
		return start, end, apperrors.Validation("date range must not exceed 366 days")
	}
	return start, end, nil
}

func (s *Service) TempleAnalytics(ctx context.Context, templeID string, from, to *time.Time) (*BookingAnalytics, error) {
	return s.BatchAnalytics(ctx, []string{templeID}, from, to)
}

// BatchAnalytics reports over several temples at once. Unknown temple IDs are rejected.
func (s *Service) BatchAnalytics(ctx context.Context, templeIDs []string, from, to *time.Time) (*BookingAnalytics, error) {
	ids := make([]string, 0, len(templeIDs))
	seen := make(map[string]bool)
	for _, id := range templeIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		if !s.Booking.IsKnownTemple(id) {
			return nil, apperrors.Validation("unknown templeId %q", id)
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, apperrors.Validation("at least one templeId is required")
	}
	sort.Strings(ids)

	start, end, err := s.Range(from, to)
	if err != nil {
		return nil, err
	}

	key := cacheKey(ids, start, end)
	if cached := s.cached(ctx, key); cached != nil {
		return cached, nil
	}

	tickets, err := s.DB.TicketsInRange(ctx, ids, start, end)
	if err != nil {
		return nil, fmt.Errorf("booking analytics: %w", err)
	}
	report := Summarize(tickets)
	report.TempleIDs = ids
	report.From = start
	report.To = end

	s.store(ctx, key, report)
	return report, nil
}

// Summarize folds tickets into a report without range metadata.
func Summarize(tickets []models.Ticket) *BookingAnalytics {
	report := &BookingAnalytics{
		Daily:         make([]DailyBookingMetrics, 0),
		ByDarshanType: make([]DarshanTypeMetrics, 0),
		ByStatus:      make(map[string]int),
	}
	daily := make(map[string]*DailyBookingMetrics)
	byType := make(map[models.DarshanType]*DarshanTypeMetrics)
	var priority, noShow, attended int

	for _, t := range tickets {
		report.ByStatus[string(t.Status)]++
		if t.Status == models.TicketCancelled {
			continue
		}
		report.TotalTickets++
		report.TotalVisitors += t.NumberOfPeople
		report.Revenue += t.Amount
		if t.PriorityCategory != "" && t.PriorityCategory != models.PriorityNone {
			priority++
		}
		switch t.Status {
		case models.TicketNoShow:
			noShow++
		case models.TicketCompleted:
			attended++
		}

		date := t.SlotTime.UTC().Format("2006-01-02")
		d, ok := daily[date]
		if !ok {
			d = &DailyBookingMetrics{Date: date}
			daily[date] = d
		}
		d.Tickets++
		d.Visitors += t.NumberOfPeople

		m, ok := byType[t.DarshanType]
		if !ok {
			m = &DarshanTypeMetrics{DarshanType: t.DarshanType}
			byType[t.DarshanType] = m
		}
		m.Tickets++
		m.Visitors += t.NumberOfPeople
		m.Revenue += t.Amount
	}

	for _, d := range daily {
		report.Daily = append(report.Daily, *d)
	}
	sort.Slice(report.Daily, func(i, j int) bool { return report.Daily[i].Date < report.Daily[j].Date })
	for _, m := range byType {
		report.ByDarshanType = append(report.ByDarshanType, *m)
	}
	sort.Slice(report.ByDarshanType, func(i, j int) bool {
		return report.ByDarshanType[i].DarshanType < report.ByDarshanType[j].DarshanType
	})

	if report.TotalTickets > 0 {
		report.PriorityShare = float64(priority) / float64(report.TotalTickets)
	}
	if noShow+attended > 0 {
		report.NoShowRate = float64(noShow) / float64(noShow+attended)
	}
	return report
}

func cacheKey(ids []string, from, to time.Time) string {
	return fmt.Sprintf("analytics:bookings:%s:%d:%d", strings.Join(ids, ","), from.Unix(), to.Unix())
}

func (s *Service) cached(ctx context.Context, key string) *BookingAnalytics {
	if s.Cache == nil || s.TTL <= 0 {
		return nil
	}
	raw, err := s.Cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.Logger.Warn("ANALYTICS", fmt.Sprintf("cache read %s: %v", key, err))
		}
		return nil
	}
	var report BookingAnalytics
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil
	}
	return &report
}

func (s *Service) store(ctx context.Context, key string, report *BookingAnalytics) {
	if s.Cache == nil || s.TTL <= 0 {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.Cache.Set(ctx, key, raw, s.TTL).Err(); err != nil {
		s.Logger.Warn("ANALYTICS", fmt.Sprintf("cache write %s: %v", key, err))
	}
}
