package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ms-darshan/internal/logger"
	"ms-darshan/internal/models"
	"ms-darshan/internal/utils"

	"github.com/go-redis/redis/v8"
)

// TicketReader is the slice of the ticket store the queue view needs.
type TicketReader interface {
	ListActiveInWindow(ctx context.Context, templeID string, from, to time.Time) ([]models.Ticket, error)
}

// StatusService builds the current-hour queue snapshot for a temple. When a Redis
// client is set, snapshots are cached per temple and hour for TTL.
type StatusService struct {
	Tickets        TicketReader
	Redis          *redis.Client
	TTL            time.Duration
	MinutesPerHead int
	Logger         *logger.Logger
}

func NewStatusService(tickets TicketReader, rdb *redis.Client, ttl time.Duration, minutesPerHead int, log *logger.Logger) *StatusService {
	if minutesPerHead <= 0 {
		minutesPerHead = 2
	}
	return &StatusService{Tickets: tickets, Redis: rdb, TTL: ttl, MinutesPerHead: minutesPerHead, Logger: log}
}

func cacheKey(templeID string, hourStart time.Time) string {
	return fmt.Sprintf("queue_status:%s:%d", templeID, hourStart.Unix())
}

func generationKey(templeID string, hourStart time.Time) string {
	return cacheKey(templeID, hourStart) + ":gen"
}

// Status returns active tickets with slot times in [floor(now,1h), +1h), by queue number.
func (s *StatusService) Status(ctx context.Context, templeID string, now time.Time) (*models.QueueStatus, error) {
	from, to := utils.HourWindow(now)

	// Keyed by the generation read before the query; a racing Invalidate orphans it.
	key, cacheable := s.snapshotKey(ctx, templeID, from)
	if cacheable {
		if cached, ok := s.fromCache(ctx, key); ok {
			return cached, nil
		}
	}

	tickets, err := s.Tickets.ListActiveInWindow(ctx, templeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("queue for %s: %w", templeID, err)
	}
	status := Summarize(tickets, s.MinutesPerHead)
	if cacheable {
		s.toCache(ctx, key, status)
	}
	return status, nil
}

// Summarize counts priority and regular tickets. The wait estimate is per ticket,
// not per person.
func Summarize(tickets []models.Ticket, minutesPerHead int) *models.QueueStatus {
	priority := 0
	for _, t := range tickets {
		if t.PriorityCategory != "" && t.PriorityCategory != models.PriorityNone {
			priority++
		}
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	total := len(tickets)
	return &models.QueueStatus{
		TotalInQueue:      total,
		PriorityQueue:     priority,
		RegularQueue:      total - priority,
		EstimatedWaitTime: total * minutesPerHead,
		Queue:             tickets,
	}
}

// Invalidate retires every cached snapshot of the hour slotTime falls in by
// bumping that hour's generation.
func (s *StatusService) Invalidate(ctx context.Context, templeID string, slotTime time.Time) {
	if s.Redis == nil {
		return
	}
	from, _ := utils.HourWindow(slotTime)
	key := generationKey(templeID, from)
	_, err := s.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, time.Hour+s.TTL)
		return nil
	})
	if err != nil {
		s.Logger.Warn("QUEUE", fmt.Sprintf("invalidate %s: %v", templeID, err))
	}
}

// snapshotKey returns the cache key for the hour's current generation. It reports
// false when caching is off or the generation cannot be read.
func (s *StatusService) snapshotKey(ctx context.Context, templeID string, hourStart time.Time) (string, bool) {
	if s.Redis == nil || s.TTL <= 0 {
		return "", false
	}
	gen, err := s.Redis.Get(ctx, generationKey(templeID, hourStart)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.Logger.Warn("QUEUE", fmt.Sprintf("cache generation %s: %v", templeID, err))
		return "", false
	}
	return fmt.Sprintf("%s:%d", cacheKey(templeID, hourStart), gen), true
}

func (s *StatusService) fromCache(ctx context.Context, key string) (*models.QueueStatus, bool) {
	if s.Redis == nil || s.TTL <= 0 {
		return nil, false
	}
	raw, err := s.Redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		s.Logger.Warn("QUEUE", fmt.Sprintf("cache read %s: %v", key, err))
		return nil, false
	}
	var status models.QueueStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, false
	}
	return &status, true
}

func (s *StatusService) toCache(ctx context.Context, key string, status *models.QueueStatus) {
	if s.Redis == nil || s.TTL <= 0 {
		return
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, key, raw, s.TTL).Err(); err != nil {
		s.Logger.Warn("QUEUE", fmt.Sprintf("cache write %s: %v", key, err))
	}
}
