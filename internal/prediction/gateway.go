package prediction

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"ms-darshan/internal/logger"
	"ms-darshan/internal/models"
	"ms-darshan/internal/utils"
)

const (
	fallbackDefaultCount      = 50
	fallbackDefaultConfidence = 0.3
	fallbackHistoryConfidence = 0.65
)

// History supplies per-hour crowd averages for the fallback forecast.
type History interface {
	HourlyAverages(ctx context.Context, templeID string, since, until time.Time) (map[int]float64, error)
}

// NextDayResult is what POST /api/prediction/next-day answers with. With Fallback set,
// PredictedVisitors holds 24 hourly estimates and the model-only fields are empty.
type NextDayResult struct {
	TempleID           string          `json:"templeId"`
	PredictedVisitors  interface{}     `json:"predicted_visitors"`
	CrowdLevel         json.RawMessage `json:"crowd_level,omitempty"`
	ConfidenceInterval json.RawMessage `json:"confidence_interval,omitempty"`
	RulesApplied       json.RawMessage `json:"rules_applied,omitempty"`
	Fallback           bool            `json:"fallback,omitempty"`
}

// HourlyResult is the hourly forecast, either the model's own payload or the fallback.
type HourlyResult struct {
	TempleID    string      `json:"templeId"`
	Predictions interface{} `json:"predictions"`
	Fallback    bool        `json:"fallback,omitempty"`
}

type Gateway struct {
	Predictor Predictor
	History   History
	Window    time.Duration
	Logger    *logger.Logger
	Now       func() time.Time
}

func NewGateway(p Predictor, h History, window time.Duration, log *logger.Logger) *Gateway {
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	return &Gateway{Predictor: p, History: h, Window: window, Logger: log, Now: time.Now}
}

// NextDay relays the model's answer. If the model cannot be reached the result is
// built from stored history instead, so callers never see the upstream failure.
func (g *Gateway) NextDay(ctx context.Context, templeID string, features map[string]interface{}) (*NextDayResult, error) {
	pred, err := g.Predictor.PredictNextDay(ctx, templeID, features)
	if err == nil {
		return &NextDayResult{
			TempleID:           templeID,
			PredictedVisitors:  pred.PredictedVisitors,
			CrowdLevel:         pred.CrowdLevel,
			ConfidenceInterval: pred.ConfidenceInterval,
			RulesApplied:       pred.RulesApplied,
		}, nil
	}

	g.Logger.Warn("PREDICTION", fmt.Sprintf("next-day prediction for %s failed, using history: %v", templeID, err))
	return &NextDayResult{
		TempleID:          templeID,
		PredictedVisitors: g.Fallback(ctx, templeID),
		Fallback:          true,
	}, nil
}

func (g *Gateway) Hourly(ctx context.Context, templeID string) (*HourlyResult, error) {
	raw, err := g.Predictor.PredictHourly(ctx, templeID)
	if err == nil {
		return &HourlyResult{TempleID: templeID, Predictions: raw}, nil
	}

	g.Logger.Warn("PREDICTION", fmt.Sprintf("hourly prediction for %s failed, using history: %v", templeID, err))
	return &HourlyResult{TempleID: templeID, Predictions: g.Fallback(ctx, templeID), Fallback: true}, nil
}

// Fallback forecasts each hour of the day as the trailing-window average for that
// hour. Hours without history, or every hour if history cannot be read, get the
// default count at low confidence.
func (g *Gateway) Fallback(ctx context.Context, templeID string) []models.HourlyPrediction {
	now := g.Now().UTC()
	avgs, err := g.History.HourlyAverages(ctx, templeID, now.Add(-g.Window), now)
	if err != nil {
		g.Logger.Error("PREDICTION", fmt.Sprintf("history for %s unavailable: %v", templeID, err))
		avgs = nil
	}
	return BuildFallback(avgs)
}

// BuildFallback turns hour -> average into the 24-hour forecast.
func BuildFallback(avgs map[int]float64) []models.HourlyPrediction {
	out := make([]models.HourlyPrediction, 24)
	for hour := 0; hour < 24; hour++ {
		p := models.HourlyPrediction{
			Hour:           hour,
			HourLabel:      utils.HourLabel(hour),
			PredictedCount: fallbackDefaultCount,
			Confidence:     fallbackDefaultConfidence,
		}
		if avg, ok := avgs[hour]; ok {
			p.PredictedCount = int(math.Max(0, math.Round(avg)))
			p.Confidence = fallbackHistoryConfidence
		}
		out[hour] = p
	}
	return out
}
