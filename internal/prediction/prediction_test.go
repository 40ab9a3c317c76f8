package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ms-darshan/internal/apperrors"
	"ms-darshan/internal/config"
	"ms-darshan/internal/logger"
	"ms-darshan/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPredictor struct {
	nextDay  *models.NextDayPrediction
	hourly   json.RawMessage
	analysis *models.CrowdAnalysis
	err      error
}

func (s *stubPredictor) PredictNextDay(ctx context.Context, templeID string, features map[string]interface{}) (*models.NextDayPrediction, error) {
	return s.nextDay, s.err
}

func (s *stubPredictor) PredictHourly(ctx context.Context, templeID string) (json.RawMessage, error) {
	return s.hourly, s.err
}

func (s *stubPredictor) Analyze(ctx context.Context, templeID, cameraID string) (*models.CrowdAnalysis, error) {
	return s.analysis, s.err
}

type stubHistory struct {
	avgs        map[int]float64
	err         error
	since, till time.Time
}

func (h *stubHistory) HourlyAverages(ctx context.Context, templeID string, since, until time.Time) (map[int]float64, error) {
	h.since, h.till = since, until
	return h.avgs, h.err
}

var clock = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newGateway(p Predictor, h History) *Gateway {
	g := NewGateway(p, h, 0, logger.NewNopLogger())
	g.Now = func() time.Time { return clock }
	return g
}

func TestBuildFallback(t *testing.T) {
	out := BuildFallback(map[int]float64{6: 120.4, 7: 80.5})
	require.Len(t, out, 24)

	assert.Equal(t, 0, out[0].Hour)
	assert.Equal(t, "0:00", out[0].HourLabel)
	assert.Equal(t, 50, out[0].PredictedCount)
	assert.Equal(t, 0.3, out[0].Confidence)

	assert.Equal(t, 120, out[6].PredictedCount)
	assert.Equal(t, 0.65, out[6].Confidence)
	assert.Equal(t, 81, out[7].PredictedCount)

	for _, p := range BuildFallback(nil) {
		assert.Equal(t, 50, p.PredictedCount)
		assert.GreaterOrEqual(t, p.PredictedCount, 0)
	}
}

func TestNextDay_RelaysModel(t *testing.T) {
	pred := &models.NextDayPrediction{
		PredictedVisitors:  json.RawMessage(`4200`),
		CrowdLevel:         json.RawMessage(`"high"`),
		ConfidenceInterval: json.RawMessage(`{"lower":3900,"upper":4500}`),
		RulesApplied:       json.RawMessage(`["festival"]`),
	}
	g := newGateway(&stubPredictor{nextDay: pred}, &stubHistory{})

	res, err := g.NextDay(context.Background(), "kedarnath", map[string]interface{}{"is_holiday": true})
	require.NoError(t, err)
	assert.False(t, res.Fallback)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"templeId":"kedarnath","predicted_visitors":4200,"crowd_level":"high",
		"confidence_interval":{"lower":3900,"upper":4500},"rules_applied":["festival"]}`, string(raw))
}

func TestNextDay_FallsBackToHistory(t *testing.T) {
	history := &stubHistory{avgs: map[int]float64{9: 210}}
	g := newGateway(&stubPredictor{err: apperrors.Upstream("prediction service unavailable", errors.New("timeout"))}, history)

	res, err := g.NextDay(context.Background(), "kedarnath", nil)
	require.NoError(t, err)
	assert.True(t, res.Fallback)

	hours, ok := res.PredictedVisitors.([]models.HourlyPrediction)
	require.True(t, ok)
	require.Len(t, hours, 24)
	assert.Equal(t, 210, hours[9].PredictedCount)
	assert.Equal(t, clock.Add(-7*24*time.Hour), history.since)
	assert.Equal(t, clock, history.till)
}

func TestHourly_HistoryUnavailable(t *testing.T) {
	g := newGateway(&stubPredictor{err: errors.New("down")}, &stubHistory{err: errors.New("db down")})

	res, err := g.Hourly(context.Background(), "kedarnath")
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	hours := res.Predictions.([]models.HourlyPrediction)
	require.Len(t, hours, 24)
	assert.Equal(t, 0.3, hours[23].Confidence)
}

func TestHTTPPredictor(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/predict/":
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.Write([]byte(`{"predicted_visitors":3100,"crowd_level":"moderate","confidence_interval":[2800,3400],"rules_applied":[]}`))
		case r.URL.Path == "/api/predict/crowd/kedarnath":
			w.Write([]byte(`[{"hour":6,"predictedCount":90}]`))
		case r.URL.Path == "/api/crowd/analyze":
			assert.Equal(t, "kedarnath", r.URL.Query().Get("templeId"))
			w.Write([]byte(`{"crowdCount":140,"densityLevel":"moderate","confidence":0.91}`))
		default:
			http.Error(w, "nope", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	p := NewHTTPPredictor(config.PredictionConfig{BaseURL: srv.URL + "/", NextDayTimeout: time.Second})
	ctx := context.Background()

	next, err := p.PredictNextDay(ctx, "kedarnath", map[string]interface{}{"temperature": 12})
	require.NoError(t, err)
	assert.JSONEq(t, `3100`, string(next.PredictedVisitors))
	assert.Equal(t, "kedarnath", gotBody["templeId"])
	assert.Equal(t, float64(12), gotBody["temperature"])

	hourly, err := p.PredictHourly(ctx, "kedarnath")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"hour":6,"predictedCount":90}]`, string(hourly))

	analysis, err := p.Analyze(ctx, "kedarnath", "")
	require.NoError(t, err)
	assert.Equal(t, 140, analysis.CrowdCount)

	_, err = p.PredictHourly(ctx, "badrinath")
	assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
}

func TestHTTPPredictor_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	p := NewHTTPPredictor(config.PredictionConfig{BaseURL: srv.URL, NextDayTimeout: 50 * time.Millisecond})
	_, err := p.PredictNextDay(context.Background(), "kedarnath", nil)
	assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
}

type sampleSink struct {
	mu  sync.Mutex
	got []models.CrowdSampleRequest
}

func (s *sampleSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func (s *sampleSink) RecordSample(ctx context.Context, req models.CrowdSampleRequest) (*models.CrowdData, error) {
	s.mu.Lock()
	s.got = append(s.got, req)
	s.mu.Unlock()
	return &models.CrowdData{TempleID: req.TempleID, CrowdCount: *req.CrowdCount, DensityLevel: req.DensityLevel, Source: req.Source}, nil
}

func TestRefreshJob(t *testing.T) {
	sink := &sampleSink{}
	ok := &stubPredictor{analysis: &models.CrowdAnalysis{CrowdCount: 140, DensityLevel: models.DensityModerate, Confidence: 0.9}}
	job := NewRefreshJob(ok, sink, []string{"kedarnath"}, time.Minute, logger.NewNopLogger())

	sample, err := job.Refresh(context.Background(), "kedarnath")
	require.NoError(t, err)
	assert.Equal(t, models.SourceAIModel, sample.Source)
	assert.Equal(t, 0.9, sink.got[0].Confidence)

	job.Predictor = &stubPredictor{err: errors.New("down")}
	sample, err = job.Refresh(context.Background(), "kedarnath")
	require.NoError(t, err)
	assert.Equal(t, models.SourceManual, sample.Source)
	assert.Equal(t, 0, sample.CrowdCount)
}

func TestRefreshJob_RunStopsOnCancel(t *testing.T) {
	sink := &sampleSink{}
	job := NewRefreshJob(&stubPredictor{err: errors.New("down")}, sink, []string{"kedarnath", "badrinath"}, time.Hour, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- job.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.count() >= 2 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("refresh job did not stop")
	}
}
