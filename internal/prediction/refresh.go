package prediction

import (
	"context"
	"fmt"
	"time"

	"ms-darshan/internal/logger"
	"ms-darshan/internal/models"
)

// SampleRecorder stores crowd observations.
type SampleRecorder interface {
	RecordSample(ctx context.Context, req models.CrowdSampleRequest) (*models.CrowdData, error)
}

// RefreshJob periodically asks the model to analyse each temple's camera feed and
// stores the reading. A failed analysis stores a zero manual sample so gaps stay visible.
type RefreshJob struct {
	Predictor Predictor
	Samples   SampleRecorder
	TempleIDs []string
	Interval  time.Duration
	Logger    *logger.Logger
}

func NewRefreshJob(p Predictor, samples SampleRecorder, temples []string, interval time.Duration, log *logger.Logger) *RefreshJob {
	return &RefreshJob{Predictor: p, Samples: samples, TempleIDs: temples, Interval: interval, Logger: log}
}

// Run refreshes immediately and then on every tick until ctx is cancelled.
func (j *RefreshJob) Run(ctx context.Context) error {
	j.Logger.LogProcess("CROWD_REFRESH", fmt.Sprintf("started, every %s for %d temples", j.Interval, len(j.TempleIDs)))
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		j.RefreshAll(ctx)
		select {
		case <-ctx.Done():
			j.Logger.LogProcess("CROWD_REFRESH", "stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (j *RefreshJob) RefreshAll(ctx context.Context) {
	for _, templeID := range j.TempleIDs {
		if ctx.Err() != nil {
			return
		}
		if _, err := j.Refresh(ctx, templeID); err != nil {
			j.Logger.Error("CROWD_REFRESH", fmt.Sprintf("%s: %v", templeID, err))
		}
	}
}

func (j *RefreshJob) Refresh(ctx context.Context, templeID string) (*models.CrowdData, error) {
	analysis, err := j.Predictor.Analyze(ctx, templeID, "")
	if err != nil {
		j.Logger.Warn("CROWD_REFRESH", fmt.Sprintf("analysis for %s failed, storing placeholder: %v", templeID, err))
		zero := 0
		return j.Samples.RecordSample(ctx, models.CrowdSampleRequest{
			TempleID:     templeID,
			CrowdCount:   &zero,
			DensityLevel: models.DensityLow,
			Source:       models.SourceManual,
		})
	}

	count := analysis.CrowdCount
	sample, err := j.Samples.RecordSample(ctx, models.CrowdSampleRequest{
		TempleID:     templeID,
		CrowdCount:   &count,
		DensityLevel: analysis.DensityLevel,
		Confidence:   analysis.Confidence,
		Source:       models.SourceAIModel,
	})
	if err != nil {
		return nil, err
	}
	j.Logger.Info("CROWD_REFRESH", fmt.Sprintf("%s: %d people (%s)", templeID, sample.CrowdCount, sample.DensityLevel))
	return sample, nil
}
