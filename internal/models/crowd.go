package models

import (
	"time"

	"github.com/uptrace/bun"
)

type DensityLevel string

const (
	DensityLow      DensityLevel = "low"
	DensityModerate DensityLevel = "moderate"
	DensityHigh     DensityLevel = "high"
	DensityCritical DensityLevel = "critical"
)

func (d DensityLevel) Valid() bool {
	return d.Rank() >= 0
}

// Rank orders density levels from low (0) to critical (3); unknown values are -1.
func (d DensityLevel) Rank() int {
	switch d {
	case DensityLow:
		return 0
	case DensityModerate:
		return 1
	case DensityHigh:
		return 2
	case DensityCritical:
		return 3
	}
	return -1
}

type CrowdSource string

const (
	SourceAIModel CrowdSource = "ai-model"
	SourceManual  CrowdSource = "manual"
	SourceSensor  CrowdSource = "sensor"
)

func (s CrowdSource) Valid() bool {
	return s == SourceAIModel || s == SourceManual || s == SourceSensor
}

const DefaultZone = "main"

// CrowdData is an append-only crowd observation.
type CrowdData struct {
	bun.BaseModel `bun:"table:crowd_data"`

	ID            string       `bun:"id,pk" json:"id"`
	TempleID      string       `bun:"temple_id,notnull" json:"templeId"`
	Timestamp     time.Time    `bun:"timestamp,notnull" json:"timestamp"`
	CrowdCount    int          `bun:"crowd_count,notnull" json:"crowdCount"`
	DensityLevel  DensityLevel `bun:"density_level,notnull" json:"densityLevel"`
	Zone          string       `bun:"zone,notnull" json:"zone"`
	CameraID      string       `bun:"camera_id" json:"cameraId,omitempty"`
	ImageURL      string       `bun:"image_url" json:"imageUrl,omitempty"`
	Confidence    float64      `bun:"confidence,notnull" json:"confidence"`
	NextHourCount *int         `bun:"next_hour_count" json:"nextHourCount"`
	Source        CrowdSource  `bun:"source,notnull" json:"source"`
	CreatedAt     time.Time    `bun:"created_at,notnull" json:"createdAt"`
}

// CrowdSampleRequest is accepted from the admin API and the sensors topic.
type CrowdSampleRequest struct {
	TempleID      string       `json:"templeId"`
	CrowdCount    *int         `json:"crowdCount"`
	DensityLevel  DensityLevel `json:"densityLevel"`
	Zone          string       `json:"zone"`
	CameraID      string       `json:"cameraId"`
	ImageURL      string       `json:"imageUrl"`
	Confidence    float64      `json:"confidence"`
	NextHourCount *int         `json:"nextHourCount"`
	Source        CrowdSource  `json:"source"`
	Timestamp     *time.Time   `json:"timestamp"`
}

type HourlyCrowd struct {
	Hour         int          `json:"hour"`
	HourLabel    string       `json:"hourLabel"`
	AvgCount     int          `json:"avgCount"`
	MaxCount     int          `json:"maxCount"`
	MinCount     int          `json:"minCount"`
	DensityLevel DensityLevel `json:"densityLevel"`
}

type CrowdAnalytics struct {
	Date        string       `json:"date"`
	Hour        int          `json:"hour"`
	AvgCount    float64      `json:"avgCount"`
	MaxCount    int          `json:"maxCount"`
	PeakDensity DensityLevel `json:"peakDensity"`
}
