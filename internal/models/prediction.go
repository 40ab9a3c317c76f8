package models

import "encoding/json"

type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// NextDayPrediction is the external model's answer, passed through untouched.
type NextDayPrediction struct {
	PredictedVisitors  json.RawMessage `json:"predicted_visitors"`
	CrowdLevel         json.RawMessage `json:"crowd_level"`
	ConfidenceInterval json.RawMessage `json:"confidence_interval"`
	RulesApplied       json.RawMessage `json:"rules_applied"`
}

// HourlyPrediction is one hour of the history-based fallback forecast.
type HourlyPrediction struct {
	Hour           int     `json:"hour"`
	HourLabel      string  `json:"hourLabel"`
	PredictedCount int     `json:"predictedCount"`
	Confidence     float64 `json:"confidence"`
}

// CrowdAnalysis is the model's reading of a camera feed.
type CrowdAnalysis struct {
	CrowdCount   int          `json:"crowdCount"`
	DensityLevel DensityLevel `json:"densityLevel"`
	Confidence   float64      `json:"confidence"`
}
