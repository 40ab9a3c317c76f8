package models

import (
	"time"

	"github.com/uptrace/bun"
)

type SOSType string

const (
	SOSMedical    SOSType = "medical"
	SOSSecurity   SOSType = "security"
	SOSLostChild  SOSType = "lost-child"
	SOSLostPerson SOSType = "lost-person"
	SOSFire       SOSType = "fire"
	SOSOther      SOSType = "other"
)

func (t SOSType) Valid() bool {
	switch t {
	case SOSMedical, SOSSecurity, SOSLostChild, SOSLostPerson, SOSFire, SOSOther:
		return true
	}
	return false
}

type SOSStatus string

const (
	SOSActive       SOSStatus = "active"
	SOSAcknowledged SOSStatus = "acknowledged"
	SOSInProgress   SOSStatus = "in-progress"
	SOSResolved     SOSStatus = "resolved"
	SOSCancelled    SOSStatus = "cancelled"
)

func (s SOSStatus) Valid() bool {
	switch s {
	case SOSActive, SOSAcknowledged, SOSInProgress, SOSResolved, SOSCancelled:
		return true
	}
	return false
}

func (s SOSStatus) Open() bool {
	return s == SOSActive || s == SOSAcknowledged || s == SOSInProgress
}

// OpenSOSStatuses lists the statuses an alert can still be worked in.
var OpenSOSStatuses = []SOSStatus{SOSActive, SOSAcknowledged, SOSInProgress}

type SOSPriority string

const (
	PriorityLow      SOSPriority = "low"
	PriorityMedium   SOSPriority = "medium"
	PriorityHigh     SOSPriority = "high"
	PriorityCritical SOSPriority = "critical"
)

func (p SOSPriority) Valid() bool {
	return p.Rank() > 0
}

// Rank is used for ordering; critical is highest.
func (p SOSPriority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	}
	return 0
}

type SOS struct {
	bun.BaseModel `bun:"table:sos_alerts"`

	ID              string      `bun:"id,pk" json:"id"`
	UserID          string      `bun:"user_id,notnull" json:"userId"`
	Type            SOSType     `bun:"type,notnull" json:"type"`
	Description     string      `bun:"description" json:"description"`
	Latitude        float64     `bun:"latitude,notnull" json:"latitude"`
	Longitude       float64     `bun:"longitude,notnull" json:"longitude"`
	TempleZone      string      `bun:"temple_zone" json:"templeZone,omitempty"`
	Status          SOSStatus   `bun:"status,notnull" json:"status"`
	Priority        SOSPriority `bun:"priority,notnull" json:"priority"`
	PriorityRank    int         `bun:"priority_rank,notnull" json:"-"`
	AssignedTo      string      `bun:"assigned_to" json:"assignedTo,omitempty"`
	AcknowledgedAt  *time.Time  `bun:"acknowledged_at,nullzero" json:"acknowledgedAt"`
	ResolvedAt      *time.Time  `bun:"resolved_at,nullzero" json:"resolvedAt"`
	ResponseTime    *int64      `bun:"response_time" json:"responseTime"`
	ResolutionNotes string      `bun:"resolution_notes" json:"resolutionNotes,omitempty"`
	CreatedAt       time.Time   `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt       time.Time   `bun:"updated_at,notnull" json:"updatedAt"`
}

type CreateSOSRequest struct {
	Type        SOSType  `json:"type"`
	Description string   `json:"description"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	TempleZone  string   `json:"templeZone"`
}

type SOSFilter struct {
	Statuses []SOSStatus
	Priority SOSPriority
	Type     SOSType
	Page     int
	Limit    int
}

type SOSPage struct {
	Alerts []SOS `json:"alerts"`
	Total  int   `json:"total"`
	Page   int   `json:"page"`
	Pages  int   `json:"pages"`
}

type SOSTypeCount struct {
	Type  SOSType `bun:"type" json:"type"`
	Count int     `bun:"count" json:"count"`
}

type SOSStats struct {
	ActiveAlerts    int            `json:"activeAlerts"`
	TodayTotal      int            `json:"todayTotal"`
	AvgResponseTime int64          `json:"avgResponseTime"`
	ByType          []SOSTypeCount `json:"byType"`
}
