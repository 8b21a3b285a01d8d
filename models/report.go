package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ReportType string

const (
	ReportExecutiveSummary ReportType = "EXECUTIVE_SUMMARY"
	ReportFullDiagnostic   ReportType = "FULL_DIAGNOSTIC"
	ReportActionPlan       ReportType = "ACTION_PLAN"
	ReportCustom           ReportType = "CUSTOM"
)

func (t ReportType) Valid() bool {
	switch t {
	case ReportExecutiveSummary, ReportFullDiagnostic, ReportActionPlan, ReportCustom:
		return true
	}
	return false
}

type ReportStatus string

const (
	ReportStatusDraft     ReportStatus = "DRAFT"
	ReportStatusPublished ReportStatus = "PUBLISHED"
)

type Report struct {
	ID                  string         `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	ProjectID           string         `gorm:"column:project_id;type:char(36);not null;index" json:"projectId"`
	CreatedByID         string         `gorm:"column:created_by_id;type:char(36);not null" json:"createdById"`
	Type                ReportType     `gorm:"column:type;size:30;not null" json:"type"`
	Title               string         `gorm:"column:title;size:255;not null" json:"title"`
	ExecutiveSummary    *string        `gorm:"column:executive_summary;type:longtext" json:"executiveSummary"`
	CulturalAnalysis    *string        `gorm:"column:cultural_analysis;type:longtext" json:"culturalAnalysis"`
	ClimateIndicators   *string        `gorm:"column:climate_indicators;type:longtext" json:"climateIndicators"`
	QualitativeAnalysis *string        `gorm:"column:qualitative_analysis;type:longtext" json:"qualitativeAnalysis"`
	ActionPlan          *string        `gorm:"column:action_plan;type:longtext" json:"actionPlan"`
	Status              ReportStatus   `gorm:"column:status;size:20;not null" json:"status"`
	Version             int            `gorm:"column:version;not null;default:1" json:"version"`
	Metadata            datatypes.JSON `gorm:"column:metadata;type:json" json:"metadata"`
	PublishedAt         *time.Time     `gorm:"column:published_at" json:"publishedAt"`
	CreatedAt           time.Time      `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt           time.Time      `gorm:"column:updated_at" json:"updatedAt"`
}

func (Report) TableName() string { return "reports" }

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	if r.Status == "" {
		r.Status = ReportStatusDraft
	}
	if r.Version == 0 {
		r.Version = 1
	}
	return nil
}

// Snapshot captures the report sections for a version record.
func (r Report) Snapshot() map[string]any {
	return map[string]any{
		"executiveSummary":    r.ExecutiveSummary,
		"culturalAnalysis":    r.CulturalAnalysis,
		"climateIndicators":   r.ClimateIndicators,
		"qualitativeAnalysis": r.QualitativeAnalysis,
		"actionPlan":          r.ActionPlan,
	}
}

type ReportVersion struct {
	ID        string         `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	ReportID  string         `gorm:"column:report_id;type:char(36);not null;uniqueIndex:idx_report_versions_report_version" json:"reportId"`
	Version   int            `gorm:"column:version;not null;uniqueIndex:idx_report_versions_report_version" json:"version"`
	Content   datatypes.JSON `gorm:"column:content;type:json" json:"content"`
	ChangedBy string         `gorm:"column:changed_by;size:64" json:"changedBy"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"createdAt"`
}

func (ReportVersion) TableName() string { return "report_versions" }

func (v *ReportVersion) BeforeCreate(tx *gorm.DB) error {
	assignID(&v.ID)
	return nil
}
