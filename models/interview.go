package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type InterviewStatus string

const (
	InterviewScheduled   InterviewStatus = "SCHEDULED"
	InterviewTranscribed InterviewStatus = "TRANSCRIBED"
	InterviewAnalyzed    InterviewStatus = "ANALYZED"
)

type Interview struct {
	ID                string          `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	ProjectID         string          `gorm:"column:project_id;type:char(36);not null;index" json:"projectId"`
	UploadedByID      string          `gorm:"column:uploaded_by_id;type:char(36);not null" json:"uploadedById"`
	Title             string          `gorm:"column:title;size:255;not null" json:"title"`
	Interviewee       *string         `gorm:"column:interviewee;size:255" json:"interviewee,omitempty"`
	IntervieweeRole   *string         `gorm:"column:interviewee_role;size:255" json:"intervieweeRole,omitempty"`
	IntervieweeEmail  *string         `gorm:"column:interviewee_email;size:255" json:"intervieweeEmail,omitempty"`
	Format            *string         `gorm:"column:format;size:20" json:"format"`
	ConductedAt       *time.Time      `gorm:"column:conducted_at" json:"conductedAt"`
	Duration          *int            `gorm:"column:duration" json:"duration"`
	TranscriptionPath *string         `gorm:"column:transcription_path;size:512" json:"-"`
	RawTranscription  *string         `gorm:"column:raw_transcription;type:longtext" json:"rawTranscription,omitempty"`
	AnalysisResult    datatypes.JSON  `gorm:"column:analysis_result;type:json" json:"analysisResult"`
	KeyThemes         datatypes.JSON  `gorm:"column:key_themes;type:json" json:"keyThemes"`
	SentimentScore    *float64        `gorm:"column:sentiment_score" json:"sentimentScore"`
	AnonymizedSummary *string         `gorm:"column:anonymized_summary;type:text" json:"anonymizedSummary"`
	Status            InterviewStatus `gorm:"column:status;size:20;not null" json:"status"`
	CreatedAt         time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt         time.Time       `gorm:"column:updated_at" json:"updatedAt"`

	TranscriptionURL string `gorm:"-" json:"transcriptionUrl,omitempty"`
}

func (Interview) TableName() string { return "interviews" }

func (i *Interview) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	if i.Status == "" {
		i.Status = InterviewScheduled
	}
	return nil
}

// Redacted hides the fields that identify the interviewee.
func (i Interview) Redacted() Interview {
	i.Interviewee = nil
	i.IntervieweeRole = nil
	i.IntervieweeEmail = nil
	i.RawTranscription = nil
	return i
}
