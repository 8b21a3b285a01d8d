package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationProjectCreated    NotificationType = "PROJECT_CREATED"
	NotificationDocumentUploaded  NotificationType = "DOCUMENT_UPLOADED"
	NotificationSurveyCompleted   NotificationType = "SURVEY_COMPLETED"
	NotificationInterviewAnalyzed NotificationType = "INTERVIEW_ANALYZED"
	NotificationReportGenerated   NotificationType = "REPORT_GENERATED"
	NotificationProjectDeadline   NotificationType = "PROJECT_DEADLINE"
	NotificationDocumentPending   NotificationType = "DOCUMENT_PENDING"
	NotificationStageAdvanced     NotificationType = "STAGE_ADVANCED"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "PENDING"
	NotificationStatusSent    NotificationStatus = "SENT"
	NotificationStatusRead    NotificationStatus = "READ"
)

type Notification struct {
	ID        string             `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	UserID    string             `gorm:"column:user_id;type:char(36);not null;index" json:"userId"`
	ProjectID *string            `gorm:"column:project_id;type:char(36);index" json:"projectId"`
	Type      NotificationType   `gorm:"column:type;size:30;not null;index" json:"type"`
	Title     string             `gorm:"column:title;size:255;not null" json:"title"`
	Message   string             `gorm:"column:message;type:text" json:"message"`
	Link      *string            `gorm:"column:link;size:512" json:"link"`
	Metadata  datatypes.JSON     `gorm:"column:metadata;type:json" json:"metadata"`
	Status    NotificationStatus `gorm:"column:status;size:20;not null" json:"status"`
	ReadAt    *time.Time         `gorm:"column:read_at" json:"readAt"`
	CreatedAt time.Time          `gorm:"column:created_at;index" json:"createdAt"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	assignID(&n.ID)
	if n.Status == "" {
		n.Status = NotificationStatusPending
	}
	return nil
}
