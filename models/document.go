package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"diagnostics-api/checklist"
)

type DocumentStatus string

const (
	DocumentStatusPending   DocumentStatus = "PENDING"
	DocumentStatusUploaded  DocumentStatus = "UPLOADED"
	DocumentStatusValidated DocumentStatus = "VALIDATED"
	DocumentStatusRejected  DocumentStatus = "REJECTED"
)

// Document is a file uploaded for a project, optionally linked to a checklist item.
type Document struct {
	ID              string                 `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	ProjectID       string                 `gorm:"column:project_id;type:char(36);not null;index" json:"projectId"`
	OrganizationID  string                 `gorm:"column:organization_id;type:char(36);not null;index" json:"organizationId"`
	ChecklistItemID *string                `gorm:"column:checklist_item_id;type:char(36);index" json:"checklistItemId"`
	UploadedByID    string                 `gorm:"column:uploaded_by_id;type:char(36);not null" json:"uploadedById"`
	ValidatedByID   *string                `gorm:"column:validated_by_id;type:char(36)" json:"validatedById"`
	Name            string                 `gorm:"column:name;size:255;not null" json:"name"`
	FileName        string                 `gorm:"column:file_name;size:255;not null" json:"fileName"`
	StoragePath     string                 `gorm:"column:storage_path;size:512" json:"-"`
	FileSize        int64                  `gorm:"column:file_size" json:"fileSize"`
	MimeType        string                 `gorm:"column:mime_type;size:127" json:"mimeType"`
	Type            checklist.DocumentType `gorm:"column:type;size:40;not null" json:"type"`
	Description     *string                `gorm:"column:description;type:text" json:"description"`
	Status          DocumentStatus         `gorm:"column:status;size:20;not null;index" json:"status"`
	ValidationNotes *string                `gorm:"column:validation_notes;type:text" json:"validationNotes"`
	ValidatedAt     *time.Time             `gorm:"column:validated_at" json:"validatedAt"`
	Metadata        datatypes.JSON         `gorm:"column:metadata;type:json" json:"metadata"`
	CreatedAt       time.Time              `gorm:"column:created_at;index" json:"createdAt"`
	UpdatedAt       time.Time              `gorm:"column:updated_at" json:"updatedAt"`

	// FileURL is a signed download link filled in at read time.
	FileURL string `gorm:"-" json:"fileUrl,omitempty"`
}

func (Document) TableName() string { return "documents" }

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	assignID(&d.ID)
	if d.Status == "" {
		d.Status = DocumentStatusUploaded
	}
	return nil
}
