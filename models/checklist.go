package models

import (
	"time"

	"gorm.io/gorm"

	"diagnostics-api/checklist"
)

// DocumentChecklistItem is one requested document category of a project.
// (project_id, document_type) is unique so concurrent seeding collapses.
type DocumentChecklistItem struct {
	ID           string                 `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	ProjectID    string                 `gorm:"column:project_id;type:char(36);not null;uniqueIndex:idx_checklist_project_type" json:"projectId"`
	DocumentType checklist.DocumentType `gorm:"column:document_type;size:40;not null;uniqueIndex:idx_checklist_project_type" json:"documentType"`
	Instructions string                 `gorm:"column:instructions;type:text" json:"instructions"`
	Order        int                    `gorm:"column:sort_order;not null" json:"order"`
	IsRequired   bool                   `gorm:"column:is_required;not null" json:"isRequired"`
	Status       checklist.Status       `gorm:"column:status;size:20;not null" json:"status"`
	Content      *string                `gorm:"column:content;type:text" json:"content"`
	CreatedAt    time.Time              `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt    time.Time              `gorm:"column:updated_at" json:"updatedAt"`

	Documents []Document                 `gorm:"foreignKey:ChecklistItemID" json:"documents"`
	History   []DocumentChecklistHistory `gorm:"foreignKey:ItemID" json:"history"`
}

func (DocumentChecklistItem) TableName() string { return "document_checklist_items" }

func (i *DocumentChecklistItem) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	if i.Status == "" {
		i.Status = checklist.StatusPending
	}
	return nil
}

// DocumentChecklistHistory is the audit trail of checklist status changes.
type DocumentChecklistHistory struct {
	ID         string           `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	ItemID     string           `gorm:"column:item_id;type:char(36);not null;index" json:"itemId"`
	ProjectID  string           `gorm:"column:project_id;type:char(36);not null;index" json:"projectId"`
	FromStatus checklist.Status `gorm:"column:from_status;size:20" json:"fromStatus"`
	ToStatus   checklist.Status `gorm:"column:to_status;size:20;not null" json:"toStatus"`
	Source     checklist.Source `gorm:"column:source;size:30;not null" json:"source"`
	ActorID    *string          `gorm:"column:actor_id;type:char(36)" json:"actorId"`
	Notes      *string          `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt  time.Time        `gorm:"column:created_at" json:"createdAt"`
}

func (DocumentChecklistHistory) TableName() string { return "document_checklist_history" }

func (h *DocumentChecklistHistory) BeforeCreate(tx *gorm.DB) error {
	assignID(&h.ID)
	return nil
}
