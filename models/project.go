package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"diagnostics-api/checklist"
)

type ProjectStatus string

const (
	ProjectStatusDraft         ProjectStatus = "DRAFT"
	ProjectStatusInProgress    ProjectStatus = "IN_PROGRESS"
	ProjectStatusPendingReview ProjectStatus = "PENDING_REVIEW"
	ProjectStatusCompleted     ProjectStatus = "COMPLETED"
	ProjectStatusArchived      ProjectStatus = "ARCHIVED"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusDraft, ProjectStatusInProgress, ProjectStatusPendingReview, ProjectStatusCompleted, ProjectStatusArchived:
		return true
	}
	return false
}

// Project is one diagnostics engagement for an organization.
type Project struct {
	ID             string          `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	OrganizationID string          `gorm:"column:organization_id;type:char(36);not null;index" json:"organizationId"`
	ConsultantID   string          `gorm:"column:consultant_id;type:char(36);not null;index" json:"consultantId"`
	ClientUserID   *string         `gorm:"column:client_user_id;type:char(36);index" json:"clientUserId"`
	Code           string          `gorm:"column:code;size:40;uniqueIndex;not null" json:"code"`
	Name           string          `gorm:"column:name;size:255;not null" json:"name"`
	Description    *string         `gorm:"column:description;type:text" json:"description"`
	Status         ProjectStatus   `gorm:"column:status;size:20;not null" json:"status"`
	Stage          checklist.Stage `gorm:"column:stage;size:30;not null;index" json:"stage"`
	Progress       int             `gorm:"column:progress;not null;default:0" json:"progress"`
	Settings       datatypes.JSON  `gorm:"column:settings;type:json" json:"settings"`
	StartDate      *time.Time      `gorm:"column:start_date" json:"startDate"`
	TargetEndDate  *time.Time      `gorm:"column:target_end_date" json:"targetEndDate"`
	CreatedAt      time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt      time.Time       `gorm:"column:updated_at" json:"updatedAt"`

	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Consultant   *User         `gorm:"foreignKey:ConsultantID" json:"consultant,omitempty"`
	ClientUser   *User         `gorm:"foreignKey:ClientUserID" json:"clientUser,omitempty"`
}

func (Project) TableName() string { return "projects" }

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	if p.Stage == "" {
		p.Stage = checklist.StageOnboarding
	}
	if p.Status == "" {
		p.Status = ProjectStatusDraft
	}
	if len(p.Settings) == 0 {
		p.Settings = datatypes.JSON("{}")
	}
	return nil
}

// SettingsMap decodes the free-form settings column.
func (p Project) SettingsMap() map[string]any {
	return DecodeMap(p.Settings)
}

// Onboarding returns settings.onboarding as step id -> value. Non-string
// values are rendered with fmt so that any non-empty value counts.
func (p Project) Onboarding() map[string]string {
	return OnboardingFromSettings(p.SettingsMap())
}

func OnboardingFromSettings(settings map[string]any) map[string]string {
	out := map[string]string{}
	raw, ok := settings["onboarding"].(map[string]any)
	if !ok {
		return out
	}
	for step, value := range raw {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			out[step] = v
		case bool:
			if v {
				out[step] = "true"
			}
		default:
			out[step] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

// MergeSettings shallow-merges incoming into existing, merging the
// onboarding sub-map key by key.
func MergeSettings(existing, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}

	onboarding := map[string]any{}
	if prev, ok := existing["onboarding"].(map[string]any); ok {
		for k, v := range prev {
			onboarding[k] = v
		}
	}
	if next, ok := incoming["onboarding"].(map[string]any); ok {
		for k, v := range next {
			onboarding[k] = v
		}
	}
	merged["onboarding"] = onboarding
	return merged
}

type ProjectActivity struct {
	ID          string         `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	ProjectID   string         `gorm:"column:project_id;type:char(36);not null;index" json:"projectId"`
	UserID      *string        `gorm:"column:user_id;type:char(36)" json:"userId"`
	Action      string         `gorm:"column:action;size:64;not null" json:"action"`
	Description string         `gorm:"column:description;type:text" json:"description"`
	Metadata    datatypes.JSON `gorm:"column:metadata;type:json" json:"metadata"`
	CreatedAt   time.Time      `gorm:"column:created_at" json:"createdAt"`
}

func (ProjectActivity) TableName() string { return "project_activities" }

func (a *ProjectActivity) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}

const (
	ActivityProjectCreated         = "PROJECT_CREATED"
	ActivityOnboardingReminderSent = "ONBOARDING_REMINDER_SENT"
	ActivityStageAdvanced          = "STAGE_ADVANCED"
	ActivityChecklistAnswered      = "CHECKLIST_ANSWERED"
)
