package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AIConversation groups LLM exchanges for one project and purpose.
type AIConversation struct {
	ID          string         `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	ProjectID   string         `gorm:"column:project_id;type:char(36);not null;index:idx_ai_conv_project_purpose" json:"projectId"`
	Purpose     string         `gorm:"column:purpose;size:64;not null;index:idx_ai_conv_project_purpose" json:"purpose"`
	Model       string         `gorm:"column:model;size:64" json:"model"`
	TotalTokens int64          `gorm:"column:total_tokens_used" json:"totalTokensUsed"`
	Metadata    datatypes.JSON `gorm:"column:metadata;type:json" json:"metadata"`
	CreatedAt   time.Time      `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt   time.Time      `gorm:"column:updated_at" json:"updatedAt"`
}

func (AIConversation) TableName() string { return "ai_conversations" }

func (c *AIConversation) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}

type AIMessage struct {
	ID             string    `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	ConversationID string    `gorm:"column:conversation_id;type:char(36);not null;index" json:"conversationId"`
	Role           string    `gorm:"column:role;size:20;not null" json:"role"`
	Content        string    `gorm:"column:content;type:longtext" json:"content"`
	TokensUsed     int64     `gorm:"column:tokens_used" json:"tokensUsed"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"createdAt"`
}

func (AIMessage) TableName() string { return "ai_messages" }

func (m *AIMessage) BeforeCreate(tx *gorm.DB) error {
	assignID(&m.ID)
	return nil
}
