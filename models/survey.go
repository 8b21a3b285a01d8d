package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SurveyType string

const (
	SurveyTypePartners   SurveyType = "PARTNERS"
	SurveyTypeLeadership SurveyType = "LEADERSHIP"
	SurveyTypeClimate    SurveyType = "CLIMATE"
	SurveyTypeCustom     SurveyType = "CUSTOM"
)

func (t SurveyType) Valid() bool {
	switch t {
	case SurveyTypePartners, SurveyTypeLeadership, SurveyTypeClimate, SurveyTypeCustom:
		return true
	}
	return false
}

type SurveyStatus string

const (
	SurveyStatusDraft  SurveyStatus = "DRAFT"
	SurveyStatusActive SurveyStatus = "ACTIVE"
	SurveyStatusClosed SurveyStatus = "CLOSED"
)

type QuestionType string

const (
	QuestionText           QuestionType = "TEXT"
	QuestionTextarea       QuestionType = "TEXTAREA"
	QuestionSingleChoice   QuestionType = "SINGLE_CHOICE"
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionScale          QuestionType = "SCALE"
	QuestionNPS            QuestionType = "NPS"
	QuestionRating         QuestionType = "RATING"
	QuestionDate           QuestionType = "DATE"
	QuestionFile           QuestionType = "FILE"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionText, QuestionTextarea, QuestionSingleChoice, QuestionMultipleChoice,
		QuestionScale, QuestionNPS, QuestionRating, QuestionDate, QuestionFile:
		return true
	}
	return false
}

type Survey struct {
	ID           string       `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	ProjectID    string       `gorm:"column:project_id;type:char(36);not null;index" json:"projectId"`
	Type         SurveyType   `gorm:"column:type;size:20;not null" json:"type"`
	Name         string       `gorm:"column:name;size:255;not null" json:"name"`
	AccessCode   string       `gorm:"column:access_code;size:16;uniqueIndex;not null" json:"accessCode"`
	Description  *string      `gorm:"column:description;type:text" json:"description"`
	Instructions *string      `gorm:"column:instructions;type:text" json:"instructions"`
	IsAnonymous  bool         `gorm:"column:is_anonymous" json:"isAnonymous"`
	Status       SurveyStatus `gorm:"column:status;size:20;not null" json:"status"`
	StartsAt     *time.Time   `gorm:"column:starts_at" json:"startsAt"`
	EndsAt       *time.Time   `gorm:"column:ends_at" json:"endsAt"`
	CreatedAt    time.Time    `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt    time.Time    `gorm:"column:updated_at" json:"updatedAt"`

	Sections  []SurveySection  `gorm:"foreignKey:SurveyID" json:"sections,omitempty"`
	Questions []SurveyQuestion `gorm:"foreignKey:SurveyID" json:"questions,omitempty"`
}

func (Survey) TableName() string { return "surveys" }

func (s *Survey) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	if s.Status == "" {
		s.Status = SurveyStatusDraft
	}
	return nil
}

type SurveySection struct {
	ID          string    `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	SurveyID    string    `gorm:"column:survey_id;type:char(36);not null;index" json:"surveyId"`
	Title       string    `gorm:"column:title;size:255;not null" json:"title"`
	Description *string   `gorm:"column:description;type:text" json:"description"`
	Indicator   *string   `gorm:"column:indicator;size:100" json:"indicator"`
	Order       int       `gorm:"column:sort_order" json:"order"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"createdAt"`

	Questions []SurveyQuestion `gorm:"foreignKey:SectionID" json:"questions,omitempty"`
}

func (SurveySection) TableName() string { return "survey_sections" }

func (s *SurveySection) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

type SurveyQuestion struct {
	ID         string         `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	SurveyID   string         `gorm:"column:survey_id;type:char(36);not null;index" json:"surveyId"`
	SectionID  *string        `gorm:"column:section_id;type:char(36);index" json:"sectionId"`
	Text       string         `gorm:"column:text;type:text;not null" json:"text"`
	Type       QuestionType   `gorm:"column:type;size:20;not null" json:"type"`
	IsRequired bool           `gorm:"column:is_required" json:"isRequired"`
	Order      int            `gorm:"column:sort_order" json:"order"`
	Options    datatypes.JSON `gorm:"column:options;type:json" json:"options"`
	CreatedAt  time.Time      `gorm:"column:created_at" json:"createdAt"`
}

func (SurveyQuestion) TableName() string { return "survey_questions" }

func (q *SurveyQuestion) BeforeCreate(tx *gorm.DB) error {
	assignID(&q.ID)
	return nil
}

type SurveyResponse struct {
	ID           string     `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	SurveyID     string     `gorm:"column:survey_id;type:char(36);not null;index" json:"surveyId"`
	RespondentID *string    `gorm:"column:respondent_id;type:char(36)" json:"respondentId"`
	InvitationID *string    `gorm:"column:invitation_id;type:char(36)" json:"invitationId"`
	Status       string     `gorm:"column:status;size:20;not null" json:"status"`
	SubmittedAt  *time.Time `gorm:"column:submitted_at" json:"submittedAt"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"createdAt"`

	Answers []SurveyAnswer `gorm:"foreignKey:ResponseID" json:"answers,omitempty"`
}

func (SurveyResponse) TableName() string { return "survey_responses" }

func (r *SurveyResponse) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

type SurveyAnswer struct {
	ID           string         `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	ResponseID   string         `gorm:"column:response_id;type:char(36);not null;index" json:"responseId"`
	QuestionID   string         `gorm:"column:question_id;type:char(36);not null;index" json:"questionId"`
	Value        datatypes.JSON `gorm:"column:value;type:json" json:"value"`
	TextValue    *string        `gorm:"column:text_value;type:text" json:"textValue"`
	NumericValue *float64       `gorm:"column:numeric_value" json:"numericValue"`
	StoragePath  *string        `gorm:"column:storage_path;size:512" json:"-"`
}

func (SurveyAnswer) TableName() string { return "survey_answers" }

func (a *SurveyAnswer) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}

type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "PENDING"
	InvitationResponded InvitationStatus = "RESPONDED"
)

type SurveyInvitation struct {
	ID             string           `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	SurveyID       string           `gorm:"column:survey_id;type:char(36);not null;uniqueIndex:idx_invitations_survey_email" json:"surveyId"`
	Email          string           `gorm:"column:email;size:255;not null;uniqueIndex:idx_invitations_survey_email" json:"email"`
	Token          string           `gorm:"column:token;size:64;uniqueIndex;not null" json:"-"`
	Status         InvitationStatus `gorm:"column:status;size:20;not null" json:"status"`
	RemindersSent  int              `gorm:"column:reminders_sent;not null" json:"remindersSent"`
	LastReminderAt *time.Time       `gorm:"column:last_reminder_at" json:"lastReminderAt"`
	SentAt         *time.Time       `gorm:"column:sent_at" json:"sentAt"`
	RespondedAt    *time.Time       `gorm:"column:responded_at" json:"respondedAt"`
	CreatedAt      time.Time        `gorm:"column:created_at" json:"createdAt"`
}

func (SurveyInvitation) TableName() string { return "survey_invitations" }

func (i *SurveyInvitation) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	if i.Status == "" {
		i.Status = InvitationPending
	}
	return nil
}
