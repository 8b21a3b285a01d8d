package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"diagnostics-api/apperrors"
	"diagnostics-api/config"
	"diagnostics-api/models"
)

const (
	maxSurveyReminders    = 3
	surveyReminderSpacing = 24 * time.Hour
	responseCompleted     = "COMPLETED"
)

type SurveyService struct {
	db            *gorm.DB
	emails        *EmailService
	notifications *NotificationService
	events        EventPublisher
	logger        *zap.Logger
	now           func() time.Time
}

func NewSurveyService(db *gorm.DB, emails *EmailService, notifications *NotificationService, events EventPublisher, logger *zap.Logger) *SurveyService {
	if db == nil {
		db = config.DB
	}
	logger = loggerOrDefault(logger)
	if notifications == nil {
		notifications = NewNotificationService(db, logger)
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &SurveyService{
		db:            db,
		emails:        emails,
		notifications: notifications,
		events:        events,
		logger:        logger,
		now:           time.Now,
	}
}

type QuestionInput struct {
	Text       string              `json:"text"`
	Type       models.QuestionType `json:"type"`
	IsRequired *bool               `json:"isRequired"`
	Order      *int                `json:"order"`
	Options    []string            `json:"options"`
}

type SectionInput struct {
	Title       string          `json:"title"`
	Description *string         `json:"description"`
	Indicator   *string         `json:"indicator"`
	Order       *int            `json:"order"`
	Questions   []QuestionInput `json:"questions"`
}

type SurveyInput struct {
	ProjectID    string               `json:"projectId"`
	Type         *models.SurveyType   `json:"type"`
	Name         *string              `json:"name"`
	Description  *string              `json:"description"`
	Instructions *string              `json:"instructions"`
	IsAnonymous  *bool                `json:"isAnonymous"`
	Status       *models.SurveyStatus `json:"status"`
	StartsAt     *time.Time           `json:"startsAt"`
	EndsAt       *time.Time           `json:"endsAt"`
	Questions    []QuestionInput      `json:"questions"`
	Sections     []SectionInput       `json:"sections"`
}

func validateQuestions(fields map[string][]string, prefix string, questions []QuestionInput) {
	for i, q := range questions {
		key := fmt.Sprintf("%s[%d]", prefix, i)
		if strings.TrimSpace(q.Text) == "" {
			fields[key+".text"] = append(fields[key+".text"], "text is required")
		}
		if !q.Type.Valid() {
			fields[key+".type"] = append(fields[key+".type"], "invalid question type")
		}
		if (q.Type == models.QuestionSingleChoice || q.Type == models.QuestionMultipleChoice) && len(q.Options) == 0 {
			fields[key+".options"] = append(fields[key+".options"], "choice questions need options")
		}
	}
}

func (in SurveyInput) validate(creating bool) map[string][]string {
	fields := map[string][]string{}
	if creating {
		if in.ProjectID == "" {
			fields["projectId"] = append(fields["projectId"], "projectId is required")
		}
		if in.Type == nil {
			fields["type"] = append(fields["type"], "type is required")
		}
		if in.Name == nil {
			fields["name"] = append(fields["name"], "name is required")
		}
	}
	if in.Type != nil && !in.Type.Valid() {
		fields["type"] = append(fields["type"], "invalid survey type")
	}
	if in.Name != nil && len(strings.TrimSpace(*in.Name)) < 2 {
		fields["name"] = append(fields["name"], "name must have at least 2 characters")
	}
	if in.Status != nil {
		switch *in.Status {
		case models.SurveyStatusDraft, models.SurveyStatusActive, models.SurveyStatusClosed:
		default:
			fields["status"] = append(fields["status"], "invalid survey status")
		}
	}
	if in.StartsAt != nil && in.EndsAt != nil && in.EndsAt.Before(*in.StartsAt) {
		fields["endsAt"] = append(fields["endsAt"], "endsAt must not be before startsAt")
	}
	validateQuestions(fields, "questions", in.Questions)
	for i, section := range in.Sections {
		if strings.TrimSpace(section.Title) == "" {
			key := fmt.Sprintf("sections[%d].title", i)
			fields[key] = append(fields[key], "title is required")
		}
		validateQuestions(fields, fmt.Sprintf("sections[%d].questions", i), section.Questions)
	}
	return fields
}

func buildQuestion(surveyID string, sectionID *string, q QuestionInput, fallbackOrder int) models.SurveyQuestion {
	required := true
	if q.IsRequired != nil {
		required = *q.IsRequired
	}
	order := fallbackOrder
	if q.Order != nil {
		order = *q.Order
	}
	var options []string
	if len(q.Options) > 0 {
		options = q.Options
	}
	question := models.SurveyQuestion{
		SurveyID:   surveyID,
		SectionID:  sectionID,
		Text:       strings.TrimSpace(q.Text),
		Type:       q.Type,
		IsRequired: required,
		Order:      order,
	}
	if options != nil {
		question.Options = models.JSONMap(options)
	}
	return question
}

// replaceStructure swaps the sections and questions of a survey.
func replaceStructure(tx *gorm.DB, surveyID string, sections []SectionInput, questions []QuestionInput) error {
	if err := tx.Where("survey_id = ?", surveyID).Delete(&models.SurveyQuestion{}).Error; err != nil {
		return err
	}
	if err := tx.Where("survey_id = ?", surveyID).Delete(&models.SurveySection{}).Error; err != nil {
		return err
	}
	for i, in := range sections {
		order := i + 1
		if in.Order != nil {
			order = *in.Order
		}
		section := models.SurveySection{
			SurveyID:    surveyID,
			Title:       strings.TrimSpace(in.Title),
			Description: in.Description,
			Indicator:   in.Indicator,
			Order:       order,
		}
		if err := tx.Create(&section).Error; err != nil {
			return err
		}
		for j, q := range in.Questions {
			row := buildQuestion(surveyID, &section.ID, q, j+1)
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
	}
	for i, q := range questions {
		row := buildQuestion(surveyID, nil, q, i+1)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *SurveyService) ListByProject(ctx context.Context, actor Actor, projectID string) ([]models.Survey, error) {
	project, err := findProjectFor(ctx, s.db, actor, projectID)
	if err != nil {
		return nil, err
	}
	surveys := []models.Survey{}
	err = s.db.WithContext(ctx).Where("project_id = ?", project.ID).Order("created_at DESC").Find(&surveys).Error
	return surveys, err
}

func (s *SurveyService) load(ctx context.Context, where string, arg any) (*models.Survey, error) {
	var survey models.Survey
	err := s.db.WithContext(ctx).
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Preload("Sections.Questions", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Where("section_id IS NULL").Order("sort_order ASC") }).
		Where(where, arg).
		First(&survey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("survey")
	}
	if err != nil {
		return nil, err
	}
	return &survey, nil
}

func (s *SurveyService) Get(ctx context.Context, actor Actor, id string) (*models.Survey, error) {
	survey, err := s.load(ctx, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if _, err := findProjectFor(ctx, s.db, actor, survey.ProjectID); err != nil {
		return nil, err
	}
	return survey, nil
}

// GetByAccessCode is the public read used by respondents.
func (s *SurveyService) GetByAccessCode(ctx context.Context, code string) (*models.Survey, error) {
	return s.load(ctx, "access_code = ?", strings.ToUpper(strings.TrimSpace(code)))
}

func (s *SurveyService) Create(ctx context.Context, actor Actor, in SurveyInput) (*models.Survey, error) {
	if fields := in.validate(true); len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}
	project, err := findProjectFor(ctx, s.db, actor, in.ProjectID)
	if err != nil {
		return nil, err
	}

	survey := models.Survey{
		ProjectID:    project.ID,
		Type:         *in.Type,
		Name:         strings.TrimSpace(*in.Name),
		AccessCode:   newAccessCode(),
		Description:  in.Description,
		Instructions: in.Instructions,
		IsAnonymous:  true,
		StartsAt:     in.StartsAt,
		EndsAt:       in.EndsAt,
	}
	if in.IsAnonymous != nil {
		survey.IsAnonymous = *in.IsAnonymous
	}
	if in.Status != nil {
		survey.Status = *in.Status
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&survey).Error; err != nil {
			return err
		}
		return replaceStructure(tx, survey.ID, in.Sections, in.Questions)
	})
	if err != nil {
		return nil, fmt.Errorf("create survey: %w", err)
	}
	return s.load(ctx, "id = ?", survey.ID)
}

// Update edits survey fields. Questions and sections are replaced only
// while the survey has no responses.
func (s *SurveyService) Update(ctx context.Context, actor Actor, id string, in SurveyInput) (*models.Survey, error) {
	survey, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if fields := in.validate(false); len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}

	updates := map[string]interface{}{}
	if in.Type != nil {
		updates["type"] = *in.Type
	}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Instructions != nil {
		updates["instructions"] = *in.Instructions
	}
	if in.IsAnonymous != nil {
		updates["is_anonymous"] = *in.IsAnonymous
	}
	if in.Status != nil {
		updates["status"] = *in.Status
	}
	if in.StartsAt != nil {
		updates["starts_at"] = *in.StartsAt
	}
	if in.EndsAt != nil {
		updates["ends_at"] = *in.EndsAt
	}
	restructure := in.Questions != nil || in.Sections != nil
	if restructure {
		var responses int64
		if err := s.db.WithContext(ctx).Model(&models.SurveyResponse{}).Where("survey_id = ?", survey.ID).Count(&responses).Error; err != nil {
			return nil, err
		}
		if responses > 0 {
			return nil, apperrors.Conflict("survey already has responses, questions can no longer change")
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.Survey{}).Where("id = ?", survey.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		if restructure {
			return replaceStructure(tx, survey.ID, in.Sections, in.Questions)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, "id = ?", survey.ID)
}

type AnswerInput struct {
	QuestionID   string   `json:"questionId"`
	Value        any      `json:"value"`
	TextValue    *string  `json:"textValue"`
	NumericValue *float64 `json:"numericValue"`
	StoragePath  *string  `json:"storagePath"`
}

type RespondInput struct {
	Token   string        `json:"token"`
	Answers []AnswerInput `json:"answers"`
}

func (a AnswerInput) empty() bool {
	return a.Value == nil && strings.TrimSpace(deref(a.TextValue)) == "" && a.NumericValue == nil && deref(a.StoragePath) == ""
}

func (s *SurveyService) acceptingResponses(survey *models.Survey) error {
	now := s.now()
	switch {
	case survey.Status != models.SurveyStatusActive:
		return apperrors.New("survey is not open for responses")
	case survey.StartsAt != nil && now.Before(*survey.StartsAt):
		return apperrors.New("survey has not started yet")
	case survey.EndsAt != nil && now.After(*survey.EndsAt):
		return apperrors.New("survey has ended")
	}
	return nil
}

// Respond records one submission for the survey behind code. An invitation
// token, when given, can be used once.
func (s *SurveyService) Respond(ctx context.Context, code, respondentID string, in RespondInput) (*models.SurveyResponse, error) {
	survey, err := s.GetByAccessCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.acceptingResponses(survey); err != nil {
		return nil, err
	}

	questions := map[string]models.SurveyQuestion{}
	for _, q := range survey.Questions {
		questions[q.ID] = q
	}
	for _, section := range survey.Sections {
		for _, q := range section.Questions {
			questions[q.ID] = q
		}
	}

	fields := map[string][]string{}
	answered := map[string]bool{}
	for i, a := range in.Answers {
		q, ok := questions[a.QuestionID]
		if !ok {
			key := fmt.Sprintf("answers[%d].questionId", i)
			fields[key] = append(fields[key], "question does not belong to this survey")
			continue
		}
		if a.NumericValue != nil && q.Type == models.QuestionNPS && (*a.NumericValue < 0 || *a.NumericValue > 10) {
			key := fmt.Sprintf("answers[%d].numericValue", i)
			fields[key] = append(fields[key], "NPS answers range from 0 to 10")
		}
		if !a.empty() {
			answered[a.QuestionID] = true
		}
	}
	for id, q := range questions {
		if q.IsRequired && !answered[id] {
			fields["answers"] = append(fields["answers"], "missing answer for required question: "+q.Text)
		}
	}
	if len(fields) > 0 {
		sort.Strings(fields["answers"])
		return nil, apperrors.Validation(fields)
	}

	now := s.now()
	response := models.SurveyResponse{
		SurveyID:    survey.ID,
		Status:      responseCompleted,
		SubmittedAt: &now,
	}
	if respondentID != "" && !survey.IsAnonymous {
		response.RespondentID = &respondentID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if token := strings.TrimSpace(in.Token); token != "" {
			var invitation models.SurveyInvitation
			if err := tx.Where("survey_id = ? AND token = ?", survey.ID, token).First(&invitation).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperrors.Field("token", "invalid invitation token")
				}
				return err
			}
			res := tx.Model(&models.SurveyInvitation{}).
				Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
				Updates(map[string]interface{}{"status": models.InvitationResponded, "responded_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apperrors.Conflict("this invitation was already answered")
			}
			if !survey.IsAnonymous {
				response.InvitationID = &invitation.ID
			}
		}
		if err := tx.Create(&response).Error; err != nil {
			return err
		}
		answers := make([]models.SurveyAnswer, 0, len(in.Answers))
		for _, a := range in.Answers {
			answer := models.SurveyAnswer{
				ResponseID:   response.ID,
				QuestionID:   a.QuestionID,
				TextValue:    strPtr(deref(a.TextValue)),
				NumericValue: a.NumericValue,
				StoragePath:  strPtr(deref(a.StoragePath)),
			}
			if a.Value != nil {
				answer.Value = models.JSONMap(a.Value)
			}
			answers = append(answers, answer)
		}
		if len(answers) == 0 {
			return nil
		}
		return tx.Create(&answers).Error
	})
	if err != nil {
		return nil, err
	}

	s.afterResponse(ctx, survey, &response)
	return &response, nil
}

func (s *SurveyService) afterResponse(ctx context.Context, survey *models.Survey, response *models.SurveyResponse) {
	bg := persistentContext(ctx)
	fields := []zap.Field{zap.String("survey_id", survey.ID), zap.String("response_id", response.ID)}

	var project models.Project
	if err := s.db.WithContext(bg).Where("id = ?", survey.ProjectID).First(&project).Error; err != nil {
		logAndContinue(s.logger, "load survey project", err, fields...)
		return
	}
	_, err := s.notifications.Notify(bg, []string{project.ConsultantID}, NotificationInput{
		Type:      models.NotificationSurveyCompleted,
		ProjectID: project.ID,
		Title:     "New survey response",
		Message:   fmt.Sprintf("A response to %q was submitted.", survey.Name),
		Link:      "/surveys/" + survey.ID + "/responses",
		Metadata:  map[string]any{"surveyId": survey.ID},
	})
	logAndContinue(s.logger, "survey response notification", err, fields...)
	err = s.events.Publish(bg, Event{
		Type:      EventSurveyCompleted,
		ProjectID: project.ID,
		Data:      map[string]any{"surveyId": survey.ID, "responseId": response.ID},
	})
	logAndContinue(s.logger, "publish survey response", err, fields...)
}

// Responses lists submissions with answers. Anonymous surveys never expose
// who answered.
func (s *SurveyService) Responses(ctx context.Context, actor Actor, id string) ([]models.SurveyResponse, error) {
	survey, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	responses := []models.SurveyResponse{}
	err = s.db.WithContext(ctx).
		Preload("Answers").
		Where("survey_id = ?", survey.ID).
		Order("submitted_at DESC").
		Find(&responses).Error
	if err != nil {
		return nil, err
	}
	if survey.IsAnonymous {
		for i := range responses {
			responses[i].RespondentID = nil
			responses[i].InvitationID = nil
		}
	}
	return responses, nil
}

type QuestionStatistics struct {
	QuestionID string         `json:"questionId"`
	Text       string         `json:"text"`
	Type       string         `json:"type"`
	Answers    int            `json:"answers"`
	Average    *float64       `json:"average,omitempty"`
	Choices    map[string]int `json:"choices,omitempty"`
}

type SurveyStatistics struct {
	TotalResponses      int64                `json:"totalResponses"`
	TotalInvitations    int64                `json:"totalInvitations"`
	RespondedInvitation int64                `json:"respondedInvitations"`
	ResponseRate        float64              `json:"responseRate"`
	Questions           []QuestionStatistics `json:"questions"`
}

func (s *SurveyService) Statistics(ctx context.Context, actor Actor, id string) (*SurveyStatistics, error) {
	survey, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	stats := &SurveyStatistics{Questions: []QuestionStatistics{}}
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.SurveyResponse{}).Where("survey_id = ?", survey.ID).Count(&stats.TotalResponses).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.SurveyInvitation{}).Where("survey_id = ?", survey.ID).Count(&stats.TotalInvitations).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.SurveyInvitation{}).Where("survey_id = ? AND status = ?", survey.ID, models.InvitationResponded).Count(&stats.RespondedInvitation).Error; err != nil {
		return nil, err
	}
	if stats.TotalInvitations > 0 {
		rate := float64(stats.TotalResponses) / float64(stats.TotalInvitations) * 100
		stats.ResponseRate = math.Round(rate*100) / 100
	}

	var answers []models.SurveyAnswer
	err = db.Where("response_id IN (?)",
		s.db.Model(&models.SurveyResponse{}).Select("id").Where("survey_id = ?", survey.ID)).
		Find(&answers).Error
	if err != nil {
		return nil, err
	}
	byQuestion := map[string][]models.SurveyAnswer{}
	for _, a := range answers {
		byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a)
	}

	ordered := append([]models.SurveyQuestion{}, survey.Questions...)
	for _, section := range survey.Sections {
		ordered = append(ordered, section.Questions...)
	}
	for _, q := range ordered {
		qs := QuestionStatistics{QuestionID: q.ID, Text: q.Text, Type: string(q.Type), Answers: len(byQuestion[q.ID])}
		var sum float64
		var numeric int
		for _, a := range byQuestion[q.ID] {
			if a.NumericValue != nil {
				sum += *a.NumericValue
				numeric++
			}
			for _, choice := range choiceValues(a) {
				if qs.Choices == nil {
					qs.Choices = map[string]int{}
				}
				qs.Choices[choice]++
			}
		}
		if numeric > 0 {
			avg := math.Round(sum/float64(numeric)*100) / 100
			qs.Average = &avg
		}
		stats.Questions = append(stats.Questions, qs)
	}
	return stats, nil
}

// choiceValues reads the selected option(s) stored in an answer value.
func choiceValues(a models.SurveyAnswer) []string {
	if len(a.Value) == 0 {
		return nil
	}
	var many []string
	if json.Unmarshal(a.Value, &many) == nil {
		return many
	}
	var single string
	if json.Unmarshal(a.Value, &single) == nil && single != "" {
		return []string{single}
	}
	return nil
}

// SendInvitations creates invitations for new addresses and e-mails them.
// Addresses already invited are skipped. It returns how many were created.
func (s *SurveyService) SendInvitations(ctx context.Context, actor Actor, id string, emails []string) (int, error) {
	survey, err := s.Get(ctx, actor, id)
	if err != nil {
		return 0, err
	}
	seen := map[string]bool{}
	var clean []string
	for _, raw := range emails {
		addr := strings.ToLower(strings.TrimSpace(raw))
		if addr == "" || seen[addr] {
			continue
		}
		if _, err := mail.ParseAddress(addr); err != nil {
			return 0, apperrors.Field("emails", "invalid e-mail: "+raw)
		}
		seen[addr] = true
		clean = append(clean, addr)
	}
	if len(clean) == 0 {
		return 0, apperrors.Field("emails", "at least one e-mail is required")
	}

	invitations := make([]models.SurveyInvitation, 0, len(clean))
	for _, addr := range clean {
		token, err := randomHex(24)
		if err != nil {
			return 0, err
		}
		invitations = append(invitations, models.SurveyInvitation{SurveyID: survey.ID, Email: addr, Token: token})
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&invitations).Error; err != nil {
		return 0, err
	}

	var created []models.SurveyInvitation
	tokens := make([]string, len(invitations))
	for i, inv := range invitations {
		tokens[i] = inv.Token
	}
	if err := s.db.WithContext(ctx).Where("survey_id = ? AND token IN ?", survey.ID, tokens).Find(&created).Error; err != nil {
		return 0, err
	}

	brand := s.emails.Branding(projectTenant(ctx, s.db, survey.ProjectID))
	for i := range created {
		s.deliver(ctx, survey, &created[i], false, brand)
	}
	return len(created), nil
}

// SendReminders e-mails pending invitees again, at most once a day and
// three times overall.
func (s *SurveyService) SendReminders(ctx context.Context, actor Actor, id string) (int, error) {
	survey, err := s.Get(ctx, actor, id)
	if err != nil {
		return 0, err
	}
	if err := s.acceptingResponses(survey); err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-surveyReminderSpacing)
	var pending []models.SurveyInvitation
	err = s.db.WithContext(ctx).
		Where("survey_id = ? AND status = ? AND reminders_sent < ?", survey.ID, models.InvitationPending, maxSurveyReminders).
		Where("(last_reminder_at IS NULL OR last_reminder_at < ?) AND (sent_at IS NULL OR sent_at < ?)", cutoff, cutoff).
		Find(&pending).Error
	if err != nil {
		return 0, err
	}
	brand := s.emails.Branding(projectTenant(ctx, s.db, survey.ProjectID))
	sent := 0
	for i := range pending {
		if s.deliver(ctx, survey, &pending[i], true, brand) {
			sent++
		}
	}
	return sent, nil
}

func (s *SurveyService) deliver(ctx context.Context, survey *models.Survey, inv *models.SurveyInvitation, reminder bool, brand Branding) bool {
	if s.emails == nil {
		return false
	}
	link := s.emails.FrontendLink(fmt.Sprintf("/surveys/%s?token=%s", survey.AccessCode, inv.Token))
	err := s.emails.SendSurveyInvitation(persistentContext(ctx), SurveyInvitationEmail{
		To:          inv.Email,
		SurveyName:  survey.Name,
		Link:        link,
		Reminder:    reminder,
		Brand:       brand,
	})
	if err != nil {
		logAndContinue(s.logger, "survey invitation e-mail", err, zap.String("invitation_id", inv.ID))
		return false
	}
	now := s.now()
	updates := map[string]interface{}{"sent_at": now}
	if reminder {
		updates = map[string]interface{}{
			"reminders_sent":   gorm.Expr("reminders_sent + 1"),
			"last_reminder_at": now,
		}
	}
	logAndContinue(s.logger, "record invitation delivery",
		s.db.WithContext(persistentContext(ctx)).Model(&models.SurveyInvitation{}).Where("id = ?", inv.ID).Updates(updates).Error,
		zap.String("invitation_id", inv.ID))
	return true
}
