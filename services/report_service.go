package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"diagnostics-api/apperrors"
	"diagnostics-api/config"
	"diagnostics-api/models"
)

const reportVersionAuthor = "system"

type ReportService struct {
	db            *gorm.DB
	ai            *AIService
	emails        *EmailService
	notifications *NotificationService
	events        EventPublisher
	logger        *zap.Logger
	now           func() time.Time
}

type ReportDeps struct {
	AI            *AIService
	Emails        *EmailService
	Notifications *NotificationService
	Events        EventPublisher
	Logger        *zap.Logger
}

func NewReportService(db *gorm.DB, deps ReportDeps) *ReportService {
	if db == nil {
		db = config.DB
	}
	logger := loggerOrDefault(deps.Logger)
	if deps.AI == nil {
		deps.AI = NewAIService(db, nil, "", logger)
	}
	if deps.Notifications == nil {
		deps.Notifications = NewNotificationService(db, logger)
	}
	if deps.Events == nil {
		deps.Events = NopPublisher{}
	}
	return &ReportService{
		db:            db,
		ai:            deps.AI,
		emails:        deps.Emails,
		notifications: deps.Notifications,
		events:        deps.Events,
		logger:        logger,
		now:           time.Now,
	}
}

// Clients only ever see published reports.
func (s *ReportService) ListByProject(ctx context.Context, actor Actor, projectID string) ([]models.Report, error) {
	project, err := findProjectFor(ctx, s.db, actor, projectID)
	if err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("project_id = ?", project.ID)
	if !actor.IsStaff() {
		q = q.Where("status = ?", models.ReportStatusPublished)
	}
	reports := []models.Report{}
	err = q.Order("created_at DESC").Find(&reports).Error
	return reports, err
}

func (s *ReportService) Get(ctx context.Context, actor Actor, id string) (*models.Report, error) {
	var report models.Report
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("report")
	}
	if err != nil {
		return nil, err
	}
	if _, err := findProjectFor(ctx, s.db, actor, report.ProjectID); err != nil {
		return nil, err
	}
	if !actor.IsStaff() && report.Status != models.ReportStatusPublished {
		return nil, apperrors.NotFound("report")
	}
	return &report, nil
}

type GenerateReportInput struct {
	ProjectID string            `json:"projectId"`
	Type      models.ReportType `json:"type"`
	Title     string            `json:"title"`
}

// Generate creates a draft report whose executive summary is written by
// the LLM from the data collected for the project.
func (s *ReportService) Generate(ctx context.Context, actor Actor, in GenerateReportInput) (*models.Report, error) {
	fields := map[string][]string{}
	if !in.Type.Valid() {
		fields["type"] = append(fields["type"], "invalid report type")
	}
	title := strings.TrimSpace(in.Title)
	if len(title) < 2 {
		fields["title"] = append(fields["title"], "title must have at least 2 characters")
	}
	if len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}
	project, err := findProjectFor(ctx, s.db, actor, in.ProjectID)
	if err != nil {
		return nil, err
	}

	data, err := s.projectContext(ctx, project)
	if err != nil {
		return nil, err
	}
	summary, err := s.ai.GenerateReportSection(ctx, project.ID, SectionExecutiveSummary, data)
	if err != nil {
		return nil, err
	}

	report := models.Report{
		ProjectID:        project.ID,
		CreatedByID:      actor.UserID,
		Type:             in.Type,
		Title:            title,
		ExecutiveSummary: &summary,
		Metadata: models.JSONMap(map[string]any{
			"generatedAt": s.now().UTC().Format(time.RFC3339),
			"surveys":     data["surveys"],
			"interviews":  data["interviews"],
			"documents":   data["documents"],
		}),
	}
	if err := s.db.WithContext(ctx).Create(&report).Error; err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	return &report, nil
}

// projectContext gathers the anonymized material the LLM works from.
func (s *ReportService) projectContext(ctx context.Context, project *models.Project) (map[string]any, error) {
	db := s.db.WithContext(ctx)

	var surveys []models.Survey
	if err := db.Where("project_id = ?", project.ID).Find(&surveys).Error; err != nil {
		return nil, err
	}
	surveyData := make([]map[string]any, 0, len(surveys))
	for _, survey := range surveys {
		var responses int64
		if err := db.Model(&models.SurveyResponse{}).Where("survey_id = ?", survey.ID).Count(&responses).Error; err != nil {
			return nil, err
		}
		surveyData = append(surveyData, map[string]any{"name": survey.Name, "type": survey.Type, "responses": responses})
	}

	var interviews []models.Interview
	if err := db.Where("project_id = ? AND status = ?", project.ID, models.InterviewAnalyzed).Find(&interviews).Error; err != nil {
		return nil, err
	}
	interviewData := make([]map[string]any, 0, len(interviews))
	for _, interview := range interviews {
		interviewData = append(interviewData, map[string]any{
			"themes":         models.DecodeStrings(interview.KeyThemes),
			"sentimentScore": interview.SentimentScore,
			"summary":        deref(interview.AnonymizedSummary),
		})
	}

	var documents []models.Document
	if err := db.Where("project_id = ? AND status = ?", project.ID, models.DocumentStatusValidated).Find(&documents).Error; err != nil {
		return nil, err
	}
	documentData := make([]map[string]any, 0, len(documents))
	for _, doc := range documents {
		documentData = append(documentData, map[string]any{"type": doc.Type, "name": doc.Name, "description": deref(doc.Description)})
	}

	out := map[string]any{
		"project":    map[string]any{"name": project.Name, "stage": project.Stage, "progress": project.Progress},
		"surveys":    surveyData,
		"interviews": interviewData,
		"documents":  documentData,
	}
	if project.Organization != nil {
		out["organization"] = map[string]any{
			"industry": deref(project.Organization.Industry),
			"size":     deref(project.Organization.Size),
			"mission":  deref(project.Organization.Mission),
			"values":   deref(project.Organization.Values),
		}
	}
	return out, nil
}

// UpdateSection replaces the text of one section.
func (s *ReportService) UpdateSection(ctx context.Context, actor Actor, id string, section ReportSection, content string) (*models.Report, error) {
	column, ok := section.Column()
	if !ok {
		return nil, apperrors.Field("section", "unknown report section")
	}
	report, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(report).Update(column, content).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, id)
}

// Publish snapshots the current content as a version, marks the report
// published and bumps its version. Notifications and e-mail are best effort.
func (s *ReportService) Publish(ctx context.Context, actor Actor, id string) (*models.Report, error) {
	report, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		version := models.ReportVersion{
			ReportID:  report.ID,
			Version:   report.Version,
			Content:   models.JSONMap(report.Snapshot()),
			ChangedBy: reportVersionAuthor,
		}
		if err := tx.Create(&version).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Report{}).
			Where("id = ? AND version = ?", report.ID, report.Version).
			Updates(map[string]interface{}{
				"status":       models.ReportStatusPublished,
				"published_at": now,
				"version":      gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflict("report changed while publishing, try again")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	published, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	s.afterPublish(ctx, published)
	return published, nil
}

func (s *ReportService) afterPublish(ctx context.Context, report *models.Report) {
	bg := persistentContext(ctx)
	fields := []zap.Field{zap.String("report_id", report.ID)}

	project, err := findProjectFor(bg, s.db, SystemActor, report.ProjectID)
	if err != nil {
		logAndContinue(s.logger, "load report project", err, fields...)
		return
	}
	_, err = s.notifications.NotifyOrganization(bg, project, NotificationInput{
		Type:     models.NotificationReportGenerated,
		Title:    "Report published",
		Message:  fmt.Sprintf("%q is available for %s.", report.Title, project.Name),
		Link:     "/reports/" + report.ID,
		Metadata: map[string]any{"reportId": report.ID, "version": report.Version},
	})
	logAndContinue(s.logger, "report notification", err, fields...)

	if s.emails != nil {
		var recipients []string
		err = s.db.WithContext(bg).Model(&models.User{}).
			Where("organization_id = ? AND status = ?", project.OrganizationID, models.UserStatusActive).
			Pluck("email", &recipients).Error
		if err == nil && len(recipients) > 0 {
			err = s.emails.SendReportPublished(bg, ReportPublishedEmail{
				To:          recipients,
				ProjectName: project.Name,
				ReportTitle: report.Title,
				Link:        s.emails.FrontendLink("/reports/" + report.ID),
				Brand:       s.emails.Branding(projectTenant(bg, s.db, project.ID)),
			})
		}
		logAndContinue(s.logger, "report e-mail", err, fields...)
	}

	logAndContinue(s.logger, "publish report event", s.events.Publish(bg, Event{
		Type:      EventReportPublished,
		ProjectID: project.ID,
		Data:      map[string]any{"reportId": report.ID, "version": report.Version},
	}), fields...)
}

func (s *ReportService) Versions(ctx context.Context, actor Actor, id string) ([]models.ReportVersion, error) {
	report, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	versions := []models.ReportVersion{}
	err = s.db.WithContext(ctx).Where("report_id = ?", report.ID).Order("version DESC").Find(&versions).Error
	return versions, err
}
