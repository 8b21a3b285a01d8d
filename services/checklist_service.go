package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"diagnostics-api/apperrors"
	"diagnostics-api/checklist"
	"diagnostics-api/config"
	"diagnostics-api/models"
	"diagnostics-api/monitor"
)

// ChecklistService exposes the checklist engine to the HTTP layer and runs
// the side effects of stage changes.
type ChecklistService struct {
	db            *gorm.DB
	store         *GormChecklistStore
	engine        *checklist.Engine
	notifications *NotificationService
	events        EventPublisher
	logger        *zap.Logger
}

func NewChecklistService(db *gorm.DB, notifications *NotificationService, events EventPublisher, logger *zap.Logger) *ChecklistService {
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
	store := NewGormChecklistStore(db)
	return &ChecklistService{
		db:            db,
		store:         store,
		engine:        checklist.NewEngine(store, store, logger.Named("checklist")),
		notifications: notifications,
		events:        events,
		logger:        logger,
	}
}

// Ensure seeds the default checklist when the project has none.
func (s *ChecklistService) Ensure(ctx context.Context, projectID string) []checklist.Item {
	return s.engine.EnsureChecklist(ctx, projectID)
}

// Sync reconciles one project and runs the stage-change side effects.
func (s *ChecklistService) Sync(ctx context.Context, projectID string, onboarding map[string]string, organizationID string) (checklist.Outcome, error) {
	out, err := s.engine.Reconcile(ctx, projectID, onboarding, organizationID)
	if err != nil {
		monitor.IncrementChecklistReconcile("failed")
		return out, err
	}
	for _, t := range out.Transitions {
		monitor.IncrementChecklistTransition(string(t.Source))
	}
	if out.Written {
		monitor.IncrementChecklistReconcile("written")
	} else {
		monitor.IncrementChecklistReconcile("unchanged")
	}
	if out.StageAdvanced() {
		s.onStageAdvanced(ctx, out)
	}
	return out, nil
}

// SyncQuietly reconciles and only logs failures. Callers that already
// committed their own change use it so the response never depends on it.
func (s *ChecklistService) SyncQuietly(ctx context.Context, projectID string, onboarding map[string]string, organizationID string) {
	_, err := s.Sync(ctx, projectID, onboarding, organizationID)
	logAndContinue(s.logger, "checklist sync", err, zap.String("project_id", projectID))
}

// SyncOrganization reconciles every project of an organization.
func (s *ChecklistService) SyncOrganization(ctx context.Context, organizationID string) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("organization_id = ?", organizationID).
		Pluck("id", &ids).Error; err != nil {
		logAndContinue(s.logger, "list organization projects", err, zap.String("organization_id", organizationID))
		return
	}
	for _, id := range ids {
		s.SyncQuietly(ctx, id, nil, organizationID)
	}
}

func (s *ChecklistService) onStageAdvanced(ctx context.Context, out checklist.Outcome) {
	ctx = persistentContext(ctx)
	monitor.IncrementStageAdvance(string(out.PreviousStage), string(out.Stage))
	fields := []zap.Field{zap.String("project_id", out.ProjectID), zap.String("stage", string(out.Stage))}

	activity := models.ProjectActivity{
		ProjectID:   out.ProjectID,
		Action:      models.ActivityStageAdvanced,
		Description: fmt.Sprintf("Stage advanced from %s to %s", out.PreviousStage, out.Stage),
		Metadata:    models.JSONMap(map[string]any{"from": out.PreviousStage, "to": out.Stage, "progress": out.Progress}),
	}
	logAndContinue(s.logger, "record stage activity", s.db.WithContext(ctx).Create(&activity).Error, fields...)

	var project models.Project
	if err := s.db.WithContext(ctx).Where("id = ?", out.ProjectID).First(&project).Error; err != nil {
		logAndContinue(s.logger, "load project for stage notification", err, fields...)
		return
	}
	_, err := s.notifications.NotifyOrganization(ctx, &project, NotificationInput{
		Type:    models.NotificationStageAdvanced,
		Title:   "Onboarding complete",
		Message: fmt.Sprintf("All onboarding items of %q are in. The project moved to document collection.", project.Name),
		Link:    "/projects/" + project.ID,
	})
	logAndContinue(s.logger, "stage notification", err, fields...)

	err = s.events.Publish(ctx, Event{
		Type:      EventProjectStageAdvance,
		ProjectID: out.ProjectID,
		Data:      map[string]any{"from": out.PreviousStage, "to": out.Stage, "progress": out.Progress},
	})
	logAndContinue(s.logger, "publish stage event", err, fields...)
}

// Checklist seeds if needed, reconciles, and returns the items with their
// documents and history.
func (s *ChecklistService) Checklist(ctx context.Context, actor Actor, projectID string) ([]models.DocumentChecklistItem, error) {
	project, err := findProjectFor(ctx, s.db, actor, projectID)
	if err != nil {
		return nil, err
	}
	s.Ensure(ctx, project.ID)
	s.SyncQuietly(ctx, project.ID, nil, project.OrganizationID)
	return s.loadItems(ctx, project.ID)
}

func (s *ChecklistService) loadItems(ctx context.Context, projectID string) ([]models.DocumentChecklistItem, error) {
	items := []models.DocumentChecklistItem{}
	err := s.db.WithContext(ctx).
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("project_id = ?", projectID).
		Order("sort_order ASC").
		Find(&items).Error
	return items, err
}

type ProjectProgress struct {
	Progress  int                            `json:"progress"`
	Stage     checklist.Stage                `json:"stage"`
	Checklist []models.DocumentChecklistItem `json:"checklist"`
}

func (s *ChecklistService) Progress(ctx context.Context, actor Actor, projectID string) (*ProjectProgress, error) {
	items, err := s.Checklist(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	var project models.Project
	if err := s.db.WithContext(ctx).Select("id", "progress", "stage").Where("id = ?", projectID).First(&project).Error; err != nil {
		return nil, err
	}
	return &ProjectProgress{Progress: project.Progress, Stage: project.Stage, Checklist: items}, nil
}

func (s *ChecklistService) findItem(ctx context.Context, actor Actor, itemID string) (*models.DocumentChecklistItem, *models.Project, error) {
	var item models.DocumentChecklistItem
	err := s.db.WithContext(ctx).Where("id = ?", itemID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperrors.NotFound("checklist item")
	}
	if err != nil {
		return nil, nil, err
	}
	project, err := findProjectFor(ctx, s.db, actor, item.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return &item, project, nil
}

// AnswerText stores a free-text answer for an item and counts it as an upload.
func (s *ChecklistService) AnswerText(ctx context.Context, actor Actor, itemID, content string) (*models.DocumentChecklistItem, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.Field("content", "content is required")
	}
	item, project, err := s.findItem(ctx, actor, itemID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(item).Update("content", content).Error; err != nil {
			return err
		}
		if _, err := applyItemTransition(tx, item.ProjectID, checklist.Transition{
			ItemID:       item.ID,
			DocumentType: item.DocumentType,
			From:         checklist.StatusPending,
			To:           checklist.StatusUploaded,
			Source:       checklist.SourceTextAnswer,
		}, strPtr(actor.UserID), nil); err != nil {
			return err
		}
		return tx.Create(&models.ProjectActivity{
			ProjectID:   item.ProjectID,
			UserID:      strPtr(actor.UserID),
			Action:      models.ActivityChecklistAnswered,
			Description: fmt.Sprintf("Answered %s in text", item.DocumentType),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.SyncQuietly(ctx, project.ID, nil, project.OrganizationID)
	return s.reloadItem(ctx, item.ID)
}

// ReviewDecision is the outcome a consultant assigns to an uploaded item.
type ReviewDecision string

const (
	ReviewApproved ReviewDecision = "APPROVED"
	ReviewRejected ReviewDecision = "REJECTED"
)

func (d ReviewDecision) Status() (checklist.Status, bool) {
	switch ReviewDecision(strings.ToUpper(string(d))) {
	case ReviewApproved:
		return checklist.StatusValidated, true
	case ReviewRejected:
		return checklist.StatusRejected, true
	}
	return "", false
}

// Review validates or rejects a checklist item that has been uploaded.
func (s *ChecklistService) Review(ctx context.Context, actor Actor, itemID string, decision ReviewDecision, notes string) (*models.DocumentChecklistItem, error) {
	to, ok := decision.Status()
	if !ok {
		return nil, apperrors.Field("status", "status must be APPROVED or REJECTED")
	}
	item, project, err := s.findItem(ctx, actor, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.reviewItem(ctx, s.db, actor, item, to, notes); err != nil {
		return nil, err
	}
	s.SyncQuietly(ctx, project.ID, nil, project.OrganizationID)
	return s.reloadItem(ctx, item.ID)
}

// reviewItem applies a review transition inside db, which may be a transaction.
func (s *ChecklistService) reviewItem(ctx context.Context, db *gorm.DB, actor Actor, item *models.DocumentChecklistItem, to checklist.Status, notes string) error {
	if item.Status == to {
		return nil
	}
	if !checklist.CanReview(item.Status, to) {
		return apperrors.Field("status", fmt.Sprintf("cannot move checklist item from %s to %s", item.Status, to))
	}
	changed, err := applyItemTransition(db.WithContext(ctx), item.ProjectID, checklist.Transition{
		ItemID:       item.ID,
		DocumentType: item.DocumentType,
		From:         item.Status,
		To:           to,
		Source:       checklist.SourceReview,
	}, strPtr(actor.UserID), strPtr(notes))
	if err != nil {
		return err
	}
	if !changed {
		return apperrors.Conflict("checklist item changed concurrently, reload and retry")
	}
	item.Status = to
	return nil
}

func (s *ChecklistService) reloadItem(ctx context.Context, itemID string) (*models.DocumentChecklistItem, error) {
	var item models.DocumentChecklistItem
	err := s.db.WithContext(ctx).
		Preload("Documents").
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", itemID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}
