package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"diagnostics-api/apperrors"
	"diagnostics-api/checklist"
	"diagnostics-api/config"
	"diagnostics-api/models"
)

// GormChecklistStore implements checklist.Store and checklist.OrganizationReader.
type GormChecklistStore struct {
	db *gorm.DB
}

func NewGormChecklistStore(db *gorm.DB) *GormChecklistStore {
	if db == nil {
		db = config.DB
	}
	return &GormChecklistStore{db: db}
}

type checklistItemRow struct {
	ID            string
	DocumentType  string
	Status        string
	DocumentCount int
}

func (s *GormChecklistStore) Items(ctx context.Context, projectID string) ([]checklist.Item, error) {
	var rows []checklistItemRow
	err := s.db.WithContext(ctx).
		Table("document_checklist_items AS i").
		Select("i.id, i.document_type, i.status, COUNT(d.id) AS document_count").
		Joins("LEFT JOIN documents d ON d.checklist_item_id = i.id").
		Where("i.project_id = ?", projectID).
		Group("i.id, i.document_type, i.status, i.sort_order").
		Order("i.sort_order ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	items := make([]checklist.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, checklist.Item{
			ID:            r.ID,
			DocumentType:  checklist.DocumentType(r.DocumentType),
			Status:        checklist.Status(r.Status),
			DocumentCount: r.DocumentCount,
		})
	}
	return items, nil
}

// Seed inserts the template rows that are missing. The unique index on
// (project_id, document_type) turns a concurrent second seed into a no-op.
func (s *GormChecklistStore) Seed(ctx context.Context, projectID string, template []checklist.TemplateItem) error {
	if len(template) == 0 {
		return nil
	}
	rows := make([]models.DocumentChecklistItem, 0, len(template))
	for _, t := range template {
		rows = append(rows, models.DocumentChecklistItem{
			ProjectID:    projectID,
			DocumentType: t.DocumentType,
			Instructions: t.Instructions,
			Order:        t.Order,
			IsRequired:   t.IsRequired,
			Status:       checklist.StatusPending,
		})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
}

func (s *GormChecklistStore) MarkUploaded(ctx context.Context, projectID string, t checklist.Transition) (bool, error) {
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		changed, err = applyItemTransition(tx, projectID, t, nil, nil)
		return err
	})
	return changed, err
}

// applyItemTransition moves an item from t.From to t.To with a conditional
// update and records history when a row changed.
func applyItemTransition(tx *gorm.DB, projectID string, t checklist.Transition, actorID, notes *string) (bool, error) {
	res := tx.Model(&models.DocumentChecklistItem{}).
		Where("id = ? AND project_id = ? AND status = ?", t.ItemID, projectID, t.From).
		Update("status", t.To)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	history := models.DocumentChecklistHistory{
		ItemID:     t.ItemID,
		ProjectID:  projectID,
		FromStatus: t.From,
		ToStatus:   t.To,
		Source:     t.Source,
		ActorID:    actorID,
		Notes:      notes,
	}
	if err := tx.Create(&history).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (s *GormChecklistStore) Project(ctx context.Context, projectID string) (checklist.ProjectState, error) {
	var p models.Project
	err := s.db.WithContext(ctx).
		Select("id", "organization_id", "progress", "stage", "settings").
		Where("id = ?", projectID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return checklist.ProjectState{}, apperrors.NotFound("project")
	}
	if err != nil {
		return checklist.ProjectState{}, err
	}
	return checklist.ProjectState{
		ID:             p.ID,
		OrganizationID: p.OrganizationID,
		Progress:       p.Progress,
		Stage:          p.Stage,
		Onboarding:     p.Onboarding(),
	}, nil
}

func (s *GormChecklistStore) SaveProgress(ctx context.Context, projectID string, progress int) error {
	return s.db.WithContext(ctx).
		Model(&models.Project{}).
		Where("id = ?", projectID).
		Update("progress", progress).Error
}

func (s *GormChecklistStore) AdvanceStage(ctx context.Context, projectID string, from, to checklist.Stage) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Project{}).
		Where("id = ? AND stage = ?", projectID, from).
		Update("stage", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormChecklistStore) OrganizationProfile(ctx context.Context, organizationID string) (checklist.OrganizationProfile, error) {
	var org models.Organization
	err := s.db.WithContext(ctx).
		Select("id", "mission", "vision", "values_statement").
		Where("id = ?", organizationID).
		First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return checklist.OrganizationProfile{}, apperrors.NotFound("organization")
	}
	if err != nil {
		return checklist.OrganizationProfile{}, err
	}
	return checklist.OrganizationProfile{
		Mission: deref(org.Mission),
		Vision:  deref(org.Vision),
		Values:  deref(org.Values),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
