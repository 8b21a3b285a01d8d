package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"diagnostics-api/apperrors"
	"diagnostics-api/config"
	"diagnostics-api/models"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100

	deadlineWindow     = 3 * 24 * time.Hour
	reminderDedupe     = 24 * time.Hour
	pendingDocumentAge = 24 * time.Hour
)

type NotificationService struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewNotificationService(db *gorm.DB, logger *zap.Logger) *NotificationService {
	if db == nil {
		db = config.DB
	}
	return &NotificationService{db: db, logger: loggerOrDefault(logger), now: time.Now}
}

// NotificationInput is one notification fanned out to several users.
type NotificationInput struct {
	Type      models.NotificationType
	ProjectID string
	Title     string
	Message   string
	Link      string
	Metadata  map[string]any
}

// Notify creates one notification per distinct user id.
func (s *NotificationService) Notify(ctx context.Context, userIDs []string, in NotificationInput) (int, error) {
	seen := make(map[string]struct{}, len(userIDs))
	rows := make([]models.Notification, 0, len(userIDs))
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, models.Notification{
			UserID:    id,
			ProjectID: strPtr(in.ProjectID),
			Type:      in.Type,
			Title:     in.Title,
			Message:   in.Message,
			Link:      strPtr(in.Link),
			Metadata:  models.JSONMap(in.Metadata),
			Status:    models.NotificationStatusPending,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("create notifications: %w", err)
	}
	return len(rows), nil
}

// organizationUserIDs lists users of an organization, minus exclude.
func (s *NotificationService) organizationUserIDs(ctx context.Context, organizationID, exclude string) ([]string, error) {
	var ids []string
	q := s.db.WithContext(ctx).Model(&models.User{}).
		Where("organization_id = ? AND status = ?", organizationID, models.UserStatusActive)
	if exclude != "" {
		q = q.Where("id <> ?", exclude)
	}
	err := q.Pluck("id", &ids).Error
	return ids, err
}

// staffUserIDs lists active staff users of a tenant, minus exclude.
func (s *NotificationService) staffUserIDs(ctx context.Context, tenantID, exclude string) ([]string, error) {
	var ids []string
	q := s.db.WithContext(ctx).Model(&models.User{}).
		Where("tenant_id = ? AND role IN ? AND status = ?", tenantID, models.StaffRoles, models.UserStatusActive)
	if exclude != "" {
		q = q.Where("id <> ?", exclude)
	}
	err := q.Pluck("id", &ids).Error
	return ids, err
}

func (s *NotificationService) NotifyProjectCreated(ctx context.Context, project *models.Project, creatorID string) (int, error) {
	ids, err := s.organizationUserIDs(ctx, project.OrganizationID, creatorID)
	if err != nil {
		return 0, err
	}
	return s.Notify(ctx, ids, NotificationInput{
		Type:      models.NotificationProjectCreated,
		ProjectID: project.ID,
		Title:     "New project",
		Message:   fmt.Sprintf("Project %q was created.", project.Name),
		Link:      "/projects/" + project.ID,
	})
}

func (s *NotificationService) NotifyDocumentUploaded(ctx context.Context, project *models.Project, doc *models.Document) (int, error) {
	tenantID, err := s.projectTenantID(ctx, project)
	if err != nil {
		return 0, err
	}
	ids, err := s.staffUserIDs(ctx, tenantID, doc.UploadedByID)
	if err != nil {
		return 0, err
	}
	return s.Notify(ctx, ids, NotificationInput{
		Type:      models.NotificationDocumentUploaded,
		ProjectID: project.ID,
		Title:     "Document uploaded",
		Message:   fmt.Sprintf("%s was uploaded to %s.", doc.Name, project.Name),
		Link:      "/projects/" + project.ID + "/documents",
		Metadata:  map[string]any{"documentId": doc.ID, "documentType": doc.Type},
	})
}

// NotifyOrganization sends in to every active user of the project's
// organization and to the project consultant.
func (s *NotificationService) NotifyOrganization(ctx context.Context, project *models.Project, in NotificationInput) (int, error) {
	ids, err := s.organizationUserIDs(ctx, project.OrganizationID, "")
	if err != nil {
		return 0, err
	}
	ids = append(ids, project.ConsultantID)
	in.ProjectID = project.ID
	return s.Notify(ctx, ids, in)
}

func (s *NotificationService) projectTenantID(ctx context.Context, project *models.Project) (string, error) {
	if project.Organization != nil {
		return project.Organization.TenantID, nil
	}
	var tenantID string
	err := s.db.WithContext(ctx).Model(&models.Organization{}).
		Where("id = ?", project.OrganizationID).
		Pluck("tenant_id", &tenantID).Error
	return tenantID, err
}

type NotificationPage struct {
	Items  []models.Notification `json:"items"`
	Total  int64                 `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) (*NotificationPage, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	if offset < 0 {
		offset = 0
	}

	q := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("status IN ?", unreadStatuses())
	}

	page := &NotificationPage{Limit: limit, Offset: offset, Items: []models.Notification{}}
	if err := q.Count(&page.Total).Error; err != nil {
		return nil, err
	}
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&page.Items).Error; err != nil {
		return nil, err
	}
	return page, nil
}

func unreadStatuses() []models.NotificationStatus {
	return []models.NotificationStatus{models.NotificationStatusPending, models.NotificationStatusSent}
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND status IN ?", userID, unreadStatuses()).
		Count(&count).Error
	return count, err
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	var n models.Notification
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("notification")
	}
	if err != nil {
		return nil, err
	}
	if n.Status == models.NotificationStatusRead {
		return &n, nil
	}
	now := s.now()
	if err := s.db.WithContext(ctx).Model(&n).Updates(map[string]interface{}{
		"status":  models.NotificationStatusRead,
		"read_at": now,
	}).Error; err != nil {
		return nil, err
	}
	n.Status = models.NotificationStatusRead
	n.ReadAt = &now
	return &n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND status IN ?", userID, unreadStatuses()).
		Updates(map[string]interface{}{
			"status":  models.NotificationStatusRead,
			"read_at": s.now(),
		})
	return res.RowsAffected, res.Error
}

func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("notification")
	}
	return nil
}

// SchedulerSummary reports what a scheduler pass created.
type SchedulerSummary struct {
	Deadlines        int `json:"deadlines"`
	PendingDocuments int `json:"pendingDocuments"`
}

// RunScheduler performs the deadline and pending-document passes.
func (s *NotificationService) RunScheduler(ctx context.Context) (*SchedulerSummary, error) {
	summary := &SchedulerSummary{}
	var errs []error
	n, err := s.ProcessDeadlines(ctx)
	summary.Deadlines = n
	if err != nil {
		errs = append(errs, err)
	}
	n, err = s.ProcessPendingDocuments(ctx)
	summary.PendingDocuments = n
	if err != nil {
		errs = append(errs, err)
	}
	return summary, errors.Join(errs...)
}

func (s *NotificationService) recentlyNotified(ctx context.Context, projectID string, kind models.NotificationType, since time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("project_id = ? AND type = ? AND created_at >= ?", projectID, kind, since).
		Count(&count).Error
	return count > 0, err
}

// ProcessDeadlines warns about in-progress projects due within three days,
// at most once per project per day.
func (s *NotificationService) ProcessDeadlines(ctx context.Context) (int, error) {
	now := s.now()
	var projects []models.Project
	err := s.db.WithContext(ctx).
		Where("status = ? AND target_end_date IS NOT NULL AND target_end_date >= ? AND target_end_date <= ?",
			models.ProjectStatusInProgress, now, now.Add(deadlineWindow)).
		Find(&projects).Error
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range projects {
		p := &projects[i]
		done, err := s.recentlyNotified(ctx, p.ID, models.NotificationProjectDeadline, now.Add(-reminderDedupe))
		if err != nil {
			return created, err
		}
		if done {
			continue
		}
		days := int(math.Ceil(p.TargetEndDate.Sub(now).Hours() / 24))
		n, err := s.NotifyOrganization(ctx, p, NotificationInput{
			Type:     models.NotificationProjectDeadline,
			Title:    "Project deadline approaching",
			Message:  fmt.Sprintf("Project %q is due in %d day(s).", p.Name, days),
			Link:     "/projects/" + p.ID,
			Metadata: map[string]any{"daysRemaining": days},
		})
		if err != nil {
			logAndContinue(s.logger, "deadline notification", err, zap.String("project_id", p.ID))
			continue
		}
		created += n
	}
	return created, nil
}

type pendingDocumentGroup struct {
	ProjectID string
	Total     int
}

// ProcessPendingDocuments reminds project consultants of documents that
// have been waiting for review for more than a day.
func (s *NotificationService) ProcessPendingDocuments(ctx context.Context) (int, error) {
	now := s.now()
	var groups []pendingDocumentGroup
	err := s.db.WithContext(ctx).Model(&models.Document{}).
		Select("project_id, COUNT(*) AS total").
		Where("status IN ? AND created_at < ?",
			[]models.DocumentStatus{models.DocumentStatusPending, models.DocumentStatusUploaded}, now.Add(-pendingDocumentAge)).
		Group("project_id").
		Scan(&groups).Error
	if err != nil {
		return 0, err
	}

	created := 0
	for _, g := range groups {
		done, err := s.recentlyNotified(ctx, g.ProjectID, models.NotificationDocumentPending, now.Add(-reminderDedupe))
		if err != nil {
			return created, err
		}
		if done {
			continue
		}
		var project models.Project
		if err := s.db.WithContext(ctx).Where("id = ?", g.ProjectID).First(&project).Error; err != nil {
			logAndContinue(s.logger, "load project for pending documents", err, zap.String("project_id", g.ProjectID))
			continue
		}
		n, err := s.Notify(ctx, []string{project.ConsultantID}, NotificationInput{
			Type:      models.NotificationDocumentPending,
			ProjectID: project.ID,
			Title:     "Documents awaiting review",
			Message:   fmt.Sprintf("%d document(s) of %q are waiting for review.", g.Total, project.Name),
			Link:      "/projects/" + project.ID + "/documents",
			Metadata:  map[string]any{"count": g.Total},
		})
		if err != nil {
			logAndContinue(s.logger, "pending document notification", err, zap.String("project_id", project.ID))
			continue
		}
		created += n
	}
	return created, nil
}
