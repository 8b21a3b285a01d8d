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
	"diagnostics-api/checklist"
	"diagnostics-api/config"
	"diagnostics-api/models"
)

const (
	clientInviteTTL = 24 * time.Hour
	passwordCost    = 12
)

type ProjectService struct {
	db            *gorm.DB
	checklists    *ChecklistService
	notifications *NotificationService
	emails        *EmailService
	storage       ObjectStorage
	events        EventPublisher
	logger        *zap.Logger
	now           func() time.Time
}

type ProjectDeps struct {
	Checklists    *ChecklistService
	Notifications *NotificationService
	Emails        *EmailService
	Storage       ObjectStorage
	Events        EventPublisher
	Logger        *zap.Logger
}

func NewProjectService(db *gorm.DB, deps ProjectDeps) *ProjectService {
	if db == nil {
		db = config.DB
	}
	logger := loggerOrDefault(deps.Logger)
	if deps.Notifications == nil {
		deps.Notifications = NewNotificationService(db, logger)
	}
	if deps.Events == nil {
		deps.Events = NopPublisher{}
	}
	if deps.Checklists == nil {
		deps.Checklists = NewChecklistService(db, deps.Notifications, deps.Events, logger)
	}
	return &ProjectService{
		db:            db,
		checklists:    deps.Checklists,
		notifications: deps.Notifications,
		emails:        deps.Emails,
		storage:       deps.Storage,
		events:        deps.Events,
		logger:        logger,
		now:           time.Now,
	}
}

type CreateProjectInput struct {
	OrganizationID string         `json:"organizationId" binding:"required"`
	ConsultantID   string         `json:"consultantId"`
	Name           string         `json:"name" binding:"required,max=255"`
	Description    *string        `json:"description"`
	StartDate      *time.Time     `json:"startDate"`
	TargetEndDate  *time.Time     `json:"targetEndDate"`
	Settings       map[string]any `json:"settings"`
}

// Create opens a project, seeds its checklist and onboards the organization
// contact as the client user. Everything after the insert is best-effort.
func (s *ProjectService) Create(ctx context.Context, actor Actor, in CreateProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.Field("name", "name is required")
	}
	if in.StartDate != nil && in.TargetEndDate != nil && in.TargetEndDate.Before(*in.StartDate) {
		return nil, apperrors.Field("targetEndDate", "targetEndDate must not be before startDate")
	}
	org, err := findOrganizationFor(ctx, s.db, actor, in.OrganizationID)
	if err != nil {
		return nil, err
	}

	consultantID := in.ConsultantID
	if consultantID == "" {
		consultantID = actor.UserID
	}
	if err := s.ensureConsultant(ctx, org.TenantID, consultantID); err != nil {
		return nil, err
	}

	code, err := newProjectCode(s.now())
	if err != nil {
		return nil, err
	}
	project := &models.Project{
		OrganizationID: org.ID,
		ConsultantID:   consultantID,
		Code:           code,
		Name:           name,
		Description:    in.Description,
		Status:         models.ProjectStatusDraft,
		Stage:          checklist.StageOnboarding,
		Settings:       models.JSONMap(models.MergeSettings(nil, in.Settings)),
		StartDate:      in.StartDate,
		TargetEndDate:  in.TargetEndDate,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return err
		}
		return tx.Create(&models.ProjectActivity{
			ProjectID:   project.ID,
			UserID:      strPtr(actor.UserID),
			Action:      models.ActivityProjectCreated,
			Description: fmt.Sprintf("Project %s created", project.Code),
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	project.Organization = org

	s.checklists.Ensure(ctx, project.ID)

	bg := persistentContext(ctx)
	fields := []zap.Field{zap.String("project_id", project.ID)}
	if err := s.onboardClient(bg, project, org); err != nil {
		logAndContinue(s.logger, "onboard client user", err, fields...)
	}
	_, err = s.notifications.NotifyProjectCreated(bg, project, actor.UserID)
	logAndContinue(s.logger, "project created notification", err, fields...)
	err = s.events.Publish(bg, Event{
		Type:      EventProjectCreated,
		ProjectID: project.ID,
		Data:      map[string]any{"code": project.Code, "organizationId": org.ID},
	})
	logAndContinue(s.logger, "publish project created", err, fields...)

	return s.Get(ctx, actor, project.ID)
}

func (s *ProjectService) ensureConsultant(ctx context.Context, tenantID, userID string) error {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Field("consultantId", "consultant not found")
	}
	if err != nil {
		return err
	}
	if !user.Role.IsStaff() || (user.Role != models.RoleSuperAdmin && user.TenantID != tenantID) {
		return apperrors.Field("consultantId", "consultant must be a staff member of the tenant")
	}
	return nil
}

// onboardClient finds or creates the CLIENT user for the organization
// contact, links it to the project and sends the welcome e-mail.
func (s *ProjectService) onboardClient(ctx context.Context, project *models.Project, org *models.Organization) error {
	email := strings.ToLower(strings.TrimSpace(deref(org.ContactEmail)))
	if email == "" {
		return nil
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("tenant_id = ? AND email = ?", org.TenantID, email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		temp, err := randomHex(16)
		if err != nil {
			return err
		}
		hash, err := HashPassword(temp)
		if err != nil {
			return err
		}
		first, last := splitName(deref(org.ContactName))
		user = models.User{
			TenantID:       org.TenantID,
			OrganizationID: &org.ID,
			Email:          email,
			PasswordHash:   hash,
			FirstName:      first,
			LastName:       last,
			Phone:          org.ContactPhone,
			Role:           models.RoleClient,
			Status:         models.UserStatusPending,
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return fmt.Errorf("create client user: %w", err)
		}
	case err != nil:
		return err
	}

	if err := s.db.WithContext(ctx).Model(project).Update("client_user_id", user.ID).Error; err != nil {
		return fmt.Errorf("link client user: %w", err)
	}
	project.ClientUserID = &user.ID

	link, err := s.clientLink(ctx, &user)
	if err != nil {
		return err
	}
	if s.emails == nil {
		return nil
	}

	var consultant models.User
	_ = s.db.WithContext(ctx).Select("id", "first_name", "last_name", "email").Where("id = ?", project.ConsultantID).First(&consultant).Error

	return s.emails.SendWelcome(ctx, WelcomeEmail{
		To:               user.Email,
		Name:             user.FullName(),
		OrganizationName: org.DisplayName(),
		ProjectName:      project.Name,
		ConsultantName:   consultant.FullName(),
		LoginURL:         link,
		Brand:            s.tenantBranding(ctx, org.TenantID),
	})
}

// clientLink issues a fresh 24h activation token for pending users and
// returns the link the client should follow.
func (s *ProjectService) clientLink(ctx context.Context, user *models.User) (string, error) {
	return issueClientLink(ctx, s.db, s.emails, user, s.now())
}

func issueClientLink(ctx context.Context, db *gorm.DB, emails *EmailService, user *models.User, now time.Time) (string, error) {
	if user.Status != models.UserStatusPending {
		if emails == nil {
			return "", nil
		}
		return emails.FrontendLink("/login"), nil
	}
	token, err := newResetToken()
	if err != nil {
		return "", err
	}
	expires := now.Add(clientInviteTTL)
	if err := db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"reset_token":         token,
		"reset_token_expires": expires,
	}).Error; err != nil {
		return "", fmt.Errorf("store activation token: %w", err)
	}
	user.ResetToken = &token
	user.ResetTokenExpiry = &expires
	if emails == nil {
		return "", nil
	}
	return emails.FrontendLink("/reset-password?token=" + token), nil
}

func (s *ProjectService) tenantBranding(ctx context.Context, tenantID string) Branding {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).Select("id", "primary_color", "logo_path").Where("id = ?", tenantID).Take(&tenant).Error
	if err != nil {
		return Branding{}
	}
	return s.emails.Branding(&tenant)
}

type ProjectFilter struct {
	OrganizationID string
	Status         models.ProjectStatus
	Stage          checklist.Stage
	Search         string
}

func (s *ProjectService) List(ctx context.Context, actor Actor, filter ProjectFilter) ([]models.Project, error) {
	q := scopeProjects(s.db.WithContext(ctx).Model(&models.Project{}), actor)
	if filter.OrganizationID != "" {
		q = q.Where("projects.organization_id = ?", filter.OrganizationID)
	}
	if filter.Status != "" {
		q = q.Where("projects.status = ?", filter.Status)
	}
	if filter.Stage != "" {
		q = q.Where("projects.stage = ?", filter.Stage)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := "%" + term + "%"
		q = q.Where("projects.name LIKE ? OR projects.code LIKE ?", like, like)
	}

	projects := []models.Project{}
	err := q.Preload("Organization").
		Preload("Consultant").
		Order("projects.created_at DESC").
		Find(&projects).Error
	return projects, err
}

func (s *ProjectService) Get(ctx context.Context, actor Actor, projectID string) (*models.Project, error) {
	project, err := findProjectFor(ctx, s.db, actor, projectID)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).
		Preload("Organization").
		Preload("Consultant").
		Preload("ClientUser").
		Where("id = ?", project.ID).
		First(project).Error
	return project, err
}

type UpdateProjectInput struct {
	Name          *string               `json:"name"`
	Description   *string               `json:"description"`
	Status        *models.ProjectStatus `json:"status"`
	Stage         *checklist.Stage      `json:"stage"`
	ConsultantID  *string               `json:"consultantId"`
	StartDate     *time.Time            `json:"startDate"`
	TargetEndDate *time.Time            `json:"targetEndDate"`
	Settings      map[string]any        `json:"settings"`
}

// Update applies in and, when settings changed, reconciles the checklist
// against the merged onboarding map before returning the project.
// Clients may only change settings.
func (s *ProjectService) Update(ctx context.Context, actor Actor, projectID string, in UpdateProjectInput) (*models.Project, error) {
	project, err := findProjectFor(ctx, s.db, actor, projectID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if actor.Role == models.RoleClient {
		if in.Name != nil || in.Description != nil || in.Status != nil || in.Stage != nil ||
			in.ConsultantID != nil || in.StartDate != nil || in.TargetEndDate != nil {
			return nil, apperrors.Forbidden("clients may only update project settings")
		}
	}
	fields := map[string][]string{}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			fields["name"] = append(fields["name"], "name must not be empty")
		}
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			fields["status"] = append(fields["status"], "invalid project status")
		}
		updates["status"] = *in.Status
	}
	if in.Stage != nil {
		if !checklist.ValidStageTransition(project.Stage, *in.Stage) {
			fields["stage"] = append(fields["stage"], "invalid project stage")
		}
		updates["stage"] = *in.Stage
	}
	if in.ConsultantID != nil {
		if err := s.ensureConsultant(ctx, project.Organization.TenantID, *in.ConsultantID); err != nil {
			return nil, err
		}
		updates["consultant_id"] = *in.ConsultantID
	}
	if in.StartDate != nil {
		updates["start_date"] = *in.StartDate
	}
	if in.TargetEndDate != nil {
		updates["target_end_date"] = *in.TargetEndDate
	}
	var onboarding map[string]string
	if in.Settings != nil {
		merged := models.MergeSettings(project.SettingsMap(), in.Settings)
		updates["settings"] = models.JSONMap(merged)
		onboarding = models.OnboardingFromSettings(merged)
	}
	if len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", project.ID).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update project: %w", err)
		}
	}
	if onboarding != nil {
		s.checklists.Ensure(ctx, project.ID)
		s.checklists.SyncQuietly(ctx, project.ID, onboarding, project.OrganizationID)
	}
	return s.Get(ctx, actor, project.ID)
}

// Delete removes the project and every dependent row, then the stored files.
func (s *ProjectService) Delete(ctx context.Context, actor Actor, projectID string) error {
	project, err := findProjectFor(ctx, s.db, actor, projectID)
	if err != nil {
		return err
	}

	var paths []string
	if err := s.db.WithContext(ctx).Model(&models.Document{}).Where("project_id = ?", project.ID).Pluck("storage_path", &paths).Error; err != nil {
		return err
	}
	var transcripts []string
	if err := s.db.WithContext(ctx).Model(&models.Interview{}).
		Where("project_id = ? AND transcription_path IS NOT NULL", project.ID).
		Pluck("transcription_path", &transcripts).Error; err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		surveyIDs := tx.Model(&models.Survey{}).Select("id").Where("project_id = ?", project.ID)
		responseIDs := tx.Model(&models.SurveyResponse{}).Select("id").Where("survey_id IN (?)", surveyIDs)
		reportIDs := tx.Model(&models.Report{}).Select("id").Where("project_id = ?", project.ID)
		steps := []struct {
			model any
			query string
			arg   any
		}{
			{&models.SurveyAnswer{}, "response_id IN (?)", responseIDs},
			{&models.SurveyResponse{}, "survey_id IN (?)", surveyIDs},
			{&models.SurveyInvitation{}, "survey_id IN (?)", surveyIDs},
			{&models.SurveyQuestion{}, "survey_id IN (?)", surveyIDs},
			{&models.SurveySection{}, "survey_id IN (?)", surveyIDs},
			{&models.Survey{}, "project_id = ?", project.ID},
			{&models.ReportVersion{}, "report_id IN (?)", reportIDs},
			{&models.Report{}, "project_id = ?", project.ID},
			{&models.Interview{}, "project_id = ?", project.ID},
			{&models.DocumentChecklistHistory{}, "project_id = ?", project.ID},
			{&models.Document{}, "project_id = ?", project.ID},
			{&models.DocumentChecklistItem{}, "project_id = ?", project.ID},
			{&models.ProjectActivity{}, "project_id = ?", project.ID},
			{&models.Notification{}, "project_id = ?", project.ID},
		}
		for _, step := range steps {
			if err := tx.Where(step.query, step.arg).Delete(step.model).Error; err != nil {
				return fmt.Errorf("delete %T: %w", step.model, err)
			}
		}
		return tx.Delete(&models.Project{}, "id = ?", project.ID).Error
	})
	if err != nil {
		return err
	}

	if s.storage != nil {
		for _, key := range append(paths, transcripts...) {
			if key == "" {
				continue
			}
			logAndContinue(s.logger, "delete stored file", s.storage.Delete(persistentContext(ctx), key), zap.String("key", key))
		}
	}
	return nil
}

func (s *ProjectService) Activities(ctx context.Context, actor Actor, projectID string, limit int) ([]models.ProjectActivity, error) {
	project, err := findProjectFor(ctx, s.db, actor, projectID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	activities := []models.ProjectActivity{}
	err = s.db.WithContext(ctx).
		Where("project_id = ?", project.ID).
		Order("created_at DESC").
		Limit(limit).
		Find(&activities).Error
	return activities, err
}
