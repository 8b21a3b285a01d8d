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
	"diagnostics-api/monitor"
)

var (
	ErrOnboardingRemindersAlreadyRunning = errors.New("onboarding reminders already running")
	ErrNoClientUser                      = errors.New("project has no client user")
)

type OnboardingReminderSummary struct {
	Projects int `json:"projects"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
}

type OnboardingReminderService struct {
	db       *gorm.DB
	emails   *EmailService
	logger   *zap.Logger
	lockName string
	now      func() time.Time
}

func NewOnboardingReminderService(db *gorm.DB, emails *EmailService, lockName string, logger *zap.Logger) *OnboardingReminderService {
	if db == nil {
		db = config.DB
	}
	return &OnboardingReminderService{
		db:       db,
		emails:   emails,
		logger:   loggerOrDefault(logger).Named("onboarding_reminders"),
		lockName: lockName,
		now:      time.Now,
	}
}

// ProcessAll sends a reminder to the client of every project still in
// ONBOARDING below 100%. A failing project is counted and skipped. With a
// lock name, the whole pass runs on one connection holding the advisory lock.
func (s *OnboardingReminderService) ProcessAll(ctx context.Context) (*OnboardingReminderSummary, error) {
	if strings.TrimSpace(s.lockName) == "" {
		return s.runPass(ctx, s.db.WithContext(ctx))
	}

	var summary *OnboardingReminderSummary
	err := s.db.WithContext(ctx).Connection(func(conn *gorm.DB) (err error) {
		if err := acquireLock(conn.WithContext(ctx), s.lockName); err != nil {
			return err
		}
		defer func() {
			relErr := releaseLock(conn.WithContext(persistentContext(ctx)), s.lockName)
			if relErr != nil {
				s.logger.Warn("failed to release onboarding reminder lock", zap.Error(relErr))
				err = errors.Join(err, relErr)
			}
		}()
		summary, err = s.runPass(ctx, conn.WithContext(ctx))
		return err
	})
	return summary, err
}

func (s *OnboardingReminderService) runPass(ctx context.Context, db *gorm.DB) (*OnboardingReminderSummary, error) {
	var projects []models.Project
	err := db.
		Preload("ClientUser").
		Where("stage = ? AND progress < ? AND client_user_id IS NOT NULL", checklist.StageOnboarding, 100).
		Order("created_at ASC").
		Find(&projects).Error
	if err != nil {
		return nil, err
	}

	summary := &OnboardingReminderSummary{Projects: len(projects)}
	for i := range projects {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		project := &projects[i]
		if err := s.remind(ctx, db, "", project); err != nil {
			summary.Failed++
			monitor.IncrementOnboardingReminder("failed")
			s.logger.Warn("onboarding reminder failed", zap.String("project_id", project.ID), zap.Error(err))
			continue
		}
		summary.Sent++
		monitor.IncrementOnboardingReminder("sent")
	}

	s.logger.Info("onboarding reminders processed",
		zap.Int("projects", summary.Projects),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// SendForProject resends the reminder of one project on behalf of actor.
func (s *OnboardingReminderService) SendForProject(ctx context.Context, actor Actor, projectID string) error {
	project, err := findProjectFor(ctx, s.db, actor, projectID)
	if err != nil {
		return err
	}
	if project.ClientUserID == nil {
		return apperrors.Wrap(ErrNoClientUser, "project has no client user to remind")
	}
	var client models.User
	if err := s.db.WithContext(ctx).Where("id = ?", *project.ClientUserID).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.Wrap(ErrNoClientUser, "project has no client user to remind")
		}
		return err
	}
	project.ClientUser = &client

	if err := s.remind(ctx, s.db, actor.UserID, project); err != nil {
		monitor.IncrementOnboardingReminder("failed")
		return err
	}
	monitor.IncrementOnboardingReminder("sent")
	return nil
}

func (s *OnboardingReminderService) remind(ctx context.Context, db *gorm.DB, actorID string, project *models.Project) error {
	client := project.ClientUser
	if client == nil {
		return ErrNoClientUser
	}

	link := ""
	if client.Status == models.UserStatusPending {
		var err error
		link, err = issueClientLink(ctx, db, s.emails, client, s.now())
		if err != nil {
			return err
		}
	} else if s.emails != nil {
		link = s.emails.FrontendLink("/projects/" + project.ID + "/onboarding")
	}

	err := s.emails.SendOnboardingReminder(ctx, OnboardingReminderEmail{
		To:          client.Email,
		Name:        client.FullName(),
		ProjectName: project.Name,
		Progress:    project.Progress,
		Link:        link,
		Brand:       s.emails.Branding(projectTenant(ctx, db, project.ID)),
	})
	if err != nil {
		return err
	}

	activity := models.ProjectActivity{
		ProjectID:   project.ID,
		UserID:      strPtr(actorID),
		Action:      models.ActivityOnboardingReminderSent,
		Description: fmt.Sprintf("Onboarding reminder sent to %s", strings.ToLower(client.Email)),
		Metadata:    models.JSONMap(map[string]any{"progress": project.Progress}),
	}
	logAndContinue(s.logger, "record reminder activity",
		db.WithContext(persistentContext(ctx)).Create(&activity).Error,
		zap.String("project_id", project.ID))
	return nil
}

// acquireLock takes a MySQL advisory lock so two passes never overlap. The
// lock belongs to the session, so db must be pinned to one connection.
func acquireLock(db *gorm.DB, lockName string) error {
	var ok int
	if err := db.Raw("SELECT GET_LOCK(?, 0)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return ErrOnboardingRemindersAlreadyRunning
	}
	return nil
}

func releaseLock(db *gorm.DB, lockName string) error {
	var released int
	if err := db.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&released).Error; err != nil {
		return err
	}
	if released != 1 {
		return fmt.Errorf("release lock %s: not held by this session", lockName)
	}
	return nil
}
