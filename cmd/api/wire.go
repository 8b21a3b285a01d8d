package main

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"diagnostics-api/config"
	"diagnostics-api/controllers"
	"diagnostics-api/services"
)

type infra struct {
	storage services.ObjectStorage
	signer  *services.URLSigner
	mailer  services.Mailer
	events  services.EventPublisher
	llm     services.LLMClient
	logger  *zap.Logger
}

func buildServices(cfg *config.Config, db *gorm.DB, in infra) *controllers.Services {
	emails := services.NewEmailService(in.mailer, cfg.FrontendURL, cfg.EmailLogoURL, in.logger).
		WithAssetBaseURL(cfg.PublicBaseURL)
	notifications := services.NewNotificationService(db, in.logger)
	checklists := services.NewChecklistService(db, notifications, in.events, in.logger)
	ai := services.NewAIService(db, in.llm, cfg.OpenAIModel, in.logger)

	return &controllers.Services{
		Auth:          services.NewAuthService(db, cfg.JWTSecret, cfg.JWTExpireHours, emails, in.logger),
		Tenants: services.NewTenantService(db, services.TenantDeps{
			Storage:       in.storage,
			PublicBaseURL: cfg.PublicBaseURL,
			Logger:        in.logger,
		}),
		Organizations: services.NewOrganizationService(db, checklists, in.logger),
		Users:         services.NewUserService(db, emails, in.logger),
		Projects: services.NewProjectService(db, services.ProjectDeps{
			Checklists:    checklists,
			Notifications: notifications,
			Emails:        emails,
			Storage:       in.storage,
			Events:        in.events,
			Logger:        in.logger,
		}),
		Checklists: checklists,
		Reminders:  services.NewOnboardingReminderService(db, emails, cfg.OnboardingReminderLock, in.logger),
		Documents: services.NewDocumentService(db, services.DocumentDeps{
			Storage:       in.storage,
			Signer:        in.signer,
			Checklists:    checklists,
			Notifications: notifications,
			Events:        in.events,
			Logger:        in.logger,
		}),
		Surveys: services.NewSurveyService(db, emails, notifications, in.events, in.logger),
		Interviews: services.NewInterviewService(db, services.InterviewDeps{
			Storage:       in.storage,
			Signer:        in.signer,
			AI:            ai,
			Notifications: notifications,
			Events:        in.events,
			Logger:        in.logger,
		}),
		Reports: services.NewReportService(db, services.ReportDeps{
			AI:            ai,
			Emails:        emails,
			Notifications: notifications,
			Events:        in.events,
			Logger:        in.logger,
		}),
		AI:            ai,
		Notifications: notifications,
		Emails:        emails,
	}
}
