package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"diagnostics-api/apperrors"
	"diagnostics-api/controllers"
	"diagnostics-api/middleware"
	"diagnostics-api/models"
	"diagnostics-api/services"
)

// Options carries what the route table needs besides the controllers.
type Options struct {
	DB         *gorm.DB
	Auth       *services.AuthService
	CronSecret string
}

func SetupRoutes(router *gin.Engine, opts Options) {
	staff := middleware.RequireRole(models.RoleSuperAdmin, models.RoleAdmin, models.RoleConsultant)
	admins := middleware.RequireRole(models.RoleSuperAdmin, models.RoleAdmin)
	cron := middleware.CronSecret(opts.CronSecret)

	api := router.Group("/api")
	{
		// Public routes
		public := api.Group("")
		{
			public.GET("/health", controllers.HealthCheck(opts.DB))

			auth := public.Group("/auth")
			{
				auth.POST("/login", controllers.Login)
				auth.POST("/register", controllers.Register)
				auth.POST("/reset-password", controllers.ResetPassword)
				auth.POST("/forgot-password", controllers.ForgotPassword)
			}

			public.GET("/files/:token", controllers.DownloadFile)
			public.GET("/public/tenants/:id/logo", controllers.GetTenantAsset(services.TenantLogo))
			public.GET("/public/tenants/:id/favicon", controllers.GetTenantAsset(services.TenantFavicon))
			public.GET("/public/surveys/:code", controllers.GetPublicSurvey)
			public.POST("/public/surveys/:code/respond", controllers.RespondSurvey)

			// Scheduler hooks
			public.POST("/projects/process-onboarding-reminders", cron, controllers.ProcessOnboardingReminders)
			public.POST("/notifications/scheduler", cron, controllers.RunNotificationScheduler)
		}

		// Protected routes (require authentication)
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(opts.Auth))
		{
			protected.GET("/auth/me", controllers.GetProfile)
			protected.PUT("/auth/change-password", controllers.ChangePassword)

			tenants := protected.Group("/tenants", middleware.RequireRole(models.RoleSuperAdmin))
			{
				tenants.GET("", controllers.GetTenants)
				tenants.GET("/:id", controllers.GetTenant)
				tenants.POST("", controllers.CreateTenant)
				tenants.PUT("/:id", controllers.UpdateTenant)
				tenants.POST("/:id/logo", controllers.UploadTenantAsset(services.TenantLogo))
				tenants.POST("/:id/favicon", controllers.UploadTenantAsset(services.TenantFavicon))
				tenants.DELETE("/:id", controllers.DeleteTenant)
			}

			emails := protected.Group("/emails", admins)
			{
				emails.GET("/test-connection", controllers.TestEmailConnection)
				emails.POST("/test", controllers.SendTestEmail)
			}

			users := protected.Group("/users", admins)
			{
				users.GET("", controllers.GetUsers)
				users.POST("", controllers.CreateUser)
				users.PUT("/:id", controllers.UpdateUser)
			}

			orgs := protected.Group("/organizations")
			{
				orgs.GET("", controllers.GetOrganizations)
				orgs.GET("/:id", controllers.GetOrganization)
				orgs.POST("", staff, controllers.CreateOrganization)
				orgs.PUT("/:id", controllers.UpdateOrganization)
				orgs.DELETE("/:id", admins, controllers.DeleteOrganization)
				orgs.GET("/:id/team-members", controllers.GetTeamMembers)
				orgs.POST("/:id/team-members/import", controllers.ImportTeamMembers)
			}

			projects := protected.Group("/projects")
			{
				projects.GET("", controllers.GetProjects)
				projects.POST("", staff, controllers.CreateProject)
				projects.PUT("/checklist/:itemId/text", controllers.AnswerChecklistText)
				projects.PUT("/checklist/:itemId/validate", staff, controllers.ValidateChecklistItem)
				projects.GET("/:id", controllers.GetProject)
				projects.PUT("/:id", controllers.UpdateProject)
				projects.DELETE("/:id", staff, controllers.DeleteProject)
				projects.GET("/:id/progress", controllers.GetProjectProgress)
				projects.GET("/:id/checklist", controllers.GetProjectChecklist)
				projects.GET("/:id/activities", controllers.GetProjectActivities)
				projects.POST("/:id/onboarding-reminder", staff, controllers.SendOnboardingReminder)
				projects.GET("/:id/documents", controllers.GetProjectDocuments)
				projects.GET("/:id/surveys", controllers.GetProjectSurveys)
				projects.GET("/:id/interviews", controllers.GetProjectInterviews)
				projects.GET("/:id/reports", controllers.GetProjectReports)
			}

			documents := protected.Group("/documents")
			{
				documents.POST("/upload", controllers.UploadDocument)
				documents.GET("/:id", controllers.GetDocument)
				documents.PUT("/:id/validate", staff, controllers.ValidateDocument)
				documents.DELETE("/:id", controllers.DeleteDocument)
			}

			surveys := protected.Group("/surveys")
			{
				surveys.GET("/:id", controllers.GetSurvey)
				surveys.POST("", staff, controllers.CreateSurvey)
				surveys.PUT("/:id", staff, controllers.UpdateSurvey)
				surveys.POST("/:id/invitations", staff, controllers.SendSurveyInvitations)
				surveys.POST("/:id/reminders", staff, controllers.SendSurveyReminders)
				surveys.GET("/:id/responses", staff, controllers.GetSurveyResponses)
				surveys.GET("/:id/statistics", controllers.GetSurveyStatistics)
			}

			interviews := protected.Group("/interviews")
			{
				interviews.GET("/:id", controllers.GetInterview)
				interviews.POST("", staff, controllers.CreateInterview)
				interviews.PUT("/:id/transcription", staff, controllers.UploadTranscription)
				interviews.POST("/:id/analyze", staff, controllers.AnalyzeInterview)
				interviews.DELETE("/:id", staff, controllers.DeleteInterview)
			}

			reports := protected.Group("/reports")
			{
				reports.GET("/:id", controllers.GetReport)
				reports.POST("/generate", staff, controllers.GenerateReport)
				reports.PUT("/:id/section", staff, controllers.UpdateReportSection)
				reports.POST("/:id/publish", staff, controllers.PublishReport)
				reports.GET("/:id/versions", controllers.GetReportVersions)
			}

			ai := protected.Group("/ai")
			{
				ai.POST("/chat", controllers.Chat)
				ai.GET("/conversations", controllers.GetConversations)
				ai.GET("/conversations/:id/messages", controllers.GetConversationMessages)
			}

			notifications := protected.Group("/notifications")
			{
				notifications.GET("", controllers.GetNotifications)
				notifications.GET("/unread-count", controllers.GetUnreadCount)
				notifications.PUT("/read-all", controllers.MarkAllNotificationsRead)
				notifications.PUT("/:id/read", controllers.MarkNotificationRead)
				notifications.DELETE("/:id", controllers.DeleteNotification)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		_ = c.Error(apperrors.NotFound("route"))
	})
}
