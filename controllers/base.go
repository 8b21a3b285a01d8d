package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"diagnostics-api/middleware"
	"diagnostics-api/services"
)

// Services is the set of domain services the handlers call.
type Services struct {
	Auth          *services.AuthService
	Tenants       *services.TenantService
	Organizations *services.OrganizationService
	Users         *services.UserService
	Projects      *services.ProjectService
	Checklists    *services.ChecklistService
	Reminders     *services.OnboardingReminderService
	Documents     *services.DocumentService
	Surveys       *services.SurveyService
	Interviews    *services.InterviewService
	Reports       *services.ReportService
	AI            *services.AIService
	Notifications *services.NotificationService
	Emails        *services.EmailService
}

var svc = &Services{}

// Configure installs the services used by every handler.
func Configure(s *Services) {
	if s != nil {
		svc = s
	}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

func message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

// fail hands err to middleware.ErrorHandler.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return false
	}
	return true
}

func actor(c *gin.Context) services.Actor {
	return middleware.CurrentActor(c)
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
