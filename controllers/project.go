package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"diagnostics-api/apperrors"
	"diagnostics-api/checklist"
	"diagnostics-api/models"
	"diagnostics-api/services"
)

type ChecklistTextRequest struct {
	Content string `json:"content" binding:"required"`
}

type ReviewRequest struct {
	Status services.ReviewDecision `json:"status" binding:"required"`
	Notes  string                  `json:"notes"`
}

func GetProjects(c *gin.Context) {
	filter := services.ProjectFilter{
		OrganizationID: c.Query("organizationId"),
		Status:         models.ProjectStatus(c.Query("status")),
		Stage:          checklist.Stage(c.Query("stage")),
		Search:         c.Query("search"),
	}
	projects, err := svc.Projects.List(c.Request.Context(), actor(c), filter)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, projects)
}

func GetProject(c *gin.Context) {
	project, err := svc.Projects.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, project)
}

// CreateProject seeds the checklist and onboards the client contact.
func CreateProject(c *gin.Context) {
	var req services.CreateProjectInput
	if !bind(c, &req) {
		return
	}
	project, err := svc.Projects.Create(c.Request.Context(), actor(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, project)
}

// UpdateProject merges settings and reconciles the checklist when the
// onboarding answers change.
func UpdateProject(c *gin.Context) {
	var req services.UpdateProjectInput
	if !bind(c, &req) {
		return
	}
	project, err := svc.Projects.Update(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, project)
}

func DeleteProject(c *gin.Context) {
	if err := svc.Projects.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func GetProjectActivities(c *gin.Context) {
	activities, err := svc.Projects.Activities(c.Request.Context(), actor(c), c.Param("id"), queryInt(c, "limit", 50))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, activities)
}

func GetProjectProgress(c *gin.Context) {
	progress, err := svc.Checklists.Progress(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, progress)
}

func GetProjectChecklist(c *gin.Context) {
	items, err := svc.Checklists.Checklist(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

func AnswerChecklistText(c *gin.Context) {
	var req ChecklistTextRequest
	if !bind(c, &req) {
		return
	}
	item, err := svc.Checklists.AnswerText(c.Request.Context(), actor(c), c.Param("itemId"), req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, item)
}

func ValidateChecklistItem(c *gin.Context) {
	var req ReviewRequest
	if !bind(c, &req) {
		return
	}
	item, err := svc.Checklists.Review(c.Request.Context(), actor(c), c.Param("itemId"), req.Status, req.Notes)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, item)
}

func SendOnboardingReminder(c *gin.Context) {
	if err := svc.Reminders.SendForProject(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	message(c, "reminder sent")
}

// ProcessOnboardingReminders is called by the scheduler with X-Cron-Secret.
func ProcessOnboardingReminders(c *gin.Context) {
	summary, err := svc.Reminders.ProcessAll(c.Request.Context())
	if errors.Is(err, services.ErrOnboardingRemindersAlreadyRunning) {
		fail(c, apperrors.Conflict("onboarding reminders already running"))
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, summary)
}
