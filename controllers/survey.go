package controllers

import (
	"github.com/gin-gonic/gin"

	"diagnostics-api/services"
)

type SendInvitationsRequest struct {
	Emails []string `json:"emails" binding:"required,min=1"`
}

func GetProjectSurveys(c *gin.Context) {
	surveys, err := svc.Surveys.ListByProject(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, surveys)
}

func GetSurvey(c *gin.Context) {
	survey, err := svc.Surveys.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, survey)
}

func CreateSurvey(c *gin.Context) {
	var req services.SurveyInput
	if !bind(c, &req) {
		return
	}
	survey, err := svc.Surveys.Create(c.Request.Context(), actor(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, survey)
}

func UpdateSurvey(c *gin.Context) {
	var req services.SurveyInput
	if !bind(c, &req) {
		return
	}
	survey, err := svc.Surveys.Update(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, survey)
}

func SendSurveyInvitations(c *gin.Context) {
	var req SendInvitationsRequest
	if !bind(c, &req) {
		return
	}
	n, err := svc.Surveys.SendInvitations(c.Request.Context(), actor(c), c.Param("id"), req.Emails)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"invited": n})
}

func SendSurveyReminders(c *gin.Context) {
	n, err := svc.Surveys.SendReminders(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"reminded": n})
}

func GetSurveyResponses(c *gin.Context) {
	responses, err := svc.Surveys.Responses(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, responses)
}

func GetSurveyStatistics(c *gin.Context) {
	stats, err := svc.Surveys.Statistics(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, stats)
}

// GetPublicSurvey is the unauthenticated view respondents open from their
// invitation link.
func GetPublicSurvey(c *gin.Context) {
	survey, err := svc.Surveys.GetByAccessCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, survey)
}

func RespondSurvey(c *gin.Context) {
	var req services.RespondInput
	if !bind(c, &req) {
		return
	}
	response, err := svc.Surveys.Respond(c.Request.Context(), c.Param("code"), "", req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, gin.H{"id": response.ID, "submittedAt": response.SubmittedAt})
}
