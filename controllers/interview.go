package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"diagnostics-api/services"
)

type TranscriptionRequest struct {
	Transcription string `json:"transcription" binding:"required"`
}

func GetProjectInterviews(c *gin.Context) {
	interviews, err := svc.Interviews.ListByProject(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, interviews)
}

func GetInterview(c *gin.Context) {
	interview, err := svc.Interviews.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, interview)
}

func CreateInterview(c *gin.Context) {
	var req services.CreateInterviewInput
	if !bind(c, &req) {
		return
	}
	interview, err := svc.Interviews.Create(c.Request.Context(), actor(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, interview)
}

func UploadTranscription(c *gin.Context) {
	var req TranscriptionRequest
	if !bind(c, &req) {
		return
	}
	interview, err := svc.Interviews.UploadTranscription(c.Request.Context(), actor(c), c.Param("id"), req.Transcription)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, interview)
}

func AnalyzeInterview(c *gin.Context) {
	interview, err := svc.Interviews.Analyze(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, interview)
}

func DeleteInterview(c *gin.Context) {
	if err := svc.Interviews.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
